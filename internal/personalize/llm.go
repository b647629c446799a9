package personalize

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/leadenrich/internal/model"
	"github.com/sells-group/leadenrich/pkg/anthropic"
)

const polishSystemPrompt = "You rewrite one cold-outreach icebreaker sentence. " +
	"Keep it to a single sentence, keep every factual claim from the draft, " +
	"and never invent details. Respond with the sentence only."

// Polisher optionally rewrites a templated icebreaker with a language model.
// All failures fall back to the templated draft untouched.
type Polisher struct {
	client anthropic.Client
	model  string
	log    *zap.Logger
}

// NewPolisher wires a Polisher. A nil client disables polishing.
func NewPolisher(client anthropic.Client, modelID string, log *zap.Logger) *Polisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Polisher{client: client, model: modelID, log: log}
}

// Polish rewrites the icebreaker of rich-tier copy. Generic and thin tiers
// keep their deterministic output so a model outage can never degrade a run.
func (p *Polisher) Polish(ctx context.Context, pers model.Personalization, intel model.BusinessIntelligence) model.Personalization {
	if p == nil || p.client == nil || pers.Tier != model.TierRich || pers.Icebreaker == "" {
		return pers
	}

	temp := 0.7
	resp, err := p.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       p.model,
		MaxTokens:   200,
		System:      polishSystemPrompt,
		Temperature: &temp,
		Messages: []anthropic.Message{
			{Role: "user", Content: polishPrompt(pers.Icebreaker, intel)},
		},
	})
	if err != nil {
		p.log.Warn("icebreaker polish failed, keeping draft", zap.Error(err))
		return pers
	}

	polished := strings.TrimSpace(resp.Text())
	if !acceptablePolish(polished) {
		p.log.Warn("icebreaker polish rejected, keeping draft",
			zap.Int("length", len(polished)))
		return pers
	}

	resp.Usage.LogCost(p.model, "icebreaker_polish")
	pers.Icebreaker = polished
	return pers
}

func polishPrompt(draft string, intel model.BusinessIntelligence) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Draft icebreaker: %s\n", draft)
	if intel.CompanyName != "" {
		fmt.Fprintf(&b, "Company: %s\n", intel.CompanyName)
	}
	if intel.Industry != "" {
		fmt.Fprintf(&b, "Industry: %s\n", intel.Industry)
	}
	if len(intel.Services) > 0 {
		fmt.Fprintf(&b, "Services: %s\n", strings.Join(intel.Services, ", "))
	}
	b.WriteString("Rewrite the draft so it reads naturally.")
	return b.String()
}

// acceptablePolish rejects output that is empty, multi-sentence prose, or
// long enough to suggest the model ignored the instructions.
func acceptablePolish(s string) bool {
	if s == "" || len(s) > 300 {
		return false
	}
	return !strings.Contains(s, "\n")
}
