package score

import "github.com/sells-group/leadenrich/internal/model"

// Field weights for the 0-100 data-quality score. Identity-bearing fields
// weigh most; display-only fields least. The sum exceeds 100 so a fully
// populated record still caps at 100.
var qualityWeights = []struct {
	present func(model.Contact) bool
	weight  int
}{
	{func(c model.Contact) bool { return c.Email != "" }, 25},
	{func(c model.Contact) bool { return c.Phone != "" }, 20},
	{func(c model.Contact) bool { return c.Website != "" }, 15},
	{func(c model.Contact) bool { return c.Company != "" }, 15},
	{func(c model.Contact) bool { return c.FirstName != "" && c.LastName != "" }, 10},
	{func(c model.Contact) bool { return c.Title != "" }, 10},
	{func(c model.Contact) bool { return c.City != "" || c.State != "" }, 10},
	{func(c model.Contact) bool { return c.LinkedInURL != "" }, 10},
}

// Quality computes the weighted field-presence score used for operational
// triage. It is independent of the confidence score.
func Quality(c model.Contact) int {
	total := 0
	for _, w := range qualityWeights {
		if w.present(c) {
			total += w.weight
		}
	}
	if total > 100 {
		total = 100
	}
	return total
}
