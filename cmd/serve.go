package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadenrich/internal/export"
	"github.com/sells-group/leadenrich/internal/fetch"
	"github.com/sells-group/leadenrich/internal/ingest"
	"github.com/sells-group/leadenrich/internal/model"
	"github.com/sells-group/leadenrich/internal/monitor"
	"github.com/sells-group/leadenrich/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the bulk enrichment API server",
	Long:  "Serves job submission, status, export, and health endpoints, with a background sweep that recovers stale jobs.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		// Background stale-job sweep.
		checker := monitor.NewChecker(env.Monitor, cfg.Monitor.CheckInterval())
		go checker.Run(ctx)

		api := &apiServer{env: env}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: api.routes(),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// apiServer carries the shared environment for the HTTP handlers.
type apiServer struct {
	env *pipelineEnv
}

func (a *apiServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", a.handleHealth)
	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", a.handleListJobs)
		r.Post("/", a.handleCreateJob)
		r.Get("/{jobID}", a.handleGetJob)
		r.Get("/{jobID}/items", a.handleGetItems)
		r.Get("/{jobID}/export", a.handleExportCSV)
		r.Post("/{jobID}/process", a.handleProcessJob)
	})
	r.Post("/recover", a.handleRecover)

	return r
}

func (a *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	health, err := a.env.Monitor.ProcessorHealth(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	status := http.StatusOK
	if !health.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

func (a *apiServer) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Source  string `json:"source"`
		Process bool   `json:"process"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, eris.New("invalid request body"))
		return
	}
	if req.Source == "" {
		writeError(w, http.StatusBadRequest, eris.New("source is required"))
		return
	}

	httpClient := fetch.NewHTTPClient(fetch.HTTPOptions{Timeout: cfg.Scrape.Timeout()})
	ftpClient := fetch.NewFTPClient(cfg.Scrape.Timeout())
	reader := ingest.NewReader(httpClient, ftpClient)

	records, err := reader.Read(r.Context(), req.Source)
	if err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "read source"))
		return
	}

	jb, err := a.env.Store.CreateBulkJob(r.Context(), req.Source, records)
	if err != nil {
		writeError(w, http.StatusInternalServerError, eris.Wrap(err, "create job"))
		return
	}

	if req.Process {
		a.dispatch(jb.ID)
	}

	writeJSON(w, http.StatusCreated, jb)
}

func (a *apiServer) handleProcessJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	jb, err := a.env.Store.GetBulkJob(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if jb == nil {
		writeError(w, http.StatusNotFound, eris.Errorf("job %s not found", jobID))
		return
	}

	a.dispatch(jobID)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
		"job_id": jobID,
	})
}

// dispatch runs a job in the background. The same-job guard makes duplicate
// dispatches a no-op.
func (a *apiServer) dispatch(jobID string) {
	go func() {
		if err := a.env.Processor.ProcessJobItems(context.Background(), jobID); err != nil {
			zap.L().Error("background job failed",
				zap.String("job_id", jobID),
				zap.Error(err),
			)
		}
	}()
}

func (a *apiServer) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	jb, err := a.env.Store.GetBulkJob(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if jb == nil {
		writeError(w, http.StatusNotFound, eris.Errorf("job %s not found", jobID))
		return
	}
	writeJSON(w, http.StatusOK, jb)
}

func (a *apiServer) handleListJobs(w http.ResponseWriter, r *http.Request) {
	filter := store.JobFilter{
		Status: model.JobStatus(r.URL.Query().Get("status")),
		Limit:  50,
	}

	jobs, err := a.env.Store.ListBulkJobs(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (a *apiServer) handleGetItems(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	items, err := a.env.Store.GetBulkJobItems(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *apiServer) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	jb, err := a.env.Store.GetBulkJob(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if jb == nil {
		writeError(w, http.StatusNotFound, eris.Errorf("job %s not found", jobID))
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="job-%s.csv"`, jobID))
	if _, err := export.WriteCSV(r.Context(), a.env.Store, jobID, w); err != nil {
		zap.L().Error("csv export failed",
			zap.String("job_id", jobID),
			zap.Error(err),
		)
	}
}

func (a *apiServer) handleRecover(w http.ResponseWriter, r *http.Request) {
	recovered, err := a.env.Monitor.RecoverStaleJobs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"recovered": recovered})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
