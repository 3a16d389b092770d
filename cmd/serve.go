package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/invoice-triage/internal/config"
	"github.com/sells-group/invoice-triage/internal/model"
	"github.com/sells-group/invoice-triage/internal/monitoring"
	"github.com/sells-group/invoice-triage/internal/pipeline"
	"github.com/sells-group/invoice-triage/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the invoice ingestion server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if cfg.Monitoring.WebhookURL != "" {
			checker := monitoring.NewChecker(
				monitoring.NewCollector(env.Store),
				monitoring.NewAlerter(cfg.Monitoring),
				cfg.Monitoring,
			)
			go checker.Run(ctx)
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(cfg, env.Store, env.Pipeline),
			ReadHeaderTimeout: 10 * time.Second,
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

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newRouter builds the HTTP API for the ingestion server.
func newRouter(cfg *config.Config, st store.Store, p *pipeline.Pipeline) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(rateLimit(rate.NewLimiter(rate.Limit(cfg.Server.RatePerSecond), cfg.Server.RateBurst)))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/invoices", handleProcessInvoice(p))
		r.Get("/runs", handleListRuns(st))
		r.Get("/runs/{id}", handleGetRun(st))
		r.Get("/runs/{id}/decision", handleGetDecision(st))
		r.Get("/metrics", handleMetrics(st, cfg.Monitoring))
	})

	return r
}

// rateLimit rejects requests above the configured throughput with 429.
func rateLimit(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// processRequest is the POST /v1/invoices body. Either a source path on the
// server filesystem or an inline vendor payload must be given.
type processRequest struct {
	Source  string         `json:"source,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

func handleProcessInvoice(p *pipeline.Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req processRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Source == "" && req.Payload == nil {
			writeError(w, http.StatusBadRequest, "source or payload is required")
			return
		}

		source := req.Source
		if source == "" {
			// Inline payloads go through the same file-based extraction path.
			path, err := spoolPayload(req.Payload)
			if err != nil {
				zap.L().Error("payload spool failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "failed to accept payload")
				return
			}
			defer os.Remove(path)
			source = path
		}

		result, err := p.Process(r.Context(), source)
		if err != nil {
			zap.L().Error("triage request failed", zap.String("source", req.Source), zap.Error(err))
			resp := map[string]string{"error": "processing failed"}
			if result != nil && result.RunID != "" {
				resp["run_id"] = result.RunID
			}
			writeJSON(w, http.StatusUnprocessableEntity, resp)
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

func handleListRuns(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))

		filter := store.RunFilter{
			Status:  model.RunStatus(q.Get("status")),
			DocID:   q.Get("doc"),
			Outcome: model.Outcome(q.Get("outcome")),
			Limit:   limit,
		}

		runs, err := st.ListRuns(r.Context(), filter)
		if err != nil {
			zap.L().Error("list runs failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "list runs failed")
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
	}
}

func handleGetRun(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, err := st.GetRun(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		writeJSON(w, http.StatusOK, run)
	}
}

func handleGetDecision(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := st.GetDecision(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusNotFound, "decision not found")
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleMetrics(st store.Store, monCfg config.MonitoringConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hours, _ := strconv.Atoi(r.URL.Query().Get("hours"))
		if hours < 1 {
			hours = monCfg.LookbackWindowHours
		}
		if hours < 1 {
			hours = 24
		}

		snap, err := monitoring.NewCollector(st).Collect(r.Context(), hours)
		if err != nil {
			zap.L().Error("metrics collection failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "metrics collection failed")
			return
		}

		writeJSON(w, http.StatusOK, snap)
	}
}

// spoolPayload writes an inline vendor payload to a temp file so the file
// extractor can pick it up.
func spoolPayload(payload map[string]any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", eris.Wrap(err, "marshal payload")
	}

	f, err := os.CreateTemp("", "invoice-*.json")
	if err != nil {
		return "", eris.Wrap(err, "create temp file")
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", eris.Wrap(err, "write temp file")
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", eris.Wrap(err, "close temp file")
	}

	return filepath.Clean(f.Name()), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
