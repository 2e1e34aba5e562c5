package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/monitoring"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the lead intake webhook server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		// Background health checks run only when somewhere to alert exists.
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
			Handler:           newRouter(ctx, env),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newRouter builds the HTTP API. The parent ctx bounds the async processing
// spawned by the webhook, not individual requests.
func newRouter(ctx context.Context, env *pipelineEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	r.Use(rateLimitMiddleware(cfg.Server.RatePerSecond))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/stats", func(w http.ResponseWriter, req *http.Request) {
		lookback := 24
		if raw := req.URL.Query().Get("lookback"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "lookback must be a positive integer"})
				return
			}
			lookback = n
		}
		snap, err := monitoring.NewCollector(env.Store).Collect(req.Context(), lookback)
		if err != nil {
			zap.L().Error("stats collection failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "stats collection failed"})
			return
		}
		writeJSON(w, http.StatusOK, snap)
	})

	r.Get("/leads/{id}", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		lead, err := env.Store.GetLead(req.Context(), id)
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "lead not found"})
			return
		}
		decision, err := env.Store.GetLatestDecision(req.Context(), id)
		if err != nil {
			zap.L().Error("load decision failed", zap.String("lead_id", id), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "load decision failed"})
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Lead     *model.Lead     `json:"lead"`
			Decision *model.Decision `json:"decision,omitempty"`
		}{lead, decision})
	})

	r.Post("/webhook/leads", func(w http.ResponseWriter, req *http.Request) {
		var in model.Lead
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if !in.HasCompany() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "company is required"})
			return
		}
		if in.Source == "" {
			in.Source = "webhook"
		}

		created, err := env.Store.CreateLead(req.Context(), in)
		if err != nil {
			zap.L().Error("webhook lead create failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "create lead failed"})
			return
		}

		// Decisioning runs off the request path; the caller gets the lead ID
		// immediately and polls /leads/{id} for the outcome.
		go func() {
			if _, err := env.Pipeline.Process(ctx, *created); err != nil {
				zap.L().Error("webhook lead processing failed",
					zap.String("lead_id", created.ID),
					zap.String("company", created.Company),
					zap.Error(err),
				)
			}
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{
			"status":  "accepted",
			"lead_id": created.ID,
		})
	})

	return r
}

// rateLimitMiddleware applies a global token-bucket limit to the API.
func rateLimitMiddleware(rps float64) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !limiter.Allow() {
				writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
