package main

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/account-intel/internal/ratelimit"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP trigger surface",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.RealIP)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))
		r.Use(rateLimitMiddleware(e.Limiter))

		r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
		r.Handle("/metrics", promhttp.Handler())

		r.Post("/v1/accounts/{slug}/run", func(w http.ResponseWriter, req *http.Request) {
			slug := chi.URLParam(req, "slug")
			if slug == "" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "slug is required"})
				return
			}

			// Run asynchronously; the caller polls scores afterwards.
			go func() {
				result, err := e.Pipeline.Run(ctx, slug)
				if err != nil {
					zap.L().Error("triggered run failed",
						zap.String("account", slug),
						zap.Error(err),
					)
					return
				}
				zap.L().Info("triggered run complete",
					zap.String("account", slug),
					zap.Int("processed", result.Processed),
				)
			}()

			writeJSON(w, http.StatusAccepted, map[string]string{
				"status":  "accepted",
				"account": slug,
			})
		})

		r.Get("/v1/scores/health", func(w http.ResponseWriter, req *http.Request) {
			scores, err := e.Scoring.HealthScores(req.Context())
			if err != nil {
				zap.L().Error("health scores failed", zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "scoring failed"})
				return
			}
			writeJSON(w, http.StatusOK, scores)
		})

		r.Get("/v1/scores/targets", func(w http.ResponseWriter, req *http.Request) {
			scores, err := e.Scoring.TargetScores(req.Context())
			if err != nil {
				zap.L().Error("target scores failed", zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "scoring failed"})
				return
			}
			writeJSON(w, http.StatusOK, scores)
		})

		r.Get("/v1/focus", func(w http.ResponseWriter, req *http.Request) {
			items, err := e.Scoring.Focus(req.Context())
			if err != nil {
				zap.L().Error("focus feed failed", zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "scoring failed"})
				return
			}
			writeJSON(w, http.StatusOK, items)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// rateLimitMiddleware applies the store-backed limiter per route and
// client. Denials return 429 with a Retry-After hint; /metrics and
// /healthz are exempt.
func rateLimitMiddleware(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	window := time.Duration(cfg.RateLimit.WindowMs) * time.Millisecond
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.URL.Path == "/healthz" || req.URL.Path == "/metrics" {
				next.ServeHTTP(w, req)
				return
			}

			host, _, err := net.SplitHostPort(req.RemoteAddr)
			if err != nil {
				host = req.RemoteAddr
			}
			key := req.URL.Path + ":" + host

			decision := limiter.Check(req.Context(), key, cfg.RateLimit.Limit, window)
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			if !decision.Allowed {
				retryAfter := int(time.Until(decision.ResetAt).Seconds()) + 1
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
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
