package main

import (
	"encoding/json"
	"errors"
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

	"github.com/sells-group/outreach-pipeline/internal/model"
	"github.com/sells-group/outreach-pipeline/internal/pipeline"
	"github.com/sells-group/outreach-pipeline/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the approval API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env),
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

func newRouter(env *pipelineEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Acting-User", "X-Acting-Role"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/enrichments", func(w http.ResponseWriter, req *http.Request) {
			filter := store.EnrichmentFilter{
				Status:    model.EnrichmentStatus(req.URL.Query().Get("status")),
				ContactID: req.URL.Query().Get("contact_id"),
			}
			enrichments, err := env.Store.ListEnrichments(req.Context(), filter)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, enrichments)
		})

		r.Get("/enrichments/{id}", func(w http.ResponseWriter, req *http.Request) {
			enr, err := env.Store.GetEnrichment(req.Context(), chi.URLParam(req, "id"))
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, enr)
		})

		r.Post("/enrichments/{id}/approve", func(w http.ResponseWriter, req *http.Request) {
			enr, err := env.Pipeline.Approve(req.Context(), chi.URLParam(req, "id"), headerUser(req))
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, enr)
		})

		r.Post("/enrichments/{id}/reject", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Reason string `json:"reason"`
			}
			if req.Body != nil {
				// An empty or absent body means no reason.
				_ = json.NewDecoder(req.Body).Decode(&body)
			}
			enr, err := env.Pipeline.Reject(req.Context(), chi.URLParam(req, "id"), headerUser(req), body.Reason)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, enr)
		})

		r.Post("/contacts/{id}/re-enrich", func(w http.ResponseWriter, req *http.Request) {
			enr, err := env.Pipeline.RequestReEnrichment(req.Context(), chi.URLParam(req, "id"))
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusAccepted, enr)
		})

		r.Get("/contacts/{id}/events", func(w http.ResponseWriter, req *http.Request) {
			evs, err := env.Store.ListEvents(req.Context(), store.EventFilter{
				ContactID: chi.URLParam(req, "id"),
			})
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, evs)
		})
	})

	return r
}

// headerUser extracts the acting user from request headers. Authentication
// happens at the gateway; these headers arrive pre-verified.
func headerUser(req *http.Request) model.User {
	return model.User{
		ID:   req.Header.Get("X-Acting-User"),
		Role: model.Role(req.Header.Get("X-Acting-Role")),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, pipeline.ErrForbidden):
		status = http.StatusForbidden
	}
	if status == http.StatusInternalServerError {
		zap.L().Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
