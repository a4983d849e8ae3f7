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

	"github.com/sells-group/leadbridge/internal/bridge"
	"github.com/sells-group/leadbridge/pkg/whatconverts"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		processor, err := newProcessor(cfg)
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(processor),
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

// newRouter wires the webhook endpoints onto a chi router.
func newRouter(processor *bridge.Processor) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/webhook/lead", func(w http.ResponseWriter, req *http.Request) {
		var event bridge.WebhookEvent
		if err := json.NewDecoder(req.Body).Decode(&event); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		result, err := processor.ProcessLead(req.Context(), event)
		if err != nil {
			var vErr *bridge.ValidationError
			if errors.As(err, &vErr) {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": vErr.Msg})
				return
			}
			zap.L().Error("webhook lead processing failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error":   "Failed to process webhook",
				"message": err.Error(),
			})
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{
			"message":    "Lead processed successfully",
			"customerId": result.CustomerID,
			"leadId":     result.JobID,
		})
	})

	r.Post("/webhook/sale", reconcileHandler(processor, whatconverts.SalesValue))
	r.Post("/webhook/quote", reconcileHandler(processor, whatconverts.QuoteValue))

	return r
}

// reconcileHandler serves the sale and quote value webhooks, which
// differ only in the lead field the value is added to.
func reconcileHandler(processor *bridge.Processor, field whatconverts.ValueField) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var event bridge.ValueEvent
		if err := json.NewDecoder(req.Body).Decode(&event); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		updated, err := processor.ReconcileValue(req.Context(), event, field)
		if err != nil {
			zap.L().Error("value reconciliation failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error":   "Failed to process webhook",
				"message": err.Error(),
			})
			return
		}

		writeJSON(w, http.StatusOK, map[string]bool{"updated": updated})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
