package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve canonical records and snapshots over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)

		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
		r.Get("/metrics", promhttp.Handler().ServeHTTP)

		r.Get("/records", func(w http.ResponseWriter, req *http.Request) {
			records, err := st.ListRecords(req.Context())
			if err != nil {
				serveError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, records)
		})

		r.Get("/records/{symbol}", func(w http.ResponseWriter, req *http.Request) {
			symbol := strings.ToUpper(chi.URLParam(req, "symbol"))
			rec, err := st.GetRecord(req.Context(), symbol)
			if err != nil {
				serveError(w, err)
				return
			}
			if rec == nil {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "no record for " + symbol})
				return
			}
			writeJSON(w, http.StatusOK, rec)
		})

		r.Get("/snapshots", func(w http.ResponseWriter, req *http.Request) {
			infos, err := st.ListSnapshots(req.Context())
			if err != nil {
				serveError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, infos)
		})

		r.Post("/snapshots", func(w http.ResponseWriter, req *http.Request) {
			snap, err := st.TakeSnapshot(req.Context())
			if err != nil {
				serveError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{
				"id":       snap.ID,
				"taken_at": snap.TakenAt,
				"records":  len(snap.Records),
			})
		})

		r.Get("/snapshots/{id}", func(w http.ResponseWriter, req *http.Request) {
			snap, err := st.GetSnapshot(req.Context(), chi.URLParam(req, "id"))
			if err != nil {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
				return
			}
			writeJSON(w, http.StatusOK, snap)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		shutdownOnCancel(ctx, srv)

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// shutdownOnCancel drains the server once ctx is canceled. ctx itself is
// already done at that point, so the drain runs on its own deadline.
func shutdownOnCancel(ctx context.Context, srv *http.Server) {
	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("server shutdown", zap.Error(err))
		}
	}()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func serveError(w http.ResponseWriter, err error) {
	zap.L().Error("request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
