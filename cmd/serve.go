package main

import (
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

	"github.com/terrashift/climate-cli/internal/index"
	"github.com/terrashift/climate-cli/internal/model"
	"github.com/terrashift/climate-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored output tables as a JSON API",
	Long:  "Read-only dashboard API over the stored projection, index, and ranking tables. Defaults to the latest complete run when no run_id is given.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: buildRouter(st),
		}

		// Graceful shutdown
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

// buildRouter assembles the read-only dashboard API.
func buildRouter(st store.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/runs", func(w http.ResponseWriter, r *http.Request) {
			runs, err := st.ListRuns(r.Context(), store.RunFilter{
				Status: model.RunStatus(r.URL.Query().Get("status")),
			})
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, runs)
		})

		r.Get("/runs/{id}", func(w http.ResponseWriter, r *http.Request) {
			run, err := st.GetRun(r.Context(), chi.URLParam(r, "id"))
			if err != nil {
				writeError(w, http.StatusNotFound, err)
				return
			}
			writeJSON(w, http.StatusOK, run)
		})

		r.Get("/projections", func(w http.ResponseWriter, r *http.Request) {
			runID, ok := resolveRun(w, r, st)
			if !ok {
				return
			}
			projections, err := st.ListProjections(r.Context(), runID, model.Scenario(r.URL.Query().Get("scenario")))
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"run_id": runID, "projections": projections})
		})

		r.Get("/indicators", func(w http.ResponseWriter, r *http.Request) {
			runID, ok := resolveRun(w, r, st)
			if !ok {
				return
			}
			rows, err := st.ListProjectedRows(r.Context(), runID, model.Scenario(r.URL.Query().Get("scenario")))
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"run_id": runID, "rows": rows})
		})

		r.Get("/indices", func(w http.ResponseWriter, r *http.Request) {
			runID, ok := resolveRun(w, r, st)
			if !ok {
				return
			}
			results, err := st.ListIndices(r.Context(), runID, model.Scenario(r.URL.Query().Get("scenario")))
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"run_id": runID, "indices": results})
		})

		r.Get("/rankings", func(w http.ResponseWriter, r *http.Request) {
			runID, ok := resolveRun(w, r, st)
			if !ok {
				return
			}
			rankings, err := st.ListRankings(r.Context(), runID, r.URL.Query().Get("index"))
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"run_id": runID, "rankings": rankings})
		})

		// Per-county scenario series for detail views.
		r.Get("/counties/{fips}", func(w http.ResponseWriter, r *http.Request) {
			runID, ok := resolveRun(w, r, st)
			if !ok {
				return
			}
			fips := chi.URLParam(r, "fips")

			projections, err := st.ListProjections(r.Context(), runID, "")
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			indices, err := st.ListIndices(r.Context(), runID, "")
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}

			series := countySeries{RunID: runID, FIPS: fips}
			for _, p := range projections {
				if p.FIPS == fips {
					series.Projections = append(series.Projections, p)
				}
			}
			for _, res := range indices {
				if res.FIPS == fips {
					series.Indices = append(series.Indices, res)
				}
			}
			if len(series.Projections) == 0 {
				writeError(w, http.StatusNotFound, eris.Errorf("county %s not in run %s", fips, runID))
				return
			}
			writeJSON(w, http.StatusOK, series)
		})
	})

	return r
}

type countySeries struct {
	RunID       string                   `json:"run_id"`
	FIPS        string                   `json:"fips"`
	Projections []model.CountyProjection `json:"projections"`
	Indices     []index.Result           `json:"indices"`
}

// resolveRun picks the run_id query parameter or falls back to the latest
// complete run. Writes the error response itself when resolution fails.
func resolveRun(w http.ResponseWriter, r *http.Request, st store.Store) (string, bool) {
	if runID := r.URL.Query().Get("run_id"); runID != "" {
		return runID, true
	}
	runID, err := st.LatestCompleteRunID(r.Context())
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return "", false
	}
	return runID, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
