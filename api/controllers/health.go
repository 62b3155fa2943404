package controllers

import (
	"context"
	"net/http"

	"github.com/distribuida/libreria-backend/api/responses"
	"github.com/distribuida/libreria-backend/pkg/config"
	pkgerrors "github.com/distribuida/libreria-backend/pkg/errors"
	"github.com/distribuida/libreria-backend/pkg/logger"
)

const envHeader = "X-Libreria-Env"

type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready only when every registered datasource answers a ping.
func HealthReady(cfg *config.Config, logg *logger.Logger, sources map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		for name, src := range sources {
			if src == nil {
				continue
			}
			if err := src.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unavailable"))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}

// ReadinessSources bundles named pingable dependencies for HealthReady.
func ReadinessSources(db, cache Pinger) map[string]Pinger {
	sources := map[string]Pinger{}
	if db != nil {
		sources["database"] = db
	}
	if cache != nil {
		sources["redis"] = cache
	}
	return sources
}
