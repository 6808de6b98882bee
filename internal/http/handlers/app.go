package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"proprofile/internal/imagegen"
	"proprofile/internal/infra"
	"proprofile/internal/middleware"
	"proprofile/internal/studio"
)

type App struct {
	Config *infra.Config
	Logger zerolog.Logger
	Store  *studio.Store
	Runner *studio.Runner
	Client *imagegen.Client
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, errorBody{Error: errorDetail{Code: errCode, Message: message}})
}

// session returns the session resolved by middleware.Session.
func (a *App) session(w http.ResponseWriter, r *http.Request) (*studio.Session, bool) {
	sess := middleware.SessionFromContext(r.Context())
	if sess == nil {
		a.error(w, http.StatusInternalServerError, "internal", "session unavailable")
		return nil, false
	}
	return sess, true
}

func (a *App) log(r *http.Request) *zerolog.Logger {
	l := a.Logger.With().Str("request_id", middleware.RequestIDFromContext(r.Context())).Logger()
	return &l
}
