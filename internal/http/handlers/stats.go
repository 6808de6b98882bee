package handlers

import (
	"net/http"
)

func (a *App) StatsSummary(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"active_sessions": a.Store.Len(),
	}
	if a.Config != nil {
		body["session_max"] = a.Config.SessionMax
		body["generation_concurrency"] = a.Config.GenerationConcurrency
		body["max_upload_bytes"] = a.Config.MaxUploadBytes
	}
	if a.Client != nil {
		body["provider"] = a.Client.Provider()
		body["model"] = a.Client.Model()
	}
	a.json(w, http.StatusOK, body)
}
