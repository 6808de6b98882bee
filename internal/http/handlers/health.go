package handlers

import (
	"net/http"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{"status": "ok"}
	if a.Client != nil {
		body["provider"] = a.Client.Provider()
		body["model"] = a.Client.Model()
	}
	a.json(w, http.StatusOK, body)
}
