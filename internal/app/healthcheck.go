package app

import (
	"net/http"

	"github.com/moviex/booking-system/api"
)

func (app *Application) GetHealth(w http.ResponseWriter, r *http.Request) {
	resp := api.HealthcheckResponse{
		Status: "UP",
		SystemInfo: api.SystemInfo{
			Version:     version,
			Environment: app.config.env,
		},
	}

	app.writeJSON(w, http.StatusOK, resp, nil)
}
