package main

import (
	"net/http"
	"strconv"
)

// @Summary		Health check
// @Description	returns the status of the service and the size of the loaded dataset
// @Tags			Health
// @Produce		json
// @Success		200	{object}	map[string]string
// @Router			/health [get]
func (app *application) healthCheckHandler(w http.ResponseWriter, r *http.Request) {

	data := map[string]string{
		"status":  "available",
		"version": "0.1.0",
		"records": strconv.Itoa(app.dataset.Len()),
	}

	if err := writeJSON(w, http.StatusOK, data); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}
