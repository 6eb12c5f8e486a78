package main

import (
	"errors"
	"net/http"

	"github.com/farxc/vintage-cohorts/internal/response"
	"github.com/farxc/vintage-cohorts/internal/vintage"
	"github.com/farxc/vintage-cohorts/internal/vintage/aggregate"
)

type GetCohortMatrixResponse = response.APIResponse[*aggregate.Report]
type GetFilterOptionsResponse = response.APIResponse[aggregate.FilterOptions]

const emptyResultMessage = "No loans match the selected filters and threshold"

// @Summary		Get cohort delinquency matrix
// @Description	Computes the vintage matrix for the loaded dataset. Every query parameter other than threshold, denominator and basis is an attribute filter holding a comma-separated list of accepted values; "todos", "all" or "*" accept every value.
// @Tags			Cohorts
// @Produce		json
// @Param			threshold	query		int						false	"Days overdue a row must exceed to count as delinquent"	default(30)
// @Param			denominator	query		string					false	"Denominator granularity: row or loan"					default(row)
// @Param			basis		query		string					false	"Numerator basis: exposure or disbursed"				default(exposure)
// @Success		200			{object}	GetCohortMatrixResponse	"Matrix computed, or empty when nothing matched"
// @Failure		400			{object}	response.ErrorResponse	"Invalid parameters"
// @Failure		500			{object}	response.ErrorResponse	"Failed to compute the matrix"
// @Router			/cohorts [get]
func (app *application) handleGetCohortMatrix(w http.ResponseWriter, r *http.Request) {
	const component = "CohortHandler"

	params, err := parseCohortParams(r.URL.Query(), app.registry)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := app.aggregator.Compute(app.dataset.Records(), params)
	switch {
	case errors.Is(err, vintage.ErrEmptyResult):
		resp := &GetCohortMatrixResponse{
			Success: true,
			Empty:   true,
			Message: emptyResultMessage,
		}
		if err := writeJSON(w, http.StatusOK, resp); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to write response")
		}
		return
	case errors.Is(err, vintage.ErrInvalidThreshold),
		errors.Is(err, vintage.ErrUnknownAttribute),
		errors.Is(err, vintage.ErrInvalidOption):
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		app.appLogger.Error(component, "Matrix computation failed: error=%v", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to compute cohort matrix: "+err.Error())
		return
	}

	resp := &GetCohortMatrixResponse{
		Success: true,
		Data:    report,
		Message: "Successfully computed cohort matrix",
	}

	if err := writeJSON(w, http.StatusOK, resp); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to write response")
	}
}

// @Summary		Get filter options
// @Description	Lists the distinct values of every filterable attribute and the supported thresholds.
// @Tags			Cohorts
// @Produce		json
// @Success		200	{object}	GetFilterOptionsResponse	"Successfully retrieved filter options"
// @Router			/filters [get]
func (app *application) handleGetFilterOptions(w http.ResponseWriter, r *http.Request) {
	resp := &GetFilterOptionsResponse{
		Success: true,
		Data:    app.aggregator.Options(app.dataset.Records()),
		Message: "Successfully retrieved filter options",
	}

	if err := writeJSON(w, http.StatusOK, resp); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to write response")
	}
}
