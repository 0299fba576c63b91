package controller

import (
	"errors"
	"log/slog"
	"net/http"

	"cloudpico-climate/internal/modules/measurement/types"
	"cloudpico-climate/internal/utils"
)

const maxSubmitBytes = 1 << 20

func (c *measurementControllerImpl) handleDay(w http.ResponseWriter, r *http.Request) {
	day, err := parseDayQuery(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	m, err := c.querier.SingleDay(r.Context(), day)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, m)
}

func (c *measurementControllerImpl) handleRange(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseRangeQuery(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ms, err := c.querier.Range(r.Context(), start, end)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, ms)
}

func (c *measurementControllerImpl) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var sub types.Submission
	if err := utils.DecodeJSON(w, r, maxSubmitBytes, &sub); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := c.ingestor.Submit(r.Context(), sub); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// writeDomainError maps pipeline and query errors to a status. Not-found and
// store failures never leak detail to the client.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, types.ErrInvalidData):
		utils.WriteError(w, http.StatusBadRequest, "humidity must be between 0 and 100")
	case errors.Is(err, types.ErrMalformedDate):
		utils.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, types.ErrNotFound):
		utils.WriteError(w, http.StatusNotFound, "no measurement for the requested day")
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
