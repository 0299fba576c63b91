package controller

import (
	"fmt"
	"net/http"
	"time"

	"cloudpico-climate/internal/modules/measurement/types"
)

func parseDayQuery(r *http.Request) (time.Time, error) {
	return parseDateParam(r, "day")
}

// parseRangeQuery reads start and end. An inverted range is not an error; it
// simply matches nothing.
func parseRangeQuery(r *http.Request) (start, end time.Time, err error) {
	start, err = parseDateParam(r, "start")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err = parseDateParam(r, "end")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func parseDateParam(r *http.Request, name string) (time.Time, error) {
	t, err := types.ParseDate(r.URL.Query().Get(name))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid '%s': %w", name, err)
	}
	return t, nil
}
