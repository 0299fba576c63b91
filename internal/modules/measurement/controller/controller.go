package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"cloudpico-climate/internal/modules/measurement/broadcast"
	"cloudpico-climate/internal/modules/measurement/types"
)

// Ingestor accepts untrusted submissions.
type Ingestor interface {
	Submit(ctx context.Context, sub types.Submission) error
}

// Querier answers day and range lookups.
type Querier interface {
	SingleDay(ctx context.Context, day time.Time) (types.Measurement, error)
	Range(ctx context.Context, start, end time.Time) ([]types.Measurement, error)
}

// Subscriber hands out live listeners.
type Subscriber interface {
	Subscribe() *broadcast.Listener
}

type MeasurementController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type measurementControllerImpl struct {
	ingestor    Ingestor
	querier     Querier
	broadcaster Subscriber
	upgrader    websocket.Upgrader
}

func NewMeasurementController(ingestor Ingestor, querier Querier, broadcaster Subscriber) MeasurementController {
	return &measurementControllerImpl{
		ingestor:    ingestor,
		querier:     querier,
		broadcaster: broadcaster,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// dashboards are served from other origins
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (c *measurementControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /day", c.handleDay)
	mux.HandleFunc("GET /range", c.handleRange)
	mux.HandleFunc("POST /submit", c.handleSubmit)
	mux.HandleFunc("GET /updates", c.handleUpdates)
}
