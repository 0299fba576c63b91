package measurement

import (
	"log/slog"
	"net/http"

	"github.com/jmoiron/sqlx"

	"cloudpico-climate/internal/modules/measurement/broadcast"
	"cloudpico-climate/internal/modules/measurement/controller"
	"cloudpico-climate/internal/modules/measurement/repository"
	"cloudpico-climate/internal/modules/measurement/service"
	"cloudpico-climate/internal/mqtt"
)

// Feature is the wired measurement module.
type Feature struct {
	Ingestor    *service.Ingestor
	Querier     *service.Querier
	Broadcaster *broadcast.Broadcaster
}

type Options struct {
	Order     service.Order
	Broadcast broadcast.Options
	Logger    *slog.Logger
}

// RegisterFeature builds the module on db, mounts its routes on mux and,
// when subscriber is non-nil, feeds MQTT submissions into the same pipeline.
// The caller owns Broadcaster and must Close it on shutdown.
func RegisterFeature(mux *http.ServeMux, db *sqlx.DB, subscriber mqtt.MQTTSubscriber, opts Options) *Feature {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Broadcast.Logger == nil {
		opts.Broadcast.Logger = logger.With("component", "broadcast")
	}

	repo := repository.NewRepository(db)
	b := broadcast.New(opts.Broadcast)
	ingestor := service.NewIngestor(repo, b, opts.Order, logger.With("component", "ingest"))
	querier := service.NewQuerier(repo)

	controller.NewMeasurementController(ingestor, querier, b).RegisterRoutes(mux)
	if subscriber != nil {
		service.RegisterMQTTHandler(subscriber, ingestor, logger.With("component", "mqtt"))
	}

	return &Feature{Ingestor: ingestor, Querier: querier, Broadcaster: b}
}
