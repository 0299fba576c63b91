package service

import (
	"context"
	"log/slog"

	"cloudpico-climate/internal/modules/measurement/types"
	"cloudpico-climate/internal/mqtt"
)

// RegisterMQTTHandler routes submissions arriving over MQTT through the same
// pipeline as POST /submit.
func RegisterMQTTHandler(subscriber mqtt.MQTTSubscriber, ingestor *Ingestor, logger *slog.Logger) {
	subscriber.SetMessageHandler(func(ctx context.Context, sub types.Submission) error {
		logger.Debug("processing mqtt submission", "date", sub.Date)

		if err := ingestor.Submit(ctx, sub); err != nil {
			return err
		}

		logger.Debug("stored mqtt submission", "date", sub.Date)
		return nil
	})
}
