// Command publish sends one measurement submission to the MQTT topic the
// server ingests from. Broker settings come from the same environment as the
// server (MQTT_BROKER, MQTT_PORT, MQTT_TOPIC).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloudpico-climate/internal/config"
	"cloudpico-climate/internal/logging"
	"cloudpico-climate/internal/modules/measurement/types"
	"cloudpico-climate/internal/mqtt"
)

const appName = "climate-publish"

var version = "dev"

func main() {
	date := flag.String("date", time.Now().UTC().Format(types.DateLayout), "measurement date, YYYY-MM-DD")
	temperature := flag.Float64("temperature", 0, "temperature")
	humidity := flag.Float64("humidity", 0, "relative humidity, 0-100")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	cfg.MQTTClientID += "-publish"
	slog.SetDefault(logging.New(cfg, version, appName))

	sub := types.Submission{Humidity: *humidity, Temperature: *temperature, Date: *date}
	// fail locally on input the server would reject anyway
	if _, err := sub.ToMeasurement(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid submission: %v\n", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = run(ctx, mqtt.NewPublisher(cfg, slog.Default()), sub)
	cancel()
	if err != nil {
		slog.Error("publish failed", "err", err)
		os.Exit(1)
	}
	slog.Info("submission published", "topic", cfg.MQTTTopic, "date", sub.Date)
}

type submissionPublisher interface {
	Connect(ctx context.Context) error
	PublishSubmission(sub types.Submission) error
	Disconnect()
}

// run connects, publishes sub and always disconnects before returning.
func run(ctx context.Context, pub submissionPublisher, sub types.Submission) error {
	defer pub.Disconnect()

	if err := pub.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	return pub.PublishSubmission(sub)
}
