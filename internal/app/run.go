package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"cloudpico-climate/internal/config"
	db "cloudpico-climate/internal/db"
	httpapi "cloudpico-climate/internal/httpapi"
	"cloudpico-climate/internal/metrics"
	"cloudpico-climate/internal/migrate"
	measurement "cloudpico-climate/internal/modules/measurement"
	"cloudpico-climate/internal/modules/measurement/broadcast"
	"cloudpico-climate/internal/modules/measurement/service"
	"cloudpico-climate/internal/mqtt"
)

func Run(ctx context.Context, cfg config.Config) error {
	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"dbDriver", cfg.DBDriver,
		"sqlitePath", cfg.SQLitePath,
		"dbMaxOpenConns", cfg.DBMaxOpenConns,
		"dbMaxIdleConns", cfg.DBMaxIdleConns,
		"dbConnMaxLifetime", cfg.DBConnMaxLifetime,
		"broadcastBuffer", cfg.BroadcastBuffer,
		"broadcastOverflow", cfg.BroadcastOverflow,
		"ingestOrder", cfg.IngestOrder,
		"mqttEnabled", cfg.MQTTEnabled,
		"mqttBroker", cfg.MQTTBroker,
		"mqttPort", cfg.MQTTPort,
		"mqttTopic", cfg.MQTTTopic,
	)
	dbConn, err := db.Open(cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeErr := db.Close(dbConn)
		if closeErr != nil {
			slog.Error("db close", "error", closeErr)
		}
	}()

	if err := migrate.Run(dbConn); err != nil {
		return err
	}
	slog.Info("database connection successful")

	metrics.Register()

	policy, _ := broadcast.ParsePolicy(cfg.BroadcastOverflow)
	order, _ := service.ParseOrder(cfg.IngestOrder)

	// The handler is attached before Connect so messages delivered right after
	// CONNACK are not lost.
	var subscriber mqtt.MQTTSubscriber
	var mqttSubscriber *mqtt.Subscriber
	if cfg.MQTTEnabled {
		mqttSubscriber = mqtt.NewSubscriber(cfg, slog.Default().With("component", "mqtt"))
		subscriber = mqttSubscriber
	}

	mux := httpapi.NewMux(dbConn)
	feature := measurement.RegisterFeature(mux, dbConn, subscriber, measurement.Options{
		Order: order,
		Broadcast: broadcast.Options{
			BufferSize: cfg.BroadcastBuffer,
			Policy:     policy,
		},
	})
	defer feature.Broadcaster.Close()

	if mqttSubscriber != nil {
		// short timeout so a missing broker does not block startup
		connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
		err = mqttSubscriber.Connect(connectCtx)
		connectCancel()
		if err != nil {
			slog.Warn("mqtt connection failed (continuing without mqtt)", "error", err)
		}
	}

	srv := httpapi.NewServer(cfg, mux)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if mqttSubscriber != nil {
		slog.Info("mqtt disconnecting")
		mqttSubscriber.Disconnect()
	}

	// websocket connections are hijacked and invisible to Shutdown; closing
	// the broadcaster ends their streams
	slog.Info("closing live listeners", "listeners", feature.Broadcaster.Len())
	feature.Broadcaster.Close()

	slog.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}
