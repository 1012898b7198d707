package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/streetlight-predictor/internal/adapter/httpadapter"
	mqttadapter "github.com/couchcryptid/streetlight-predictor/internal/adapter/mqtt"
	"github.com/couchcryptid/streetlight-predictor/internal/adapter/openweather"
	"github.com/couchcryptid/streetlight-predictor/internal/adapter/thingspeak"
	"github.com/couchcryptid/streetlight-predictor/internal/adapter/visualcrossing"
	"github.com/couchcryptid/streetlight-predictor/internal/config"
	"github.com/couchcryptid/streetlight-predictor/internal/control"
	"github.com/couchcryptid/streetlight-predictor/internal/dataset"
	"github.com/couchcryptid/streetlight-predictor/internal/gateway"
	"github.com/couchcryptid/streetlight-predictor/internal/observability"
	"github.com/couchcryptid/streetlight-predictor/internal/oracle"
	"github.com/couchcryptid/streetlight-predictor/internal/pipeline"
	"github.com/couchcryptid/streetlight-predictor/internal/simulate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()
	sim := simulate.New(uint64(clock.Now().UnixNano()))

	trainer, err := oracle.NewTrainer(cfg.OracleKind, oracle.GBTConfig{
		Trees:          cfg.GBTTrees,
		MaxDepth:       cfg.GBTMaxDepth,
		LearningRate:   cfg.GBTLearningRate,
		Lambda:         1,
		MinChildWeight: 1,
	})
	if err != nil {
		logger.Error("invalid oracle", "error", err)
		os.Exit(1)
	}
	models := oracle.NewLazy(oracle.NewModel(trainer, cfg.TrainSeed), dataset.TrainingLoader(cfg.WeatherCSV), logger, metrics)

	// Weather provider (feature-flagged via VISUAL_CROSSING_API_KEY).
	var weather gateway.WeatherSource
	if cfg.VisualCrossingKey != "" {
		client := visualcrossing.NewClient(cfg.VisualCrossingKey, cfg.VisualCrossingBaseURL, cfg.GatewayTimeout, metrics, logger)
		weather = visualcrossing.NewCachedSource(client, cfg.WeatherCacheSize, cfg.WeatherCacheTTL, clock)
		logger.Info("visual crossing weather enabled", "cache_size", cfg.WeatherCacheSize, "ttl", cfg.WeatherCacheTTL)
	} else {
		logger.Info("visual crossing weather disabled, serving simulated context")
	}

	var air gateway.AirSource
	if cfg.OpenWeatherKey != "" {
		air = openweather.NewClient(cfg.OpenWeatherKey, cfg.OpenWeatherBaseURL, cfg.GatewayTimeout, metrics)
		logger.Info("openweather air quality enabled")
	}

	var fallback *simulate.Simulator
	if cfg.SensorFallback == config.SensorFallbackSimulated {
		fallback = sim
	}

	var (
		sensorSource gateway.SensorSource
		sensorFeed   httpadapter.SensorFeed
		writer       control.Writer
	)
	if cfg.ThingSpeakEnabled() {
		ts := thingspeak.NewClient(cfg.ThingSpeakBaseURL, cfg.ThingSpeakChannelID, cfg.ThingSpeakReadKey, cfg.ThingSpeakWriteKey, cfg.GatewayTimeout, metrics)
		sensorSource, sensorFeed = ts, ts
		if cfg.ThingSpeakWriteKey != "" {
			writer = ts
		}
		logger.Info("thingspeak channel enabled", "channel", cfg.ThingSpeakChannelID)
	} else {
		logger.Info("thingspeak channel disabled", "sensor_fallback", cfg.SensorFallback)
	}

	// Sinks open before MQTT connects so a failure exits with nothing to release.
	records, err := openSinks(cfg, logger)
	if err != nil {
		logger.Error("failed to open prediction sinks", "error", err)
		os.Exit(1)
	}

	var mirror control.Mirror
	if cfg.MQTTBroker != "" {
		pub, err := mqttadapter.Connect(mqttadapter.ClientConfig{
			Broker:   cfg.MQTTBroker,
			ClientID: cfg.MQTTClientID,
			Username: cfg.MQTTUsername,
			Password: cfg.MQTTPassword,
		}, cfg.MQTTOverrideTopic, cfg.GatewayTimeout, logger)
		if err != nil {
			logger.Warn("mqtt override mirror disabled", "error", err)
		} else {
			defer pub.Close()
			mirror = pub
			logger.Info("mqtt override mirror enabled", "topic", cfg.MQTTOverrideTopic)
		}
	}

	var (
		publisher *pipeline.Publisher
		recorder  pipeline.Recorder
	)
	if len(records.loaders) > 0 {
		publisher = pipeline.NewPublisher(records.loaders, cfg.BatchSize, cfg.BatchFlushInterval, logger, metrics)
		recorder = publisher
	}

	site := gateway.Site{Location: cfg.Location, Latitude: cfg.Latitude, Longitude: cfg.Longitude, Timezone: cfg.Timezone}
	p := pipeline.New(
		models,
		gateway.NewExternal(weather, air, sim, site, clock, logger, metrics),
		gateway.NewSensors(sensorSource, fallback, logger, metrics),
		recorder,
		pipeline.Options{Location: cfg.Location, Timezone: cfg.Timezone, Clock: clock},
		logger,
		metrics,
	)

	srv := httpadapter.NewServer(cfg.HTTPAddr, &httpadapter.Handlers{
		Predictor: p,
		Sensors:   sensorFeed,
		Weather:   gateway.NewSummarizer(weather, sim, cfg.Timezone, clock, logger),
		Control:   control.NewRelay(writer, mirror, clock, logger, metrics),
		Log:       records.log,
		Logger:    logger,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Otherwise the first prediction trains the model.
	if cfg.TrainOnStart {
		go func() {
			if _, err := models.Get(ctx); err != nil {
				logger.Error("initial training failed, will retry on first request", "error", err)
			}
		}()
	}

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Start record publisher.
	var wg sync.WaitGroup
	if publisher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := publisher.Run(ctx); err != nil {
				logger.Error("publisher error", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	wg.Wait()
	records.close(logger)

	logger.Info("shutdown complete")
}
