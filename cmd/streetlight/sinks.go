package main

import (
	"fmt"
	"log/slog"

	"github.com/couchcryptid/streetlight-predictor/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/streetlight-predictor/internal/adapter/kafka"
	"github.com/couchcryptid/streetlight-predictor/internal/adapter/sqlite"
	"github.com/couchcryptid/streetlight-predictor/internal/config"
	"github.com/couchcryptid/streetlight-predictor/internal/pipeline"
)

// sinks are the configured prediction record destinations.
type sinks struct {
	loaders []pipeline.BatchLoader
	log     httpadapter.PredictionLog
	closers []func() error
}

// openSinks opens every configured sink. It runs before any connection that
// holds resources, so a failure here can exit without cleanup.
func openSinks(cfg *config.Config, logger *slog.Logger) (*sinks, error) {
	s := &sinks{}
	if cfg.PredictionDB != "" {
		store, err := sqlite.NewStore(cfg.PredictionDB)
		if err != nil {
			return nil, fmt.Errorf("open prediction store: %w", err)
		}
		s.loaders = append(s.loaders, store)
		s.log = store
		s.closers = append(s.closers, store.Close)
		logger.Info("prediction store enabled", "path", cfg.PredictionDB)
	}
	if cfg.KafkaEnabled() {
		kw := kafkaadapter.NewWriter(cfg, logger)
		s.loaders = append(s.loaders, kw)
		s.closers = append(s.closers, kw.Close)
		logger.Info("kafka prediction stream enabled", "topic", cfg.KafkaPredictionTopic)
	}
	return s, nil
}

// close closes every sink, logging failures.
func (s *sinks) close(logger *slog.Logger) {
	for _, c := range s.closers {
		if err := c(); err != nil {
			logger.Error("sink close error", "error", err)
		}
	}
}
