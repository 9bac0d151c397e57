package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New builds the process root logger. Components derive their own child
// loggers from it via Named.
func New(env string) (*zap.Logger, error) {
	if env == "development" {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return nil, fmt.Errorf("failed to build development logger: %w", err)
		}
		return logger, nil
	}

	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = true
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}
