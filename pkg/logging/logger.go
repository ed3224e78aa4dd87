package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger builds the process logger.
// env "local" gets human-readable development output; anything else gets
// production JSON. Components accept nil loggers and substitute zap.NewNop(),
// so tests never need this constructor.
func NewLogger(env string) (*zap.Logger, error) {
	var logger *zap.Logger
	var err error

	if env == "local" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	return logger, nil
}
