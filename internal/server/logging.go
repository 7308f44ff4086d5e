package server

import (
	"github.com/edaniels/golog"
)

// NewLogger builds the development logger used by "serve". golog's stock
// constructors print to stdout, which the stdio transport owns, so every
// output path is pointed at stderr.
func NewLogger(name string) (golog.Logger, error) {
	cfg := golog.NewDevelopmentLoggerConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar().Named(name), nil
}
