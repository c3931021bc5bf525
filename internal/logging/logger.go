// Package logging builds the process logger and writes the provenance log.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/sample"
)

// #region logger
// NewLogger builds a production zap logger, at debug level when verbose.
func NewLogger(opts Options) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if opts.Verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	if !opts.JSON {
		config.Encoding = "console"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// #endregion logger

// #region sample
// LogSample logs up to n randomly chosen texts under msg.
func LogSample(logger *zap.Logger, r sample.Source, msg string, texts []string, n int) {
	for _, t := range sample.Sample(r, texts, n) {
		logger.Info(msg, zap.String("question", t))
	}
}

// #endregion sample
