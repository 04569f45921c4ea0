// logger.go records every model exchange.
//
// Requests and raw responses go to the debug level so a normal run only
// keeps the outcome; failures are logged at warn.
package ai

import (
	"time"

	"go.uber.org/zap"
)

func logRequest(logger *zap.Logger, op, provider string, fields ...zap.Field) {
	logger.Debug("model request",
		append([]zap.Field{zap.String("op", op), zap.String("provider", provider)}, fields...)...)
}

func logResponse(logger *zap.Logger, op, response string, took time.Duration, err error) {
	if err != nil {
		logger.Warn("model request failed",
			zap.String("op", op), zap.Duration("took", took), zap.Error(err))
		return
	}
	logger.Debug("model response",
		zap.String("op", op), zap.Duration("took", took), zap.String("response", response))
}
