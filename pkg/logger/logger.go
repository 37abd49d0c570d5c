// pkg/logger/logger.go
package logger

import (
	"go.uber.org/zap"
)

type Sugared = *zap.SugaredLogger

// New builds the process logger; "prod" gets JSON output, anything else the console encoder.
func New(env string) Sugared {
	var z *zap.Logger
	if env == "prod" {
		z, _ = zap.NewProduction()
	} else {
		z, _ = zap.NewDevelopment()
	}
	return z.Sugar().Named("appgate")
}

// Nop discards everything. Used by tests and by components constructed without a logger.
func Nop() Sugared { return zap.NewNop().Sugar() }

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l Sugared) Sugared {
	if l == nil {
		return Nop()
	}
	return l
}
