package logger

import (
	"go.uber.org/zap"
)

type Sugared = *zap.SugaredLogger

func New(env string) Sugared {
	var z *zap.Logger
	if env == "prod" {
		z, _ = zap.NewProduction()
	} else {
		z, _ = zap.NewDevelopment()
	}
	return z.Sugar().Named("gatewayprobe")
}

// Nop is used by tests and by callers that do not care about output.
func Nop() Sugared { return zap.NewNop().Sugar() }
