package logger

import (
	sdklogging "github.com/Layr-Labs/eigensdk-go/logging"
)

// New returns the zap backed logger for env, "development" or "production".
// An unknown env falls back to development.
func New(env string) (Logger, error) {
	level := sdklogging.LogLevel(env)
	if level != sdklogging.Production {
		level = sdklogging.Development
	}
	return sdklogging.NewZapLogger(level)
}
