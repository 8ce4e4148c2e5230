// Package logging builds the process-wide zap logger.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/warp/retail-ledger/config"
)

// New returns a console logger in development and a JSON logger otherwise.
// Level and encoding from cfg override the environment defaults when set.
func New(appEnv string, cfg config.LoggerConfig) (*zap.Logger, error) {
	var zc zap.Config
	if appEnv == "development" || appEnv == "dev" {
		zc = zap.NewDevelopmentConfig()
		zc.Encoding = "console"
	} else {
		zc = zap.NewProductionConfig()
		zc.Encoding = "json"
	}

	if cfg.Encoding != "" {
		zc.Encoding = cfg.Encoding
	}
	if cfg.Level != "" {
		lvl, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		zc.Level = zap.NewAtomicLevelAt(lvl)
	}
	zc.DisableCaller = cfg.DisableCaller
	zc.DisableStacktrace = cfg.DisableStacktrace
	zc.EncoderConfig.TimeKey = "ts"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return zc.Build()
}
