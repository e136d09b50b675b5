// Package logs builds the structured logger shared by the server and the admin tool.
package logs

import (
	"fmt"
	"io"
	"strings"
	"time"

	zaplogfmt "github.com/jsternberg/zap-logfmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config is the `log` section of the config file.
type Config struct {
	// debug, info, warn, error. Default info.
	Level string `json:"level"`
	// console, json or logfmt. Default console.
	Format string `json:"format"`
}

// New creates a logger writing to w.
func New(w io.Writer, conf Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if conf.Level != "" {
		var err error
		if level, err = zapcore.ParseLevel(conf.Level); err != nil {
			return nil, fmt.Errorf("logs: %w", err)
		}
	}

	config := zap.NewProductionEncoderConfig()
	config.EncodeTime = func(ts time.Time, encoder zapcore.PrimitiveArrayEncoder) {
		encoder.AppendString(ts.UTC().Format(time.RFC3339))
	}
	config.EncodeDuration = func(d time.Duration, encoder zapcore.PrimitiveArrayEncoder) {
		encoder.AppendString(d.String())
	}

	var encoder zapcore.Encoder
	switch strings.ToLower(conf.Format) {
	case "", "console", "auto":
		encoder = zapcore.NewConsoleEncoder(config)
	case "json":
		encoder = zapcore.NewJSONEncoder(config)
	case "logfmt":
		encoder = zaplogfmt.NewEncoder(config)
	default:
		return nil, fmt.Errorf("logs: unknown format '%s'", conf.Format)
	}

	return zap.New(zapcore.NewCore(
		encoder,
		zapcore.Lock(zapcore.AddSync(w)),
		level,
	)), nil
}
