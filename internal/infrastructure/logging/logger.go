package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/GriffinCanCode/AgentOS/shell/internal/infrastructure/config"
)

// Logger wraps zap.Logger so components can depend on one concrete type.
type Logger struct {
	*zap.Logger
}

// Config defines logger configuration.
type Config struct {
	Level       string // "debug", "info", "warn", "error"
	Development bool
	OutputPaths []string
	// Sample thins bursts of identical entries such as poll ticks
	Sample bool
}

// DefaultConfig returns production logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Sample: true,
	}
}

// DevelopmentConfig returns development logger configuration.
func DevelopmentConfig() Config {
	return Config{
		Level:       "debug",
		Development: true,
	}
}

// FromConfig maps the LOG_* settings onto a logger configuration
func FromConfig(c config.LogConfig) Config {
	cfg := DefaultConfig()
	if c.Development {
		cfg = DevelopmentConfig()
	}
	if c.Level != "" {
		cfg.Level = c.Level
	}
	return cfg
}

// New creates a new logger with the provided configuration.
func New(cfg Config) (*Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
	}

	var zc zap.Config
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.TimeKey = "timestamp"
		zc.EncoderConfig.MessageKey = "message"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		zc.EncoderConfig.EncodeDuration = zapcore.MillisDurationEncoder
	}
	if !cfg.Sample {
		zc.Sampling = nil
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	if len(cfg.OutputPaths) > 0 {
		zc.OutputPaths = cfg.OutputPaths
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{Logger: logger.Named("shell")}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// For returns a child logger for a named component
func (l *Logger) For(component string) *zap.Logger {
	return l.Logger.Named(component)
}

// ForTab tags every entry with a tab identifier. Shells sharing one Redis
// backend log to the same place.
func (l *Logger) ForTab(tab string) *Logger {
	return &Logger{Logger: l.Logger.With(zap.String("tab", tab))}
}
