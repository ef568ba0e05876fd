// Package logging builds the zap loggers used by the htmlpdf command.
package logging

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Output formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Rotation defaults for the log file, in megabytes, files and days.
const (
	defaultMaxSize    = 10
	defaultMaxBackups = 3
	defaultMaxAge     = 28
)

// Config describes where logs go and how verbose they are.
type Config struct {
	Level      string `yaml:"level"`  // debug, info, warn, error
	Format     string `yaml:"format"` // console or json
	File       string `yaml:"file"`   // optional rotated log file, always JSON
	MaxSize    int    `yaml:"maxSize"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAge     int    `yaml:"maxAge"`
	Compress   bool   `yaml:"compress"`
}

// Validate checks level and format names.
func (c Config) Validate() error {
	if _, err := parseLevel(c.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Format) {
	case "", FormatConsole, FormatJSON:
		return nil
	default:
		return fmt.Errorf("unknown log format %q (want %s or %s)", c.Format, FormatConsole, FormatJSON)
	}
}

// New builds a logger writing to w and, when cfg.File is set, to a rotated
// file. The returned close func flushes and releases the file.
func New(cfg Config, w io.Writer) (*zap.Logger, func(), error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder(cfg.Format), zapcore.Lock(zapcore.AddSync(w)), level),
	}

	var file *lumberjack.Logger
	if cfg.File != "" {
		file = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSize, defaultMaxSize),
			MaxBackups: orDefault(cfg.MaxBackups, defaultMaxBackups),
			MaxAge:     orDefault(cfg.MaxAge, defaultMaxAge),
			Compress:   cfg.Compress,
		}
		cores = append(cores, zapcore.NewCore(encoder(FormatJSON), zapcore.AddSync(file), level))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddStacktrace(zap.ErrorLevel)).Named("htmlpdf")
	closer := func() {
		_ = logger.Sync() // stderr sync fails on some platforms
		if file != nil {
			_ = file.Close()
		}
	}
	return logger, closer, nil
}

func parseLevel(s string) (zapcore.Level, error) {
	if s == "" {
		return zapcore.WarnLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return level, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

func encoder(format string) zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000Z07:00")

	if strings.EqualFold(format, FormatJSON) {
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewJSONEncoder(cfg)
	}
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(cfg)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
