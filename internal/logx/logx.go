package logx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"drivermgr/internal/config"
)

// Options configures New.
type Options struct {
	Logging config.LoggingConfig
	// Debug forces the debug level regardless of Logging.Level.
	Debug bool
	// Console receives log lines; defaults to stderr so stdout stays free for
	// resolved paths.
	Console io.Writer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New creates the run logger. When Logging.File is set, output is also
// written to a rotating file. The returned closer should be closed when
// logging is no longer needed.
func New(opts Options) (*logrus.Logger, io.Closer, error) {
	levelName := opts.Logging.Level
	if levelName == "" {
		levelName = "info"
	}
	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level: %w", err)
	}
	if opts.Debug {
		level = logrus.DebugLevel
	}

	logger := logrus.New()
	logger.SetLevel(level)

	if strings.EqualFold(opts.Logging.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:          true,
			DisableLevelTruncation: true,
			PadLevelText:           true,
			TimestampFormat:        "2006-01-02 15:04:05",
		})
	}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	if opts.Logging.File == "" {
		logger.SetOutput(console)
		return logger, nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.Logging.File), 0o755); err != nil {
		return nil, nil, fmt.Errorf("ensure log directory: %w", err)
	}
	rotate := &lumberjack.Logger{
		Filename:   opts.Logging.File,
		MaxSize:    opts.Logging.MaxSizeMB,
		MaxAge:     opts.Logging.MaxAgeDays,
		MaxBackups: opts.Logging.MaxBackups,
		Compress:   true,
	}
	logger.SetOutput(io.MultiWriter(console, rotate))
	return logger, rotate, nil
}

// Discard returns a logger that drops everything.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.PanicLevel)
	return logger
}
