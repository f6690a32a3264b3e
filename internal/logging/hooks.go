package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/holotable/swgoh-autopilot/internal/config"
)

// fileHook copies selected entries to a dedicated writer with its own
// formatter, independent of the logger's main output.
type fileHook struct {
	writer    io.Writer
	formatter logrus.Formatter
	levels    []logrus.Level
	accept    func(*logrus.Entry) bool
}

func (h *fileHook) Levels() []logrus.Level {
	return h.levels
}

func (h *fileHook) Fire(entry *logrus.Entry) error {
	if h.accept != nil && !h.accept(entry) {
		return nil
	}

	line, err := h.formatter.Format(entry)
	if err != nil {
		return fmt.Errorf("failed to format log entry: %w", err)
	}

	_, err = h.writer.Write(line)
	return err
}

// AttachFileHooks adds the error and performance file outputs to an
// existing logger. Errors and above are duplicated into the error log;
// entries carrying a duration_ms field are duplicated into the
// performance log. Both files rotate per their configuration.
func AttachFileHooks(logger *logrus.Logger, cfg *config.LoggingConfig) error {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	formatter := &logrus.JSONFormatter{
		TimestampFormat: "2006-01-02 15:04:05.000",
	}

	logger.AddHook(&fileHook{
		writer:    config.NewRotatingWriter(cfg.ErrorLogPath(), cfg.Errors),
		formatter: formatter,
		levels:    []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel},
	})

	logger.AddHook(&fileHook{
		writer:    config.NewRotatingWriter(cfg.PerformanceLogPath(), cfg.Performance),
		formatter: formatter,
		levels:    logrus.AllLevels,
		accept: func(entry *logrus.Entry) bool {
			_, ok := entry.Data["duration_ms"]
			return ok
		},
	})

	return nil
}
