package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LoggingConfig 日志配置
type LoggingConfig struct {
	// Level 日志等级 (trace, debug, info, warn, error)
	Level string `yaml:"level" json:"level"`

	// Format 日志格式 (text, json)
	Format string `yaml:"format" json:"format"`

	// Dir 日志文件目录
	Dir string `yaml:"dir" json:"dir"`

	// Name 日志文件基础名
	Name string `yaml:"name" json:"name"`

	// Console 是否同时输出到控制台
	Console bool `yaml:"console" json:"console"`

	// EnableColors 是否启用颜色输出
	EnableColors bool `yaml:"enable_colors" json:"enable_colors"`

	// RetentionDays 日志文件保留天数（清理任务使用）
	RetentionDays int `yaml:"retention_days" json:"retention_days"`

	// Main 主日志轮转配置
	Main RotationConfig `yaml:"main" json:"main"`

	// Errors 错误日志轮转配置
	Errors RotationConfig `yaml:"errors" json:"errors"`

	// Performance 性能日志轮转配置
	Performance RotationConfig `yaml:"performance" json:"performance"`
}

// RotationConfig 单个日志文件的轮转配置
type RotationConfig struct {
	// MaxSizeMB 单文件最大体积（MB）
	MaxSizeMB int `yaml:"max_size_mb" json:"max_size_mb"`

	// MaxBackups 保留的历史文件数量
	MaxBackups int `yaml:"max_backups" json:"max_backups"`
}

// DefaultLoggingConfig 返回默认日志配置
func DefaultLoggingConfig() *LoggingConfig {
	return &LoggingConfig{
		Level:         "info",
		Format:        "text",
		Dir:           "logs",
		Name:          "swgoh_autopilot",
		Console:       true,
		EnableColors:  true,
		RetentionDays: 7,
		Main:          RotationConfig{MaxSizeMB: 10, MaxBackups: 5},
		Errors:        RotationConfig{MaxSizeMB: 5, MaxBackups: 3},
		Performance:   RotationConfig{MaxSizeMB: 5, MaxBackups: 2},
	}
}

// Validate 验证日志配置
func (c *LoggingConfig) Validate() error {
	if _, err := logrus.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", c.Level)
	}

	if c.Format != "text" && c.Format != "json" {
		return fmt.Errorf("invalid log format: %s, must be 'text' or 'json'", c.Format)
	}

	if c.Dir == "" {
		return fmt.Errorf("log directory is required")
	}

	if c.Name == "" {
		return fmt.Errorf("log file base name is required")
	}

	if c.RetentionDays < 0 {
		return fmt.Errorf("retention days must not be negative")
	}

	return nil
}

// applyEnvOverrides 从环境变量覆盖日志配置
func (c *LoggingConfig) applyEnvOverrides() {
	if v := os.Getenv("SWGOH_LOG_LEVEL"); v != "" {
		if level, err := ParseLogLevel(v); err == nil {
			c.Level = level
		}
	}

	if v := os.Getenv("SWGOH_LOG_FORMAT"); v != "" {
		c.Format = v
	}

	if v := os.Getenv("SWGOH_LOG_DIR"); v != "" {
		c.Dir = v
	}

	if v := os.Getenv("SWGOH_LOG_CONSOLE"); v != "" {
		c.Console = parseEnvBool(v)
	}
}

// MainLogPath 主日志文件路径
func (c *LoggingConfig) MainLogPath() string {
	return filepath.Join(c.Dir, c.Name+".log")
}

// ErrorLogPath 错误日志文件路径
func (c *LoggingConfig) ErrorLogPath() string {
	return filepath.Join(c.Dir, c.Name+"_errors.log")
}

// PerformanceLogPath 性能日志文件路径
func (c *LoggingConfig) PerformanceLogPath() string {
	return filepath.Join(c.Dir, c.Name+"_performance.log")
}

// NewRotatingWriter 按轮转配置创建日志输出
func NewRotatingWriter(path string, rotation RotationConfig) io.Writer {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    rotation.MaxSizeMB,
		MaxBackups: rotation.MaxBackups,
	}
}

// SetupLogger 根据配置构造 logrus 实例
//
// 返回独立的 logger 对象而不是修改全局状态，
// 由进程入口负责其生命周期并显式传递给各组件。
func SetupLogger(config *LoggingConfig) (*logrus.Logger, error) {
	if config == nil {
		config = DefaultLoggingConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logging config: %w", err)
	}

	if err := os.MkdirAll(config.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}

	logger := logrus.New()
	logger.SetLevel(level)

	// 主输出：轮转文件（可选叠加控制台）
	writers := []io.Writer{NewRotatingWriter(config.MainLogPath(), config.Main)}
	if config.Console {
		writers = append(writers, os.Stdout)
	}
	logger.SetOutput(io.MultiWriter(writers...))

	if config.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05.000",
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: "2006-01-02 15:04:05.000",
			FullTimestamp:   true,
			ForceColors:     config.EnableColors,
		})
	}

	return logger, nil
}

// GetLoggerWithPrefix 获取带组件前缀的 logger
func GetLoggerWithPrefix(logger *logrus.Logger, prefix string) *logrus.Entry {
	return logger.WithField("component", prefix)
}

// ParseLogLevel 解析日志等级字符串
func ParseLogLevel(level string) (string, error) {
	normalizedLevel := strings.ToLower(strings.TrimSpace(level))

	if _, err := logrus.ParseLevel(normalizedLevel); err != nil {
		return "info", fmt.Errorf("invalid log level: %s", level)
	}

	return normalizedLevel, nil
}
