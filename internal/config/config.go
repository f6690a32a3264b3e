package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config SWGOH Autopilot 配置聚合器
type Config struct {
	// Automation 自动化行为配置模块
	Automation *AutomationConfig `yaml:"automation" json:"automation"`

	// AI 视觉模型配置模块
	AI *AIConfig `yaml:"ai" json:"ai"`

	// Logging 日志配置模块
	Logging *LoggingConfig `yaml:"logging" json:"logging"`

	// Recovery 错误恢复配置模块
	Recovery *RecoveryConfig `yaml:"recovery" json:"recovery"`

	// Metrics 监控配置模块
	Metrics *MetricsConfig `yaml:"metrics" json:"metrics"`

	// Server 状态服务器配置模块
	Server *ServerConfig `yaml:"server" json:"server"`

	// Store 会话存储配置模块
	Store *StoreConfig `yaml:"store" json:"store"`

	// Lifecycle 生命周期管理配置
	Lifecycle LifecycleConfig `yaml:"lifecycle" json:"lifecycle"`
}

// LifecycleConfig 生命周期管理配置
type LifecycleConfig struct {
	// 优雅关闭超时时间
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`

	// 组件启动超时时间
	StartupTimeout time.Duration `yaml:"startup_timeout" json:"startup_timeout"`
}

// RecoveryConfig 错误恢复与熔断配置
type RecoveryConfig struct {
	// FailureThreshold 熔断器失败阈值
	FailureThreshold int `yaml:"failure_threshold" json:"failure_threshold"`

	// RecoveryTimeout 熔断器恢复超时
	RecoveryTimeout time.Duration `yaml:"recovery_timeout" json:"recovery_timeout"`
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	// Enabled 是否暴露 Prometheus 指标
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Path 指标暴露路径
	Path string `yaml:"path" json:"path"`
}

// ServerConfig 本地状态服务器配置
type ServerConfig struct {
	// Enabled 是否启动状态服务器
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Host 监听地址
	Host string `yaml:"host" json:"host"`

	// Port 监听端口
	Port int `yaml:"port" json:"port"`
}

// StoreConfig 会话存储配置
type StoreConfig struct {
	// Enabled 是否启用 SQLite 会话存储
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Path 数据库文件路径
	Path string `yaml:"path" json:"path"`

	// RetentionDays 历史记录保留天数
	RetentionDays int `yaml:"retention_days" json:"retention_days"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	cfg := &Config{
		Automation: DefaultAutomationConfig(),
		AI:         DefaultAIConfig(),
		Logging:    DefaultLoggingConfig(),
		Recovery:   DefaultRecoveryConfig(),
		Metrics:    &MetricsConfig{Enabled: true, Path: "/metrics"},
		Server:     &ServerConfig{Enabled: true, Host: "127.0.0.1", Port: 8090},
		Store:      &StoreConfig{Enabled: true, Path: "data/autopilot.db", RetentionDays: 30},
	}

	cfg.Lifecycle.ShutdownTimeout = 30 * time.Second
	cfg.Lifecycle.StartupTimeout = 60 * time.Second

	return cfg
}

// DefaultRecoveryConfig 返回默认错误恢复配置
func DefaultRecoveryConfig() *RecoveryConfig {
	return &RecoveryConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
	}
}

// LoadConfigFromFile 从文件加载配置
func LoadConfigFromFile(filename string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// 环境变量覆盖文件配置
	config.ApplyEnvOverrides()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// LoadDotEnv 加载 .env 文件（不存在时忽略）
func LoadDotEnv() {
	_ = godotenv.Load()
}

// ApplyEnvOverrides 应用环境变量覆盖
func (c *Config) ApplyEnvOverrides() {
	if c.Automation != nil {
		c.Automation.applyEnvOverrides()
	}
	if c.AI != nil {
		c.AI.applyEnvOverrides()
	}
	if c.Logging != nil {
		c.Logging.applyEnvOverrides()
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Automation != nil {
		if err := c.Automation.Validate(); err != nil {
			return fmt.Errorf("invalid automation config: %w", err)
		}
	}

	if c.AI != nil {
		if err := c.AI.Validate(); err != nil {
			return fmt.Errorf("invalid ai config: %w", err)
		}
	}

	if c.Logging != nil {
		if err := c.Logging.Validate(); err != nil {
			return fmt.Errorf("invalid logging config: %w", err)
		}
	}

	if c.Recovery != nil {
		if err := c.Recovery.Validate(); err != nil {
			return fmt.Errorf("invalid recovery config: %w", err)
		}
	}

	if c.Server != nil && c.Server.Enabled {
		if err := c.Server.Validate(); err != nil {
			return fmt.Errorf("invalid server config: %w", err)
		}
	}

	if c.Store != nil && c.Store.Enabled {
		if c.Store.Path == "" {
			return fmt.Errorf("store path is required when store is enabled")
		}
		if c.Store.RetentionDays < 0 {
			return fmt.Errorf("store retention days must not be negative")
		}
	}

	if c.Lifecycle.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}

	return nil
}

// Validate 验证状态服务器配置
func (c *ServerConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("server host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Port)
	}
	return nil
}

// Validate 验证错误恢复配置
func (c *RecoveryConfig) Validate() error {
	if c.FailureThreshold <= 0 {
		return fmt.Errorf("failure threshold must be positive")
	}
	if c.RecoveryTimeout <= 0 {
		return fmt.Errorf("recovery timeout must be positive")
	}
	return nil
}
