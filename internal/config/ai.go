package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// AIConfig 视觉模型配置
type AIConfig struct {
	// Enabled 是否启用 AI 决策
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Model 使用的 Gemini 模型名称
	Model string `yaml:"model" json:"model"`

	// APIKeyEnv 读取 API Key 的环境变量名
	APIKeyEnv string `yaml:"api_key_env" json:"api_key_env"`

	// DecisionThreshold AI 建议的最低置信度 (0-1)
	DecisionThreshold float64 `yaml:"decision_threshold" json:"decision_threshold"`

	// MaxActions 单次 AI 会话最大执行动作数
	MaxActions int `yaml:"max_actions" json:"max_actions"`

	// SessionDuration 单次 AI 会话最长时长
	SessionDuration time.Duration `yaml:"session_duration" json:"session_duration"`

	// RequestTimeout 单次模型调用超时
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
}

// DefaultAIConfig 返回默认 AI 配置
func DefaultAIConfig() *AIConfig {
	return &AIConfig{
		Enabled:           true,
		Model:             "gemini-2.5-flash",
		APIKeyEnv:         "GOOGLE_API_KEY",
		DecisionThreshold: 0.7,
		MaxActions:        10,
		SessionDuration:   time.Hour,
		RequestTimeout:    60 * time.Second,
	}
}

// Validate 验证 AI 配置
func (c *AIConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.Model == "" {
		return fmt.Errorf("ai model is required when ai is enabled")
	}

	if c.APIKeyEnv == "" {
		return fmt.Errorf("api key environment variable name is required")
	}

	if c.DecisionThreshold < 0 || c.DecisionThreshold > 1 {
		return fmt.Errorf("decision threshold must be between 0 and 1, got %v", c.DecisionThreshold)
	}

	if c.MaxActions <= 0 {
		return fmt.Errorf("max actions must be positive")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}

	return nil
}

// APIKey 从环境变量读取 API Key
func (c *AIConfig) APIKey() (string, error) {
	key := os.Getenv(c.APIKeyEnv)
	if key == "" {
		return "", fmt.Errorf("%s not set in environment", c.APIKeyEnv)
	}
	return key, nil
}

// applyEnvOverrides 从环境变量覆盖 AI 配置
func (c *AIConfig) applyEnvOverrides() {
	if v := os.Getenv("SWGOH_AI_ENABLED"); v != "" {
		c.Enabled = parseEnvBool(v)
	}

	if v := os.Getenv("SWGOH_AI_MODEL"); v != "" {
		c.Model = v
	}

	if v := os.Getenv("SWGOH_AI_MAX_ACTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MaxActions = n
		}
	}
}
