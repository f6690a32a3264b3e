package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AutomationConfig 自动化行为配置
type AutomationConfig struct {
	// DebugMode 调试模式（保留截图等诊断信息）
	DebugMode bool `yaml:"debug_mode" json:"debug_mode"`

	// ScreenshotDelay 两次截图之间的间隔
	ScreenshotDelay time.Duration `yaml:"screenshot_delay" json:"screenshot_delay"`

	// ClickDelay 每次点击之后的等待时间
	ClickDelay time.Duration `yaml:"click_delay" json:"click_delay"`

	// ConfidenceThreshold 模板匹配置信度阈值 (0-1)
	ConfidenceThreshold float64 `yaml:"confidence_threshold" json:"confidence_threshold"`

	// AssetDir 模板图片目录
	AssetDir string `yaml:"asset_dir" json:"asset_dir"`

	// Window 游戏窗口配置
	Window WindowConfig `yaml:"window" json:"window"`

	// Energy 体力管理配置
	Energy EnergyConfig `yaml:"energy" json:"energy"`

	// Battle 战斗配置
	Battle BattleConfig `yaml:"battle" json:"battle"`

	// Dailies 日常活动配置
	Dailies DailiesConfig `yaml:"dailies" json:"dailies"`

	// Safety 安全限制配置
	Safety SafetyConfig `yaml:"safety" json:"safety"`

	// Teams 预设队伍配置
	Teams map[string]TeamConfig `yaml:"teams" json:"teams"`
}

// WindowConfig 游戏窗口配置
type WindowConfig struct {
	// Titles 窗口标题候选列表，按顺序匹配
	Titles []string `yaml:"titles" json:"titles"`

	// Width 期望窗口宽度
	Width int `yaml:"width" json:"width"`

	// Height 期望窗口高度
	Height int `yaml:"height" json:"height"`
}

// EnergyConfig 体力管理配置
type EnergyConfig struct {
	// AutoRefill 是否自动补充体力
	AutoRefill bool `yaml:"auto_refill" json:"auto_refill"`

	// RefillThreshold 低于该比例时触发补充 (0-1)
	RefillThreshold float64 `yaml:"refill_threshold" json:"refill_threshold"`

	// MaxDailyRefills 每日最大补充次数
	MaxDailyRefills int `yaml:"max_daily_refills" json:"max_daily_refills"`
}

// BattleConfig 战斗配置
type BattleConfig struct {
	// AutoBattles 是否自动战斗
	AutoBattles bool `yaml:"auto_battles" json:"auto_battles"`

	// PreferredMode 默认战斗模式 (regular, cantina, fleet)
	PreferredMode string `yaml:"preferred_mode" json:"preferred_mode"`

	// FarmStage 默认刷取关卡
	FarmStage string `yaml:"farm_stage" json:"farm_stage"`

	// FarmRepetitions 默认刷取次数
	FarmRepetitions int `yaml:"farm_repetitions" json:"farm_repetitions"`

	// Strategy 战斗策略 (auto, manual)
	Strategy string `yaml:"strategy" json:"strategy"`

	// CompletionTimeout 单场战斗的完成超时
	CompletionTimeout time.Duration `yaml:"completion_timeout" json:"completion_timeout"`
}

// DailiesConfig 日常活动配置
type DailiesConfig struct {
	// AutoDailies 是否自动完成日常挑战
	AutoDailies bool `yaml:"auto_dailies" json:"auto_dailies"`

	// AutoGuild 是否自动参与公会活动
	AutoGuild bool `yaml:"auto_guild" json:"auto_guild"`

	// AutoLoginRewards 是否自动领取登录奖励
	AutoLoginRewards bool `yaml:"auto_login_rewards" json:"auto_login_rewards"`
}

// SafetyConfig 安全限制配置
type SafetyConfig struct {
	// SafeMode 安全模式（强制休息间隔）
	SafeMode bool `yaml:"safe_mode" json:"safe_mode"`

	// MaxDailyActions 每日最大操作数
	MaxDailyActions int `yaml:"max_daily_actions" json:"max_daily_actions"`

	// BreakInterval 连续运行多久后休息
	BreakInterval time.Duration `yaml:"break_interval" json:"break_interval"`

	// BreakDuration 单次休息时长
	BreakDuration time.Duration `yaml:"break_duration" json:"break_duration"`
}

// TeamConfig 预设队伍配置
type TeamConfig struct {
	// Name 队伍名称
	Name string `yaml:"name" json:"name"`

	// Characters 角色列表
	Characters []string `yaml:"characters" json:"characters"`

	// Strategy 战斗策略
	Strategy string `yaml:"strategy" json:"strategy"`

	// TargetStages 目标关卡列表
	TargetStages []string `yaml:"target_stages" json:"target_stages"`
}

// DefaultAutomationConfig 返回默认自动化配置
func DefaultAutomationConfig() *AutomationConfig {
	return &AutomationConfig{
		DebugMode:           false,
		ScreenshotDelay:     500 * time.Millisecond,
		ClickDelay:          200 * time.Millisecond,
		ConfidenceThreshold: 0.8,
		AssetDir:            "assets",
		Window: WindowConfig{
			Titles: []string{"Star Wars: Galaxy of Heroes", "Galaxy of Heroes", "SWGOH"},
			Width:  1952,
			Height: 1096,
		},
		Energy: EnergyConfig{
			AutoRefill:      true,
			RefillThreshold: 0.2,
			MaxDailyRefills: 3,
		},
		Battle: BattleConfig{
			AutoBattles:       true,
			PreferredMode:     "regular",
			FarmStage:         "1-A",
			FarmRepetitions:   3,
			Strategy:          "auto",
			CompletionTimeout: 5 * time.Minute,
		},
		Dailies: DailiesConfig{
			AutoDailies:      true,
			AutoGuild:        true,
			AutoLoginRewards: true,
		},
		Safety: SafetyConfig{
			SafeMode:        true,
			MaxDailyActions: 1000,
			BreakInterval:   time.Hour,
			BreakDuration:   5 * time.Minute,
		},
		Teams: map[string]TeamConfig{
			"regular": {
				Name:       "Regular Light Side",
				Characters: []string{"Jedi Knight Anakin", "Ahsoka Tano", "Barriss Offee", "Mace Windu", "Kit Fisto"},
				Strategy:   "auto",
			},
			"cantina": {
				Name:       "Cantina Farming",
				Characters: []string{"Jedi Knight Luke", "Old Daka", "Acolyte", "IG-86", "Talia"},
				Strategy:   "auto",
			},
			"fleet": {
				Name:       "Fleet Battles",
				Characters: []string{"Ghost", "Phantom", "Ebon Hawk", "Millennium Falcon", "U-Wing"},
				Strategy:   "auto",
			},
		},
	}
}

// Validate 验证自动化配置
func (c *AutomationConfig) Validate() error {
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold must be between 0 and 1, got %v", c.ConfidenceThreshold)
	}

	if c.ScreenshotDelay < 0 {
		return fmt.Errorf("screenshot delay must not be negative")
	}

	if c.ClickDelay < 0 {
		return fmt.Errorf("click delay must not be negative")
	}

	if c.Energy.RefillThreshold < 0 || c.Energy.RefillThreshold > 1 {
		return fmt.Errorf("energy refill threshold must be between 0 and 1, got %v", c.Energy.RefillThreshold)
	}

	if c.Energy.MaxDailyRefills < 0 {
		return fmt.Errorf("max daily refills must not be negative")
	}

	switch c.Battle.PreferredMode {
	case "regular", "cantina", "fleet":
	default:
		return fmt.Errorf("invalid battle mode: %s, must be 'regular', 'cantina', or 'fleet'", c.Battle.PreferredMode)
	}

	if c.Battle.Strategy != "auto" && c.Battle.Strategy != "manual" {
		return fmt.Errorf("invalid battle strategy: %s, must be 'auto' or 'manual'", c.Battle.Strategy)
	}

	if c.Battle.FarmRepetitions <= 0 {
		return fmt.Errorf("farm repetitions must be positive")
	}

	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("window dimensions must be positive")
	}

	// 验证队伍配置
	for key, team := range c.Teams {
		if len(team.Characters) == 0 {
			return fmt.Errorf("team %q has no characters configured", key)
		}
	}

	return nil
}

// Merge 合并自动化配置
func (c *AutomationConfig) Merge(other *AutomationConfig) error {
	if other == nil {
		return nil
	}

	if other.ScreenshotDelay > 0 {
		c.ScreenshotDelay = other.ScreenshotDelay
	}

	if other.ClickDelay > 0 {
		c.ClickDelay = other.ClickDelay
	}

	if other.ConfidenceThreshold > 0 {
		c.ConfidenceThreshold = other.ConfidenceThreshold
	}

	if other.AssetDir != "" {
		c.AssetDir = other.AssetDir
	}

	c.DebugMode = other.DebugMode

	for key, team := range other.Teams {
		if c.Teams == nil {
			c.Teams = make(map[string]TeamConfig)
		}
		c.Teams[key] = team
	}

	return c.Validate()
}

// applyEnvOverrides 从环境变量覆盖自动化配置
func (c *AutomationConfig) applyEnvOverrides() {
	if v := os.Getenv("SWGOH_DEBUG_MODE"); v != "" {
		c.DebugMode = parseEnvBool(v)
	}

	if v := os.Getenv("SWGOH_CONFIDENCE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.ConfidenceThreshold = f
		}
	}

	if v := os.Getenv("SWGOH_AUTO_REFILL_ENERGY"); v != "" {
		c.Energy.AutoRefill = parseEnvBool(v)
	}

	if v := os.Getenv("SWGOH_AUTO_BATTLES"); v != "" {
		c.Battle.AutoBattles = parseEnvBool(v)
	}

	if v := os.Getenv("SWGOH_SAFE_MODE"); v != "" {
		c.Safety.SafeMode = parseEnvBool(v)
	}

	if v := os.Getenv("SWGOH_ASSET_DIR"); v != "" {
		c.AssetDir = v
	}
}

func parseEnvBool(v string) bool {
	switch strings.ToLower(v) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}
