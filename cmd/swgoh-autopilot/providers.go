package main

import (
	"fmt"

	"github.com/holotable/swgoh-autopilot/internal/config"
)

// platformProviders 返回真实屏幕栈
//
// 屏幕采集、模板匹配与输入注入依赖平台库，由集成方在此接入。
// 默认构建不含平台实现，只能以 --dry-run 运行。
func platformProviders(cfg *config.AutomationConfig) (Providers, error) {
	return Providers{}, fmt.Errorf("no platform screen stack in this build, run with --dry-run")
}
