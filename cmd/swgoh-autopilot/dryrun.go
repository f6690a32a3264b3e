package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"strings"

	"github.com/holotable/swgoh-autopilot/internal/vision"
)

// dryRunProviders 演练模式的合成屏幕栈
// 不依赖真实窗口：采集返回纯色帧，模板永远命中画面中心，
// 输入由 automator 的 dry-run 开关拦截。
type dryRunProviders struct {
	width  int
	height int
}

func newDryRunProviders(width, height int) dryRunProviders {
	return dryRunProviders{width: width, height: height}
}

func (p dryRunProviders) asProviders() Providers {
	return Providers{Capturer: p, Matcher: p, Input: p, Locator: p}
}

func (p dryRunProviders) Capture(ctx context.Context) (*vision.Frame, error) {
	return p.frame(p.width, p.height)
}

func (p dryRunProviders) CaptureRegion(ctx context.Context, region vision.Region) (*vision.Frame, error) {
	return p.frame(region.Width, region.Height)
}

func (p dryRunProviders) frame(width, height int) (*vision.Frame, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = 0x20
	}
	img.Set(0, 0, color.Black)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return &vision.Frame{PNG: buf.Bytes(), Width: width, Height: height}, nil
}

func (p dryRunProviders) FindTemplate(frame *vision.Frame, path string, minConfidence float64) (vision.Match, error) {
	return vision.Match{
		Center:     vision.Point{X: frame.Width / 2, Y: frame.Height / 2},
		Confidence: 0.99,
	}, nil
}

func (p dryRunProviders) Click(ctx context.Context, point vision.Point) error {
	return nil
}

func (p dryRunProviders) PressKey(ctx context.Context, key string) error {
	return nil
}

func (p dryRunProviders) Locate(ctx context.Context, titles []string) (vision.Region, error) {
	return vision.Region{Left: 0, Top: 0, Width: p.width, Height: p.height}, nil
}

// dryRunAnalyzer 演练模式的画面分析器：不访问模型，
// 对判断类提问一律回答 NO，对战斗完成提问回答已完成，
// 避免例程在演练中陷入等待循环。
type dryRunAnalyzer struct{}

func (dryRunAnalyzer) AnalyzeScreen(ctx context.Context, screenshot []byte, prompt string) (string, error) {
	if strings.Contains(prompt, "complete") {
		return "complete: yes\nvictory: yes\nstars: 3", nil
	}
	return "NO", nil
}
