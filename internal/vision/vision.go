package vision

import (
	"context"
	"errors"
	"fmt"
)

// ErrTemplateNotFound is returned when a template does not appear on
// screen at the required confidence.
var ErrTemplateNotFound = errors.New("vision: template not found on screen")

// ErrWindowNotFound is returned when the game window cannot be located.
var ErrWindowNotFound = errors.New("vision: game window not found")

// Point is a screen coordinate in pixels.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Point) String() string {
	return fmt.Sprintf("(%d, %d)", p.X, p.Y)
}

// Region is a rectangular screen area.
type Region struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Center returns the center point of the region in absolute
// coordinates.
func (r Region) Center() Point {
	return Point{X: r.Left + r.Width/2, Y: r.Top + r.Height/2}
}

// Contains reports whether the point lies inside the region.
func (r Region) Contains(p Point) bool {
	return p.X >= r.Left && p.X < r.Left+r.Width &&
		p.Y >= r.Top && p.Y < r.Top+r.Height
}

// Frame is one captured screenshot, encoded as PNG for both template
// matching and vision model calls.
type Frame struct {
	PNG    []byte
	Width  int
	Height int
}

// Match is a successful template lookup: the center of the matched area
// and the matcher's confidence score.
type Match struct {
	Center     Point
	Confidence float64
}

// ScreenCapturer produces screenshots of the game window.
type ScreenCapturer interface {
	// Capture grabs the full game window.
	Capture(ctx context.Context) (*Frame, error)

	// CaptureRegion grabs a sub-region of the game window.
	CaptureRegion(ctx context.Context, region Region) (*Frame, error)
}

// TemplateMatcher locates template images inside a captured frame.
type TemplateMatcher interface {
	// FindTemplate searches frame for the template stored at
	// templatePath. It returns ErrTemplateNotFound when the best match
	// scores below minConfidence.
	FindTemplate(frame *Frame, templatePath string, minConfidence float64) (Match, error)
}

// InputDriver injects clicks and key presses into the game window.
type InputDriver interface {
	Click(ctx context.Context, p Point) error
	PressKey(ctx context.Context, key string) error
}

// WindowLocator finds the game window on the desktop by title.
type WindowLocator interface {
	// Locate returns the window region for the first matching title.
	Locate(ctx context.Context, titles []string) (Region, error)
}
