// Package filtergraph builds the ffmpeg video filter chains used when
// compositing output: vertical reframing, watermarking, and burned-in
// captions.
package filtergraph

import (
	"fmt"
	"strings"
)

// VerticalWidth and VerticalHeight define the 9:16 output frame.
const (
	VerticalWidth  = 1080
	VerticalHeight = 1920
)

// Chain accumulates video filters in application order.
type Chain struct {
	filters []string
}

// New returns an empty filter chain.
func New() *Chain {
	return &Chain{}
}

// Append adds a raw filter expression.
func (c *Chain) Append(filter string) *Chain {
	filter = strings.TrimSpace(filter)
	if filter != "" {
		c.filters = append(c.filters, filter)
	}
	return c
}

// Vertical crops to a 9:16 window centered on the frame and scales to
// 1080x1920. Used when the source dimensions are unknown.
func (c *Chain) Vertical() *Chain {
	return c.Append(fmt.Sprintf("crop=ih*9/16:ih,scale=%d:%d", VerticalWidth, VerticalHeight))
}

// VerticalFromSource computes a centered 9:16 crop window from the
// measured source dimensions, then scales and pads onto the fixed
// 1080x1920 canvas. The pad guarantees the exact output size even when
// integer rounding leaves the crop a pixel off ratio.
func (c *Chain) VerticalFromSource(width, height int) *Chain {
	if width <= 0 || height <= 0 {
		return c.Vertical()
	}

	cropW, cropH := width, height
	// Compare aspect ratios without floating point: w/h vs 9/16.
	switch {
	case width*VerticalHeight > height*VerticalWidth:
		cropW = even(height * VerticalWidth / VerticalHeight)
	case width*VerticalHeight < height*VerticalWidth:
		cropH = even(width * VerticalHeight / VerticalWidth)
	}
	x := (width - cropW) / 2
	y := (height - cropH) / 2

	c.Append(fmt.Sprintf("crop=%d:%d:%d:%d", cropW, cropH, x, y))
	return c.Append(fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2",
		VerticalWidth, VerticalHeight, VerticalWidth, VerticalHeight))
}

func even(v int) int {
	if v < 2 {
		return 2
	}
	return v - v%2
}

// Watermark overlays semi-transparent text in the bottom-right corner.
func (c *Chain) Watermark(text string) *Chain {
	text = strings.TrimSpace(text)
	if text == "" {
		return c
	}
	return c.Append(fmt.Sprintf(
		"drawtext=text='%s':fontsize=24:fontcolor=white@0.5:x=(w-text_w)-10:y=(h-text_h)-10",
		escapeDrawtext(text),
	))
}

// BurnSubtitles renders an SRT file onto the video through libass with the
// provided force_style value. A non-empty fontsDir points libass at a
// directory of bundled fonts instead of the system font config.
func (c *Chain) BurnSubtitles(srtPath, forceStyle, fontsDir string) *Chain {
	if strings.TrimSpace(srtPath) == "" {
		return c
	}
	filter := fmt.Sprintf("subtitles='%s'", escapeFilterPath(srtPath))
	if fontsDir != "" {
		filter += fmt.Sprintf(":fontsdir='%s'", escapeFilterPath(fontsDir))
	}
	if forceStyle != "" {
		filter += fmt.Sprintf(":force_style='%s'", forceStyle)
	}
	return c.Append(filter)
}

// Empty reports whether any filters have been added.
func (c *Chain) Empty() bool {
	return len(c.filters) == 0
}

// String renders the chain as a -vf argument value.
func (c *Chain) String() string {
	return strings.Join(c.filters, ",")
}

// escapeFilterPath escapes a filesystem path for use inside a quoted
// filter argument. Colons separate filter options, so they need escaping
// even when quoted.
func escapeFilterPath(path string) string {
	escaped := strings.ReplaceAll(path, "\\", "/")
	escaped = strings.ReplaceAll(escaped, "'", "\\'")
	escaped = strings.ReplaceAll(escaped, ":", "\\\\:")
	return escaped
}

// escapeDrawtext escapes text for the drawtext filter.
func escapeDrawtext(text string) string {
	escaped := strings.ReplaceAll(text, "\\", "\\\\")
	escaped = strings.ReplaceAll(escaped, "'", "\\'")
	escaped = strings.ReplaceAll(escaped, ":", "\\:")
	escaped = strings.ReplaceAll(escaped, "%", "\\%")
	return escaped
}
