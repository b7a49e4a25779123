package subtitles

import (
	"strings"
	"time"
)

// Segment is a single timed caption.
type Segment struct {
	Index int
	Start time.Duration
	End   time.Duration
	Text  string
}

// Duration returns the display time of the segment.
func (s Segment) Duration() time.Duration {
	if s.End <= s.Start {
		return 0
	}
	return s.End - s.Start
}

// IsEmpty reports whether the segment carries no visible text.
func (s Segment) IsEmpty() bool {
	return strings.TrimSpace(s.Text) == ""
}

// Texts extracts the caption text of every segment in order.
func Texts(segments []Segment) []string {
	out := make([]string, 0, len(segments))
	for _, segment := range segments {
		out = append(out, segment.Text)
	}
	return out
}

// TotalSpan returns the end timestamp of the last segment.
func TotalSpan(segments []Segment) time.Duration {
	var last time.Duration
	for _, segment := range segments {
		if segment.End > last {
			last = segment.End
		}
	}
	return last
}
