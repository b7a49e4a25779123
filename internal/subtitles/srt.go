package subtitles

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ParseSRT decodes SRT content into ordered segments. Cue numbers in the
// input are ignored; segments are renumbered sequentially.
func ParseSRT(data []byte) ([]Segment, error) {
	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	content = strings.TrimPrefix(content, "\ufeff")
	blocks := strings.Split(strings.TrimSpace(content), "\n\n")

	var segments []Segment
	for _, block := range blocks {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) == 0 {
			continue
		}
		// Optional cue number line.
		cursor := 0
		if _, err := strconv.Atoi(strings.TrimSpace(lines[0])); err == nil {
			cursor = 1
		}
		if cursor >= len(lines) || !strings.Contains(lines[cursor], "-->") {
			continue
		}
		parts := strings.SplitN(lines[cursor], "-->", 2)
		start, err := parseTimestamp(parts[0])
		if err != nil {
			return nil, fmt.Errorf("cue %d: %w", len(segments)+1, err)
		}
		end, err := parseTimestamp(parts[1])
		if err != nil {
			return nil, fmt.Errorf("cue %d: %w", len(segments)+1, err)
		}
		text := strings.TrimSpace(strings.Join(lines[cursor+1:], "\n"))
		if text == "" {
			continue
		}
		segments = append(segments, Segment{
			Index: len(segments) + 1,
			Start: start,
			End:   end,
			Text:  text,
		})
	}
	return segments, nil
}

// ParseSRTFile reads and decodes an SRT file.
func ParseSRTFile(path string) ([]Segment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read srt: %w", err)
	}
	return ParseSRT(data)
}

// FormatSRT encodes segments as SRT content.
func FormatSRT(segments []Segment) []byte {
	var sb strings.Builder
	for i, segment := range segments {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(strconv.Itoa(i + 1))
		sb.WriteString("\n")
		sb.WriteString(formatTimestamp(segment.Start))
		sb.WriteString(" --> ")
		sb.WriteString(formatTimestamp(segment.End))
		sb.WriteString("\n")
		sb.WriteString(strings.TrimSpace(segment.Text))
		sb.WriteString("\n")
	}
	return []byte(sb.String())
}

// WriteSRTFile encodes segments and writes them to path.
func WriteSRTFile(path string, segments []Segment) error {
	if err := os.WriteFile(path, FormatSRT(segments), 0o644); err != nil {
		return fmt.Errorf("write srt: %w", err)
	}
	return nil
}

// ValidateSRTFile checks an SRT file for format issues. Returns a list of
// issues found; empty slice means validation passed. When videoSeconds is
// positive the caption span is compared against the video duration.
func ValidateSRTFile(path string, videoSeconds float64) []string {
	var issues []string

	segments, err := ParseSRTFile(path)
	if err != nil {
		issues = append(issues, fmt.Sprintf("parse_error: %v", err))
		return issues
	}
	if len(segments) == 0 {
		issues = append(issues, "empty_subtitle_file")
		return issues
	}

	for _, segment := range segments {
		if segment.End < segment.Start {
			issues = append(issues, fmt.Sprintf("cue_%d_ends_before_start", segment.Index))
		}
	}

	if videoSeconds > 0 {
		span := TotalSpan(segments).Seconds()
		if span > videoSeconds+5 {
			issues = append(issues, fmt.Sprintf("duration_mismatch: captions run %.1fs past video end", span-videoSeconds))
		}
	}

	return issues
}

func parseTimestamp(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	// SRT uses comma for milliseconds but tools emit periods too.
	value = strings.ReplaceAll(value, ".", ",")
	timeParts := strings.Split(value, ",")
	if len(timeParts) != 2 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(timeParts[0], ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	seconds, errS := strconv.Atoi(hms[2])
	millis, errMS := strconv.Atoi(timeParts[1])
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	total := time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(millis)*time.Millisecond
	return total, nil
}

func formatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	millis := d.Milliseconds()
	hours := millis / 3_600_000
	millis -= hours * 3_600_000
	minutes := millis / 60_000
	millis -= minutes * 60_000
	seconds := millis / 1000
	millis -= seconds * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, millis)
}
