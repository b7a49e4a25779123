package fetch

import "strings"

type failureKind int

const (
	failureOther failureKind = iota
	failureRestricted
	failureTimeout
	failureBlocked
	failureFormat
)

var restrictedMarkers = []string{
	"inappropriate",
	"certain audiences",
	"age",
	"unavailable for",
}

var blockedMarkers = []string{
	"blocked",
	"unable to download",
	"unable to extract",
}

// classifyFailure inspects extractor output to decide between the
// user-facing restriction message, a timeout retry, the alternate
// Instagram path, and a plain-format retry.
func classifyFailure(output string) failureKind {
	lowered := strings.ToLower(output)
	for _, marker := range restrictedMarkers {
		if strings.Contains(lowered, marker) {
			return failureRestricted
		}
	}
	if strings.Contains(lowered, "timed out") || strings.Contains(lowered, "timeout") {
		return failureTimeout
	}
	for _, marker := range blockedMarkers {
		if strings.Contains(lowered, marker) {
			return failureBlocked
		}
	}
	if strings.Contains(lowered, "format") || strings.Contains(lowered, "codec") {
		return failureFormat
	}
	return failureOther
}
