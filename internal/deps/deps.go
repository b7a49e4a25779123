// Package deps reports the availability of the external binaries the
// pipeline shells out to.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"clipdub/internal/config"
)

// Requirement defines an external dependency clipdub relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements returns the external binaries used by the pipeline.
// Translation and synthesis tools are optional: their stages degrade
// gracefully when the binaries are missing.
func Requirements(cfg *config.Config) []Requirement {
	reqs := []Requirement{
		{Name: "yt-dlp", Command: "yt-dlp", Description: "Downloads source videos"},
		{Name: "FFmpeg", Command: "ffmpeg", Description: "Mixing, compositing, and encoding"},
		{Name: "ffprobe", Command: "ffprobe", Description: "Media inspection"},
		{Name: "Whisper", Command: "whisper-ctranslate2", Description: "Speech recognition"},
	}
	if !cfg.Translate.DisableTranslation {
		reqs = append(reqs,
			Requirement{Name: "Argos Translate", Command: "argos-translate", Description: "Subtitle translation", Optional: true},
			Requirement{Name: "argospm", Command: "argospm", Description: "Translation package management", Optional: true},
		)
	}
	reqs = append(reqs,
		Requirement{Name: "Piper", Command: "piper", Description: "Speech synthesis", Optional: true},
		Requirement{Name: "eSpeak NG", Command: "espeak-ng", Description: "Fallback speech synthesis", Optional: true},
	)
	return reqs
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}
