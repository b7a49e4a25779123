package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a task.
type Status string

const (
	StatusCreated    Status = "created"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// CancelledByUserReason is the error message set when a user cancels a task.
const CancelledByUserReason = "Cancelled by user"

// DaemonStopReason is the error message set when tasks are requeued due to
// daemon shutdown.
const DaemonStopReason = "Daemon stopped"

var allStatuses = []Status{
	StatusCreated,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// InputKind identifies where the source video comes from.
type InputKind string

const (
	InputURL          InputKind = "url"
	InputTelegramFile InputKind = "telegram_file"
)

// Options captures the per-task processing choices made by the requester.
type Options struct {
	GenerateSubtitles bool   `json:"generate_subtitles"`
	Translate         bool   `json:"translate"`
	Voiceover         bool   `json:"voiceover"`
	Vertical          bool   `json:"vertical"`
	Watermark         bool   `json:"watermark"`
	SourceLanguage    string `json:"source_language,omitempty"`
	TargetLanguage    string `json:"target_language,omitempty"`
	Style             string `json:"style,omitempty"`
	Position          string `json:"position,omitempty"`
	VoiceGender       string `json:"voice_gender,omitempty"`
}

// HealthSummary describes aggregated queue counts per lifecycle state.
type HealthSummary struct {
	Total      int
	Created    int
	Processing int
	Completed  int
	Failed     int
	Cancelled  int
}

// Task represents a dubbing task persisted in SQLite.
type Task struct {
	ID               int64
	ChatID           int64
	RequestMessageID int64
	Priority         int
	InputKind        InputKind
	InputURL         string
	InputFileID      string
	Options          Options
	Platform         string
	DetectedLanguage string
	InputFile        string
	SubtitleFile     string
	VoiceoverFile    string
	OutputFile       string
	Status           Status
	ErrorMessage     string
	ProgressStage    string
	ProgressMessage  string
	WorkerID         string
	ProcessingSecs   float64
	CreatedAt        time.Time
	UpdatedAt        time.Time
	StartedAt        *time.Time
	CompletedAt      *time.Time
	LastHeartbeat    *time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status ends the task lifecycle.
func IsTerminal(status Status) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsProcessing returns true when the task is claimed by a worker.
func (t Task) IsProcessing() bool {
	return t.Status == StatusProcessing
}

// SetProgress updates both progress fields together.
func (t *Task) SetProgress(stage, message string) {
	t.ProgressStage = stage
	t.ProgressMessage = message
}

// SetFailed marks the task as failed with the given error message.
func (t *Task) SetFailed(message string) {
	t.Status = StatusFailed
	t.ErrorMessage = message
	t.ProgressStage = "failed"
	t.ProgressMessage = message
	t.LastHeartbeat = nil
}

// FinalArtifact returns the file that should be delivered to the requester,
// preferring the composited output.
func (t Task) FinalArtifact() string {
	if t.OutputFile != "" {
		return t.OutputFile
	}
	return t.InputFile
}
