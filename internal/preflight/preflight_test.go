package preflight

import (
	"testing"

	"clipdub/internal/testsupport"
)

func TestRunWithStubbedBinaries(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	cfg.Workflow.MinFreeDiskGiB = 0

	report := Run(cfg, nil)
	if !report.Ready() {
		t.Fatalf("expected ready report, failures: %+v", report.Failures())
	}
}

func TestRunReportsMissingRequiredBinary(t *testing.T) {
	// Clear PATH first so only the stubbed binaries resolve.
	t.Setenv("PATH", "")
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("ffmpeg", "ffprobe", "whisper-ctranslate2"))
	cfg.Workflow.MinFreeDiskGiB = 0

	report := Run(cfg, nil)
	if report.Ready() {
		t.Fatal("missing yt-dlp must fail preflight")
	}
	found := false
	for _, check := range report.Failures() {
		if check.Name == "yt-dlp" {
			found = true
		}
	}
	if !found {
		t.Fatalf("yt-dlp failure not reported: %+v", report.Failures())
	}
}

func TestDiskRequirementTooLargeFails(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	// No machine has this much free space.
	cfg.Workflow.MinFreeDiskGiB = 1 << 30

	report := Run(cfg, nil)
	if report.Ready() {
		t.Fatal("impossible disk requirement must fail preflight")
	}
}
