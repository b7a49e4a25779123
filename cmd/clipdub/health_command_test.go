package main

import "testing"

func TestHealthCommandWithStubbedBinaries(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	requireContains(t, out, "TOTAL")
	requireContains(t, out, "yt-dlp")
	requireContains(t, out, "All required checks passed")
}
