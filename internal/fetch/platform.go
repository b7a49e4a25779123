package fetch

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"clipdub/internal/config"
)

// Supported source platforms. Anything else is rejected before yt-dlp runs.
const (
	PlatformYouTube   = "youtube"
	PlatformTikTok    = "tiktok"
	PlatformInstagram = "instagram"
)

var (
	youtubePattern   = regexp.MustCompile(`(?i)(youtube\.com|youtu\.be)`)
	tiktokPattern    = regexp.MustCompile(`(?i)tiktok\.com`)
	instagramPattern = regexp.MustCompile(`(?i)instagram\.com`)
)

// ClassifyURL maps a link onto a supported platform. The platform decides
// which yt-dlp option profile applies and whether an alternate retrieval
// path exists.
func ClassifyURL(rawURL string) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", fmt.Errorf("empty source URL")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", fmt.Errorf("not a valid http(s) link: %s", trimmed)
	}
	switch {
	case youtubePattern.MatchString(trimmed):
		return PlatformYouTube, nil
	case tiktokPattern.MatchString(trimmed):
		return PlatformTikTok, nil
	case instagramPattern.MatchString(trimmed):
		return PlatformInstagram, nil
	}
	return "", fmt.Errorf("unsupported platform: %s", parsed.Host)
}

// browserHeaders mimics a desktop browser for Instagram requests.
func browserHeaders() map[string]string {
	return map[string]string{
		"User-Agent":                "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:117.0) Gecko/20100101 Firefox/117.0",
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		"Accept-Language":           "en-US,en;q=0.5",
		"Connection":                "keep-alive",
		"Upgrade-Insecure-Requests": "1",
	}
}

// ytdlpArgs builds the yt-dlp invocation for a platform profile. The
// returned slice ends with the output template; the caller appends the URL.
func ytdlpArgs(cfg config.Download, platform, workDir string) []string {
	retries := strconv.Itoa(cfg.RetryAttempts)
	args := []string{
		"--quiet",
		"--no-warnings",
		"--no-playlist",
		"--socket-timeout", strconv.Itoa(cfg.Timeout),
		"--retries", retries,
		"--fragment-retries", retries,
	}

	switch platform {
	case PlatformTikTok:
		args = append(args,
			"-f", "best",
			"--extractor-args", "tiktok:webpage_download=1",
		)
	case PlatformInstagram:
		args = append(args,
			"-f", "bestvideo+bestaudio/best",
			"--extractor-args", "instagram:post_format=video",
		)
		for name, value := range browserHeaders() {
			args = append(args, "--add-headers", name+":"+value)
		}
		if cfg.Proxy != "" {
			args = append(args, "--proxy", cfg.Proxy)
		}
		if cfg.CookiesFile != "" {
			args = append(args, "--cookies", cfg.CookiesFile)
		}
	case PlatformYouTube:
		args = append(args,
			"-f", "bestvideo[height<=1080][ext=mp4]+bestaudio[ext=m4a]/best[height<=1080][ext=mp4]/best",
		)
	default:
		args = append(args,
			"-f", "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best",
		)
	}

	return append(args, "-o", filepath.Join(workDir, "input.%(ext)s"))
}
