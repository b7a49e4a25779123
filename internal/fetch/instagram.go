package fetch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"resty.dev/v3"

	"clipdub/internal/config"
	"clipdub/internal/logging"
	"clipdub/internal/services"
)

const defaultInstagramBase = "https://www.instagram.com"

var shortcodePatterns = []*regexp.Regexp{
	regexp.MustCompile(`instagram\.com/(?:p|reel|tv)/([A-Za-z0-9_-]+)`),
	regexp.MustCompile(`instagram\.com/p/([A-Za-z0-9_-]+)`),
	regexp.MustCompile(`instagram\.com/reel/([A-Za-z0-9_-]+)`),
}

// InstagramClient implements the alternate retrieval path for posts that
// yt-dlp cannot extract: shortcode lookup, post metadata fetch, then a
// direct binary download with retries.
type InstagramClient struct {
	cfg     config.Download
	logger  *slog.Logger
	client  *resty.Client
	base    string
	backoff time.Duration
}

// InstagramOption adjusts client construction.
type InstagramOption func(*InstagramClient)

// WithInstagramBase overrides the metadata endpoint base URL.
func WithInstagramBase(base string) InstagramOption {
	return func(c *InstagramClient) {
		c.base = strings.TrimRight(base, "/")
	}
}

// WithInstagramBackoff overrides the pause between binary download retries.
func WithInstagramBackoff(d time.Duration) InstagramOption {
	return func(c *InstagramClient) {
		c.backoff = d
	}
}

// NewInstagramClient builds the alternate-path client with browser
// headers, optional proxy, and an optional Netscape cookie file.
func NewInstagramClient(cfg config.Download, logger *slog.Logger, opts ...InstagramOption) *InstagramClient {
	client := resty.New()
	client.SetHeaders(browserHeaders())
	client.SetTimeout(time.Duration(cfg.Timeout) * time.Second)
	if cfg.Proxy != "" {
		client.SetProxy(cfg.Proxy)
	}

	c := &InstagramClient{
		cfg:     cfg,
		logger:  logging.NewComponentLogger(logger, "instagram"),
		client:  client,
		base:    defaultInstagramBase,
		backoff: timeoutBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}

	if cfg.CookiesFile != "" {
		cookies, err := loadNetscapeCookies(cfg.CookiesFile)
		if err != nil {
			c.logger.Warn("could not load cookies, continuing without them", logging.Error(err))
		} else {
			client.SetCookies(cookies)
		}
	}
	return c
}

// Close releases the underlying HTTP client.
func (c *InstagramClient) Close() error {
	return c.client.Close()
}

// Fetch resolves a post URL to a local video file under workDir.
func (c *InstagramClient) Fetch(ctx context.Context, rawURL, workDir string) (string, error) {
	shortcode, ok := ExtractShortcode(rawURL)
	if !ok {
		return "", services.Wrap(services.ErrValidation, stageName, "instagram", "could not extract a post shortcode from the URL", nil)
	}
	log := c.logger.With(logging.String("shortcode", shortcode))

	videoURL, err := c.resolveVideoURL(ctx, shortcode)
	if err != nil {
		return "", err
	}

	output := filepath.Join(workDir, "input.mp4")
	attempts := c.cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		log.Info("downloading post video", logging.Int("attempt", attempt), logging.Int("attempts", attempts))
		if lastErr = c.downloadBinary(ctx, videoURL, output); lastErr == nil {
			return output, nil
		}
		log.Warn("download attempt failed", logging.Error(lastErr))
		if attempt < attempts {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(c.backoff):
			}
		}
	}
	return "", services.Wrap(services.ErrTransient, stageName, "instagram",
		fmt.Sprintf("failed to download the video after %d attempts", attempts), lastErr)
}

// ExtractShortcode pulls the post identifier out of an Instagram URL.
func ExtractShortcode(rawURL string) (string, bool) {
	for _, pattern := range shortcodePatterns {
		if match := pattern.FindStringSubmatch(rawURL); match != nil {
			return match[1], true
		}
	}
	return "", false
}

// postMetadata covers the two JSON shapes the metadata endpoint returns.
type postMetadata struct {
	GraphQL struct {
		ShortcodeMedia struct {
			IsVideo  bool   `json:"is_video"`
			VideoURL string `json:"video_url"`
		} `json:"shortcode_media"`
	} `json:"graphql"`
	Items []struct {
		VideoVersions []struct {
			URL string `json:"url"`
		} `json:"video_versions"`
	} `json:"items"`
}

func (c *InstagramClient) resolveVideoURL(ctx context.Context, shortcode string) (string, error) {
	var meta postMetadata
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"__a": "1", "__d": "dis"}).
		SetResult(&meta).
		Get(fmt.Sprintf("%s/p/%s/", c.base, shortcode))
	if err != nil {
		return "", services.Wrap(services.ErrTransient, stageName, "instagram", "post metadata request failed", err)
	}
	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return "", services.Wrap(services.ErrRestricted, stageName, "instagram",
			"Instagram login required, the post may be age-restricted or private, configure a cookies file or proxy", nil)
	case http.StatusNotFound:
		return "", services.Wrap(services.ErrNotFound, stageName, "instagram", "post not found", nil)
	default:
		return "", services.Wrap(services.ErrTransient, stageName, "instagram",
			fmt.Sprintf("post metadata request returned status %d", resp.StatusCode()), nil)
	}

	if url := meta.GraphQL.ShortcodeMedia.VideoURL; url != "" {
		return url, nil
	}
	if len(meta.Items) > 0 && len(meta.Items[0].VideoVersions) > 0 {
		if url := meta.Items[0].VideoVersions[0].URL; url != "" {
			return url, nil
		}
	}
	if meta.GraphQL.ShortcodeMedia.IsVideo {
		return "", services.Wrap(services.ErrTransient, stageName, "instagram", "video URL missing from post metadata", nil)
	}
	return "", services.Wrap(services.ErrValidation, stageName, "instagram", "the post is not a video", nil)
}

func (c *InstagramClient) downloadBinary(ctx context.Context, videoURL, output string) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(videoURL)
	if err != nil {
		return fmt.Errorf("video request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("video request returned status %d", resp.StatusCode())
	}

	file, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	written, err := io.Copy(file, resp.Body)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if written == 0 {
		return fmt.Errorf("downloaded video file is empty")
	}
	return nil
}

// loadNetscapeCookies parses a cookies.txt export into cookies usable by
// the HTTP client. Expired entries are kept, matching how the export is
// normally replayed.
func loadNetscapeCookies(path string) ([]*http.Cookie, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var cookies []*http.Cookie
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 7 {
			continue
		}
		cookie := &http.Cookie{
			Domain: fields[0],
			Path:   fields[2],
			Secure: strings.EqualFold(fields[3], "TRUE"),
			Name:   fields[5],
			Value:  fields[6],
		}
		if expires, err := strconv.ParseInt(fields[4], 10, 64); err == nil && expires > 0 {
			cookie.Expires = time.Unix(expires, 0)
		}
		cookies = append(cookies, cookie)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cookies, nil
}
