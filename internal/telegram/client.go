// Package telegram implements the small slice of the Bot API the daemon
// needs: sending messages and artifacts back to the requesting chat, and
// pulling user-uploaded files into a task workspace.
package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"resty.dev/v3"

	"clipdub/internal/config"
	"clipdub/internal/logging"
	"clipdub/internal/services"
)

const defaultAPIBase = "https://api.telegram.org"

// Telegram caps bot uploads at 50 MB.
const maxUploadBytes = 50 * 1024 * 1024

// Message is the subset of the sendMessage result the daemon uses.
type Message struct {
	MessageID int64 `json:"message_id"`
}

// File describes a stored file returned by getFile.
type File struct {
	FileID   string `json:"file_id"`
	FilePath string `json:"file_path"`
	FileSize int64  `json:"file_size"`
}

// apiEnvelope is the standard Bot API response wrapper.
type apiEnvelope[T any] struct {
	OK          bool   `json:"ok"`
	Result      T      `json:"result"`
	Description string `json:"description"`
	ErrorCode   int    `json:"error_code"`
}

// Client talks to the Bot API for one bot token.
type Client struct {
	cfg    config.Telegram
	logger *slog.Logger
	client *resty.Client
	base   string
}

// NewClient builds a Bot API client from configuration.
func NewClient(cfg config.Telegram, logger *slog.Logger) *Client {
	base := strings.TrimRight(cfg.APIBaseURL, "/")
	if base == "" {
		base = defaultAPIBase
	}

	client := resty.New()
	client.SetBaseURL(base + "/bot" + cfg.BotToken)
	client.SetTimeout(time.Duration(cfg.RequestTimeout) * time.Second)

	return &Client{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "telegram"),
		client: client,
		base:   base,
	}
}

// Close releases the underlying HTTP client.
func (c *Client) Close() error {
	return c.client.Close()
}

// SendMessage delivers a plain text message and returns its identifier.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) (int64, error) {
	var envelope apiEnvelope[Message]
	resp, err := c.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"chat_id": strconv.FormatInt(chatID, 10),
			"text":    text,
		}).
		SetResult(&envelope).
		Post("/sendMessage")
	if err != nil {
		return 0, fmt.Errorf("sendMessage: %w", err)
	}
	if err := checkEnvelope(resp, envelope.OK, envelope.ErrorCode, envelope.Description); err != nil {
		return 0, fmt.Errorf("sendMessage: %w", err)
	}
	return envelope.Result.MessageID, nil
}

// SendVideo uploads a video file with an optional caption.
func (c *Client) SendVideo(ctx context.Context, chatID int64, videoPath, caption string) error {
	return c.sendUpload(ctx, "/sendVideo", "video", chatID, videoPath, caption, map[string]string{
		"supports_streaming": "true",
	})
}

// SendDocument uploads an arbitrary file, used for subtitle attachments.
func (c *Client) SendDocument(ctx context.Context, chatID int64, documentPath, caption string) error {
	return c.sendUpload(ctx, "/sendDocument", "document", chatID, documentPath, caption, nil)
}

func (c *Client) sendUpload(ctx context.Context, endpoint, field string, chatID int64, filePath, caption string, extra map[string]string) error {
	info, err := os.Stat(filePath)
	if err != nil {
		return services.Wrap(services.ErrNotFound, "telegram", "upload", fmt.Sprintf("artifact missing: %s", filepath.Base(filePath)), err)
	}
	if info.Size() > maxUploadBytes {
		return services.Wrap(services.ErrValidation, "telegram", "upload",
			fmt.Sprintf("the result is %d MB, above the 50 MB upload limit", info.Size()/(1024*1024)), nil)
	}

	form := map[string]string{
		"chat_id": strconv.FormatInt(chatID, 10),
	}
	if caption != "" {
		form["caption"] = caption
	}
	for key, value := range extra {
		form[key] = value
	}

	var envelope apiEnvelope[Message]
	resp, err := c.client.R().
		SetContext(ctx).
		SetFormData(form).
		SetFile(field, filePath).
		SetResult(&envelope).
		Post(endpoint)
	if err != nil {
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	if err := checkEnvelope(resp, envelope.OK, envelope.ErrorCode, envelope.Description); err != nil {
		return fmt.Errorf("%s: %w", endpoint, err)
	}

	c.logger.Info("uploaded artifact",
		logging.String("endpoint", endpoint),
		logging.String("path", filePath),
		logging.Int64("bytes", info.Size()))
	return nil
}

// GetFile resolves a file reference into a downloadable storage path.
func (c *Client) GetFile(ctx context.Context, fileID string) (File, error) {
	var envelope apiEnvelope[File]
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("file_id", fileID).
		SetResult(&envelope).
		Get("/getFile")
	if err != nil {
		return File{}, fmt.Errorf("getFile: %w", err)
	}
	if err := checkEnvelope(resp, envelope.OK, envelope.ErrorCode, envelope.Description); err != nil {
		return File{}, fmt.Errorf("getFile: %w", err)
	}
	if envelope.Result.FilePath == "" {
		return File{}, fmt.Errorf("getFile: response carries no file path")
	}
	return envelope.Result, nil
}

// DownloadToDir pulls a user-uploaded file into dir as input.<ext> and
// returns the local path. Satisfies the fetch stage's file source.
func (c *Client) DownloadToDir(ctx context.Context, fileID, dir string) (string, error) {
	file, err := c.GetFile(ctx, fileID)
	if err != nil {
		return "", err
	}

	ext := path.Ext(file.FilePath)
	if ext == "" {
		ext = ".mp4"
	}
	output := filepath.Join(dir, "input"+ext)

	resp, err := c.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(fmt.Sprintf("%s/file/bot%s/%s", c.base, c.cfg.BotToken, file.FilePath))
	if err != nil {
		return "", fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("download file: status %d", resp.StatusCode())
	}

	out, err := os.Create(output)
	if err != nil {
		return "", fmt.Errorf("create output: %w", err)
	}
	written, err := io.Copy(out, resp.Body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", fmt.Errorf("write output: %w", err)
	}
	if written == 0 {
		return "", fmt.Errorf("downloaded file is empty")
	}

	c.logger.Info("downloaded chat file",
		logging.String("path", output),
		logging.Int64("bytes", written))
	return output, nil
}

func checkEnvelope(resp *resty.Response, ok bool, code int, description string) error {
	if ok {
		return nil
	}
	if description == "" {
		description = http.StatusText(resp.StatusCode())
	}
	if code == 0 {
		code = resp.StatusCode()
	}
	return fmt.Errorf("api error %d: %s", code, description)
}
