package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"clipdub/internal/config"
	"clipdub/internal/services"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(config.Telegram{
		BotToken:       "123:test",
		APIBaseURL:     server.URL,
		RequestTimeout: 5,
	}, nil)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestSendMessage(t *testing.T) {
	var gotChatID, gotText string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bot123:test/sendMessage" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		gotChatID = r.PostFormValue("chat_id")
		gotText = r.PostFormValue("text")
		fmt.Fprint(w, `{"ok":true,"result":{"message_id":42}}`)
	}))

	id, err := client.SendMessage(context.Background(), 777, "task finished")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if id != 42 {
		t.Fatalf("unexpected message id %d", id)
	}
	if gotChatID != "777" || gotText != "task finished" {
		t.Fatalf("unexpected form values chat_id=%q text=%q", gotChatID, gotText)
	}
}

func TestSendMessageSurfacesAPIError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)
	}))

	_, err := client.SendMessage(context.Background(), 1, "hi")
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("expected API error description, got %v", err)
	}
}

func TestSendVideoUploadsMultipart(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "output.mp4")
	if err := os.WriteFile(video, []byte("encoded video"), 0o644); err != nil {
		t.Fatalf("write video: %v", err)
	}

	var caption, streaming string
	var payload []byte
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bot123:test/sendVideo" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		caption = r.FormValue("caption")
		streaming = r.FormValue("supports_streaming")
		file, _, err := r.FormFile("video")
		if err != nil {
			t.Fatalf("video part missing: %v", err)
		}
		defer file.Close()
		buf := make([]byte, 64)
		n, _ := file.Read(buf)
		payload = buf[:n]
		fmt.Fprint(w, `{"ok":true,"result":{"message_id":7}}`)
	}))

	if err := client.SendVideo(context.Background(), 777, video, "done"); err != nil {
		t.Fatalf("SendVideo: %v", err)
	}
	if caption != "done" || streaming != "true" {
		t.Fatalf("unexpected form caption=%q supports_streaming=%q", caption, streaming)
	}
	if string(payload) != "encoded video" {
		t.Fatalf("unexpected upload payload %q", payload)
	}
}

func TestSendVideoRejectsOversizedFile(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "output.mp4")
	file, err := os.Create(video)
	if err != nil {
		t.Fatalf("create video: %v", err)
	}
	if err := file.Truncate(maxUploadBytes + 1); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	_ = file.Close()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("oversized upload must not reach the API")
	}))

	err = client.SendVideo(context.Background(), 777, video, "")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if !services.IsUserFacing(err) {
		t.Fatalf("size limit message should be user facing: %v", err)
	}
}

func TestDownloadToDir(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bot123:test/getFile":
			if got := r.URL.Query().Get("file_id"); got != "abc123" {
				t.Fatalf("unexpected file_id %q", got)
			}
			fmt.Fprint(w, `{"ok":true,"result":{"file_id":"abc123","file_path":"videos/file_9.mp4","file_size":11}}`)
		case "/file/bot123:test/videos/file_9.mp4":
			fmt.Fprint(w, "video bytes")
		default:
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
	}))

	dir := t.TempDir()
	path, err := client.DownloadToDir(context.Background(), "abc123", dir)
	if err != nil {
		t.Fatalf("DownloadToDir: %v", err)
	}
	if filepath.Base(path) != "input.mp4" {
		t.Fatalf("unexpected output name %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "video bytes" {
		t.Fatalf("unexpected content %q", data)
	}
}

func TestDownloadToDirFailsOnEmptyBody(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bot123:test/getFile" {
			fmt.Fprint(w, `{"ok":true,"result":{"file_id":"abc","file_path":"videos/empty.mp4"}}`)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	_, err := client.DownloadToDir(context.Background(), "abc", t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "empty") {
		t.Fatalf("empty download must fail, got %v", err)
	}
}
