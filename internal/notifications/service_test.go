package notifications

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"clipdub/internal/queue"
	"clipdub/internal/testsupport"
)

type recordedSend struct {
	kind    string
	chatID  int64
	path    string
	text    string
	caption string
}

type fakeSender struct {
	mu        sync.Mutex
	sends     []recordedSend
	failVideo bool
	gate      chan struct{}
}

func (f *fakeSender) record(send recordedSend) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, send)
}

func (f *fakeSender) recorded() []recordedSend {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedSend(nil), f.sends...)
}

func (f *fakeSender) SendMessage(ctx context.Context, chatID int64, text string) (int64, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.record(recordedSend{kind: "message", chatID: chatID, text: text})
	return 1, nil
}

func (f *fakeSender) SendVideo(ctx context.Context, chatID int64, path, caption string) error {
	if f.failVideo {
		return errors.New("upload rejected")
	}
	f.record(recordedSend{kind: "video", chatID: chatID, path: path, caption: caption})
	return nil
}

func (f *fakeSender) SendDocument(ctx context.Context, chatID int64, path, caption string) error {
	f.record(recordedSend{kind: "document", chatID: chatID, path: path, caption: caption})
	return nil
}

func completedTask() *queue.Task {
	return &queue.Task{
		ID:             9,
		ChatID:         777,
		Status:         queue.StatusCompleted,
		OutputFile:     "/work/task_9/output.mp4",
		SubtitleFile:   "/work/task_9/subtitles_ru.srt",
		ProcessingSecs: 95,
	}
}

func TestNotifyCompletedDeliversArtifacts(t *testing.T) {
	sender := &fakeSender{}
	svc := NewService(testsupport.NewConfig(t), nil, sender)
	defer svc.Close()

	if err := svc.NotifyCompleted(context.Background(), completedTask()); err != nil {
		t.Fatalf("NotifyCompleted: %v", err)
	}

	sends := sender.recorded()
	if len(sends) != 3 {
		t.Fatalf("expected message, video, and document, got %+v", sends)
	}
	if sends[0].kind != "message" || !strings.Contains(sends[0].text, "1m 35s") {
		t.Fatalf("completion message wrong: %+v", sends[0])
	}
	if sends[1].kind != "video" || sends[1].path != "/work/task_9/output.mp4" {
		t.Fatalf("video delivery wrong: %+v", sends[1])
	}
	if sends[2].kind != "document" || sends[2].path != "/work/task_9/subtitles_ru.srt" {
		t.Fatalf("subtitle delivery wrong: %+v", sends[2])
	}
}

func TestNotifyCompletedVideoFailureIsAnError(t *testing.T) {
	sender := &fakeSender{failVideo: true}
	svc := NewService(testsupport.NewConfig(t), nil, sender)
	defer svc.Close()

	err := svc.NotifyCompleted(context.Background(), completedTask())
	if err == nil || !strings.Contains(err.Error(), "upload rejected") {
		t.Fatalf("video failure must surface, got %v", err)
	}
}

func TestNotifyFailedSendsReason(t *testing.T) {
	sender := &fakeSender{}
	svc := NewService(testsupport.NewConfig(t), nil, sender)
	defer svc.Close()

	task := &queue.Task{ID: 4, ChatID: 777}
	if err := svc.NotifyFailed(context.Background(), task, "the video is larger than the 500 MB limit"); err != nil {
		t.Fatalf("NotifyFailed: %v", err)
	}

	sends := sender.recorded()
	if len(sends) != 1 || sends[0].kind != "message" {
		t.Fatalf("expected one message, got %+v", sends)
	}
	if !strings.Contains(sends[0].text, "Task #4 failed") || !strings.Contains(sends[0].text, "500 MB limit") {
		t.Fatalf("failure message wrong: %q", sends[0].text)
	}
	if !strings.Contains(sends[0].text, "retry") {
		t.Fatalf("retry suggestion missing: %q", sends[0].text)
	}
}

func TestDisabledNotificationsAreNoop(t *testing.T) {
	sender := &fakeSender{}
	cfg := testsupport.NewConfig(t)
	cfg.Notifications.Enabled = false

	svc := NewService(cfg, nil, sender)
	defer svc.Close()

	if err := svc.NotifyCompleted(context.Background(), completedTask()); err != nil {
		t.Fatalf("noop NotifyCompleted: %v", err)
	}
	if len(sender.recorded()) != 0 {
		t.Fatalf("noop service must not send: %+v", sender.recorded())
	}
}

func TestPublishProgressDeliversAsync(t *testing.T) {
	sender := &fakeSender{}
	svc := NewService(testsupport.NewConfig(t), nil, sender)

	svc.PublishProgress(777, "Downloading video...")
	svc.PublishProgress(777, "Transcribing audio...")
	svc.Close()

	sends := sender.recorded()
	if len(sends) != 2 {
		t.Fatalf("expected both updates delivered before close, got %+v", sends)
	}
	if sends[0].text != "Downloading video..." || sends[1].text != "Transcribing audio..." {
		t.Fatalf("updates out of order: %+v", sends)
	}
}

func TestPublishProgressDropsWhenBufferFull(t *testing.T) {
	gate := make(chan struct{})
	sender := &fakeSender{gate: gate}
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.StatusBufferLength = 1

	svc := NewService(cfg, nil, sender)

	// First update is picked up by the worker and blocks on the gate,
	// second fills the buffer, third must be dropped without blocking.
	svc.PublishProgress(1, "one")
	time.Sleep(20 * time.Millisecond)
	svc.PublishProgress(1, "two")

	delivered := make(chan struct{})
	go func() {
		svc.PublishProgress(1, "three")
		close(delivered)
	}()
	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("publish must never block the caller")
	}

	close(gate)
	svc.Close()
	if got := len(sender.recorded()); got != 2 {
		t.Fatalf("expected overflow update dropped, delivered %d", got)
	}
}
