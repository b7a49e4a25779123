package workflow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"clipdub/internal/compose"
	"clipdub/internal/fetch"
	"clipdub/internal/notifications"
	"clipdub/internal/queue"
	"clipdub/internal/services"
	"clipdub/internal/storage"
	"clipdub/internal/subtitles"
	"clipdub/internal/testsupport"
	"clipdub/internal/transcribe"
	"clipdub/internal/translate"
	"clipdub/internal/voice"
)

type fakeFetcher struct {
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(ctx context.Context, task *queue.Task, workDir string) (fetch.Result, error) {
	f.calls++
	if f.err != nil {
		return fetch.Result{}, f.err
	}
	return fetch.Result{Path: workDir + "/input.mp4", Platform: "youtube"}, nil
}

type fakeTranscriber struct {
	language string
	err      error
	calls    int
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, videoPath, workDir, sourceLang string) (transcribe.Result, error) {
	f.calls++
	if f.err != nil {
		return transcribe.Result{}, f.err
	}
	return transcribe.Result{
		SubtitlePath: workDir + "/subtitles.srt",
		Language:     f.language,
		Segments:     []subtitles.Segment{{Index: 1, Text: "hello"}},
	}, nil
}

type fakeTranslator struct {
	translated bool
	target     string
	calls      int
	lastSource string
}

func (f *fakeTranslator) TranslateSubtitles(ctx context.Context, srtPath, workDir, targetLang, sourceLang string) translate.Result {
	f.calls++
	f.lastSource = sourceLang
	if !f.translated {
		return translate.Result{Path: srtPath, SourceLanguage: sourceLang}
	}
	return translate.Result{
		Path:           workDir + "/subtitles_" + f.target + ".srt",
		SourceLanguage: sourceLang,
		TargetLanguage: f.target,
		Translated:     true,
	}
}

type fakeVoices struct {
	available bool
	calls     int
	lastLang  string
}

func (f *fakeVoices) Generate(ctx context.Context, srtPath, workDir, language, gender string) voice.Result {
	f.calls++
	f.lastLang = language
	if !f.available {
		return voice.Result{Skipped: 2}
	}
	return voice.Result{Path: workDir + "/voiceover.wav", Mode: voice.ModeSynchronized, Available: true}
}

type fakeCompositor struct {
	err    error
	calls  int
	params compose.Params
}

func (f *fakeCompositor) Compose(ctx context.Context, params compose.Params, workDir string) (string, error) {
	f.calls++
	f.params = params
	if f.err != nil {
		return "", f.err
	}
	return workDir + "/output.mp4", nil
}

type captureNotifier struct {
	mu        sync.Mutex
	progress  []string
	completed []int64
	failures  []string
}

func (n *captureNotifier) NotifyCompleted(ctx context.Context, task *queue.Task) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, task.ID)
	return nil
}

func (n *captureNotifier) NotifyFailed(ctx context.Context, task *queue.Task, reason string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures = append(n.failures, reason)
	return nil
}

func (n *captureNotifier) PublishProgress(chatID int64, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.progress = append(n.progress, text)
}

func (n *captureNotifier) Close() {}

var _ notifications.Service = (*captureNotifier)(nil)

type pipelineFixture struct {
	store       *queue.Store
	pipeline    *Pipeline
	notifier    *captureNotifier
	fetcher     *fakeFetcher
	transcriber *fakeTranscriber
	translator  *fakeTranslator
	voices      *fakeVoices
	compositor  *fakeCompositor
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Compose.WatermarkText = "clipdub"
	store := testsupport.MustOpenStore(t, cfg)

	fx := &pipelineFixture{
		store:       store,
		notifier:    &captureNotifier{},
		fetcher:     &fakeFetcher{},
		transcriber: &fakeTranscriber{language: "es"},
		translator:  &fakeTranslator{translated: true, target: "ru"},
		voices:      &fakeVoices{available: true},
		compositor:  &fakeCompositor{},
	}
	fx.pipeline = NewPipeline(cfg, nil, store, fx.notifier,
		storage.NewWorkspaces(cfg, nil),
		fx.fetcher, fx.transcriber, fx.translator, fx.voices, fx.compositor)
	return fx
}

func submitTask(t *testing.T, store *queue.Store, options queue.Options) *queue.Task {
	t.Helper()
	_, err := store.NewTask(context.Background(), queue.NewTaskParams{
		ChatID:    777,
		InputKind: queue.InputURL,
		InputURL:  "https://youtube.com/watch?v=abc",
		Options:   options,
	})
	if err != nil {
		t.Fatalf("NewTask: %v", err)
	}
	claimed, err := store.Claim(context.Background(), "worker-test")
	if err != nil || claimed == nil {
		t.Fatalf("Claim: task=%v err=%v", claimed, err)
	}
	return claimed
}

func TestProcessFullPipeline(t *testing.T) {
	fx := newPipelineFixture(t)
	task := submitTask(t, fx.store, queue.Options{
		GenerateSubtitles: true,
		Translate:         true,
		Voiceover:         true,
		Vertical:          true,
		Watermark:         true,
		TargetLanguage:    "ru",
		VoiceGender:       "female",
	})

	if err := fx.pipeline.Process(context.Background(), task); err != nil {
		t.Fatalf("Process: %v", err)
	}

	stored, _ := fx.store.GetByID(context.Background(), task.ID)
	if stored.Status != queue.StatusCompleted {
		t.Fatalf("task not completed: %s (%s)", stored.Status, stored.ErrorMessage)
	}
	if stored.OutputFile == "" || stored.VoiceoverFile == "" || stored.SubtitleFile == "" {
		t.Fatalf("artifacts missing: %+v", stored)
	}
	if stored.DetectedLanguage != "es" || stored.Platform != "youtube" {
		t.Fatalf("detection results missing: %+v", stored)
	}
	if !strings.Contains(stored.SubtitleFile, "subtitles_ru.srt") {
		t.Fatalf("translated captions not recorded: %q", stored.SubtitleFile)
	}

	if fx.translator.lastSource != "es" {
		t.Fatalf("translation must start from the detected language, got %q", fx.translator.lastSource)
	}
	if fx.voices.lastLang != "ru" {
		t.Fatalf("voiceover must speak the translated language, got %q", fx.voices.lastLang)
	}
	params := fx.compositor.params
	if !params.Vertical || params.Watermark != "clipdub" || params.TargetLang != "ru" {
		t.Fatalf("compose parameters wrong: %+v", params)
	}
	if params.VoiceoverPath == "" || params.SubtitlePath == "" {
		t.Fatalf("compose must receive both artifacts: %+v", params)
	}

	if len(fx.notifier.completed) != 1 {
		t.Fatalf("completion notification missing: %+v", fx.notifier.completed)
	}
	wantProgress := []string{
		"Downloading video...",
		"Transcribing audio...",
		"Translating subtitles...",
		"Generating voiceover...",
		"Rendering final video...",
	}
	if len(fx.notifier.progress) != len(wantProgress) {
		t.Fatalf("progress updates wrong: %+v", fx.notifier.progress)
	}
	for i, want := range wantProgress {
		if fx.notifier.progress[i] != want {
			t.Fatalf("progress[%d] = %q, want %q", i, fx.notifier.progress[i], want)
		}
	}
}

func TestProcessSubtitlesOnlySkipsOptionalStages(t *testing.T) {
	fx := newPipelineFixture(t)
	task := submitTask(t, fx.store, queue.Options{GenerateSubtitles: true})

	if err := fx.pipeline.Process(context.Background(), task); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if fx.translator.calls != 0 || fx.voices.calls != 0 {
		t.Fatalf("optional stages must not run: translate=%d voice=%d", fx.translator.calls, fx.voices.calls)
	}
	stored, _ := fx.store.GetByID(context.Background(), task.ID)
	if stored.Status != queue.StatusCompleted || stored.VoiceoverFile != "" {
		t.Fatalf("unexpected result: %+v", stored)
	}
	if fx.compositor.params.SubtitlePath == "" {
		t.Fatal("captions must still burn into the output")
	}
}

func TestProcessBareDownloadRunsOnlyFetchAndCompose(t *testing.T) {
	fx := newPipelineFixture(t)
	task := submitTask(t, fx.store, queue.Options{})

	if err := fx.pipeline.Process(context.Background(), task); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if fx.transcriber.calls != 0 || fx.translator.calls != 0 || fx.voices.calls != 0 {
		t.Fatal("subtitle stages must not run without the option")
	}
	if fx.fetcher.calls != 1 || fx.compositor.calls != 1 {
		t.Fatalf("fetch and compose always run: fetch=%d compose=%d", fx.fetcher.calls, fx.compositor.calls)
	}
}

func TestProcessFetchFailureStopsPipeline(t *testing.T) {
	fx := newPipelineFixture(t)
	fx.fetcher.err = services.Wrap(services.ErrRestricted, "fetch", "download",
		"the video is unavailable for anonymous viewing", nil)
	task := submitTask(t, fx.store, queue.Options{GenerateSubtitles: true})

	err := fx.pipeline.Process(context.Background(), task)
	if !errors.Is(err, services.ErrRestricted) {
		t.Fatalf("fetch error must propagate, got %v", err)
	}

	stored, _ := fx.store.GetByID(context.Background(), task.ID)
	if stored.Status != queue.StatusFailed {
		t.Fatalf("task must fail: %s", stored.Status)
	}
	if !strings.Contains(stored.ErrorMessage, "anonymous viewing") {
		t.Fatalf("user-facing reason missing: %q", stored.ErrorMessage)
	}
	if fx.transcriber.calls != 0 || fx.compositor.calls != 0 {
		t.Fatal("later stages must not run after a failure")
	}
	if len(fx.notifier.failures) != 1 || len(fx.notifier.completed) != 0 {
		t.Fatalf("failure notification wrong: %+v", fx.notifier)
	}
}

func TestProcessVoiceoverDegradesGracefully(t *testing.T) {
	fx := newPipelineFixture(t)
	fx.voices.available = false
	task := submitTask(t, fx.store, queue.Options{
		GenerateSubtitles: true,
		Voiceover:         true,
	})

	if err := fx.pipeline.Process(context.Background(), task); err != nil {
		t.Fatalf("Process: %v", err)
	}

	stored, _ := fx.store.GetByID(context.Background(), task.ID)
	if stored.Status != queue.StatusCompleted {
		t.Fatalf("degraded voiceover must still complete: %s", stored.Status)
	}
	if stored.VoiceoverFile != "" || fx.compositor.params.VoiceoverPath != "" {
		t.Fatal("missing voiceover must not reach the mix")
	}
}

func TestProcessComposeFailureLeavesNoOutput(t *testing.T) {
	fx := newPipelineFixture(t)
	fx.compositor.err = services.Wrap(services.ErrExternalTool, "compose", "render",
		"ffmpeg exited with status 1", nil)
	task := submitTask(t, fx.store, queue.Options{GenerateSubtitles: true})

	err := fx.pipeline.Process(context.Background(), task)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("compose error must propagate, got %v", err)
	}

	stored, _ := fx.store.GetByID(context.Background(), task.ID)
	if stored.Status != queue.StatusFailed {
		t.Fatalf("task must fail: %s", stored.Status)
	}
	if stored.OutputFile != "" {
		t.Fatalf("failed render must not record an output artifact: %q", stored.OutputFile)
	}
	if !strings.Contains(stored.ErrorMessage, "ffmpeg exited with status 1") {
		t.Fatalf("stored reason must carry the tool failure: %q", stored.ErrorMessage)
	}
	if len(fx.notifier.failures) != 1 {
		t.Fatalf("failure notification missing: %+v", fx.notifier.failures)
	}
}

func TestStageHealthReportsAllStages(t *testing.T) {
	fx := newPipelineFixture(t)
	checks := fx.pipeline.StageHealth(context.Background())
	if len(checks) != 5 {
		t.Fatalf("expected five stage checks, got %d", len(checks))
	}
}
