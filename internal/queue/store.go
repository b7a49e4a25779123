package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"clipdub/internal/config"
)

// timeLayout is RFC 3339 with fixed-width nanoseconds. Timestamps are
// stored as TEXT and compared with SQL string operators, so the fraction
// must never vary in width or chronological order breaks at second
// boundaries.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// Store manages task persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the queue database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.QueueDatabasePath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// NewTaskParams describes a task submission.
type NewTaskParams struct {
	ChatID           int64
	RequestMessageID int64
	Priority         int
	InputKind        InputKind
	InputURL         string
	InputFileID      string
	Options          Options
}

// NewTask inserts a new task awaiting processing.
func (s *Store) NewTask(ctx context.Context, params NewTaskParams) (*Task, error) {
	switch params.InputKind {
	case InputURL:
		if params.InputURL == "" {
			return nil, errors.New("url input requires a url")
		}
	case InputTelegramFile:
		if params.InputFileID == "" {
			return nil, errors.New("file input requires a file id")
		}
	default:
		return nil, fmt.Errorf("unknown input kind %q", params.InputKind)
	}

	optionsJSON, err := json.Marshal(params.Options)
	if err != nil {
		return nil, fmt.Errorf("marshal options: %w", err)
	}

	timestamp := formatTime(time.Now())
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO tasks (
            chat_id, request_message_id, priority, input_kind, input_url,
            input_file_id, options_json, status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		params.ChatID,
		params.RequestMessageID,
		params.Priority,
		params.InputKind,
		nullableString(params.InputURL),
		nullableString(params.InputFileID),
		string(optionsJSON),
		StatusCreated,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a task by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// Update persists changes to an existing task.
func (s *Store) Update(ctx context.Context, task *Task) error {
	if task == nil {
		return errors.New("task is nil")
	}
	optionsJSON, err := json.Marshal(task.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}
	task.UpdatedAt = time.Now().UTC()
	_, err = s.db.ExecContext(
		ctx,
		`UPDATE tasks
         SET chat_id = ?, request_message_id = ?, priority = ?, input_kind = ?,
             input_url = ?, input_file_id = ?, options_json = ?, platform = ?,
             detected_language = ?, input_file = ?, subtitle_file = ?,
             voiceover_file = ?, output_file = ?, status = ?, error_message = ?,
             progress_stage = ?, progress_message = ?, worker_id = ?,
             processing_seconds = ?, updated_at = ?, started_at = ?,
             completed_at = ?, last_heartbeat = ?
         WHERE id = ?`,
		task.ChatID,
		task.RequestMessageID,
		task.Priority,
		task.InputKind,
		nullableString(task.InputURL),
		nullableString(task.InputFileID),
		string(optionsJSON),
		nullableString(task.Platform),
		nullableString(task.DetectedLanguage),
		nullableString(task.InputFile),
		nullableString(task.SubtitleFile),
		nullableString(task.VoiceoverFile),
		nullableString(task.OutputFile),
		task.Status,
		nullableString(task.ErrorMessage),
		nullableString(task.ProgressStage),
		nullableString(task.ProgressMessage),
		nullableString(task.WorkerID),
		task.ProcessingSecs,
		formatTime(task.UpdatedAt),
		nullableTime(task.StartedAt),
		nullableTime(task.CompletedAt),
		nullableTime(task.LastHeartbeat),
		task.ID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// List returns tasks filtered by status set (or all tasks when no status is
// provided), newest last.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Task, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + taskColumns + ` FROM tasks`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

// TasksByChat returns all tasks submitted by a chat, newest last.
func (s *Store) TasksByChat(ctx context.Context, chatID int64) ([]*Task, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE chat_id = ? ORDER BY created_at`,
		chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks by chat: %w", err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

// Claim atomically assigns the oldest waiting task to a worker. Returns nil
// when no task is available. Priority wins over age; equal priorities are
// served oldest first.
func (s *Store) Claim(ctx context.Context, workerID string) (*Task, error) {
	for {
		row := s.db.QueryRowContext(
			ctx,
			`SELECT id FROM tasks WHERE status = ? ORDER BY priority DESC, created_at ASC LIMIT 1`,
			StatusCreated,
		)
		var id int64
		if err := row.Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil
			}
			return nil, fmt.Errorf("select claimable task: %w", err)
		}

		now := formatTime(time.Now())
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE tasks
             SET status = ?, worker_id = ?, started_at = ?, last_heartbeat = ?, updated_at = ?
             WHERE id = ? AND status = ?`,
			StatusProcessing,
			workerID,
			now,
			now,
			now,
			id,
			StatusCreated,
		)
		if err != nil {
			return nil, fmt.Errorf("claim task: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("claim rows affected: %w", err)
		}
		if affected == 0 {
			// Another worker won the race; try the next candidate.
			continue
		}
		return s.GetByID(ctx, id)
	}
}

// UpdateHeartbeat refreshes the last heartbeat timestamp for an in-flight task.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := formatTime(time.Now())
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE tasks SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now,
		now,
		id,
	)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStale returns processing tasks whose heartbeats expired back to the
// waiting state so another worker can pick them up.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	now := formatTime(time.Now())
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE tasks
        SET status = ?, worker_id = NULL, started_at = NULL, last_heartbeat = NULL,
            progress_stage = 'requeued', progress_message = 'Reclaimed after worker stall',
            updated_at = ?
        WHERE status = ? AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		StatusCreated,
		now,
		StatusProcessing,
		formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale tasks: %w", err)
	}
	return res.RowsAffected()
}

// Cancel marks a waiting task as cancelled. Tasks already claimed by a
// worker cannot be cancelled.
func (s *Store) Cancel(ctx context.Context, id int64) (bool, error) {
	now := formatTime(time.Now())
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE tasks
        SET status = ?, error_message = ?, completed_at = ?, updated_at = ?
        WHERE id = ? AND status = ?`,
		StatusCancelled,
		CancelledByUserReason,
		now,
		now,
		id,
		StatusCreated,
	)
	if err != nil {
		return false, fmt.Errorf("cancel task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("cancel rows affected: %w", err)
	}
	return affected > 0, nil
}

// RetryFailed moves failed tasks back to waiting for reprocessing. With no
// ids every failed task is retried.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	now := formatTime(time.Now())
	if len(ids) == 0 {
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE tasks
            SET status = ?, progress_stage = 'retry', progress_message = NULL,
                error_message = NULL, worker_id = NULL, started_at = NULL,
                completed_at = NULL, updated_at = ?
            WHERE status = ?`,
			StatusCreated,
			now,
			StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed tasks: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+2)
	args = append(args, StatusCreated, now)
	for _, id := range ids {
		args = append(args, id)
	}
	query := `UPDATE tasks
        SET status = ?, progress_stage = 'retry', progress_message = NULL,
            error_message = NULL, worker_id = NULL, started_at = NULL,
            completed_at = NULL, updated_at = ?
        WHERE id IN (` + placeholders + `) AND status = '` + string(StatusFailed) + `'`
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected tasks: %w", err)
	}
	return res.RowsAffected()
}

// RequeueProcessing returns every in-flight task to the waiting state. Used
// on daemon shutdown so work resumes cleanly after restart.
func (s *Store) RequeueProcessing(ctx context.Context) (int64, error) {
	now := formatTime(time.Now())
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE tasks
        SET status = ?, worker_id = NULL, started_at = NULL, last_heartbeat = NULL,
            progress_stage = 'requeued', progress_message = ?, updated_at = ?
        WHERE status = ?`,
		StatusCreated,
		DaemonStopReason,
		now,
		StatusProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("requeue processing tasks: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of tasks grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates queue state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusCreated:
			health.Created += count
		case StatusProcessing:
			health.Processing += count
		case StatusCompleted:
			health.Completed += count
		case StatusFailed:
			health.Failed += count
		case StatusCancelled:
			health.Cancelled += count
		}
	}
	return health, nil
}

// FinishedBefore returns terminal tasks whose completion predates the cutoff.
func (s *Store) FinishedBefore(ctx context.Context, cutoff time.Time) ([]*Task, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+taskColumns+` FROM tasks
         WHERE status IN (?, ?, ?) AND completed_at IS NOT NULL AND completed_at < ?
         ORDER BY completed_at`,
		StatusCompleted,
		StatusFailed,
		StatusCancelled,
		formatTime(cutoff),
	)
	if err != nil {
		return nil, fmt.Errorf("list finished tasks: %w", err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

// Remove deletes a task by identifier.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearCompleted removes only completed tasks from the queue.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes all tasks from the queue.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks`)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}

const taskColumns = "id, chat_id, request_message_id, priority, input_kind, input_url, input_file_id, options_json, platform, detected_language, input_file, subtitle_file, voiceover_file, output_file, status, error_message, progress_stage, progress_message, worker_id, processing_seconds, created_at, updated_at, started_at, completed_at, last_heartbeat"

func collectTasks(rows *sql.Rows) ([]*Task, error) {
	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func scanTask(scanner interface{ Scan(dest ...any) error }) (*Task, error) {
	var (
		id               int64
		chatID           int64
		requestMessageID int64
		priority         int
		inputKind        string
		inputURL         sql.NullString
		inputFileID      sql.NullString
		optionsJSON      sql.NullString
		platform         sql.NullString
		detectedLanguage sql.NullString
		inputFile        sql.NullString
		subtitleFile     sql.NullString
		voiceoverFile    sql.NullString
		outputFile       sql.NullString
		statusStr        string
		errorMessage     sql.NullString
		progressStage    sql.NullString
		progressMessage  sql.NullString
		workerID         sql.NullString
		processingSecs   sql.NullFloat64
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
		startedRaw       sql.NullString
		completedRaw     sql.NullString
		heartbeatRaw     sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&chatID,
		&requestMessageID,
		&priority,
		&inputKind,
		&inputURL,
		&inputFileID,
		&optionsJSON,
		&platform,
		&detectedLanguage,
		&inputFile,
		&subtitleFile,
		&voiceoverFile,
		&outputFile,
		&statusStr,
		&errorMessage,
		&progressStage,
		&progressMessage,
		&workerID,
		&processingSecs,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&completedRaw,
		&heartbeatRaw,
	); err != nil {
		return nil, err
	}

	task := &Task{
		ID:               id,
		ChatID:           chatID,
		RequestMessageID: requestMessageID,
		Priority:         priority,
		InputKind:        InputKind(inputKind),
		InputURL:         inputURL.String,
		InputFileID:      inputFileID.String,
		Platform:         platform.String,
		DetectedLanguage: detectedLanguage.String,
		InputFile:        inputFile.String,
		SubtitleFile:     subtitleFile.String,
		VoiceoverFile:    voiceoverFile.String,
		OutputFile:       outputFile.String,
		Status:           Status(statusStr),
		ErrorMessage:     errorMessage.String,
		ProgressStage:    progressStage.String,
		ProgressMessage:  progressMessage.String,
		WorkerID:         workerID.String,
		ProcessingSecs:   processingSecs.Float64,
	}

	if optionsJSON.Valid && optionsJSON.String != "" {
		if err := json.Unmarshal([]byte(optionsJSON.String), &task.Options); err != nil {
			return nil, fmt.Errorf("decode options for task %d: %w", id, err)
		}
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		task.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		task.UpdatedAt = updated
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			task.StartedAt = &started
		}
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			task.CompletedAt = &completed
		}
	}
	if heartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(heartbeatRaw.String); err == nil {
			task.LastHeartbeat = &heartbeat
		}
	}
	return task, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatTime(*value)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
