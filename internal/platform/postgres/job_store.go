package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lumenlearn/lumen-api/internal/platform/logger"
	"github.com/lumenlearn/lumen-api/internal/queue"
	"github.com/lumenlearn/lumen-api/internal/store"
)

// jobColumns is the canonical column list for scanning job rows.
const jobColumns = `id, idempotency_key, queue_name, type, payload, priority,
	attempts_made, max_attempts, backoff, state, progress, result,
	last_error, run_at, created_at, processed_at, finished_at, heartbeat_at`

// liveStates are the non-terminal job states. The idempotency key unique
// index is partial over these, so a key is freed as soon as its job
// reaches a terminal state.
const liveStates = `'waiting', 'active', 'delayed'`

// statsWindow bounds the "recent" window for completion rate and average
// processing time.
const statsWindow = time.Hour

// PostgresJobStore implements the queue.Store contract using a PostgreSQL
// database as the storage backend. Claiming relies on FOR UPDATE SKIP
// LOCKED so concurrent workers never receive the same job.
type PostgresJobStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresJobStore creates a new PostgreSQL implementation of the job
// engine's persistence contract. It accepts a database connection or
// transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresJobStore(db store.DBTX, logger *slog.Logger) *PostgresJobStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresJobStore{
		db:     db,
		logger: logger.With(slog.String("component", "job_store")),
	}
}

// Ensure PostgresJobStore implements the queue.Store contract
var _ queue.Store = (*PostgresJobStore)(nil)

// rowScanner abstracts *sql.Row and *sql.Rows for the shared scan helper.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanJob maps one database row onto a queue.Job.
func scanJob(row rowScanner) (*queue.Job, error) {
	var (
		job            queue.Job
		idempotencyKey sql.NullString
		backoffRaw     []byte
		result         []byte
		lastError      sql.NullString
		processedAt    sql.NullTime
		finishedAt     sql.NullTime
		heartbeatAt    sql.NullTime
	)

	err := row.Scan(
		&job.ID,
		&idempotencyKey,
		&job.QueueName,
		&job.Type,
		&job.Payload,
		&job.Priority,
		&job.AttemptsMade,
		&job.MaxAttempts,
		&backoffRaw,
		&job.State,
		&job.Progress,
		&result,
		&lastError,
		&job.RunAt,
		&job.CreatedAt,
		&processedAt,
		&finishedAt,
		&heartbeatAt,
	)
	if err != nil {
		return nil, err
	}

	job.IdempotencyKey = idempotencyKey.String
	job.LastError = lastError.String
	if result != nil {
		job.Result = json.RawMessage(result)
	}
	if len(backoffRaw) > 0 {
		if err := json.Unmarshal(backoffRaw, &job.Backoff); err != nil {
			return nil, fmt.Errorf("failed to decode backoff policy: %w", err)
		}
	}
	if processedAt.Valid {
		t := processedAt.Time
		job.ProcessedAt = &t
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		job.FinishedAt = &t
	}
	if heartbeatAt.Valid {
		t := heartbeatAt.Time
		job.HeartbeatAt = &t
	}
	return &job, nil
}

// nullString maps an empty string to SQL NULL so the partial unique index
// on idempotency_key ignores jobs enqueued without a key.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Enqueue persists a new job, deduplicating on the idempotency key against
// non-terminal jobs.
func (s *PostgresJobStore) Enqueue(ctx context.Context, job *queue.Job) (*queue.Job, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	backoffRaw, err := json.Marshal(job.Backoff)
	if err != nil {
		return nil, fmt.Errorf("failed to encode backoff policy: %w", err)
	}

	query := `
		INSERT INTO jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (idempotency_key)
			WHERE idempotency_key IS NOT NULL AND state IN (` + liveStates + `)
			DO NOTHING
	`

	result, err := s.db.ExecContext(
		ctx,
		query,
		job.ID,
		nullString(job.IdempotencyKey),
		job.QueueName,
		job.Type,
		[]byte(job.Payload),
		job.Priority,
		job.AttemptsMade,
		job.MaxAttempts,
		backoffRaw,
		job.State,
		job.Progress,
		nil,
		nullString(job.LastError),
		job.RunAt,
		job.CreatedAt,
		nil,
		nil,
		nil,
	)
	if err != nil {
		log.Error("failed to enqueue job",
			slog.String("error", err.Error()),
			slog.String("job_id", job.ID.String()),
			slog.String("queue", job.QueueName))
		return nil, MapError(err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if inserted > 0 {
		return s.GetJob(ctx, job.ID)
	}

	// The key is already held by a live job; hand that job back instead.
	existingQuery := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE idempotency_key = $1 AND state IN (` + liveStates + `)
		LIMIT 1
	`
	existing, err := scanJob(s.db.QueryRowContext(ctx, existingQuery, job.IdempotencyKey))
	if err != nil {
		log.Error("failed to load deduplicated job",
			slog.String("error", err.Error()),
			slog.String("idempotency_key", job.IdempotencyKey))
		return nil, MapError(err)
	}

	log.Debug("enqueue deduplicated by idempotency key",
		slog.String("idempotency_key", job.IdempotencyKey),
		slog.String("existing_job_id", existing.ID.String()))
	return existing, nil
}

// DequeueNext atomically claims the best ready job in the queue. SKIP
// LOCKED lets concurrent workers pass over rows another transaction is
// claiming instead of blocking on them.
func (s *PostgresJobStore) DequeueNext(ctx context.Context, queueName string) (*queue.Job, error) {
	paused, err := s.isPaused(ctx, queueName)
	if err != nil {
		return nil, err
	}
	if paused {
		return nil, nil
	}

	query := `
		WITH candidate AS (
			SELECT id
			FROM jobs
			WHERE queue_name = $1
			  AND state IN ('waiting', 'delayed')
			  AND run_at <= now()
			ORDER BY priority ASC, created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE jobs
		SET state = 'active',
		    heartbeat_at = now(),
		    processed_at = COALESCE(jobs.processed_at, now())
		FROM candidate
		WHERE jobs.id = candidate.id
		RETURNING ` + qualifyColumns("jobs") + `
	`

	job, err := scanJob(s.db.QueryRowContext(ctx, query, queueName))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, MapError(err)
	}
	return job, nil
}

// qualifyColumns prefixes the job column list with a table alias for
// queries where the column names would otherwise be ambiguous.
func qualifyColumns(table string) string {
	return table + ".id, " + table + ".idempotency_key, " + table + ".queue_name, " +
		table + ".type, " + table + ".payload, " + table + ".priority, " +
		table + ".attempts_made, " + table + ".max_attempts, " + table + ".backoff, " +
		table + ".state, " + table + ".progress, " + table + ".result, " +
		table + ".last_error, " + table + ".run_at, " + table + ".created_at, " +
		table + ".processed_at, " + table + ".finished_at, " + table + ".heartbeat_at"
}

// MarkCompleted transitions a job to completed. A no-op on terminal jobs.
func (s *PostgresJobStore) MarkCompleted(ctx context.Context, jobID uuid.UUID, result json.RawMessage) error {
	query := `
		UPDATE jobs
		SET state = 'completed',
		    progress = 100,
		    result = $2,
		    last_error = NULL,
		    finished_at = now(),
		    heartbeat_at = NULL
		WHERE id = $1 AND state IN (` + liveStates + `)
	`

	res, err := s.db.ExecContext(ctx, query, jobID, []byte(result))
	if err != nil {
		return MapError(err)
	}
	return s.absorbTerminal(ctx, jobID, res)
}

// MarkFailed transitions a job to terminal failure, consuming the attempt
// that just happened. A no-op on terminal jobs.
func (s *PostgresJobStore) MarkFailed(ctx context.Context, jobID uuid.UUID, errMsg string) error {
	query := `
		UPDATE jobs
		SET attempts_made = CASE
		        WHEN state = 'active' AND attempts_made < max_attempts THEN attempts_made + 1
		        ELSE attempts_made
		    END,
		    state = 'failed',
		    last_error = $2,
		    finished_at = now(),
		    heartbeat_at = NULL
		WHERE id = $1 AND state IN (` + liveStates + `)
	`

	res, err := s.db.ExecContext(ctx, query, jobID, errMsg)
	if err != nil {
		return MapError(err)
	}
	return s.absorbTerminal(ctx, jobID, res)
}

// absorbTerminal resolves an update that matched no rows: missing jobs are
// an error, already-terminal jobs are absorbed as a no-op.
func (s *PostgresJobStore) absorbTerminal(ctx context.Context, jobID uuid.UUID, res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	if _, err := s.GetJob(ctx, jobID); err != nil {
		return err
	}
	return nil
}

// ScheduleRetry consumes one attempt and reschedules the job: waiting if
// nextRunAt has already passed, delayed otherwise.
func (s *PostgresJobStore) ScheduleRetry(ctx context.Context, jobID uuid.UUID, errMsg string, nextRunAt time.Time) error {
	query := `
		UPDATE jobs
		SET attempts_made = attempts_made + 1,
		    last_error = $2,
		    run_at = $3,
		    heartbeat_at = NULL,
		    state = CASE WHEN $3 > now() THEN 'delayed' ELSE 'waiting' END
		WHERE id = $1 AND state IN (` + liveStates + `)
	`

	res, err := s.db.ExecContext(ctx, query, jobID, errMsg, nextRunAt)
	if err != nil {
		return MapError(err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		if _, err := s.GetJob(ctx, jobID); err != nil {
			return err
		}
		return queue.ErrJobTerminal
	}
	return nil
}

// ReportProgress records handler progress on an active job.
func (s *PostgresJobStore) ReportProgress(ctx context.Context, jobID uuid.UUID, pct int) error {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	query := `UPDATE jobs SET progress = $2 WHERE id = $1 AND state = 'active'`

	res, err := s.db.ExecContext(ctx, query, jobID, pct)
	if err != nil {
		return MapError(err)
	}
	return s.absorbTerminal(ctx, jobID, res)
}

// Heartbeat refreshes the lease on an active job.
func (s *PostgresJobStore) Heartbeat(ctx context.Context, jobID uuid.UUID) error {
	query := `UPDATE jobs SET heartbeat_at = now() WHERE id = $1 AND state = 'active'`

	res, err := s.db.ExecContext(ctx, query, jobID)
	if err != nil {
		return MapError(err)
	}
	return s.absorbTerminal(ctx, jobID, res)
}

// GetJob retrieves a job by id.
func (s *PostgresJobStore) GetJob(ctx context.Context, jobID uuid.UUID) (*queue.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

	job, err := scanJob(s.db.QueryRowContext(ctx, query, jobID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, queue.ErrJobNotFound
		}
		return nil, MapError(err)
	}
	return job, nil
}

// Cancel transitions a non-terminal job to cancelled.
func (s *PostgresJobStore) Cancel(ctx context.Context, jobID uuid.UUID) error {
	query := `
		UPDATE jobs
		SET state = 'cancelled',
		    finished_at = now(),
		    heartbeat_at = NULL
		WHERE id = $1 AND state IN (` + liveStates + `)
	`

	res, err := s.db.ExecContext(ctx, query, jobID)
	if err != nil {
		return MapError(err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		if _, err := s.GetJob(ctx, jobID); err != nil {
			return err
		}
		return queue.ErrJobTerminal
	}
	return nil
}

// RetryFailed resets a failed job back to waiting with a fresh attempt
// budget.
func (s *PostgresJobStore) RetryFailed(ctx context.Context, jobID uuid.UUID) error {
	query := `
		UPDATE jobs
		SET state = 'waiting',
		    attempts_made = 0,
		    progress = 0,
		    last_error = NULL,
		    run_at = now(),
		    finished_at = NULL
		WHERE id = $1 AND state = 'failed'
	`

	res, err := s.db.ExecContext(ctx, query, jobID)
	if err != nil {
		return MapError(err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		if _, err := s.GetJob(ctx, jobID); err != nil {
			return err
		}
		return queue.ErrJobNotFailed
	}
	return nil
}

// Requeue returns an active job to waiting without consuming an attempt.
func (s *PostgresJobStore) Requeue(ctx context.Context, jobID uuid.UUID, reason string) error {
	query := `
		UPDATE jobs
		SET state = 'waiting',
		    last_error = $2,
		    run_at = now(),
		    heartbeat_at = NULL
		WHERE id = $1 AND state = 'active'
	`

	res, err := s.db.ExecContext(ctx, query, jobID, reason)
	if err != nil {
		return MapError(err)
	}
	return s.absorbTerminal(ctx, jobID, res)
}

// ListStalled returns active jobs whose heartbeat is older than the
// threshold.
func (s *PostgresJobStore) ListStalled(ctx context.Context, olderThan time.Duration) ([]*queue.Job, error) {
	cutoff := time.Now().UTC().Add(-olderThan)

	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE state = 'active'
		  AND (heartbeat_at IS NULL OR heartbeat_at < $1)
		ORDER BY created_at ASC
	`

	return s.queryJobs(ctx, query, cutoff)
}

// ListActive returns all currently active jobs.
func (s *PostgresJobStore) ListActive(ctx context.Context) ([]*queue.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE state = 'active'
		ORDER BY created_at ASC
	`

	return s.queryJobs(ctx, query)
}

// ListFailed returns up to limit failed jobs in the queue, oldest first.
func (s *PostgresJobStore) ListFailed(ctx context.Context, queueName string, limit int) ([]*queue.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE queue_name = $1 AND state = 'failed'
		ORDER BY created_at ASC
	`
	args := []any{queueName}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	return s.queryJobs(ctx, query, args...)
}

// queryJobs runs a multi-row job query and scans the results.
func (s *PostgresJobStore) queryJobs(ctx context.Context, query string, args ...any) ([]*queue.Job, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	var jobs []*queue.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job rows: %w", err)
	}
	return jobs, nil
}

// PromoteDue transitions delayed jobs whose RunAt elapsed back to waiting.
func (s *PostgresJobStore) PromoteDue(ctx context.Context) (int, error) {
	query := `UPDATE jobs SET state = 'waiting' WHERE state = 'delayed' AND run_at <= now()`

	res, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return 0, MapError(err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(affected), nil
}

// PauseQueue stops DequeueNext from returning jobs for the queue.
func (s *PostgresJobStore) PauseQueue(ctx context.Context, queueName string) error {
	return s.setPaused(ctx, queueName, true)
}

// ResumeQueue re-enables dequeueing for a paused queue.
func (s *PostgresJobStore) ResumeQueue(ctx context.Context, queueName string) error {
	return s.setPaused(ctx, queueName, false)
}

func (s *PostgresJobStore) setPaused(ctx context.Context, queueName string, paused bool) error {
	query := `
		INSERT INTO queue_state (queue_name, paused, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (queue_name)
			DO UPDATE SET paused = $2, updated_at = now()
	`

	if _, err := s.db.ExecContext(ctx, query, queueName, paused); err != nil {
		return MapError(err)
	}
	return nil
}

func (s *PostgresJobStore) isPaused(ctx context.Context, queueName string) (bool, error) {
	var paused bool
	err := s.db.QueryRowContext(ctx,
		`SELECT paused FROM queue_state WHERE queue_name = $1`, queueName,
	).Scan(&paused)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, MapError(err)
	}
	return paused, nil
}

// ClearQueue removes all waiting and delayed jobs from the queue.
func (s *PostgresJobStore) ClearQueue(ctx context.Context, queueName string) (int, error) {
	query := `DELETE FROM jobs WHERE queue_name = $1 AND state IN ('waiting', 'delayed')`

	res, err := s.db.ExecContext(ctx, query, queueName)
	if err != nil {
		return 0, MapError(err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(affected), nil
}

// Stats computes current counters for the queue in one aggregate pass.
func (s *PostgresJobStore) Stats(ctx context.Context, queueName string) (queue.QueueStats, error) {
	stats := queue.QueueStats{QueueName: queueName}
	windowStart := time.Now().UTC().Add(-statsWindow)

	query := `
		SELECT
			count(*) FILTER (WHERE state = 'waiting'),
			count(*) FILTER (WHERE state = 'active'),
			count(*) FILTER (WHERE state = 'completed'),
			count(*) FILTER (WHERE state = 'failed'),
			count(*) FILTER (WHERE state = 'delayed'),
			count(*) FILTER (WHERE state = 'cancelled'),
			count(*) FILTER (WHERE state = 'completed' AND finished_at >= $2),
			count(*) FILTER (WHERE state = 'failed' AND finished_at >= $2),
			COALESCE(avg(EXTRACT(EPOCH FROM (finished_at - processed_at)) * 1000)
				FILTER (WHERE state = 'completed' AND finished_at >= $2 AND processed_at IS NOT NULL), 0)
		FROM jobs
		WHERE queue_name = $1
	`

	var recentCompleted, recentFailed int
	err := s.db.QueryRowContext(ctx, query, queueName, windowStart).Scan(
		&stats.Waiting,
		&stats.Active,
		&stats.Completed,
		&stats.Failed,
		&stats.Delayed,
		&stats.Cancelled,
		&recentCompleted,
		&recentFailed,
		&stats.AvgProcessingMs,
	)
	if err != nil {
		return queue.QueueStats{}, MapError(err)
	}

	if recentCompleted+recentFailed > 0 {
		stats.CompletionRate = float64(recentCompleted) / float64(recentCompleted+recentFailed)
	} else {
		stats.CompletionRate = 1
	}

	paused, err := s.isPaused(ctx, queueName)
	if err != nil {
		return queue.QueueStats{}, err
	}
	stats.Paused = paused

	return stats, nil
}
