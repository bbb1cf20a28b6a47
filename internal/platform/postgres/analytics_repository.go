package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/lumenlearn/lumen-api/internal/jobs"
	"github.com/lumenlearn/lumen-api/internal/platform/logger"
	"github.com/lumenlearn/lumen-api/internal/store"
)

// PostgresAnalyticsRepository implements the jobs.AnalyticsRepository
// interface using a PostgreSQL database as the storage backend. Each daily
// window is computed from the enrollments and certificates tables and
// upserted into analytics_daily, so re-running a window replaces its row.
type PostgresAnalyticsRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresAnalyticsRepository creates a new PostgreSQL implementation of
// the AnalyticsRepository interface. It accepts a database connection that
// should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresAnalyticsRepository(db *sql.DB, logger *slog.Logger) *PostgresAnalyticsRepository {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresAnalyticsRepository{
		db:     db,
		logger: logger.With(slog.String("component", "analytics_repository")),
	}
}

// Ensure PostgresAnalyticsRepository implements jobs.AnalyticsRepository
var _ jobs.AnalyticsRepository = (*PostgresAnalyticsRepository)(nil)

// AggregateDay computes the metrics for one daily window and persists
// them. The compute and the upsert run in one transaction so the stored
// row always matches one consistent read of the source tables.
func (r *PostgresAnalyticsRepository) AggregateDay(ctx context.Context, date time.Time) (jobs.AnalyticsSummary, error) {
	log := logger.FromContextOrDefault(ctx, r.logger)

	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	summary := jobs.AnalyticsSummary{Date: dayStart.Format("2006-01-02")}

	err := store.RunInTransaction(ctx, r.db, func(ctx context.Context, tx *sql.Tx) error {
		query := `
			SELECT
				(SELECT count(DISTINCT student_id) FROM enrollments
					WHERE status = 'active' AND created_at < $2),
				(SELECT count(*) FROM enrollments
					WHERE status = 'completed' AND completed_at >= $1 AND completed_at < $2),
				(SELECT count(*) FROM certificates
					WHERE issued_at >= $1 AND issued_at < $2)
		`

		err := tx.QueryRowContext(ctx, query, dayStart, dayEnd).Scan(
			&summary.ActiveStudents,
			&summary.CompletedEnrollments,
			&summary.CertificatesIssued,
		)
		if err != nil {
			return fmt.Errorf("failed to compute daily analytics: %w", MapError(err))
		}

		upsert := `
			INSERT INTO analytics_daily
				(date, active_students, completed_enrollments, certificates_issued, computed_at)
			VALUES ($1, $2, $3, $4, now())
			ON CONFLICT (date) DO UPDATE SET
				active_students = EXCLUDED.active_students,
				completed_enrollments = EXCLUDED.completed_enrollments,
				certificates_issued = EXCLUDED.certificates_issued,
				computed_at = EXCLUDED.computed_at
		`

		_, err = tx.ExecContext(ctx, upsert,
			dayStart,
			summary.ActiveStudents,
			summary.CompletedEnrollments,
			summary.CertificatesIssued,
		)
		if err != nil {
			return fmt.Errorf("failed to persist daily analytics: %w", MapError(err))
		}
		return nil
	})
	if err != nil {
		return jobs.AnalyticsSummary{}, err
	}

	log.Debug("daily analytics aggregated",
		slog.String("date", summary.Date),
		slog.Int("active_students", summary.ActiveStudents),
		slog.Int("completed_enrollments", summary.CompletedEnrollments),
		slog.Int("certificates_issued", summary.CertificatesIssued))
	return summary, nil
}
