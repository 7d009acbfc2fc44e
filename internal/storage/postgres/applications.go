package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/m3rciful/deskbot/internal/domain"
)

type applicationRow struct {
	ID          uuid.UUID      `db:"id"`
	UserID      int64          `db:"user_id"`
	Files       types.JSONText `db:"files"`
	Status      string         `db:"status"`
	SubmittedAt time.Time      `db:"submitted_at"`
	ProcessedAt sql.NullTime   `db:"processed_at"`
}

type applications struct{ q sqlx.ExtContext }

func (r applications) Create(ctx context.Context, a domain.Application) error {
	files, err := encodeFiles(a.Files)
	if err != nil {
		return err
	}
	var processed sql.NullTime
	if a.ProcessedAt != nil {
		processed = sql.NullTime{Time: *a.ProcessedAt, Valid: true}
	}
	_, err = r.q.ExecContext(ctx, `
INSERT INTO applications (id, user_id, files, status, submitted_at, processed_at)
VALUES ($1, $2, $3::jsonb, $4, $5, $6)`,
		a.ID, a.UserID, files, string(a.Status), a.SubmittedAt, processed,
	)
	if err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

func (r applications) Get(ctx context.Context, id uuid.UUID) (domain.Application, error) {
	var row applicationRow
	err := sqlx.GetContext(ctx, r.q, &row,
		`SELECT id, user_id, files, status, submitted_at, processed_at FROM applications WHERE id = $1`, id)
	if err != nil {
		return domain.Application{}, notFound(err)
	}
	status, err := domain.ParseSubmissionStatus(row.Status)
	if err != nil {
		return domain.Application{}, err
	}
	files, err := decodeFiles(row.Files)
	if err != nil {
		return domain.Application{}, err
	}
	app := domain.Application{
		ID:          row.ID,
		UserID:      row.UserID,
		Files:       files,
		Status:      status,
		SubmittedAt: row.SubmittedAt,
	}
	if row.ProcessedAt.Valid {
		t := row.ProcessedAt.Time
		app.ProcessedAt = &t
	}
	return app, nil
}

func (r applications) SetStatus(ctx context.Context, id uuid.UUID, status domain.SubmissionStatus, processedAt time.Time) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE applications SET status = $2, processed_at = $3 WHERE id = $1`,
		id, string(status), processedAt,
	)
	if err != nil {
		return fmt.Errorf("set application status: %w", err)
	}
	return expectRow(res, "set application status")
}
