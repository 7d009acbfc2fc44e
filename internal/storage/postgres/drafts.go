package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/m3rciful/deskbot/internal/domain"
)

type draftRow struct {
	UserID    int64          `db:"user_id"`
	Files     types.JSONText `db:"files"`
	ExpiresAt time.Time      `db:"expires_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func (r draftRow) toDomain() (domain.Draft, error) {
	files, err := decodeFiles(r.Files)
	if err != nil {
		return domain.Draft{}, err
	}
	return domain.Draft{UserID: r.UserID, Files: files, ExpiresAt: r.ExpiresAt, UpdatedAt: r.UpdatedAt}, nil
}

func decodeFiles(raw types.JSONText) ([]domain.Attachment, error) {
	var files []domain.Attachment
	if len(raw) == 0 {
		return files, nil
	}
	if err := raw.Unmarshal(&files); err != nil {
		return nil, fmt.Errorf("decode files: %w", err)
	}
	return files, nil
}

func encodeFiles(files []domain.Attachment) (string, error) {
	if files == nil {
		files = []domain.Attachment{}
	}
	b, err := json.Marshal(files)
	if err != nil {
		return "", fmt.Errorf("encode files: %w", err)
	}
	return string(b), nil
}

type drafts struct{ q sqlx.ExtContext }

func (r drafts) Get(ctx context.Context, userID int64) (domain.Draft, error) {
	var row draftRow
	err := sqlx.GetContext(ctx, r.q, &row,
		`SELECT user_id, files, expires_at, updated_at FROM draft_applications WHERE user_id = $1`, userID)
	if err != nil {
		return domain.Draft{}, notFound(err)
	}
	return row.toDomain()
}

func (r drafts) Reset(ctx context.Context, userID int64, expiresAt, now time.Time) error {
	const q = `
INSERT INTO draft_applications (user_id, files, expires_at, updated_at)
VALUES ($1, '[]'::jsonb, $2, $3)
ON CONFLICT (user_id) DO UPDATE SET
    files      = '[]'::jsonb,
    expires_at = EXCLUDED.expires_at,
    updated_at = EXCLUDED.updated_at`
	if _, err := r.q.ExecContext(ctx, q, userID, expiresAt, now); err != nil {
		return fmt.Errorf("reset draft: %w", err)
	}
	return nil
}

func (r drafts) Append(ctx context.Context, userID int64, file domain.Attachment, expiresAt, now time.Time) (domain.Draft, error) {
	const q = `
INSERT INTO draft_applications (user_id, files, expires_at, updated_at)
VALUES ($1, $2::jsonb, $3, $4)
ON CONFLICT (user_id) DO UPDATE SET
    files      = draft_applications.files || EXCLUDED.files,
    expires_at = EXCLUDED.expires_at,
    updated_at = EXCLUDED.updated_at
RETURNING user_id, files, expires_at, updated_at`

	one, err := encodeFiles([]domain.Attachment{file})
	if err != nil {
		return domain.Draft{}, err
	}
	var row draftRow
	if err := sqlx.GetContext(ctx, r.q, &row, q, userID, one, expiresAt, now); err != nil {
		return domain.Draft{}, fmt.Errorf("append draft file: %w", err)
	}
	return row.toDomain()
}

func (r drafts) Delete(ctx context.Context, userID int64) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM draft_applications WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

func (r drafts) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM draft_applications WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired drafts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired drafts rows affected: %w", err)
	}
	return n, nil
}
