package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/deskbot/internal/domain"
)

type threadRow struct {
	GroupMessageID int           `db:"group_message_id"`
	UserID         int64         `db:"user_id"`
	Kind           string        `db:"kind"`
	ApplicationID  uuid.NullUUID `db:"application_id"`
	CreatedAt      time.Time     `db:"created_at"`
}

type threads struct{ q sqlx.ExtContext }

func (r threads) Bind(ctx context.Context, e domain.ThreadEntry) error {
	appID := uuid.NullUUID{UUID: e.ApplicationID, Valid: e.ApplicationID != uuid.Nil}
	_, err := r.q.ExecContext(ctx, `
INSERT INTO thread_map (group_message_id, user_id, kind, application_id, created_at)
VALUES ($1, $2, $3, $4, $5)`,
		e.GroupMessageID, e.UserID, string(e.Kind), appID, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("bind thread: %w", err)
	}
	return nil
}

func (r threads) Lookup(ctx context.Context, groupMessageID int) (domain.ThreadEntry, error) {
	var row threadRow
	err := sqlx.GetContext(ctx, r.q, &row, `
SELECT group_message_id, user_id, kind, application_id, created_at
FROM thread_map WHERE group_message_id = $1`, groupMessageID)
	if err != nil {
		return domain.ThreadEntry{}, notFound(err)
	}
	kind, err := domain.ParseThreadKind(row.Kind)
	if err != nil {
		return domain.ThreadEntry{}, err
	}
	return domain.ThreadEntry{
		GroupMessageID: row.GroupMessageID,
		UserID:         row.UserID,
		Kind:           kind,
		ApplicationID:  row.ApplicationID.UUID,
		CreatedAt:      row.CreatedAt,
	}, nil
}
