package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/deskbot/internal/domain"
)

const userColumns = `user_id, username, first_name, last_name, state, application_status, created_at, updated_at`

type userRow struct {
	ID                int64     `db:"user_id"`
	Username          string    `db:"username"`
	FirstName         string    `db:"first_name"`
	LastName          string    `db:"last_name"`
	State             string    `db:"state"`
	ApplicationStatus string    `db:"application_status"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

func (r userRow) toDomain() (domain.User, error) {
	state, err := domain.ParseUserState(r.State)
	if err != nil {
		return domain.User{}, err
	}
	status, err := domain.ParseApplicationStatus(r.ApplicationStatus)
	if err != nil {
		return domain.User{}, err
	}
	return domain.User{
		ID:                r.ID,
		Username:          r.Username,
		FirstName:         r.FirstName,
		LastName:          r.LastName,
		State:             state,
		ApplicationStatus: status,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}, nil
}

type users struct{ q sqlx.ExtContext }

func (r users) Get(ctx context.Context, id int64) (domain.User, error) {
	var row userRow
	err := sqlx.GetContext(ctx, r.q, &row, `SELECT `+userColumns+` FROM users WHERE user_id = $1`, id)
	if err != nil {
		return domain.User{}, notFound(err)
	}
	return row.toDomain()
}

func (r users) Register(ctx context.Context, u domain.User) (domain.User, error) {
	const q = `
INSERT INTO users (user_id, username, first_name, last_name, state, application_status, created_at, updated_at)
VALUES ($1, $2, $3, $4, 'none', 'none', $5, $5)
ON CONFLICT (user_id) DO UPDATE SET
    username   = EXCLUDED.username,
    first_name = EXCLUDED.first_name,
    last_name  = EXCLUDED.last_name,
    state      = 'none',
    updated_at = EXCLUDED.updated_at
RETURNING ` + userColumns

	var row userRow
	if err := sqlx.GetContext(ctx, r.q, &row, q, u.ID, u.Username, u.FirstName, u.LastName, u.UpdatedAt); err != nil {
		return domain.User{}, fmt.Errorf("register user: %w", err)
	}
	return row.toDomain()
}

func (r users) Update(ctx context.Context, u domain.User) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE users SET state = $2, application_status = $3, updated_at = $4 WHERE user_id = $1`,
		u.ID, string(u.State), string(u.ApplicationStatus), u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return expectRow(res, "update user")
}
