package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/deskbot/internal/domain"
)

type messageRow struct {
	UserID                int64     `db:"user_id"`
	Direction             string    `db:"direction"`
	Kind                  string    `db:"kind"`
	Content               string    `db:"content"`
	MediaType             string    `db:"media_type"`
	MediaFileID           string    `db:"media_file_id"`
	FileName              string    `db:"file_name"`
	FileSize              int64     `db:"file_size"`
	GroupMessageID        int       `db:"group_message_id"`
	ReplyToGroupMessageID int       `db:"reply_to_group_message_id"`
	TopicID               int       `db:"topic_id"`
	CreatedAt             time.Time `db:"created_at"`
}

type messages struct{ q sqlx.ExtContext }

func (r messages) Append(ctx context.Context, m domain.MessageRecord) error {
	kind := m.Kind
	if kind == "" {
		kind = domain.ThreadMessage
	}
	media := m.MediaType
	if media == "" {
		media = domain.MediaText
	}
	row := messageRow{
		UserID:                m.UserID,
		Direction:             string(m.Direction),
		Kind:                  string(kind),
		Content:               m.Content,
		MediaType:             string(media),
		MediaFileID:           m.MediaFileID,
		FileName:              m.FileName,
		FileSize:              m.FileSize,
		GroupMessageID:        m.GroupMessageID,
		ReplyToGroupMessageID: m.ReplyToGroupMessageID,
		TopicID:               m.TopicID,
		CreatedAt:             m.CreatedAt,
	}
	_, err := sqlx.NamedExecContext(ctx, r.q, `
INSERT INTO messages (user_id, direction, kind, content, media_type, media_file_id, file_name, file_size,
                      group_message_id, reply_to_group_message_id, topic_id, created_at)
VALUES (:user_id, :direction, :kind, :content, :media_type, :media_file_id, :file_name, :file_size,
        :group_message_id, :reply_to_group_message_id, :topic_id, :created_at)`, row)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}
