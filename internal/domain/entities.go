package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultMaxFileSize is the per-file ceiling for application files (30 MiB).
const DefaultMaxFileSize int64 = 30 * 1024 * 1024

// DefaultDraftTTL is how long a draft stays alive after its last change.
const DefaultDraftTTL = 24 * time.Hour

// User is the root entity; everything else references it by ID.
type User struct {
	ID                int64
	Username          string
	FirstName         string
	LastName          string
	State             UserState
	ApplicationStatus ApplicationStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Attachment describes a file stored on Telegram's side.
type Attachment struct {
	MediaType MediaType `json:"media_type"`
	FileID    string    `json:"file_id"`
	FileName  string    `json:"file_name"`
	FileSize  int64     `json:"file_size"`
}

// Draft is the in-progress collection of application files. One per user.
type Draft struct {
	UserID    int64
	Files     []Attachment
	ExpiresAt time.Time
	UpdatedAt time.Time
}

// Application is a finalized submission.
type Application struct {
	ID          uuid.UUID
	UserID      int64
	Files       []Attachment
	Status      SubmissionStatus
	SubmittedAt time.Time
	ProcessedAt *time.Time
}

// ThreadEntry binds an admin-group post to the user it was relayed from.
type ThreadEntry struct {
	GroupMessageID int
	UserID         int64
	Kind           ThreadKind
	// ApplicationID is uuid.Nil unless Kind is ThreadApplication.
	ApplicationID uuid.UUID
	CreatedAt     time.Time
}

// MessageRecord is one line of the relay audit log.
type MessageRecord struct {
	ID                    int64
	UserID                int64
	Direction             Direction
	Kind                  ThreadKind
	Content               string
	MediaType             MediaType
	MediaFileID           string
	FileName              string
	FileSize              int64
	GroupMessageID        int
	ReplyToGroupMessageID int
	TopicID               int
	CreatedAt             time.Time
}

// WithAttachment copies media metadata from a onto the record.
func (m MessageRecord) WithAttachment(a *Attachment) MessageRecord {
	if a == nil {
		if m.MediaType == "" {
			m.MediaType = MediaText
		}
		return m
	}
	m.MediaType = a.MediaType
	m.MediaFileID = a.FileID
	m.FileName = a.FileName
	m.FileSize = a.FileSize
	return m
}
