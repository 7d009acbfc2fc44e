package domain

import (
	"fmt"
	"strings"
)

// UserState is the conversation state of a user.
type UserState string

const (
	StateNone                  UserState = "none"
	StateMessagingAdmin        UserState = "messaging_admin"
	StateCollectingApplication UserState = "collecting_application"
)

// Valid reports whether s is one of the known states.
func (s UserState) Valid() bool {
	switch s {
	case StateNone, StateMessagingAdmin, StateCollectingApplication:
		return true
	}
	return false
}

// ParseUserState converts a stored value into a UserState.
func ParseUserState(v string) (UserState, error) {
	s := UserState(strings.TrimSpace(v))
	if !s.Valid() {
		return "", fmt.Errorf("unknown user state %q", v)
	}
	return s, nil
}

// ApplicationStatus mirrors the latest submission outcome on the user record.
type ApplicationStatus string

const (
	ApplicationNone     ApplicationStatus = "none"
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApproved ApplicationStatus = "approved"
	ApplicationRejected ApplicationStatus = "rejected"
)

func (s ApplicationStatus) Valid() bool {
	switch s {
	case ApplicationNone, ApplicationPending, ApplicationApproved, ApplicationRejected:
		return true
	}
	return false
}

// ParseApplicationStatus converts a stored value into an ApplicationStatus.
func ParseApplicationStatus(v string) (ApplicationStatus, error) {
	s := ApplicationStatus(strings.TrimSpace(v))
	if !s.Valid() {
		return "", fmt.Errorf("unknown application status %q", v)
	}
	return s, nil
}

// SubmissionStatus is the status of a finalized application record.
type SubmissionStatus string

const (
	SubmissionSubmitted SubmissionStatus = "submitted"
	SubmissionApproved  SubmissionStatus = "approved"
	SubmissionRejected  SubmissionStatus = "rejected"
)

func (s SubmissionStatus) Valid() bool {
	switch s {
	case SubmissionSubmitted, SubmissionApproved, SubmissionRejected:
		return true
	}
	return false
}

// ParseSubmissionStatus converts a stored value into a SubmissionStatus.
func ParseSubmissionStatus(v string) (SubmissionStatus, error) {
	s := SubmissionStatus(strings.TrimSpace(v))
	if !s.Valid() {
		return "", fmt.Errorf("unknown submission status %q", v)
	}
	return s, nil
}

// Decision is an admin verdict on a submitted application.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// ParseDecision converts a callback value into a Decision.
func ParseDecision(v string) (Decision, error) {
	switch d := Decision(strings.ToLower(strings.TrimSpace(v))); d {
	case DecisionApprove, DecisionReject:
		return d, nil
	}
	return "", fmt.Errorf("unknown decision %q", v)
}

// Outcome returns the submission status and the mirrored user status for d.
func (d Decision) Outcome() (SubmissionStatus, ApplicationStatus) {
	if d == DecisionApprove {
		return SubmissionApproved, ApplicationApproved
	}
	return SubmissionRejected, ApplicationRejected
}

// ThreadKind tells what an admin-group post represents.
type ThreadKind string

const (
	ThreadMessage     ThreadKind = "message"
	ThreadApplication ThreadKind = "application"
)

// ParseThreadKind converts a stored value into a ThreadKind.
func ParseThreadKind(v string) (ThreadKind, error) {
	switch k := ThreadKind(strings.TrimSpace(v)); k {
	case ThreadMessage, ThreadApplication:
		return k, nil
	}
	return "", fmt.Errorf("unknown thread kind %q", v)
}

// Direction of a relayed message.
type Direction string

const (
	ToAdmin Direction = "to_admin"
	ToUser  Direction = "to_user"
)

// MediaType identifies the kind of content carried by a message.
type MediaType string

const (
	MediaText      MediaType = "text"
	MediaPhoto     MediaType = "photo"
	MediaAudio     MediaType = "audio"
	MediaVoice     MediaType = "voice"
	MediaVideo     MediaType = "video"
	MediaDocument  MediaType = "document"
	MediaSticker   MediaType = "sticker"
	MediaVideoNote MediaType = "video_note"
)

// ParseMediaType converts a stored value into a MediaType.
func ParseMediaType(v string) (MediaType, error) {
	switch m := MediaType(strings.TrimSpace(v)); m {
	case MediaText, MediaPhoto, MediaAudio, MediaVoice, MediaVideo, MediaDocument, MediaSticker, MediaVideoNote:
		return m, nil
	}
	return "", fmt.Errorf("unknown media type %q", v)
}

// AcceptsCaption reports whether Telegram allows a caption on this media type.
func (m MediaType) AcceptsCaption() bool {
	switch m {
	case MediaSticker, MediaVideoNote:
		return false
	}
	return true
}
