package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/deskbot/core/logger"
	"github.com/m3rciful/deskbot/core/metrics"
	"github.com/m3rciful/deskbot/internal/domain"
	"github.com/m3rciful/deskbot/internal/gateway"
	"github.com/m3rciful/deskbot/internal/storage"
)

func (s *Service) startApplication(ctx context.Context, u domain.User) (Reply, error) {
	switch u.ApplicationStatus {
	case domain.ApplicationPending:
		return Reply{Text: textAlreadyApplied, Menu: MenuMain}, nil
	case domain.ApplicationApproved:
		return Reply{Text: textAlreadyApproved, Menu: MenuMain}, nil
	case domain.ApplicationNone, domain.ApplicationRejected:
	default:
		return Reply{}, fmt.Errorf("workflow: user %d has unknown application status %q", u.ID, u.ApplicationStatus)
	}

	now := s.now()
	err := s.store.InTx(ctx, func(tx storage.Store) error {
		if err := tx.Drafts().Reset(ctx, u.ID, now.Add(s.cfg.DraftTTL), now); err != nil {
			return fmt.Errorf("reset draft: %w", err)
		}
		return s.transition(ctx, tx, &u, domain.StateCollectingApplication)
	})
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: textApplyPrompt, Menu: MenuCancel}, nil
}

func (s *Service) addFile(ctx context.Context, u domain.User, file *domain.Attachment) (Reply, error) {
	if file == nil {
		return Reply{Text: textNeedFile}, nil
	}
	if file.FileSize > s.cfg.MaxFileSize {
		metrics.FilesRejected.WithLabelValues("too_large").Inc()
		logger.Info(ctx, "workflow", "draft.file_rejected",
			slog.String("status", "skip"),
			slog.Int64("file_size", file.FileSize),
			slog.String("media_type", string(file.MediaType)),
		)
		return Reply{Text: textFileTooLarge(s.cfg.MaxFileSize)}, nil
	}

	now := s.now()
	draft, err := s.store.Drafts().Append(ctx, u.ID, *file, now.Add(s.cfg.DraftTTL), now)
	if err != nil {
		return Reply{}, fmt.Errorf("append draft file: %w", err)
	}
	logger.Debug(ctx, "workflow", "draft.file_added",
		slog.Int("files", len(draft.Files)),
		slog.String("media_type", string(file.MediaType)),
		slog.Int64("file_size", file.FileSize),
	)
	return Reply{Text: textDraftAdded(file.FileName, len(draft.Files)), Menu: MenuSubmit}, nil
}

func decisionActions(id string) [][]gateway.Action {
	return [][]gateway.Action{{
		{Text: "✅ Approve", Unique: UniqueApprove, Data: id},
		{Text: "❌ Reject", Unique: UniqueReject, Data: id},
	}}
}

// submit finalizes the draft. The summary is posted first; the application,
// its thread binding, the audit record, the draft removal and the user update
// are then committed together. Files follow as replies to the summary.
func (s *Service) submit(ctx context.Context, u domain.User, from domain.Sender) (Reply, error) {
	draft, err := s.store.Drafts().Get(ctx, u.ID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return Reply{}, fmt.Errorf("load draft: %w", err)
	}
	if len(draft.Files) == 0 {
		menu := MenuMain
		if u.State == domain.StateCollectingApplication {
			menu = MenuCancel
		}
		return Reply{Text: textNeedFile, Menu: menu}, nil
	}

	id := s.newID()
	files := draft.Files
	postID, topic, err := s.relay.PostSummary(ctx, summaryText(from, files), decisionActions(id.String()))
	if err != nil {
		return Reply{}, err
	}

	now := s.now()
	err = s.store.InTx(ctx, func(tx storage.Store) error {
		if err := tx.Applications().Create(ctx, domain.Application{
			ID:          id,
			UserID:      u.ID,
			Files:       files,
			Status:      domain.SubmissionSubmitted,
			SubmittedAt: now,
		}); err != nil {
			return fmt.Errorf("create application: %w", err)
		}
		if err := tx.Threads().Bind(ctx, domain.ThreadEntry{
			GroupMessageID: postID,
			UserID:         u.ID,
			Kind:           domain.ThreadApplication,
			ApplicationID:  id,
			CreatedAt:      now,
		}); err != nil {
			return fmt.Errorf("bind summary: %w", err)
		}
		if err := tx.Messages().Append(ctx, domain.MessageRecord{
			UserID:         u.ID,
			Direction:      domain.ToAdmin,
			Kind:           domain.ThreadApplication,
			Content:        summaryAuditText(id, len(files)),
			GroupMessageID: postID,
			TopicID:        topic,
			CreatedAt:      now,
		}.WithAttachment(nil)); err != nil {
			return fmt.Errorf("record submission: %w", err)
		}
		if err := tx.Drafts().Delete(ctx, u.ID); err != nil {
			return fmt.Errorf("delete draft: %w", err)
		}
		u.ApplicationStatus = domain.ApplicationPending
		return s.transition(ctx, tx, &u, domain.StateNone)
	})
	if err != nil {
		logger.Error(ctx, "workflow", "application.commit_failed",
			slog.String("application_id", id.String()),
			slog.Int("group_message_id", postID),
			slog.String("err", err.Error()),
		)
		return Reply{}, err
	}

	metrics.Applications.WithLabelValues(string(domain.SubmissionSubmitted)).Inc()
	sent := s.relay.ForwardFiles(ctx, u.ID, id, postID, topic, files)
	logger.Info(ctx, "workflow", "application.submitted",
		slog.String("status", "ok"),
		slog.String("application_id", id.String()),
		slog.Int("group_message_id", postID),
		slog.Int("files", len(files)),
		slog.Int("files_sent", sent),
	)
	return Reply{Text: textApplicationReceived, Menu: MenuMain}, nil
}

// decide applies an admin decision. Deciding again is allowed and overwrites
// the previous outcome; every click notifies the user.
func (s *Service) decide(ctx context.Context, e domain.DecisionEvent) (Reply, error) {
	if !s.relay.IsAdminChat(e.ChatID) {
		return Reply{Text: alertNotAllowed, Alert: true}, nil
	}

	app, err := s.store.Applications().Get(ctx, e.ApplicationID)
	if errors.Is(err, storage.ErrNotFound) {
		return Reply{Text: alertApplicationNotFound, Alert: true}, nil
	}
	if err != nil {
		return Reply{}, fmt.Errorf("load application: %w", err)
	}

	return s.locked(ctx, app.UserID, func() (Reply, error) {
		u, ok, err := s.loadUser(ctx, app.UserID)
		if err != nil {
			return Reply{}, err
		}
		if !ok {
			return Reply{Text: alertUserNotFound, Alert: true}, nil
		}
		// re-read under the user lock
		if app, err = s.store.Applications().Get(ctx, e.ApplicationID); err != nil {
			return Reply{}, fmt.Errorf("load application: %w", err)
		}

		status, userStatus := e.Decision.Outcome()
		if app.Status != domain.SubmissionSubmitted {
			logger.Warn(ctx, "workflow", "decision.override",
				slog.String("application_id", app.ID.String()),
				slog.String("from_state", string(app.Status)),
				slog.String("to_state", string(status)),
			)
		}

		now := s.now()
		err = s.store.InTx(ctx, func(tx storage.Store) error {
			if err := tx.Applications().SetStatus(ctx, app.ID, status, now); err != nil {
				return fmt.Errorf("set application status: %w", err)
			}
			u.ApplicationStatus = userStatus
			u.UpdatedAt = now
			if err := tx.Users().Update(ctx, u); err != nil {
				return fmt.Errorf("update user status: %w", err)
			}
			return nil
		})
		if err != nil {
			return Reply{}, err
		}
		metrics.Applications.WithLabelValues(string(status)).Inc()

		notice, alert := decisionTexts(e.Decision)
		if _, err := s.gw.SendText(ctx, gateway.Target{ChatID: u.ID}, notice, gateway.Options{}); err != nil {
			logger.Warn(ctx, "workflow", "decision.notify_failed",
				slog.String("application_id", app.ID.String()),
				slog.String("err", err.Error()),
			)
		}
		if err := s.gw.RemoveControls(ctx, e.ChatID, e.PostID); err != nil {
			logger.Warn(ctx, "workflow", "decision.controls_not_removed",
				slog.Int("group_message_id", e.PostID),
				slog.String("err", err.Error()),
			)
		}
		logger.Info(ctx, "workflow", "application.decided",
			slog.String("status", "ok"),
			slog.String("application_id", app.ID.String()),
			slog.String("decision", string(e.Decision)),
			slog.Int64("user_id", u.ID),
		)
		return Reply{Text: alert, Alert: true}, nil
	})
}
