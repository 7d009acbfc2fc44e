package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/deskbot/core/logger"
	"github.com/m3rciful/deskbot/core/metrics"
	"github.com/m3rciful/deskbot/internal/storage"
)

// DraftSweep deletes drafts whose expiry has passed. A user still collecting
// files gets a fresh draft with the next file.
type DraftSweep struct {
	drafts storage.Drafts
	now    func() time.Time
}

func NewDraftSweep(drafts storage.Drafts) *DraftSweep {
	return &DraftSweep{drafts: drafts, now: time.Now}
}

func (*DraftSweep) Name() string { return "draft_sweep" }

func (j *DraftSweep) Run(ctx context.Context) error {
	n, err := j.drafts.DeleteExpired(ctx, j.now())
	if err != nil {
		return fmt.Errorf("delete expired drafts: %w", err)
	}
	if n > 0 {
		metrics.DraftsSwept.Add(float64(n))
		logger.Info(ctx, "jobs", "drafts.swept", slog.Int64("drafts", n))
	}
	return nil
}
