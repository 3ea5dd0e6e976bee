package tasks

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/updrift/engine/internal/repository"
	"github.com/updrift/engine/internal/resolver"
	"github.com/updrift/engine/internal/services"
	"github.com/updrift/engine/pkg/logger"
	"go.uber.org/zap"
)

// TypeReindex is the periodic task that recomputes dirty resolution rows.
const TypeReindex = "resolution:reindex"

// NewReindexTask builds the payload-less periodic sweep task.
func NewReindexTask() *asynq.Task {
	return asynq.NewTask(TypeReindex, nil)
}

// ReindexTaskHandler sweeps the resolution cache: every row flagged
// needs_reindex is recomputed against the current catalog and rewritten
// clean. Rows are grouped by (project, platform) so each group's candidate
// set is loaded once, then walked in bounded id-ordered batches.
type ReindexTaskHandler struct {
	policy      resolver.Policy
	releaseRepo repository.ReleaseRepository
	resRepo     repository.ResolutionRepository
	batchSize   int
}

func NewReindexTaskHandler(policy resolver.Policy, releaseRepo repository.ReleaseRepository, resRepo repository.ResolutionRepository, batchSize int) *ReindexTaskHandler {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &ReindexTaskHandler{policy: policy, releaseRepo: releaseRepo, resRepo: resRepo, batchSize: batchSize}
}

func (h *ReindexTaskHandler) HandleReindex(ctx context.Context, t *asynq.Task) error {
	groups, err := h.resRepo.DirtyGroups(ctx)
	if err != nil {
		logger.L().Error("list dirty groups failed", zap.Error(err))
		return err
	}
	if len(groups) == 0 {
		return nil
	}

	var swept, failed int
	for _, g := range groups {
		s, f, err := h.sweepGroup(ctx, g)
		swept += s
		failed += f
		if err != nil {
			// Group-level failure (candidate load, page fetch). Other
			// groups still get their sweep; the task returns the error so
			// asynq retries what remains dirty.
			logger.L().Error("sweep group failed",
				zap.Uint("project_id", g.ProjectID), zap.String("platform", g.Platform), zap.Error(err))
			return err
		}
	}
	logger.L().Info("resolution sweep complete",
		zap.Int("groups", len(groups)), zap.Int("rows", swept), zap.Int("failed_rows", failed))
	return nil
}

func (h *ReindexTaskHandler) sweepGroup(ctx context.Context, g repository.DirtyGroup) (swept, failed int, err error) {
	platform, err := resolver.ParsePlatform(g.Platform)
	if err != nil {
		// A corrupt platform value should never reach the table; leave the
		// rows dirty and keep sweeping other groups.
		logger.L().Error("dirty group has unknown platform",
			zap.Uint("project_id", g.ProjectID), zap.String("platform", g.Platform))
		return 0, 0, nil
	}

	releases, err := h.releaseRepo.ListCandidates(ctx, g.ProjectID, platform, h.policy, repository.ChannelSelector{})
	if err != nil {
		return 0, 0, err
	}
	cands := services.BuildCandidates(h.policy, platform, releases)

	var afterID uint
	for {
		rows, err := h.resRepo.ListDirtyAfter(ctx, g.ProjectID, g.Platform, afterID, h.batchSize)
		if err != nil {
			return swept, failed, err
		}
		if len(rows) == 0 {
			return swept, failed, nil
		}
		for i := range rows {
			row := &rows[i]
			afterID = row.ID

			v, err := resolver.ParseClientVersion(h.policy, row.AppVersion)
			if err != nil {
				// Stored version no longer parses under the active policy
				// (e.g. after a policy migration). Skip it; it stays dirty
				// and keeps behaving like a miss.
				logger.L().Warn("cached version unparseable, skipping",
					zap.Uint("row_id", row.ID), zap.String("app_version", row.AppVersion), zap.Error(err))
				failed++
				continue
			}

			var releaseID *uint
			if id, found := resolver.Pick(cands, v); found {
				releaseID = &id
			}
			if err := h.resRepo.ApplyUpdate(ctx, row.ID, releaseID, false); err != nil {
				logger.L().Warn("rewrite resolution row failed",
					zap.Uint("row_id", row.ID), zap.Error(err))
				failed++
				continue
			}
			swept++
		}
	}
}
