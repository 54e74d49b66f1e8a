package suggester

import (
	"context"
	"log/slog"
	"time"

	"github.com/quillwiki/growthtasks/internal/domain"
	"github.com/quillwiki/growthtasks/internal/platform/logger"
	"github.com/quillwiki/growthtasks/internal/taskconfig"
)

// SubmissionCounter is the read side of the submission log the quality
// gates are computed from.
type SubmissionCounter interface {
	// CountSubmissionsSince returns the number of distinct recommendation
	// submissions the user made since the given time.
	CountSubmissionsSince(ctx context.Context, userID int64, since time.Time) (int, error)
}

// QualityGateDecorator stamps per-task-type quality gate state onto
// suggested task sets and suppresses tasks of types whose gate is
// exceeded. It sits outside the cache decorator: cached sets live for
// days while gate state is derived from a 24h submission window, so the
// gates must be recomputed on every request.
type QualityGateDecorator struct {
	inner   TaskSuggester
	config  ConfigProvider
	counter SubmissionCounter
	logger  *slog.Logger
	now     func() time.Time
}

// Ensure QualityGateDecorator implements TaskSuggester
var _ TaskSuggester = (*QualityGateDecorator)(nil)

// NewQualityGateDecorator creates a QualityGateDecorator around inner. If
// logger is nil, a default logger will be used.
func NewQualityGateDecorator(
	inner TaskSuggester,
	config ConfigProvider,
	counter SubmissionCounter,
	log *slog.Logger,
) *QualityGateDecorator {
	if inner == nil {
		panic("inner suggester cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &QualityGateDecorator{
		inner:   inner,
		config:  config,
		counter: counter,
		logger:  log.With(slog.String("component", "quality_gate")),
		now:     time.Now,
	}
}

// Suggest implements TaskSuggester.
func (d *QualityGateDecorator) Suggest(ctx context.Context, req Request) (*domain.TaskSet, error) {
	set, err := d.inner.Suggest(ctx, req)
	if err != nil {
		return nil, err
	}

	gates := d.computeGates(ctx, req.UserID)
	if len(gates) == 0 {
		return set, nil
	}
	set.QualityGateConfig = gates

	suppressed := make(map[string]struct{})
	for id, gate := range gates {
		if gate.Exceeded {
			suppressed[id] = struct{}{}
		}
	}
	if len(suppressed) == 0 {
		return set, nil
	}

	kept := set.Tasks[:0]
	for _, task := range set.Tasks {
		if _, ok := suppressed[task.TaskType.ID]; ok {
			continue
		}
		kept = append(kept, task)
	}
	removed := len(set.Tasks) - len(kept)
	set.Tasks = kept

	log := logger.FromContextOrDefault(ctx, d.logger)
	log.Info("suppressed tasks over daily limit",
		slog.Int64("user_id", req.UserID),
		slog.Int("removed", removed))

	return set, nil
}

// computeGates derives the gate state for every task type that carries a
// daily cap. A failed count is logged and leaves that gate unset rather
// than failing the suggestion.
func (d *QualityGateDecorator) computeGates(ctx context.Context, userID int64) map[string]domain.QualityGate {
	log := logger.FromContextOrDefault(ctx, d.logger)

	gates := make(map[string]domain.QualityGate)
	for id, taskType := range d.config.GetTaskTypes(ctx) {
		if taskType.HandlerID != domain.HandlerLinkRecommendation {
			continue
		}

		count, err := d.counter.CountSubmissionsSince(ctx, userID, d.now().Add(-24*time.Hour))
		if err != nil {
			log.Warn("failed to count daily submissions",
				slog.Int64("user_id", userID),
				slog.String("task_type", id),
				slog.String("error", err.Error()))
			continue
		}

		maxPerDay := taskconfig.MaxTasksPerDay(taskType)
		gates[id] = domain.QualityGate{
			DailyCount:     count,
			MaxTasksPerDay: maxPerDay,
			Exceeded:       count >= maxPerDay,
		}
	}
	return gates
}
