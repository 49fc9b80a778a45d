package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/perkpilot/backend/pkg/logger"
)

const defaultIdleWindow = 90 * 24 * time.Hour

type forumThreadLocker interface {
	LockIdleThreads(ctx context.Context, idleBefore time.Time) (int64, error)
}

// ForumRetentionJobParams configures the idle thread lockdown.
type ForumRetentionJobParams struct {
	Logger     *logger.Logger
	Forum      forumThreadLocker
	IdleWindow time.Duration
}

// NewForumRetentionJob constructs the job that locks threads with no new
// posts inside the idle window.
func NewForumRetentionJob(params ForumRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Forum == nil {
		return nil, fmt.Errorf("forum repository required")
	}
	window := params.IdleWindow
	if window <= 0 {
		window = defaultIdleWindow
	}
	return &forumRetentionJob{
		logg:   params.Logger,
		forum:  params.Forum,
		window: window,
		now:    time.Now,
	}, nil
}

type forumRetentionJob struct {
	logg   *logger.Logger
	forum  forumThreadLocker
	window time.Duration
	now    func() time.Time
}

func (j *forumRetentionJob) Name() string { return "forum-retention" }

func (j *forumRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.window)
	locked, err := j.forum.LockIdleThreads(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("lock idle threads: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": locked})
	j.logg.Info(logCtx, "forum retention complete")
	return nil
}
