package scheduler

import (
	"context"
	"time"

	"github.com/trezcool/academia/core"
)

var NowFunc = time.Now // mockable

type TokenSweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

// SweepTokensJob deletes the session tokens that have expired.
type SweepTokensJob struct {
	tokens  TokenSweeper
	logger  core.Logger
	timeout time.Duration
}

func NewSweepTokensJob(tokens TokenSweeper, logger core.Logger) *SweepTokensJob {
	return &SweepTokensJob{tokens: tokens, logger: logger, timeout: time.Minute}
}

func (j *SweepTokensJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	n, err := j.tokens.SweepExpired(ctx, NowFunc())
	if err != nil {
		j.logger.Error("sweeping expired tokens", err)
		return
	}
	if n == 0 {
		j.logger.Debug("no expired tokens to sweep")
		return
	}
	j.logger.Info("swept expired tokens", map[string]interface{}{"count": n})
}
