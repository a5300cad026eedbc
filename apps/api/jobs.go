package main

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	echoapi "github.com/invasionlatina/backend/apps/api/echo"
	"github.com/invasionlatina/backend/core"
)

const (
	limiterCleanupSpec = "@every 10m"
	limiterMaxIdle     = 30 * time.Minute
	rewardExpirySpec   = "0 12 * * *" // every day at noon, the club is closed
	jobTimeout         = time.Minute
)

type rewardExpirer interface {
	ExpireRewards(ctx context.Context) (int, error)
}

// startJobs schedules the periodic maintenance tasks.
func startJobs(logger core.Logger, limiter *echoapi.RateLimiter, rewards rewardExpirer) (*cron.Cron, error) {
	c := cron.New()

	if _, err := c.AddFunc(limiterCleanupSpec, func() {
		if n := limiter.Cleanup(limiterMaxIdle); n > 0 {
			logger.Debug(fmt.Sprintf("rate limiter: %d idle keys removed", n))
		}
	}); err != nil {
		return nil, err
	}

	if _, err := c.AddFunc(rewardExpirySpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		n, err := rewards.ExpireRewards(ctx)
		if err != nil {
			logger.Error(fmt.Sprintf("expiring rewards: %v", err), err)
			return
		}
		logger.Info(fmt.Sprintf("%d rewards expired", n))
	}); err != nil {
		return nil, err
	}

	c.Start()
	return c, nil
}
