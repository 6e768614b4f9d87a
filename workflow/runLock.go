package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/sales_recon/config"
	"github.com/sirupsen/logrus"
)

const runLockTTL = 5 * time.Minute

var (
	ErrRunLocked          = errors.New("another run holds the lock")
	ErrRunLockUnavailable = errors.New("run lock unavailable: redis not initialized")
)

// Locker is satisfied by *redislock.Client.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration, opt *redislock.Options) (*redislock.Lock, error)
}

// runLocker is swapped in tests; production uses the shared Redis lock client.
var runLocker = func() Locker {
	if l := config.GetRedisLock(); l != nil {
		return l
	}
	return nil
}

func runLockKey(scope string) string {
	return fmt.Sprintf("recon:%s", scope)
}

// ObtainRunLock serializes runs per scope (a channel name or "fba") across instances.
// A lock held by another run always fails with ErrRunLocked. Redis being unset or
// unreachable is tolerated unless required is set. The returned release func is never nil.
func ObtainRunLock(ctx context.Context, logger *logrus.Logger, scope string, required bool) (func(), error) {
	noop := func() {}
	fields := logrus.Fields{"field": "ObtainRunLock", "lock_key": runLockKey(scope)}

	locker := runLocker()
	if locker == nil {
		if required {
			return noop, ErrRunLockUnavailable
		}
		logger.WithFields(fields).Warn("redis lock not ready; proceeding without run lock")
		return noop, nil
	}

	lock, err := locker.Obtain(ctx, runLockKey(scope), runLockTTL, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		logger.WithFields(fields).Warn("run lock held by another run")
		return noop, fmt.Errorf("%w: %s", ErrRunLocked, scope)
	} else if err != nil {
		if required {
			return noop, err
		}
		logger.WithFields(fields).Warn("error obtaining run lock; proceeding without run lock: " + err.Error())
		return noop, nil
	}

	return func() {
		// release with a fresh context so a cancelled request still frees the key
		if releaseErr := lock.Release(context.Background()); releaseErr != nil && !errors.Is(releaseErr, redislock.ErrLockNotHeld) {
			logger.WithFields(fields).Warn("failed to release run lock: " + releaseErr.Error())
		}
	}, nil
}
