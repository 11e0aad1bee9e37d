package utils

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/pos_ledger_backend/config"
	"github.com/bsm/redislock"
	"gorm.io/gorm"
)

var mutex sync.Mutex

/* generic functions */

func GetTypeName[T any]() string {
	var v T
	typeOfT := reflect.TypeOf(v)
	return typeOfT.Name()
}

/* Redis */

// GetSequence returns the next sequence_no for T. Redis holds the counter;
// the table's max(sequence_no) seeds it and is the only source when redis is off.
func GetSequence[T any](ctx context.Context, tx *gorm.DB) (int64, error) {
	var model T
	mutex.Lock()
	defer mutex.Unlock()
	cacheKey := strings.ToLower(GetTypeName[T]()) + "_seq"

	for attempt := 0; attempt < 5; attempt++ {
		seqNo, err := config.GetRedisCounter(ctx, cacheKey)
		if err != nil {
			return 0, err
		}
		// 1 means the key did not exist, 0 means no redis
		if seqNo <= 1 {
			var row struct {
				MaxSeq *int64
			}
			if err := tx.Model(&model).Select("max(sequence_no) AS max_seq").Scan(&row).Error; err != nil {
				return 0, err
			}
			seqNo = DereferencePtr(row.MaxSeq) + 1
			if err := config.SetRedisInt(cacheKey, seqNo, 0); err != nil {
				return 0, err
			}
		}
		if err := ValidateUniqueTx[T](tx, "sequence_no", seqNo, nil); err == nil {
			return seqNo, nil
		}
		// counter fell behind the table; reseed on the next attempt
		_ = config.RemoveRedisKey(cacheKey)
	}
	return 0, errors.New("could not allocate sequence number for " + GetTypeName[T]())
}

// ObtainLocks takes one redis lock per key and returns a release func.
// Without redis it is a no-op; callers still hold database row locks.
func ObtainLocks(ctx context.Context, moduleName string, functionName string, keys ...string) (func(), error) {
	locker := config.GetRedisLock()
	if locker == nil || len(keys) == 0 {
		return func() {}, nil
	}
	logger := config.GetLogger()

	obtained := make([]*redislock.Lock, 0, len(keys))
	release := func() {
		for i := len(obtained) - 1; i >= 0; i-- {
			_ = obtained[i].Release(context.Background())
		}
	}
	// fixed order so two requests touching the same parties cannot deadlock
	sorted := UniqueSlice(keys)
	sort.Strings(sorted)
	for _, key := range sorted {
		lock, err := locker.Obtain(ctx, key, 30*time.Second, &redislock.Options{
			RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 50),
		})
		if err == redislock.ErrNotObtained {
			config.LogError(logger, moduleName, functionName, "Could not obtain lock", key, err)
			release()
			return nil, fmt.Errorf("%s is busy, please retry", key)
		} else if err != nil {
			config.LogError(logger, moduleName, functionName, "Error obtaining lock", key, err)
			release()
			return nil, err
		}
		obtained = append(obtained, lock)
	}
	return release, nil
}
