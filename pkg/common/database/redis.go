package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/synaptica-ai/pseudonym/pkg/common/config"
	"github.com/synaptica-ai/pseudonym/pkg/common/logger"
	"gorm.io/gorm"
)

var (
	poolClient *redis.Client
	poolOnce   sync.Once
)

// GetRedis returns the client backing label pools. A pool store that is
// down at startup is logged, not fatal: only the /pools routes depend on it.
func GetRedis() *redis.Client {
	poolOnce.Do(func() {
		cfg := config.Load()
		poolClient = redis.NewClient(&redis.Options{
			Addr:         fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		entry := logger.WithField("addr", poolClient.Options().Addr)
		if err := poolClient.Ping(ctx).Err(); err != nil {
			entry.WithError(err).Error("Label pool store unreachable")
		} else {
			entry.Info("Connected to label pool store")
		}
	})

	return poolClient
}

func CloseRedis() error {
	if poolClient != nil {
		return poolClient.Close()
	}
	return nil
}

// Check pings the keyfile store and, when pools are configured, the label
// pool store. A nil argument is skipped.
func Check(ctx context.Context, keyfiles *gorm.DB, pools *redis.Client) error {
	if keyfiles != nil {
		sqlDB, err := keyfiles.DB()
		if err != nil {
			return fmt.Errorf("keyfile store: %w", err)
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return fmt.Errorf("keyfile store: %w", err)
		}
	}
	if pools != nil {
		if err := pools.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("label pool store: %w", err)
		}
	}
	return nil
}
