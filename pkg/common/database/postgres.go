package database

import (
	"fmt"
	"sync"

	"github.com/synaptica-ai/pseudonym/pkg/common/config"
	"github.com/synaptica-ai/pseudonym/pkg/common/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	keyfileDB     *gorm.DB
	keyfileDBOnce sync.Once
)

// GetKeyfileStore connects to the database holding keyfiles. It is separate
// from anything that stores payload data.
func GetKeyfileStore() (*gorm.DB, error) {
	var err error
	keyfileDBOnce.Do(func() {
		cfg := config.Load()
		dsn := fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
			cfg.KeyfilePostgresHost,
			cfg.KeyfilePostgresUser,
			cfg.KeyfilePostgresPassword,
			cfg.KeyfilePostgresDB,
			cfg.KeyfilePostgresPort,
			cfg.KeyfilePostgresSSLMode,
		)

		// silent SQL logging: statements carry identifying values
		keyfileDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			logger.Log.WithError(err).Error("Failed to connect to keyfile store")
			return
		}

		logger.Log.Info("Connected to keyfile store")
	})

	return keyfileDB, err
}

func CloseKeyfileStore() error {
	if keyfileDB != nil {
		sqlDB, err := keyfileDB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}
