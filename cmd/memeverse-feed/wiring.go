package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Sanskarlajurkar07/memeverse/internal/catalog"
	"github.com/Sanskarlajurkar07/memeverse/internal/config"
	"github.com/Sanskarlajurkar07/memeverse/internal/database"
	"github.com/Sanskarlajurkar07/memeverse/internal/metrics"
	"github.com/Sanskarlajurkar07/memeverse/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// components holds the shared backends of the server and the browse command.
type components struct {
	database *gorm.DB
	store    storage.Store
	fetcher  catalog.Fetcher
	closers  []namedCloser
	logger   *zap.Logger
}

type namedCloser struct {
	name  string
	close func() error
}

func (c *components) addCloser(name string, closeFn func() error) {
	c.closers = append(c.closers, namedCloser{name: name, close: closeFn})
}

// Close releases the backends in reverse opening order. Failures are logged, not returned.
func (c *components) Close() {
	logger := c.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	for index := len(c.closers) - 1; index >= 0; index-- {
		closer := c.closers[index]
		if err := closer.close(); err != nil {
			logger.Warn("failed to close backend", zap.String("backend", closer.name), zap.Error(err))
		}
	}
	c.closers = nil
}

// openComponents opens the sqlite database, the mutation log backend selected by
// storage.driver and the catalog fetcher.
func openComponents(ctx context.Context, appConfig config.AppConfig, logger *zap.Logger, recorder *metrics.Recorder) (*components, error) {
	opened := &components{logger: logger}

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	opened.database = db
	opened.addCloser("sqlite", sqlDB.Close)

	store, err := openStore(ctx, appConfig, db, logger, opened)
	if err != nil {
		opened.Close()
		return nil, err
	}
	opened.store = store

	fetcher, err := catalog.NewHTTPFetcher(catalog.HTTPFetcherConfig{
		URL:              appConfig.CatalogURL,
		Timeout:          time.Duration(appConfig.CatalogTimeoutSeconds) * time.Second,
		Seeder:           catalog.NewRandomSeeder(nil),
		Clock:            time.Now,
		Logger:           logger,
		Metrics:          recorder,
		FailureThreshold: uint32(max(appConfig.CatalogFailures, 0)),
		OpenTimeout:      time.Duration(appConfig.CatalogOpenSeconds) * time.Second,
	})
	if err != nil {
		opened.Close()
		return nil, err
	}
	opened.fetcher = fetcher
	return opened, nil
}

func openStore(ctx context.Context, appConfig config.AppConfig, db *gorm.DB, logger *zap.Logger, opened *components) (storage.Store, error) {
	switch appConfig.StorageDriver {
	case config.DriverMemory:
		return storage.NewMemoryStore(), nil
	case config.DriverSQLite:
		return storage.NewSQLStore(db, time.Now), nil
	case config.DriverBadger:
		badgerStore, err := storage.OpenBadger(storage.BadgerConfig{
			Path:       appConfig.BadgerPath,
			SyncWrites: true,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		opened.addCloser("badger", badgerStore.Close)
		return badgerStore, nil
	case config.DriverMinio:
		client, err := storage.NewObjectClient(storage.ObjectConfig{
			Endpoint:  appConfig.Minio.Endpoint,
			AccessKey: appConfig.Minio.AccessKey,
			SecretKey: appConfig.Minio.SecretKey,
			UseSSL:    appConfig.Minio.UseSSL,
			Bucket:    appConfig.Minio.Bucket,
			Region:    appConfig.Minio.Region,
		})
		if err != nil {
			return nil, err
		}
		return storage.NewObjectStore(ctx, client, appConfig.Minio.Bucket)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", appConfig.StorageDriver)
	}
}
