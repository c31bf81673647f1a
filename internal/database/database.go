package database

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/config"
	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/store"
	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/store/mongostore"
	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/store/sqlstore"
)

// Open connects the backend selected by cfg.StoreDriver and prepares its schema.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	switch cfg.StoreDriver {
	case "mongo", "mongodb":
		client, db, err := ConnectMongo(ctx, cfg.MongoURI, cfg.DatabaseName, logger)
		if err != nil {
			return nil, err
		}
		return mongostore.New(client, db), nil
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
		db, err := OpenSQL("postgres", cfg.DatabaseURL, logger)
		if err != nil {
			return nil, err
		}
		return sqlstore.New(db)
	case "sqlite":
		db, err := OpenSQL("sqlite", cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		return sqlstore.New(db)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

func ConnectMongo(ctx context.Context, uri, dbName string, logger *zap.Logger) (*mongo.Client, *mongo.Database, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(dbName)
	logger.Info("connected to MongoDB", zap.String("database", dbName))

	if err := mongostore.EnsureIndexes(ctx, db); err != nil {
		logger.Warn("failed to create MongoDB indexes", zap.Error(err))
	}
	return client, db, nil
}

// OpenSQL opens a GORM handle. SQLite is pinned to one connection so that
// ":memory:" databases survive across queries.
func OpenSQL(driver, dsn string, logger *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(zap.NewStdLog(logger.Named("gorm")), gormlogger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	logger.Info("connected to SQL database", zap.String("driver", driver))
	return db, nil
}
