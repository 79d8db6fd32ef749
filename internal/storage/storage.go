package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/liamashdown/polywatch/internal/config"
)

// DB wraps the GORM database connection
type DB struct {
	conn *gorm.DB
	log  *logrus.Logger
}

// New creates a new MySQL connection with GORM
func New(cfg *config.Config, log *logrus.Logger) (*DB, error) {
	db, err := Open(mysql.Open(cfg.DatabaseDSN), log)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.conn.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.DatabaseMaxConns)
	sqlDB.SetMaxIdleConns(cfg.DatabaseMaxConns / 2)
	sqlDB.SetConnMaxIdleTime(cfg.DatabaseMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info("Database connection established")

	return db, nil
}

// Open wraps an arbitrary GORM dialector
func Open(dialector gorm.Dialector, log *logrus.Logger) (*DB, error) {
	gormLogger := logger.New(
		&gormLogAdapter{log: log},
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return &DB{conn: conn, log: log}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	sqlDB, err := db.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AutoMigrate creates or updates the schema
func (db *DB) AutoMigrate() error {
	return db.conn.AutoMigrate(
		&AnalysisRun{},
		&OutcomeScore{},
		&DetectorResult{},
		&Alert{},
	)
}

// SaveRun stores a run with its outcome and detector rows in one
// transaction and returns the run id.
func (db *DB) SaveRun(ctx context.Context, rec *RunRecord) (int64, error) {
	err := db.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&rec.Run).Error; err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		if len(rec.Results) > 0 {
			for i := range rec.Results {
				rec.Results[i].RunID = rec.Run.ID
			}
			if err := tx.Create(&rec.Results).Error; err != nil {
				return fmt.Errorf("insert run results: %w", err)
			}
		}

		for i := range rec.Outcomes {
			o := &rec.Outcomes[i]
			o.Score.RunID = rec.Run.ID
			if err := tx.Create(&o.Score).Error; err != nil {
				return fmt.Errorf("insert outcome %s: %w", o.Score.Label, err)
			}
			if len(o.Results) == 0 {
				continue
			}
			for j := range o.Results {
				o.Results[j].RunID = rec.Run.ID
				o.Results[j].OutcomeScoreID = &o.Score.ID
			}
			if err := tx.Create(&o.Results).Error; err != nil {
				return fmt.Errorf("insert outcome results %s: %w", o.Score.Label, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return rec.Run.ID, nil
}

// ListRuns returns the most recent runs, newest first. An empty slug lists
// runs for every event.
func (db *DB) ListRuns(ctx context.Context, slug string, limit int) ([]AnalysisRun, error) {
	var runs []AnalysisRun
	q := db.conn.WithContext(ctx).Order("created_ts DESC").Order("id DESC")
	if slug != "" {
		q = q.Where("slug = ?", slug)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// GetRunOutcomes returns the per-outcome rows of a run, highest score first
func (db *DB) GetRunOutcomes(ctx context.Context, runID int64) ([]OutcomeScore, error) {
	var outcomes []OutcomeScore
	result := db.conn.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("score DESC").
		Find(&outcomes)
	return outcomes, result.Error
}

// InsertAlert inserts a new alert record
func (db *DB) InsertAlert(ctx context.Context, alert *Alert) (int64, error) {
	result := db.conn.WithContext(ctx).Create(alert)
	if result.Error != nil {
		return 0, result.Error
	}
	return alert.ID, nil
}

// GetLastAlertForSlug retrieves the most recent alert for an event
func (db *DB) GetLastAlertForSlug(ctx context.Context, slug string) (*Alert, error) {
	var alert Alert
	result := db.conn.WithContext(ctx).
		Where("slug = ?", slug).
		Order("created_ts DESC").
		First(&alert)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &alert, nil
}

// gormLogAdapter adapts logrus to GORM's logger interface
type gormLogAdapter struct {
	log *logrus.Logger
}

func (l *gormLogAdapter) Printf(format string, args ...interface{}) {
	l.log.Debugf(format, args...)
}
