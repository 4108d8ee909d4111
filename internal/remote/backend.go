package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	// ErrRowNotFound is returned when no row matches both id and owner.
	ErrRowNotFound = errors.New("row not found")
	// ErrDisabled is returned by the backend used when no remote store is configured.
	ErrDisabled = errors.New("remote store not configured")
)

// Backend is the hosted relational store. Every call is scoped by owner.
type Backend interface {
	SelectByOwner(ctx context.Context, owner string) ([]Row, error)
	Insert(ctx context.Context, row Row) (Row, error)
	UpdateFields(ctx context.Context, id, owner string, fields map[string]any) (Row, error)
	Delete(ctx context.Context, id, owner string) (bool, error)
}

// GormBackend stores rows in a MySQL table through gorm.
type GormBackend struct {
	db *gorm.DB
}

// OpenMySQL connects to dsn, tunes the pool and migrates the tasks table.
// gorm's own messages go to log.
func OpenMySQL(dsn string, log *zap.SugaredLogger) (*GormBackend, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: newGormLogger(log),
	})
	if err != nil {
		return nil, fmt.Errorf("open remote store: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("remote pool: %w", err)
	}
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Row{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate remote tasks: %w", err)
	}
	return NewGormBackend(db), nil
}

func newGormLogger(log *zap.SugaredLogger) logger.Interface {
	return logger.New(zap.NewStdLog(log.Desugar()), logger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

// NewGormBackend wraps an existing gorm handle.
func NewGormBackend(db *gorm.DB) *GormBackend {
	return &GormBackend{db: db}
}

func (b *GormBackend) SelectByOwner(ctx context.Context, owner string) ([]Row, error) {
	var rows []Row
	err := b.db.WithContext(ctx).
		Where("user_id = ?", owner).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("select tasks: %w", err)
	}
	return rows, nil
}

func (b *GormBackend) Insert(ctx context.Context, row Row) (Row, error) {
	if err := b.db.WithContext(ctx).Create(&row).Error; err != nil {
		return Row{}, fmt.Errorf("insert task %s: %w", row.ID, err)
	}
	return row, nil
}

func (b *GormBackend) UpdateFields(ctx context.Context, id, owner string, fields map[string]any) (Row, error) {
	var row Row
	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Row{}).Where("id = ? AND user_id = ?", id, owner).Updates(fields)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRowNotFound
		}
		return tx.Where("id = ? AND user_id = ?", id, owner).First(&row).Error
	})
	if err != nil {
		return Row{}, fmt.Errorf("update task %s: %w", id, err)
	}
	return row, nil
}

func (b *GormBackend) Delete(ctx context.Context, id, owner string) (bool, error) {
	res := b.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, owner).Delete(&Row{})
	if res.Error != nil {
		return false, fmt.Errorf("delete task %s: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Close releases the connection pool.
func (b *GormBackend) Close() error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Disabled is the backend used without a configured remote store; every
// call fails with ErrDisabled.
type Disabled struct{}

func (Disabled) SelectByOwner(context.Context, string) ([]Row, error) { return nil, ErrDisabled }
func (Disabled) Insert(context.Context, Row) (Row, error)            { return Row{}, ErrDisabled }
func (Disabled) UpdateFields(context.Context, string, string, map[string]any) (Row, error) {
	return Row{}, ErrDisabled
}
func (Disabled) Delete(context.Context, string, string) (bool, error) { return false, ErrDisabled }
