package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CartRecordRow is one persisted payload in the cart_records table.
type CartRecordRow struct {
	CartKey   string    `gorm:"column:cart_key;primaryKey;size:255"`
	Payload   string    `gorm:"column:payload;type:text;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (CartRecordRow) TableName() string {
	return "cart_records"
}

// SQL stores payloads in cart_records through GORM (Postgres or SQLite).
type SQL struct {
	db  *gorm.DB
	now func() time.Time
}

func NewSQL(db *gorm.DB) *SQL {
	return &SQL{db: db, now: time.Now}
}

func (s *SQL) Load(ctx context.Context, key string) ([]byte, error) {
	var row CartRecordRow
	err := s.db.WithContext(ctx).
		Where("cart_key = ?", key).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return []byte(row.Payload), nil
}

// Save upserts the full payload in a single statement.
func (s *SQL) Save(ctx context.Context, key string, payload []byte) error {
	row := CartRecordRow{
		CartKey:   key,
		Payload:   string(payload),
		UpdatedAt: s.now().UTC(),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cart_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
		}).
		Create(&row).Error
}

func (s *SQL) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
