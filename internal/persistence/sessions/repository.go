package sessions

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"murmur/internal/config"
	"murmur/internal/core"
	"murmur/internal/persistence"
)

type Model struct {
	Profile   string `gorm:"primaryKey"`
	Username  string `gorm:"not null"`
	Token     string `gorm:"not null"`
	UpdatedAt time.Time
}

func (Model) TableName() string {
	return "murmur_sessions"
}

// Repository stores sessions in postgres, one row per profile.
type Repository struct {
	Config *config.Config
	DB     *persistence.DB
}

func (r *Repository) Init(_ context.Context) error {
	return r.DB.AutoMigrate(&Model{})
}

func (r *Repository) Get(ctx context.Context) (core.Session, error) {
	var m Model
	err := r.DB.
		Model(&Model{}).
		WithContext(ctx).
		Where("profile = ?", r.Config.Profile).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return core.Session{}, core.ErrNoSession
		}
		return core.Session{}, err
	}

	return core.Session{Username: m.Username, Token: m.Token}, nil
}

func (r *Repository) Put(ctx context.Context, session core.Session) error {
	return r.DB.
		Model(&Model{}).
		WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&Model{
			Profile:  r.Config.Profile,
			Username: session.Username,
			Token:    session.Token,
		}).Error
}

func (r *Repository) Delete(ctx context.Context) error {
	return r.DB.
		Model(&Model{}).
		WithContext(ctx).
		Where("profile = ?", r.Config.Profile).
		Delete(&Model{}).Error
}
