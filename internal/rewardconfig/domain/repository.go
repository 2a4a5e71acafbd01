package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	List(ctx context.Context, db *gorm.DB) ([]Configuration, error)
	FindByName(ctx context.Context, db *gorm.DB, name string) (*Configuration, error)
	Upsert(ctx context.Context, db *gorm.DB, cfg *Configuration) error
}
