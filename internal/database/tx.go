package database

import (
	"context"

	"gorm.io/gorm"
)

// WithTransaction runs fn in a single transaction. The transaction is
// committed when fn returns nil and rolled back when it returns an error
// or panics.
func WithTransaction(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	return db.WithContext(ctx).Transaction(fn)
}
