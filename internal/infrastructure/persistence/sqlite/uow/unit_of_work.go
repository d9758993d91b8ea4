package uow

import (
	"context"

	"gorm.io/gorm"

	"cranesection/internal/ports"
)

// UnitOfWork implements ports.UnitOfWork with gorm. Nested calls reuse the outer
// transaction through a savepoint.
type UnitOfWork struct {
	db *gorm.DB
}

var _ ports.UnitOfWork = (*UnitOfWork)(nil)

func NewUnitOfWork(db *gorm.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

func (u *UnitOfWork) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	db := u.db
	if tx, ok := ports.TxFromContext(ctx).(*gorm.DB); ok && tx != nil {
		db = tx
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ports.WithTxContext(ctx, tx))
	})
}
