package persistence

import (
	"context"

	appdecl "github.com/kekhai/backend/internal/application/declaration"
	"github.com/kekhai/backend/internal/domain/declaration"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// A declaration change and its participant fan-out commit or roll back together.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appdecl.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// Declarations returns the declaration repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Declarations() declaration.DeclarationRepository {
	return NewGormDeclarationRepository(r.tx)
}

// Participants returns the participant repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Participants() declaration.ParticipantRepository {
	return NewGormParticipantRepository(r.tx)
}

// Payments returns the payment repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Payments() declaration.PaymentRepository {
	return NewGormPaymentRepository(r.tx)
}

// Ensure GormTransactionScope implements TransactionScope
var _ appdecl.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ appdecl.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
