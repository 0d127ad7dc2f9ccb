package declaration

import (
	"context"

	"github.com/kekhai/backend/internal/domain/declaration"
)

// TransactionalRepositories exposes the repositories bound to one transaction
type TransactionalRepositories interface {
	Declarations() declaration.DeclarationRepository
	Participants() declaration.ParticipantRepository
	Payments() declaration.PaymentRepository
}

// TransactionScope runs fn atomically. When the engine has a scope, a declaration
// change and its participant fan-out commit or roll back together.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// Metrics records engine outcomes
type Metrics interface {
	OperationCompleted(operation string, err error)
	FanoutWarning(operation, code string)
	CodeRetry(operation string)
}

type noopMetrics struct{}

func (noopMetrics) OperationCompleted(string, error) {}
func (noopMetrics) FanoutWarning(string, string)     {}
func (noopMetrics) CodeRetry(string)                 {}
