package collect

import (
	"context"

	"github.com/cloudbill/backend/internal/domain/billing"
	"github.com/cloudbill/backend/internal/domain/identity"
)

// TransactionScope provides transactional access to the repositories
// the collector writes inside one hour commit. Usage rows, the balance
// charge and the cursor advance of one window are committed or rolled
// back as a single unit.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to the collector's write
// repositories within a transaction. All repositories returned share
// the same underlying database transaction.
type TransactionalRepositories interface {
	// Tenants returns the tenant repository scoped to the current transaction
	Tenants() identity.TenantRepository
	// UsageRows returns the usage row repository scoped to the current transaction
	UsageRows() billing.UsageRowRepository
}

// NoOpTransactionScope runs the function without a real transaction.
// Useful for tests where atomicity is not under test.
type NoOpTransactionScope struct {
	tenants   identity.TenantRepository
	usageRows billing.UsageRowRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope over the given repositories
func NewNoOpTransactionScope(tenants identity.TenantRepository, usageRows billing.UsageRowRepository) *NoOpTransactionScope {
	return &NoOpTransactionScope{tenants: tenants, usageRows: usageRows}
}

// Execute runs the function without transactional guarantees
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// Tenants returns the tenant repository
func (s *NoOpTransactionScope) Tenants() identity.TenantRepository {
	return s.tenants
}

// UsageRows returns the usage row repository
func (s *NoOpTransactionScope) UsageRows() billing.UsageRowRepository {
	return s.usageRows
}
