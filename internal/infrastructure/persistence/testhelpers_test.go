package persistence

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/kekhai/backend/internal/domain/declaration"
	"github.com/kekhai/backend/internal/infrastructure/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var codeSeq atomic.Int64

// newTestDatabase opens a migrated in-memory sqlite database
func newTestDatabase(t *testing.T) *Database {
	t.Helper()

	db, err := NewDatabase(&config.DatabaseConfig{
		Driver:     config.DriverSQLite,
		SQLitePath: ":memory:",
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func nextCode(prefix string) string {
	return fmt.Sprintf("%s-20260101-%08d", prefix, codeSeq.Add(1))
}

func seedDeclaration(t *testing.T, repo *GormDeclarationRepository, owner uuid.UUID) *declaration.Declaration {
	t.Helper()

	company := uuid.New()
	d, err := declaration.NewDeclaration(nextCode("KK"), owner, "603", "Quarter batch",
		declaration.IssuingOrganization{CompanyID: &company})
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), d))
	return d
}

func seedParticipant(t *testing.T, repo *GormParticipantRepository, declarationID uuid.UUID, stt int, name string) *declaration.Participant {
	t.Helper()

	p, err := declaration.NewParticipant(declarationID, stt, declaration.ParticipantInput{
		FullName:         name,
		NationalID:       fmt.Sprintf("0790%08d", stt),
		ContributionBase: decimal.NewFromInt(2340000),
		ContributionRate: decimal.NewFromFloat(0.045),
		Months:           3,
		Amount:           decimal.NewFromInt(315900),
	})
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), p))
	return p
}

func seedPayment(t *testing.T, repo *GormPaymentRepository, declarationID uuid.UUID) *declaration.Payment {
	t.Helper()

	p, err := declaration.NewPayment(nextCode("TT"), declarationID, decimal.NewFromInt(631800), "", uuid.New(), 0)
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), p))
	return p
}
