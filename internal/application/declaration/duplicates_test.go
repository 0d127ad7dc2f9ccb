package declaration

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/kekhai/backend/internal/domain/declaration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func participantNamed(t *testing.T, declarationID uuid.UUID, stt int, name string) declaration.Participant {
	t.Helper()
	p, err := declaration.NewParticipant(declarationID, stt, declaration.ParticipantInput{FullName: name})
	require.NoError(t, err)
	return *p
}

func TestDuplicateService_PagesUntilShortPage(t *testing.T) {
	repo := new(mockParticipantRepository)
	svc := NewDuplicateService(DuplicateServiceConfig{Participants: repo, PageSize: 2})
	actor := Actor{UserID: uuid.New()}
	declarationID := uuid.New()

	first := []declaration.Participant{
		participantNamed(t, declarationID, 1, "Nguyen Van A"),
		participantNamed(t, declarationID, 2, "Tran Thi B"),
	}
	second := []declaration.Participant{
		participantNamed(t, declarationID, 3, " NGUYEN VAN A "),
	}
	lastID := first[1].ID

	repo.On("ListPage", mock.Anything, mock.MatchedBy(func(q declaration.ParticipantPageQuery) bool {
		return q.AfterID == nil && q.Limit == 2 && q.OwnerID != nil && *q.OwnerID == actor.UserID
	})).Return(first, nil).Once()
	repo.On("ListPage", mock.Anything, mock.MatchedBy(func(q declaration.ParticipantPageQuery) bool {
		return q.AfterID != nil && *q.AfterID == lastID
	})).Return(second, nil).Once()

	report, err := svc.Scan(context.Background(), DuplicateScanRequest{Actor: actor})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Scanned)
	require.Len(t, report.Clusters, 1)
	assert.Equal(t, declaration.DuplicateByFullName, report.Clusters[0].Key)
	assert.Len(t, report.Clusters[0].Members, 2)
	repo.AssertExpectations(t)
}

func TestDuplicateService_AllOwnersRequiresAdmin(t *testing.T) {
	tests := []struct {
		name      string
		actor     Actor
		allOwners bool
		wantOwner bool
	}{
		{"admin wide scan", Actor{UserID: uuid.New(), IsAdmin: true}, true, false},
		{"admin own scan", Actor{UserID: uuid.New(), IsAdmin: true}, false, true},
		{"staff cannot widen", Actor{UserID: uuid.New()}, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mockParticipantRepository)
			svc := NewDuplicateService(DuplicateServiceConfig{Participants: repo})

			repo.On("ListPage", mock.Anything, mock.MatchedBy(func(q declaration.ParticipantPageQuery) bool {
				if q.Limit != DefaultDuplicatePageSize {
					return false
				}
				if !tt.wantOwner {
					return q.OwnerID == nil
				}
				return q.OwnerID != nil && *q.OwnerID == tt.actor.UserID
			})).Return([]declaration.Participant{}, nil).Once()

			report, err := svc.Scan(context.Background(), DuplicateScanRequest{Actor: tt.actor, AllOwners: tt.allOwners})
			require.NoError(t, err)
			assert.Zero(t, report.Scanned)
			assert.Empty(t, report.Clusters)
			repo.AssertExpectations(t)
		})
	}
}

func TestDuplicateService_PropagatesErrors(t *testing.T) {
	repo := new(mockParticipantRepository)
	svc := NewDuplicateService(DuplicateServiceConfig{Participants: repo})
	repo.On("ListPage", mock.Anything, mock.Anything).Return(nil, errInjected)

	_, err := svc.Scan(context.Background(), DuplicateScanRequest{Actor: Actor{UserID: uuid.New()}})
	assert.ErrorIs(t, err, errInjected)
}

func TestDuplicateService_CancelledCallerLeavesSharedScanRunning(t *testing.T) {
	repo := new(mockParticipantRepository)
	svc := NewDuplicateService(DuplicateServiceConfig{Participants: repo})
	actor := Actor{UserID: uuid.New()}
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	repo.On("ListPage", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			once.Do(func() { close(started) })
			<-release
		}).
		Return([]declaration.Participant{participantNamed(t, uuid.New(), 1, "Le Van C")}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Scan(ctx, DuplicateScanRequest{Actor: actor})
		firstErr <- err
	}()
	<-started

	type outcome struct {
		report *DuplicateReport
		err    error
	}
	second := make(chan outcome, 1)
	go func() {
		report, err := svc.Scan(context.Background(), DuplicateScanRequest{Actor: actor})
		second <- outcome{report, err}
	}()

	cancel()
	err := <-firstErr
	assertCode(t, err, declaration.CodeOperationAborted)
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, 1, got.report.Scanned)
}

func TestDuplicateService_AcrossDeclarations(t *testing.T) {
	env := newTestEnv(t)
	first := env.draft(t, 100000, 200000)
	second := env.draft(t, 100000)

	// another owner's participant with the same insurance code stays out of scope
	foreign, err := declaration.NewDeclaration("KK-OTHER-1", uuid.New(), "603", "", companyOrg())
	require.NoError(t, err)
	env.store.putDeclaration(foreign)
	p, err := declaration.NewParticipant(foreign.ID, 1, participantInput("Someone Else", 100000))
	require.NoError(t, err)
	env.store.putParticipant(p)

	svc := NewDuplicateService(DuplicateServiceConfig{Participants: env.store.Participants(), PageSize: 2})
	report, err := svc.Scan(context.Background(), DuplicateScanRequest{Actor: env.owner})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Scanned)
	var byCode *declaration.DuplicateCluster
	for i := range report.Clusters {
		if report.Clusters[i].Key == declaration.DuplicateByInsuranceCode {
			byCode = &report.Clusters[i]
		}
	}
	require.NotNil(t, byCode)
	require.Len(t, byCode.Members, 2)
	declarations := []uuid.UUID{byCode.Members[0].DeclarationID, byCode.Members[1].DeclarationID}
	assert.ElementsMatch(t, []uuid.UUID{first.ID, second.ID}, declarations)

	wide, err := svc.Scan(context.Background(), DuplicateScanRequest{Actor: Actor{UserID: uuid.New(), IsAdmin: true}, AllOwners: true})
	require.NoError(t, err)
	assert.Equal(t, 4, wide.Scanned)
}
