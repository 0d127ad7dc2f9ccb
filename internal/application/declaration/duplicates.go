package declaration

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kekhai/backend/internal/domain/declaration"
	"github.com/kekhai/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultDuplicatePageSize is the participant page fed to the detector per query
const DefaultDuplicatePageSize = 500

const opScanDuplicates = "scan_duplicates"

// DuplicateScanRequest asks for duplicate clusters across the actor's declarations.
// AllOwners widens the scan to every owner and is honored for admins only.
type DuplicateScanRequest struct {
	Actor     Actor
	AllOwners bool
}

// DuplicateReport is the result of one scan
type DuplicateReport struct {
	Scanned  int                            `json:"scanned"`
	Clusters []declaration.DuplicateCluster `json:"clusters"`
	Shared   bool                           `json:"-"`
}

// DuplicateServiceConfig holds the collaborators of DuplicateService
type DuplicateServiceConfig struct {
	Participants declaration.ParticipantRepository
	PageSize     int
	Logger       *zap.Logger
}

// DuplicateService pages participants through the streaming duplicate detector.
// Concurrent scans of the same scope share one run.
type DuplicateService struct {
	participants declaration.ParticipantRepository
	pageSize     int
	logger       *zap.Logger
	group        singleflight.Group
}

// NewDuplicateService creates a new DuplicateService
func NewDuplicateService(cfg DuplicateServiceConfig) *DuplicateService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultDuplicatePageSize
	}
	return &DuplicateService{
		participants: cfg.Participants,
		pageSize:     pageSize,
		logger:       logger.Named("duplicate-scan"),
	}
}

// Scan groups the participants in scope by insurance code and by name.
// It never modifies anything.
func (s *DuplicateService) Scan(ctx context.Context, req DuplicateScanRequest) (*DuplicateReport, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "declaration", opScanDuplicates)
	defer span.End()

	key := "all"
	var owner *uuid.UUID
	if !req.AllOwners || !req.Actor.IsAdmin {
		id := req.Actor.UserID
		owner = &id
		key = id.String()
	}

	// The shared run outlives any single caller; each caller waits on its own ctx.
	ch := s.group.DoChan(key, func() (any, error) {
		return s.scan(context.WithoutCancel(ctx), owner)
	})
	select {
	case <-ctx.Done():
		err := wrapStoreError(opScanDuplicates, ctx.Err())
		telemetry.RecordError(span, err)
		return nil, err
	case res := <-ch:
		if res.Err != nil {
			err := wrapStoreError(opScanDuplicates, res.Err)
			telemetry.RecordError(span, err)
			return nil, err
		}
		report := *res.Val.(*DuplicateReport)
		report.Shared = res.Shared
		return &report, nil
	}
}

func (s *DuplicateService) scan(ctx context.Context, owner *uuid.UUID) (*DuplicateReport, error) {
	started := time.Now()
	detector := declaration.NewDuplicateDetector()
	query := declaration.ParticipantPageQuery{OwnerID: owner, Limit: s.pageSize}
	pages := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := s.participants.ListPage(ctx, query)
		if err != nil {
			return nil, err
		}
		pages++
		detector.Add(page...)
		if len(page) < s.pageSize {
			break
		}
		last := page[len(page)-1].ID
		query.AfterID = &last
	}

	report := &DuplicateReport{Scanned: detector.Scanned(), Clusters: detector.Clusters()}
	s.logger.Debug("duplicate scan finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("pages", pages),
		zap.Int("clusters", len(report.Clusters)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return report, nil
}
