package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kekhai/backend/internal/domain/declaration"
	"github.com/kekhai/backend/internal/domain/shared"
	"github.com/kekhai/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormParticipantRepository implements ParticipantRepository using GORM
type GormParticipantRepository struct {
	db *gorm.DB
}

// NewGormParticipantRepository creates a new GormParticipantRepository
func NewGormParticipantRepository(db *gorm.DB) *GormParticipantRepository {
	return &GormParticipantRepository{db: db}
}

// Create inserts a participant row. The parent declaration must exist.
func (r *GormParticipantRepository) Create(ctx context.Context, p *declaration.Participant) error {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.DeclarationModel{}).
		Where("id = ?", p.DeclarationID).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return shared.NewNotFoundError("declaration", p.DeclarationID)
	}
	return r.db.WithContext(ctx).Create(models.ParticipantModelFromDomain(p)).Error
}

// FindByID finds a participant by its ID
func (r *GormParticipantRepository) FindByID(ctx context.Context, id uuid.UUID) (*declaration.Participant, error) {
	var m models.ParticipantModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, translateFindError(err, "participant", id)
	}
	return m.ToDomain(), nil
}

// Update writes every column of the participant
func (r *GormParticipantRepository) Update(ctx context.Context, p *declaration.Participant) error {
	m := models.ParticipantModelFromDomain(p)
	result := r.db.WithContext(ctx).
		Model(&models.ParticipantModel{}).
		Where("id = ?", p.ID).
		Updates(m.MutableColumns())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewNotFoundError("participant", p.ID)
	}
	return nil
}

// Delete removes a participant row
func (r *GormParticipantRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.ParticipantModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewNotFoundError("participant", id)
	}
	return nil
}

// ListByDeclaration returns the participants of a declaration ordered by stt
func (r *GormParticipantRepository) ListByDeclaration(ctx context.Context, declarationID uuid.UUID) ([]declaration.Participant, error) {
	var rows []models.ParticipantModel
	if err := r.db.WithContext(ctx).
		Where("declaration_id = ?", declarationID).
		Order("stt ASC").Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return participantsToDomain(rows), nil
}

// MaxStt returns the highest stt in the declaration, 0 when it has no participants
func (r *GormParticipantRepository) MaxStt(ctx context.Context, declarationID uuid.UUID) (int, error) {
	var maxStt int
	if err := r.db.WithContext(ctx).
		Model(&models.ParticipantModel{}).
		Select("COALESCE(MAX(stt), 0)").
		Where("declaration_id = ?", declarationID).
		Scan(&maxStt).Error; err != nil {
		return 0, err
	}
	return maxStt, nil
}

// BulkUpdateStatus applies the update to every participant of the declaration
func (r *GormParticipantRepository) BulkUpdateStatus(ctx context.Context, declarationID uuid.UUID, update declaration.BulkStatusUpdate) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ParticipantModel{}).
		Where("declaration_id = ?", declarationID).
		Updates(bulkColumns(update))
	return result.RowsAffected, result.Error
}

// MarkPaymentCompleted settles every participant that references the payment
func (r *GormParticipantRepository) MarkPaymentCompleted(ctx context.Context, paymentID uuid.UUID, stamp declaration.SubmissionStamp) (int64, error) {
	completed := declaration.SettlementCompleted
	at := stamp.At
	result := r.db.WithContext(ctx).
		Model(&models.ParticipantModel{}).
		Where("payment_id = ?", paymentID).
		Updates(bulkColumns(declaration.BulkStatusUpdate{
			Status:        declaration.ParticipantSubmitted,
			Actor:         stamp.Actor,
			At:            at,
			PaymentStatus: &completed,
			PaidAt:        &at,
			MarkSubmitted: true,
		}))
	return result.RowsAffected, result.Error
}

// UnlinkPayment clears the payment reference of every participant pointing at it
func (r *GormParticipantRepository) UnlinkPayment(ctx context.Context, paymentID uuid.UUID, actor uuid.UUID, at time.Time) (int64, error) {
	unpaid := declaration.SettlementUnpaid
	result := r.db.WithContext(ctx).
		Model(&models.ParticipantModel{}).
		Where("payment_id = ?", paymentID).
		Updates(bulkColumns(declaration.BulkStatusUpdate{
			Actor:         actor,
			At:            at,
			PaymentStatus: &unpaid,
			ClearPayment:  true,
		}))
	return result.RowsAffected, result.Error
}

// MoveToDeclaration re-points participants from source to target inside one transaction.
// The moved rows continue the target's stt sequence and restart as draft and unpaid.
func (r *GormParticipantRepository) MoveToDeclaration(ctx context.Context, ids []uuid.UUID, sourceID, targetID, actor uuid.UUID, at time.Time) (int64, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}

	var moved int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owned []uuid.UUID
		if err := tx.Model(&models.ParticipantModel{}).
			Where("id IN ? AND declaration_id = ?", ids, sourceID).
			Pluck("id", &owned).Error; err != nil {
			return err
		}
		if len(owned) != len(ids) {
			missing := firstMissing(ids, owned)
			return shared.NewValidationError(declaration.CodeParticipantNotInSource,
				fmt.Sprintf("Participant %s does not belong to declaration %s", missing, sourceID))
		}

		var next int64
		if err := tx.Model(&models.ParticipantModel{}).
			Where("declaration_id = ?", targetID).
			Count(&next).Error; err != nil {
			return err
		}

		for _, id := range ids {
			next++
			result := tx.Model(&models.ParticipantModel{}).
				Where("id = ?", id).
				Updates(map[string]any{
					"declaration_id":    targetID,
					"stt":               next,
					"status":            string(declaration.ParticipantDraft),
					"payment_id":        nil,
					"payment_status":    string(declaration.SettlementUnpaid),
					"paid_at":           nil,
					"submitted_at":      nil,
					"submitted_by":      nil,
					"status_updated_at": at,
					"status_updated_by": actor,
					"status_note":       "",
					"updated_at":        at,
				})
			if result.Error != nil {
				return result.Error
			}
			moved += result.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return moved, nil
}

// DeleteByDeclaration removes every participant of the declaration
func (r *GormParticipantRepository) DeleteByDeclaration(ctx context.Context, declarationID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("declaration_id = ?", declarationID).
		Delete(&models.ParticipantModel{})
	return result.RowsAffected, result.Error
}

// ListPage returns participants ordered by id, starting after AfterID
func (r *GormParticipantRepository) ListPage(ctx context.Context, query declaration.ParticipantPageQuery) ([]declaration.Participant, error) {
	q := r.db.WithContext(ctx).Model(&models.ParticipantModel{})
	if query.OwnerID != nil {
		q = q.Joins("JOIN declarations ON declarations.id = participants.declaration_id").
			Where("declarations.owner_id = ?", *query.OwnerID)
	}
	if query.AfterID != nil {
		q = q.Where("participants.id > ?", *query.AfterID)
	}
	q = q.Order("participants.id ASC")
	if query.Limit > 0 {
		q = q.Limit(query.Limit)
	}

	var rows []models.ParticipantModel
	if err := q.Select("participants.*").Find(&rows).Error; err != nil {
		return nil, err
	}
	return participantsToDomain(rows), nil
}

// bulkColumns translates a bulk update into the column map written to every matched row
func bulkColumns(u declaration.BulkStatusUpdate) map[string]any {
	cols := map[string]any{"updated_at": u.At}
	if u.Status != "" {
		cols["status"] = string(u.Status)
		cols["status_updated_at"] = u.At
		cols["status_updated_by"] = u.Actor
		cols["status_note"] = u.Note
	}
	if u.PaymentStatus != nil {
		cols["payment_status"] = string(*u.PaymentStatus)
	}
	if u.ClearPayment {
		cols["payment_id"] = nil
		cols["paid_at"] = nil
	}
	if u.PaymentID != nil {
		cols["payment_id"] = *u.PaymentID
	}
	if u.PaidAt != nil {
		cols["paid_at"] = *u.PaidAt
	}
	if u.MarkSubmitted {
		cols["submitted_at"] = u.At
		cols["submitted_by"] = u.Actor
	}
	if u.CaseFileCode != nil {
		cols["case_file_code"] = *u.CaseFileCode
	}
	return cols
}

func participantsToDomain(rows []models.ParticipantModel) []declaration.Participant {
	out := make([]declaration.Participant, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func firstMissing(want, have []uuid.UUID) uuid.UUID {
	found := make(map[uuid.UUID]struct{}, len(have))
	for _, id := range have {
		found[id] = struct{}{}
	}
	for _, id := range want {
		if _, ok := found[id]; !ok {
			return id
		}
	}
	return uuid.Nil
}

// Ensure GormParticipantRepository implements ParticipantRepository
var _ declaration.ParticipantRepository = (*GormParticipantRepository)(nil)
