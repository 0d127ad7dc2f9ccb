package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/kekhai/backend/internal/domain/declaration"
	"github.com/kekhai/backend/internal/domain/shared"
	"github.com/kekhai/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormPaymentRepository implements PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// Create inserts a new payment
func (r *GormPaymentRepository) Create(ctx context.Context, p *declaration.Payment) error {
	return translateCreateError(r.db.WithContext(ctx).Create(models.PaymentModelFromDomain(p)).Error)
}

// FindByID finds a payment by its ID
func (r *GormPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*declaration.Payment, error) {
	var m models.PaymentModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, translateFindError(err, "payment", id)
	}
	return m.ToDomain(), nil
}

// FindLatestByDeclaration returns the most recently created payment of the declaration
func (r *GormPaymentRepository) FindLatestByDeclaration(ctx context.Context, declarationID uuid.UUID) (*declaration.Payment, error) {
	var m models.PaymentModel
	if err := r.db.WithContext(ctx).
		Where("declaration_id = ?", declarationID).
		Order("created_at DESC").
		First(&m).Error; err != nil {
		return nil, translateFindError(err, "payment for declaration", declarationID)
	}
	return m.ToDomain(), nil
}

// ListByDeclaration returns the payments of a declaration, newest first
func (r *GormPaymentRepository) ListByDeclaration(ctx context.Context, declarationID uuid.UUID) ([]declaration.Payment, error) {
	var rows []models.PaymentModel
	if err := r.db.WithContext(ctx).
		Where("declaration_id = ?", declarationID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]declaration.Payment, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// UpdateStatus writes the payment when the stored status still equals expected
func (r *GormPaymentRepository) UpdateStatus(ctx context.Context, p *declaration.Payment, expected declaration.PaymentStatus) error {
	m := models.PaymentModelFromDomain(p)
	result := r.db.WithContext(ctx).
		Model(&models.PaymentModel{}).
		Where("id = ? AND status = ?", p.ID, string(expected)).
		Updates(m.MutableColumns())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var statuses []string
	if err := r.db.WithContext(ctx).
		Model(&models.PaymentModel{}).
		Where("id = ?", p.ID).
		Pluck("status", &statuses).Error; err != nil {
		return err
	}
	if len(statuses) == 0 {
		return shared.NewNotFoundError("payment", p.ID)
	}
	return declaration.NewPaymentConflictError(p.Code, expected, declaration.PaymentStatus(statuses[0]))
}

// DeleteByDeclaration removes every payment of the declaration
func (r *GormPaymentRepository) DeleteByDeclaration(ctx context.Context, declarationID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("declaration_id = ?", declarationID).
		Delete(&models.PaymentModel{})
	return result.RowsAffected, result.Error
}

// Ensure GormPaymentRepository implements PaymentRepository
var _ declaration.PaymentRepository = (*GormPaymentRepository)(nil)
