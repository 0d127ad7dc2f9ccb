package persistence

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/kekhai/backend/internal/domain/declaration"
	"github.com/kekhai/backend/internal/domain/shared"
	"github.com/kekhai/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormDeclarationRepository implements DeclarationRepository using GORM
type GormDeclarationRepository struct {
	db *gorm.DB
}

// NewGormDeclarationRepository creates a new GormDeclarationRepository
func NewGormDeclarationRepository(db *gorm.DB) *GormDeclarationRepository {
	return &GormDeclarationRepository{db: db}
}

// Create inserts a new declaration
func (r *GormDeclarationRepository) Create(ctx context.Context, d *declaration.Declaration) error {
	m := models.DeclarationModelFromDomain(d)
	return translateCreateError(r.db.WithContext(ctx).Create(m).Error)
}

// FindByID finds a declaration by its ID
func (r *GormDeclarationRepository) FindByID(ctx context.Context, id uuid.UUID) (*declaration.Declaration, error) {
	var m models.DeclarationModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, translateFindError(err, "declaration", id)
	}
	return m.ToDomain(), nil
}

// FindByCode finds a declaration by its code
func (r *GormDeclarationRepository) FindByCode(ctx context.Context, code string) (*declaration.Declaration, error) {
	var m models.DeclarationModel
	if err := r.db.WithContext(ctx).
		Where("code = ?", strings.TrimSpace(code)).
		First(&m).Error; err != nil {
		return nil, translateFindError(err, "declaration", code)
	}
	return m.ToDomain(), nil
}

// List returns a page of declarations matching the filter and the total count
func (r *GormDeclarationRepository) List(ctx context.Context, filter declaration.DeclarationFilter) ([]declaration.Declaration, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.DeclarationModel{})

	if filter.OwnerID != nil {
		query = query.Where("owner_id = ?", *filter.OwnerID)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		query = query.Where("status IN ?", statuses)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(code) LIKE ? OR LOWER(name) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortField := ValidateSortField(filter.OrderBy, DeclarationSortFields, "code")
	sortOrder := "ASC"
	if filter.OrderBy != "" {
		sortOrder = ValidateSortOrder(filter.OrderDir)
	}
	query = query.Order(sortField + " " + sortOrder).Order("id ASC")

	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var rows []models.DeclarationModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]declaration.Declaration, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

// UpdateStatus writes the declaration when the stored status still equals expected
func (r *GormDeclarationRepository) UpdateStatus(ctx context.Context, d *declaration.Declaration, expected declaration.Status) error {
	m := models.DeclarationModelFromDomain(d)
	result := r.db.WithContext(ctx).
		Model(&models.DeclarationModel{}).
		Where("id = ? AND status = ?", d.ID, string(expected)).
		Updates(m.MutableColumns())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	actual, err := r.currentStatus(ctx, d.ID)
	if err != nil {
		return err
	}
	return declaration.NewStatusConflictError(d.ID, expected, actual)
}

// SaveWithLock writes the declaration guarded by its previous version
func (r *GormDeclarationRepository) SaveWithLock(ctx context.Context, d *declaration.Declaration) error {
	m := models.DeclarationModelFromDomain(d)
	result := r.db.WithContext(ctx).
		Model(&models.DeclarationModel{}).
		Where("id = ? AND version = ?", d.ID, d.Version-1).
		Updates(m.MutableColumns())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	if _, err := r.currentStatus(ctx, d.ID); err != nil {
		return err
	}
	return shared.ErrConcurrencyConflict
}

// Delete removes the declaration row
func (r *GormDeclarationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.DeclarationModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewNotFoundError("declaration", id)
	}
	return nil
}

func (r *GormDeclarationRepository) currentStatus(ctx context.Context, id uuid.UUID) (declaration.Status, error) {
	var statuses []string
	if err := r.db.WithContext(ctx).
		Model(&models.DeclarationModel{}).
		Where("id = ?", id).
		Pluck("status", &statuses).Error; err != nil {
		return "", err
	}
	if len(statuses) == 0 {
		return "", shared.NewNotFoundError("declaration", id)
	}
	return declaration.Status(statuses[0]), nil
}

// Ensure GormDeclarationRepository implements DeclarationRepository
var _ declaration.DeclarationRepository = (*GormDeclarationRepository)(nil)
