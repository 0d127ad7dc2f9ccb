package persistence

import (
	"errors"

	"github.com/kekhai/backend/internal/domain/declaration"
	"github.com/kekhai/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// translateCreateError maps a unique violation on insert to the code-collision
// sentinel the engine retries on.
func translateCreateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return declaration.ErrDuplicateCode
	}
	return err
}

// translateFindError maps a missing row to a typed not-found error
func translateFindError(err error, resource string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.NewNotFoundError(resource, id)
	}
	return err
}
