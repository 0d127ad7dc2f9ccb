package declaration

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/kekhai/backend/internal/domain/declaration"
	"github.com/kekhai/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// AddParticipant appends a participant to a draft declaration with the next stt
func (e *Engine) AddParticipant(ctx context.Context, req AddParticipantRequest) (result *Result[*declaration.Participant], err error) {
	ctx, done := e.begin(ctx, OpAddParticipant, req.DeclarationID)
	defer func() { err = done(err) }()

	d, err := e.editableDeclaration(ctx, req.DeclarationID)
	if err != nil {
		return nil, err
	}
	maxStt, err := e.participants.MaxStt(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	p, err := declaration.NewParticipant(d.ID, maxStt+1, req.Input)
	if err != nil {
		return nil, err
	}
	p.CaseFileCode = d.CaseFileCode
	if err := e.participants.Create(ctx, p); err != nil {
		return nil, err
	}
	return newResult(p, nil), nil
}

// UpdateParticipant edits a participant while its declaration is still a draft
func (e *Engine) UpdateParticipant(ctx context.Context, req UpdateParticipantRequest) (result *Result[*declaration.Participant], err error) {
	ctx, done := e.begin(ctx, OpUpdateParticipant, uuid.Nil)
	defer func() { err = done(err) }()

	p, err := e.participants.FindByID(ctx, req.ParticipantID)
	if err != nil {
		return nil, err
	}
	if _, err := e.editableDeclaration(ctx, p.DeclarationID); err != nil {
		return nil, err
	}
	if err := p.Apply(req.Input); err != nil {
		return nil, err
	}
	if err := e.participants.Update(ctx, p); err != nil {
		return nil, err
	}
	return newResult(p, nil), nil
}

// RemoveParticipant deletes a participant while its declaration is still a draft
func (e *Engine) RemoveParticipant(ctx context.Context, req RemoveParticipantRequest) (err error) {
	ctx, done := e.begin(ctx, OpRemoveParticipant, uuid.Nil)
	defer func() { err = done(err) }()

	p, err := e.participants.FindByID(ctx, req.ParticipantID)
	if err != nil {
		return err
	}
	if _, err := e.editableDeclaration(ctx, p.DeclarationID); err != nil {
		return err
	}
	return e.participants.Delete(ctx, p.ID)
}

func (e *Engine) editableDeclaration(ctx context.Context, id uuid.UUID) (*declaration.Declaration, error) {
	d, err := e.declarations.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !d.IsEditable() {
		return nil, shared.NewDomainError(declaration.CodeDeclarationLocked,
			fmt.Sprintf("Participants of declaration %s cannot change in %s status", d.Code, d.Status))
	}
	return d, nil
}

// SplitDeclaration moves the selected participants of the source into a new derived
// draft declaration. The moved participants restart as draft and unpaid; the source
// keeps its status and remaining participants.
func (e *Engine) SplitDeclaration(ctx context.Context, req SplitRequest) (result *Result[*SplitResult], err error) {
	ctx, done := e.begin(ctx, OpSplit, req.SourceDeclarationID)
	defer func() { err = done(err) }()

	ids := uniqueIDs(req.ParticipantIDs)
	if len(ids) == 0 {
		return nil, shared.NewValidationError(declaration.CodeNoParticipants, "Select at least one participant to split")
	}

	var split *SplitResult
	err = e.retryOnDuplicateCode(ctx, OpSplit, func(attempt int) error {
		split = nil
		_, err := e.commit(ctx, OpSplit, func(ctx context.Context, s stores) (uuid.UUID, error) {
			source, err := s.declarations.FindByID(ctx, req.SourceDeclarationID)
			if err != nil {
				return uuid.Nil, err
			}
			if source.Status.IsTerminal() || source.Status == declaration.StatusPendingPayment {
				return uuid.Nil, shared.NewDomainError(declaration.CodeInvalidTransition,
					fmt.Sprintf("Cannot split declaration in %s status", source.Status))
			}
			if err := ensureMembers(ctx, s, source.ID, ids); err != nil {
				return uuid.Nil, err
			}

			derived, err := source.Derive(e.codes.DeclarationCode(), req.Actor.UserID, req.Name)
			if err != nil {
				return uuid.Nil, err
			}
			if err := s.declarations.Create(ctx, derived); err != nil {
				return uuid.Nil, err
			}
			moved, err := s.participants.MoveToDeclaration(ctx, ids, source.ID, derived.ID, req.Actor.UserID, e.now())
			if err != nil {
				if !s.atomic {
					e.discardDerived(ctx, s, derived, err)
				}
				return uuid.Nil, err
			}
			split = &SplitResult{Source: source, Derived: derived, Moved: moved}
			return source.ID, nil
		}, nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("declaration split",
		zap.String("declaration_id", split.Source.ID.String()),
		zap.String("derived_id", split.Derived.ID.String()),
		zap.Int64("moved", split.Moved),
	)
	e.publishPending(ctx, split.Derived)
	return newResult(split, nil), nil
}

func ensureMembers(ctx context.Context, s stores, declarationID uuid.UUID, ids []uuid.UUID) error {
	participants, err := s.participants.ListByDeclaration(ctx, declarationID)
	if err != nil {
		return err
	}
	members := make(map[uuid.UUID]struct{}, len(participants))
	for _, p := range participants {
		members[p.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := members[id]; !ok {
			return shared.NewValidationError(declaration.CodeParticipantNotInSource,
				fmt.Sprintf("Participant %s does not belong to the source declaration", id))
		}
	}
	return nil
}

func (e *Engine) discardDerived(ctx context.Context, s stores, derived *declaration.Declaration, cause error) {
	if err := s.declarations.Delete(ctx, derived.ID); err != nil {
		e.logger.Error("failed to remove derived declaration after move failed",
			zap.String("derived_id", derived.ID.String()),
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
	}
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// AssignCaseFileCode sets the case file code and copies it to every participant
func (e *Engine) AssignCaseFileCode(ctx context.Context, req AssignCaseFileCodeRequest) (result *Result[*declaration.Declaration], err error) {
	ctx, done := e.begin(ctx, OpAssignCaseFile, req.DeclarationID)
	defer func() { err = done(err) }()

	var updated *declaration.Declaration
	warnings, err := e.commit(ctx, OpAssignCaseFile, func(ctx context.Context, s stores) (uuid.UUID, error) {
		d, err := s.declarations.FindByID(ctx, req.DeclarationID)
		if err != nil {
			return uuid.Nil, err
		}
		if err := d.AssignCaseFileCode(req.CaseFileCode); err != nil {
			return uuid.Nil, err
		}
		if err := s.declarations.SaveWithLock(ctx, d); err != nil {
			return uuid.Nil, err
		}
		updated = d
		return d.ID, nil
	}, func(ctx context.Context, s stores) (int64, error) {
		code := updated.CaseFileCode
		return s.participants.BulkUpdateStatus(ctx, updated.ID, declaration.BulkStatusUpdate{
			Actor:        req.Actor.UserID,
			At:           e.now(),
			CaseFileCode: &code,
		})
	})
	if err != nil {
		return nil, err
	}
	return newResult(updated, warnings), nil
}

// RepairParticipants rewrites every participant from the declaration's current
// state. It is safe to run any number of times.
func (e *Engine) RepairParticipants(ctx context.Context, req TransitionRequest) (result *Result[*RepairResult], err error) {
	ctx, done := e.begin(ctx, OpRepair, req.DeclarationID)
	defer func() { err = done(err) }()

	repair := &RepairResult{}
	var update declaration.BulkStatusUpdate
	warnings, err := e.commit(ctx, OpRepair, func(ctx context.Context, s stores) (uuid.UUID, error) {
		d, err := s.declarations.FindByID(ctx, req.DeclarationID)
		if err != nil {
			return uuid.Nil, err
		}
		if _, err := guardStatus(d, req.ExpectedStatus); err != nil {
			return uuid.Nil, err
		}
		update, err = e.mirrorUpdate(ctx, s, d, req.Actor.UserID, req.Notes)
		if err != nil {
			return uuid.Nil, err
		}
		repair.Declaration = d
		repair.ParticipantStatus = update.Status
		repair.PaymentStatus = *update.PaymentStatus
		return d.ID, nil
	}, func(ctx context.Context, s stores) (int64, error) {
		n, err := s.participants.BulkUpdateStatus(ctx, repair.Declaration.ID, update)
		repair.ParticipantsUpdated = n
		return n, err
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("participants repaired",
		zap.String("declaration_id", repair.Declaration.ID.String()),
		zap.String("participant_status", string(repair.ParticipantStatus)),
		zap.Int64("participants", repair.ParticipantsUpdated),
	)
	return newResult(repair, warnings), nil
}

// mirrorUpdate builds the bulk update a full fan-out would have written for d
func (e *Engine) mirrorUpdate(ctx context.Context, s stores, d *declaration.Declaration, actor uuid.UUID, note string) (declaration.BulkStatusUpdate, error) {
	status, settlement := d.ParticipantMirror()
	update := declaration.BulkStatusUpdate{
		Status:        status,
		Actor:         actor,
		Note:          note,
		At:            e.now(),
		PaymentStatus: &settlement,
	}
	switch settlement {
	case declaration.SettlementUnpaid:
		update.ClearPayment = true
	case declaration.SettlementPending, declaration.SettlementCompleted:
		latest, err := s.ledger.LatestForDeclaration(ctx, d.ID)
		switch {
		case err == nil:
			paymentID := latest.ID
			update.PaymentID = &paymentID
		case !shared.IsNotFound(err):
			return update, err
		}
		if settlement == declaration.SettlementCompleted {
			update.PaidAt = d.PaymentCompletedAt
		}
	}
	if d.CaseFileCode != "" {
		code := d.CaseFileCode
		update.CaseFileCode = &code
	}
	return update, nil
}

// DeleteDeclaration removes a declaration with its participants and payments.
// Declarations with a completed payment are kept.
func (e *Engine) DeleteDeclaration(ctx context.Context, req DeleteDeclarationRequest) (err error) {
	ctx, done := e.begin(ctx, OpDelete, req.DeclarationID)
	defer func() { err = done(err) }()

	_, err = e.commit(ctx, OpDelete, func(ctx context.Context, s stores) (uuid.UUID, error) {
		d, err := s.declarations.FindByID(ctx, req.DeclarationID)
		if err != nil {
			return uuid.Nil, err
		}
		payments, err := s.payments.ListByDeclaration(ctx, d.ID)
		if err != nil {
			return uuid.Nil, err
		}
		for _, p := range payments {
			if p.Status == declaration.PaymentCompleted {
				return uuid.Nil, shared.NewConflictError(declaration.CodeCompletedPaymentOnDelete,
					fmt.Sprintf("Declaration %s has completed payment %s", d.Code, p.Code))
			}
		}
		if _, err := s.participants.DeleteByDeclaration(ctx, d.ID); err != nil {
			return uuid.Nil, err
		}
		if _, err := s.payments.DeleteByDeclaration(ctx, d.ID); err != nil {
			return uuid.Nil, err
		}
		if err := s.declarations.Delete(ctx, d.ID); err != nil {
			return uuid.Nil, err
		}
		return d.ID, nil
	}, nil)
	if err != nil {
		return err
	}

	e.logger.Info("declaration deleted",
		zap.String("declaration_id", req.DeclarationID.String()),
		zap.String("actor", req.Actor.UserID.String()),
	)
	return nil
}
