package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/support-service/internal/clock"
	"github.com/spec-kit/support-service/internal/domain"
	"github.com/spec-kit/support-service/internal/events"
	"github.com/spec-kit/support-service/internal/repository"
	apperrors "github.com/spec-kit/support-service/pkg/util/errorutil"
)

const (
	maxTierNameLength        = 120
	maxTierDescriptionLength = 500
	entityPriorityTier       = "PriorityTier"
)

// tierMessages holds the catalog specific rejection messages.
type tierMessages struct {
	negative string
	higher   string
	lower    string
}

var catalogMessages = map[domain.TierCatalog]tierMessages{
	domain.CatalogSupportPlan: {negative: MsgTierPriceNegative, higher: MsgTierPriceHigher, lower: MsgTierPriceLower},
	domain.CatalogLoyaltyRule: {negative: MsgTierSpendNegative, higher: MsgTierSpendHigher, lower: MsgTierSpendLower},
}

// PriorityTierService enforces level/threshold ordering for one catalog.
// Support plans and loyalty rules each get their own instance.
type PriorityTierService struct {
	tx       repository.TxManager
	repo     repository.PriorityTierRepository
	audit    *AuditLogger
	events   publisher
	clock    clock.Clock
	messages tierMessages
}

// PriorityTierDependencies bundles collaborators.
type PriorityTierDependencies struct {
	TxManager  repository.TxManager
	TierRepo   repository.PriorityTierRepository
	Audit      *AuditLogger
	Dispatcher events.Dispatcher
	Clock      clock.Clock
	Logger     *zap.Logger
}

// NewPriorityTierService constructs the service for deps.TierRepo's catalog.
func NewPriorityTierService(deps PriorityTierDependencies) *PriorityTierService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.System()
	}
	return &PriorityTierService{
		tx:       deps.TxManager,
		repo:     deps.TierRepo,
		audit:    deps.Audit,
		events:   newPublisher(deps.Dispatcher, clk, deps.Logger),
		clock:    clk,
		messages: catalogMessages[deps.TierRepo.Catalog()],
	}
}

// TierInput is the editable part of a tier row.
type TierInput struct {
	Name          string
	Description   string
	PriorityLevel int
	Threshold     int64
	IsActive      bool
}

// LoyaltyResolution is the outcome of ResolveLoyaltyLevel. Rule is nil for
// the implicit level 0.
type LoyaltyResolution struct {
	PriorityLevel int
	Rule          *domain.PriorityTier
}

// ValidateOrdering checks a candidate against every other active row: lower
// levels must carry a strictly lower threshold and higher levels a strictly
// higher one. Rows at the candidate's level are skipped since activation
// deactivates them.
func (s *PriorityTierService) ValidateOrdering(ctx context.Context, level int, threshold int64, excludeID string) error {
	active, err := s.repo.List(ctx, true)
	if err != nil {
		return err
	}
	for _, row := range active {
		if row.ID == excludeID {
			continue
		}
		details := map[string]any{
			"field":          s.repo.Catalog().ThresholdField(),
			"conflicting_id": row.ID,
			"priority_level": row.PriorityLevel,
			"threshold":      row.Threshold,
		}
		switch {
		case row.PriorityLevel < level && threshold <= row.Threshold:
			return apperrors.NewOrderingViolation(s.messages.higher, details)
		case row.PriorityLevel > level && threshold >= row.Threshold:
			return apperrors.NewOrderingViolation(s.messages.lower, details)
		}
	}
	return nil
}

// Create inserts a tier. An active tier replaces the active one at its level.
func (s *PriorityTierService) Create(ctx context.Context, actor domain.Actor, input TierInput) (*domain.PriorityTier, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	input, err := s.normalize(input)
	if err != nil {
		return nil, err
	}

	var (
		tier        *domain.PriorityTier
		deactivated int64
	)
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Lock(ctx); err != nil {
			return err
		}
		if err := s.rejectDuplicate(ctx, input, ""); err != nil {
			return err
		}
		if input.IsActive {
			if err := s.ValidateOrdering(ctx, input.PriorityLevel, input.Threshold, ""); err != nil {
				return err
			}
			if deactivated, err = s.repo.DeactivateOthersAtLevel(ctx, input.PriorityLevel, ""); err != nil {
				return err
			}
		}
		tier = &domain.PriorityTier{
			Catalog:       s.repo.Catalog(),
			Name:          input.Name,
			Description:   input.Description,
			PriorityLevel: input.PriorityLevel,
			Threshold:     input.Threshold,
			IsActive:      input.IsActive,
			CreatedAt:     s.clock.Now(),
		}
		return s.repo.Create(ctx, tier)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, actor.UserID, AuditTierCreated, entityPriorityTier, tier.ID, nil, tierSnapshot(tier))
	s.publishChange(ctx, actor.UserID, tier, deactivated)
	return tier, nil
}

// Update edits a tier. Active tiers are re-validated at their new position.
func (s *PriorityTierService) Update(ctx context.Context, actor domain.Actor, id string, input TierInput) (*domain.PriorityTier, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	input, err := s.normalize(input)
	if err != nil {
		return nil, err
	}

	var (
		tier        *domain.PriorityTier
		before      map[string]any
		deactivated int64
	)
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Lock(ctx); err != nil {
			return err
		}
		tier, err = s.repo.GetByID(ctx, id)
		if err != nil {
			return notFoundOr(err, MsgTierNotFound)
		}
		if err := s.rejectDuplicate(ctx, input, tier.ID); err != nil {
			return err
		}
		if tier.IsActive {
			if err := s.ValidateOrdering(ctx, input.PriorityLevel, input.Threshold, tier.ID); err != nil {
				return err
			}
			if deactivated, err = s.repo.DeactivateOthersAtLevel(ctx, input.PriorityLevel, tier.ID); err != nil {
				return err
			}
		}

		before = tierSnapshot(tier)
		tier.Name = input.Name
		tier.Description = input.Description
		tier.PriorityLevel = input.PriorityLevel
		tier.Threshold = input.Threshold
		tier.UpdatedAt = timePtr(s.clock.Now())
		return s.repo.Update(ctx, tier)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, actor.UserID, AuditTierUpdated, entityPriorityTier, tier.ID, before, tierSnapshot(tier))
	s.publishChange(ctx, actor.UserID, tier, deactivated)
	return tier, nil
}

// Toggle flips a tier's active flag. Deactivation always succeeds; activation
// is validated and replaces the active tier at the same level.
func (s *PriorityTierService) Toggle(ctx context.Context, actor domain.Actor, id string) (*domain.PriorityTier, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	var (
		tier        *domain.PriorityTier
		before      map[string]any
		deactivated int64
	)
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Lock(ctx); err != nil {
			return err
		}
		var err error
		tier, err = s.repo.GetByID(ctx, id)
		if err != nil {
			return notFoundOr(err, MsgTierNotFound)
		}
		before = tierSnapshot(tier)

		if tier.IsActive {
			tier.IsActive = false
		} else {
			if err := s.ValidateOrdering(ctx, tier.PriorityLevel, tier.Threshold, tier.ID); err != nil {
				return err
			}
			if deactivated, err = s.repo.DeactivateOthersAtLevel(ctx, tier.PriorityLevel, tier.ID); err != nil {
				return err
			}
			tier.IsActive = true
		}
		tier.UpdatedAt = timePtr(s.clock.Now())
		return s.repo.Update(ctx, tier)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, actor.UserID, AuditTierToggled, entityPriorityTier, tier.ID, before, tierSnapshot(tier))
	s.publishChange(ctx, actor.UserID, tier, deactivated)
	return tier, nil
}

// List returns the catalog ordered by level then threshold.
func (s *PriorityTierService) List(ctx context.Context, actor domain.Actor, activeOnly bool) ([]domain.PriorityTier, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, activeOnly)
}

// ResolveLoyaltyLevel picks the highest active tier whose threshold is at most
// totalSpend. Without a match the result is level 0.
func (s *PriorityTierService) ResolveLoyaltyLevel(ctx context.Context, actor domain.Actor, totalSpend int64) (*LoyaltyResolution, error) {
	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}
	if totalSpend < 0 {
		return nil, apperrors.NewValidationError(MsgTierSpendQueryNegative, map[string]any{"total_spend": totalSpend})
	}
	active, err := s.repo.List(ctx, true)
	if err != nil {
		return nil, err
	}
	result := &LoyaltyResolution{}
	for i := range active {
		row := active[i]
		if row.Threshold <= totalSpend && row.PriorityLevel > result.PriorityLevel {
			result.PriorityLevel = row.PriorityLevel
			result.Rule = &row
		}
	}
	return result, nil
}

func (s *PriorityTierService) normalize(input TierInput) (TierInput, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	switch {
	case input.Name == "":
		return input, apperrors.NewValidationError(MsgTierNameRequired, nil)
	case utf8.RuneCountInString(input.Name) > maxTierNameLength:
		return input, apperrors.NewValidationError(MsgTierNameTooLong, map[string]any{"max": maxTierNameLength})
	case utf8.RuneCountInString(input.Description) > maxTierDescriptionLength:
		return input, apperrors.NewValidationError(MsgTierDescTooLong, map[string]any{"max": maxTierDescriptionLength})
	case input.PriorityLevel <= 0:
		return input, apperrors.NewValidationError(MsgTierLevelInvalid, map[string]any{"priority_level": input.PriorityLevel})
	case input.Threshold < 0:
		return input, apperrors.NewValidationError(s.messages.negative, map[string]any{"field": s.repo.Catalog().ThresholdField()})
	}
	return input, nil
}

func (s *PriorityTierService) rejectDuplicate(ctx context.Context, input TierInput, excludeID string) error {
	exists, err := s.repo.ExistsSameLevelAndThreshold(ctx, input.PriorityLevel, input.Threshold, excludeID)
	if err != nil {
		return err
	}
	if exists {
		return apperrors.NewDuplicateKey(MsgTierDuplicate, map[string]any{
			"priority_level": input.PriorityLevel,
			"threshold":      input.Threshold,
		})
	}
	return nil
}

func (s *PriorityTierService) publishChange(ctx context.Context, actorID string, tier *domain.PriorityTier, deactivated int64) {
	s.events.publish(ctx, events.Event{
		Type:       events.EventPriorityTierChanged,
		EntityType: entityPriorityTier,
		EntityID:   tier.ID,
		ActorID:    actorID,
		Audience:   events.Audience{Staff: true},
		Payload: events.PriorityTierPayload{
			Catalog:       tier.Catalog,
			TierID:        tier.ID,
			PriorityLevel: tier.PriorityLevel,
			Threshold:     tier.Threshold,
			IsActive:      tier.IsActive,
			Deactivated:   deactivated,
		},
	})
}

func requireAdmin(actor domain.Actor) error {
	if err := requireAuthenticated(actor); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return apperrors.NewForbidden(MsgAdminOnly)
	}
	return nil
}

func tierSnapshot(tier *domain.PriorityTier) map[string]any {
	return map[string]any{
		"catalog":        string(tier.Catalog),
		"name":           tier.Name,
		"priority_level": tier.PriorityLevel,
		"threshold":      tier.Threshold,
		"is_active":      tier.IsActive,
	}
}
