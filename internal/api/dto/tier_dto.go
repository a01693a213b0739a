package dto

import (
	"time"

	"github.com/spec-kit/support-service/internal/domain"
)

// TierRequest creates or updates a support plan or loyalty rule. Threshold is
// the plan price or the minimum total spend, in VND.
type TierRequest struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	PriorityLevel int    `json:"priority_level"`
	Threshold     int64  `json:"threshold"`
	IsActive      bool   `json:"is_active"`
}

// TierResponse is the wire view of a tier row.
type TierResponse struct {
	ID             string             `json:"id"`
	Catalog        domain.TierCatalog `json:"catalog"`
	Name           string             `json:"name"`
	Description    string             `json:"description,omitempty"`
	PriorityLevel  int                `json:"priority_level"`
	Threshold      int64              `json:"threshold"`
	ThresholdField string             `json:"threshold_field"`
	IsActive       bool               `json:"is_active"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      *time.Time         `json:"updated_at,omitempty"`
}

// LoyaltyResolutionResponse answers a loyalty lookup.
type LoyaltyResolutionResponse struct {
	TotalSpend    int64         `json:"total_spend"`
	PriorityLevel int           `json:"priority_level"`
	Rule          *TierResponse `json:"rule,omitempty"`
}

// NewTierResponse maps a tier row.
func NewTierResponse(tier *domain.PriorityTier) TierResponse {
	return TierResponse{
		ID:             tier.ID,
		Catalog:        tier.Catalog,
		Name:           tier.Name,
		Description:    tier.Description,
		PriorityLevel:  tier.PriorityLevel,
		Threshold:      tier.Threshold,
		ThresholdField: tier.Catalog.ThresholdField(),
		IsActive:       tier.IsActive,
		CreatedAt:      tier.CreatedAt,
		UpdatedAt:      tier.UpdatedAt,
	}
}
