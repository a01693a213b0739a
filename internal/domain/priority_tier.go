package domain

import "time"

// TierCatalog identifies one of the two priority tier catalogs.
type TierCatalog string

const (
	CatalogSupportPlan TierCatalog = "SUPPORT_PLAN"
	CatalogLoyaltyRule TierCatalog = "LOYALTY_RULE"
)

// ThresholdField names the compared value: Price for plans, MinTotalSpend for loyalty rules.
func (c TierCatalog) ThresholdField() string {
	if c == CatalogLoyaltyRule {
		return "MinTotalSpend"
	}
	return "Price"
}

// PriorityTier is a row of SupportPlan or SupportPriorityLoyaltyRule.
// Threshold is a whole amount in VND.
type PriorityTier struct {
	ID            string
	Catalog       TierCatalog
	Name          string
	Description   string
	PriorityLevel int
	Threshold     int64
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     *time.Time
}
