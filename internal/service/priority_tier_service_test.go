package service

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-service/internal/domain"
	apperrors "github.com/spec-kit/support-service/pkg/util/errorutil"
)

func mustCreateTier(t *testing.T, svc *PriorityTierService, admin domain.Actor, level int, threshold int64, active bool) *domain.PriorityTier {
	t.Helper()
	tier, err := svc.Create(context.Background(), admin, TierInput{
		Name:          fmt.Sprintf("L%d-%d", level, threshold),
		PriorityLevel: level,
		Threshold:     threshold,
		IsActive:      active,
	})
	require.NoError(t, err)
	return tier
}

func tierByID(t *testing.T, svc *PriorityTierService, admin domain.Actor, id string) domain.PriorityTier {
	t.Helper()
	rows, err := svc.List(context.Background(), admin, false)
	require.NoError(t, err)
	for _, row := range rows {
		if row.ID == id {
			return row
		}
	}
	t.Fatalf("tier %s not found", id)
	return domain.PriorityTier{}
}

func TestToggleRejectsActivationBelowLowerLevelThreshold(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.admin(t, "root")

	mustCreateTier(t, h.loyalty, admin, 1, 300000, true)
	candidate := mustCreateTier(t, h.loyalty, admin, 2, 200000, false)

	_, err := h.loyalty.Toggle(ctx, admin, candidate.ID)
	requireDomainError(t, err, apperrors.CodeOrderingViolation, MsgTierSpendHigher)

	assert.False(t, tierByID(t, h.loyalty, admin, candidate.ID).IsActive)
}

func TestCreateActiveReplacesSameLevel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.admin(t, "root")

	base := mustCreateTier(t, h.loyalty, admin, 1, 100000, true)
	old := mustCreateTier(t, h.loyalty, admin, 2, 200000, true)

	created, err := h.loyalty.Create(ctx, admin, TierInput{Name: "Gold", PriorityLevel: 2, Threshold: 250000, IsActive: true})
	require.NoError(t, err)

	assert.True(t, created.IsActive)
	assert.False(t, tierByID(t, h.loyalty, admin, old.ID).IsActive)
	assert.True(t, tierByID(t, h.loyalty, admin, base.ID).IsActive)
}

func TestCreateValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.admin(t, "root")
	mustCreateTier(t, h.plans, admin, 1, 50000, false)

	cases := []struct {
		name    string
		input   TierInput
		code    string
		message string
	}{
		{"blank name", TierInput{Name: " ", PriorityLevel: 1}, apperrors.CodeValidation, MsgTierNameRequired},
		{"level zero", TierInput{Name: "x", PriorityLevel: 0}, apperrors.CodeValidation, MsgTierLevelInvalid},
		{"negative price", TierInput{Name: "x", PriorityLevel: 1, Threshold: -1}, apperrors.CodeValidation, MsgTierPriceNegative},
		{"duplicate inactive pair", TierInput{Name: "x", PriorityLevel: 1, Threshold: 50000, IsActive: true}, apperrors.CodeDuplicateKey, MsgTierDuplicate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.plans.Create(ctx, admin, tc.input)
			requireDomainError(t, err, tc.code, tc.message)
		})
	}

	_, err := h.plans.Create(ctx, h.careStaff(t, "minh"), TierInput{Name: "x", PriorityLevel: 1})
	requireDomainError(t, err, apperrors.CodeForbidden, MsgAdminOnly)
}

func TestCreateActiveRejectsOrderingViolation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.admin(t, "root")
	mustCreateTier(t, h.plans, admin, 2, 200000, true)

	_, err := h.plans.Create(ctx, admin, TierInput{Name: "Basic", PriorityLevel: 1, Threshold: 200000, IsActive: true})
	requireDomainError(t, err, apperrors.CodeOrderingViolation, MsgTierPriceLower)

	_, err = h.plans.Create(ctx, admin, TierInput{Name: "Premium", PriorityLevel: 3, Threshold: 150000, IsActive: true})
	requireDomainError(t, err, apperrors.CodeOrderingViolation, MsgTierPriceHigher)

	rows, err := h.plans.List(ctx, admin, false)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	inactive, err := h.plans.Create(ctx, admin, TierInput{Name: "Draft", PriorityLevel: 3, Threshold: 150000})
	require.NoError(t, err)
	assert.False(t, inactive.IsActive)
}

func TestToggleDeactivatesWithoutChecks(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.admin(t, "root")
	mustCreateTier(t, h.loyalty, admin, 1, 100000, true)
	top := mustCreateTier(t, h.loyalty, admin, 2, 500000, true)

	off, err := h.loyalty.Toggle(ctx, admin, top.ID)
	require.NoError(t, err)
	assert.False(t, off.IsActive)

	on, err := h.loyalty.Toggle(ctx, admin, top.ID)
	require.NoError(t, err)
	assert.True(t, on.IsActive)

	_, err = h.loyalty.Toggle(ctx, admin, "missing")
	requireDomainError(t, err, apperrors.CodeNotFound, MsgTierNotFound)
}

func TestToggleActivationReplacesSameLevelOnly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.admin(t, "root")
	low := mustCreateTier(t, h.plans, admin, 1, 100000, true)
	current := mustCreateTier(t, h.plans, admin, 2, 200000, true)
	high := mustCreateTier(t, h.plans, admin, 3, 400000, true)
	replacement := mustCreateTier(t, h.plans, admin, 2, 300000, false)

	_, err := h.plans.Toggle(ctx, admin, replacement.ID)
	require.NoError(t, err)

	assert.True(t, tierByID(t, h.plans, admin, replacement.ID).IsActive)
	assert.False(t, tierByID(t, h.plans, admin, current.ID).IsActive)
	assert.True(t, tierByID(t, h.plans, admin, low.ID).IsActive)
	assert.True(t, tierByID(t, h.plans, admin, high.ID).IsActive)
}

func TestUpdateRevalidatesActiveTier(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.admin(t, "root")
	mustCreateTier(t, h.plans, admin, 1, 100000, true)
	mid := mustCreateTier(t, h.plans, admin, 2, 200000, true)
	other := mustCreateTier(t, h.plans, admin, 3, 300000, false)

	_, err := h.plans.Update(ctx, admin, mid.ID, TierInput{Name: "Mid", PriorityLevel: 2, Threshold: 90000})
	requireDomainError(t, err, apperrors.CodeOrderingViolation, MsgTierPriceHigher)

	_, err = h.plans.Update(ctx, admin, mid.ID, TierInput{Name: "Mid", PriorityLevel: 3, Threshold: 300000})
	requireDomainError(t, err, apperrors.CodeDuplicateKey, MsgTierDuplicate)

	updated, err := h.plans.Update(ctx, admin, mid.ID, TierInput{Name: "Mid+", PriorityLevel: 2, Threshold: 250000})
	require.NoError(t, err)
	assert.Equal(t, "Mid+", updated.Name)
	assert.Equal(t, int64(250000), updated.Threshold)
	assert.True(t, updated.IsActive)
	assert.False(t, tierByID(t, h.plans, admin, other.ID).IsActive)

	same, err := h.plans.Update(ctx, admin, mid.ID, TierInput{Name: "Mid+", PriorityLevel: 2, Threshold: 250000})
	require.NoError(t, err)
	assert.Equal(t, updated.Threshold, same.Threshold)
}

func TestResolveLoyaltyLevel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.admin(t, "root")
	customer := h.customer(t, "lan")
	mustCreateTier(t, h.loyalty, admin, 1, 1000000, true)
	gold := mustCreateTier(t, h.loyalty, admin, 2, 5000000, true)
	mustCreateTier(t, h.loyalty, admin, 3, 20000000, false)

	cases := []struct {
		spend int64
		level int
	}{
		{0, 0},
		{999999, 0},
		{1000000, 1},
		{5000000, 2},
		{50000000, 2},
	}
	for _, tc := range cases {
		res, err := h.loyalty.ResolveLoyaltyLevel(ctx, customer, tc.spend)
		require.NoError(t, err)
		assert.Equal(t, tc.level, res.PriorityLevel, "spend %d", tc.spend)
		if tc.level == 2 {
			require.NotNil(t, res.Rule)
			assert.Equal(t, gold.ID, res.Rule.ID)
		}
		if tc.level == 0 {
			assert.Nil(t, res.Rule)
		}
	}

	_, err := h.loyalty.ResolveLoyaltyLevel(ctx, customer, -1)
	requireDomainError(t, err, apperrors.CodeValidation, MsgTierSpendQueryNegative)
}

func TestRandomOperationsKeepTierInvariants(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.admin(t, "root")
	rng := rand.New(rand.NewSource(42))

	var ids []string
	for i := 0; i < 300; i++ {
		if len(ids) == 0 || rng.Intn(3) == 0 {
			tier, err := h.loyalty.Create(ctx, admin, TierInput{
				Name:          fmt.Sprintf("rule-%d", i),
				PriorityLevel: rng.Intn(5) + 1,
				Threshold:     int64(rng.Intn(20)) * 100000,
				IsActive:      rng.Intn(2) == 0,
			})
			if err == nil {
				ids = append(ids, tier.ID)
			}
		} else {
			_, _ = h.loyalty.Toggle(ctx, admin, ids[rng.Intn(len(ids))])
		}

		active, err := h.loyalty.List(ctx, admin, true)
		require.NoError(t, err)
		seen := make(map[int]bool)
		for _, row := range active {
			require.False(t, seen[row.PriorityLevel], "two active rows at level %d", row.PriorityLevel)
			seen[row.PriorityLevel] = true
		}
		for _, a := range active {
			for _, b := range active {
				if a.PriorityLevel < b.PriorityLevel {
					require.Less(t, a.Threshold, b.Threshold)
				}
			}
		}
	}
}
