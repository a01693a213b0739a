package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-service/internal/domain"
	apperrors "github.com/spec-kit/support-service/pkg/util/errorutil"
)

func TestCreateStaff(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.admin(t, "root")

	user, err := h.staff.CreateStaff(ctx, admin, StaffCreateInput{
		Name:     "Minh",
		Email:    "Minh@Example.com",
		Password: "password123",
		Role:     domain.RoleTechnicalStaff,
	})
	require.NoError(t, err)
	assert.Equal(t, "minh@example.com", user.Email)
	assert.True(t, user.EmailVerified)
	assert.Equal(t, []domain.RoleCode{domain.RoleTechnicalStaff}, user.Roles)

	res, err := h.auth.Login(ctx, "minh@example.com", "password123")
	require.NoError(t, err)
	assert.True(t, domain.NewActor(res.User).IsStaff())
}

func TestCreateStaffRejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.admin(t, "root")
	valid := StaffCreateInput{Name: "Minh", Email: "minh@example.com", Password: "password123", Role: domain.RoleCareStaff}

	_, err := h.staff.CreateStaff(ctx, h.careStaff(t, "lead"), valid)
	requireDomainError(t, err, apperrors.CodeForbidden, MsgAdminOnly)

	customerRole := valid
	customerRole.Role = domain.RoleCustomer
	_, err = h.staff.CreateStaff(ctx, admin, customerRole)
	requireDomainError(t, err, apperrors.CodeValidation, MsgRoleInvalid)

	_, err = h.staff.CreateStaff(ctx, admin, valid)
	require.NoError(t, err)
	_, err = h.staff.CreateStaff(ctx, admin, valid)
	requireDomainError(t, err, apperrors.CodeConflict, MsgEmailTaken)
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, created, err := h.staff.EnsureAdmin(ctx, "Root", "root@example.com", "password123")
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, domain.NewActor(first).IsAdmin())

	second, created, err := h.staff.EnsureAdmin(ctx, "Root", "ROOT@example.com", "another-password")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
}

func TestListStaffExcludesCustomers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.admin(t, "root")
	h.careStaff(t, "binh")
	h.seedUser(t, "an", domain.RoleTechnicalStaff)
	h.customer(t, "lan")

	staff, err := h.staff.ListStaff(ctx, admin, 10, 0)
	require.NoError(t, err)
	names := make([]string, 0, len(staff))
	for _, u := range staff {
		names = append(names, u.Name)
	}
	assert.Equal(t, []string{"an", "binh", "root"}, names)

	page, err := h.staff.ListStaff(ctx, admin, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "binh", page[0].Name)
}

func TestSetStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.admin(t, "root")
	staff := h.careStaff(t, "minh")

	user, err := h.staff.SetStatus(ctx, admin, staff.UserID, domain.UserStatusDisabled)
	require.NoError(t, err)
	assert.False(t, user.IsActive())

	_, err = h.auth.Login(ctx, "minh@example.com", "whatever")
	require.Error(t, err)

	_, err = h.staff.SetStatus(ctx, admin, admin.UserID, domain.UserStatusDisabled)
	requireDomainError(t, err, apperrors.CodeValidation, MsgCannotDisableSelf)

	_, err = h.staff.SetStatus(ctx, admin, staff.UserID, domain.UserStatus("LOCKED"))
	requireDomainError(t, err, apperrors.CodeValidation, MsgStatusInvalid)

	_, err = h.staff.SetStatus(ctx, admin, "missing", domain.UserStatusActive)
	requireDomainError(t, err, apperrors.CodeNotFound, MsgUserNotFound)

	user, err = h.staff.SetStatus(ctx, admin, staff.UserID, domain.UserStatusActive)
	require.NoError(t, err)
	assert.True(t, user.IsActive())
}
