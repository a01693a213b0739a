package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-service/internal/domain"
)

type userRepo struct {
	store *Store
}

func (r *userRepo) Create(ctx context.Context, user *domain.User) error {
	return r.store.write(ctx, func(d *state) error {
		for _, existing := range d.users {
			if strings.EqualFold(existing.Email, user.Email) {
				return fmt.Errorf("users: duplicate email %q", user.Email)
			}
		}
		if user.ID == "" {
			user.ID = newID()
		}
		stored := *user
		stored.Roles = append([]domain.RoleCode(nil), user.Roles...)
		d.users[user.ID] = stored
		return nil
	})
}

func (r *userRepo) Update(ctx context.Context, user *domain.User) error {
	return r.store.write(ctx, func(d *state) error {
		if _, ok := d.users[user.ID]; !ok {
			return pgx.ErrNoRows
		}
		stored := *user
		stored.Roles = append([]domain.RoleCode(nil), user.Roles...)
		d.users[user.ID] = stored
		return nil
	})
}

func (r *userRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	var (
		user domain.User
		ok   bool
	)
	r.store.read(func(d *state) {
		user, ok = d.users[id]
	})
	if !ok {
		return nil, pgx.ErrNoRows
	}
	user.Roles = append([]domain.RoleCode(nil), user.Roles...)
	return &user, nil
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	var found *domain.User
	r.store.read(func(d *state) {
		for _, user := range d.users {
			if strings.EqualFold(user.Email, email) {
				u := user
				u.Roles = append([]domain.RoleCode(nil), user.Roles...)
				found = &u
				return
			}
		}
	})
	if found == nil {
		return nil, pgx.ErrNoRows
	}
	return found, nil
}

func (r *userRepo) MarkEmailVerified(ctx context.Context, id string) error {
	return r.store.write(ctx, func(d *state) error {
		user, ok := d.users[id]
		if !ok {
			return pgx.ErrNoRows
		}
		user.EmailVerified = true
		d.users[id] = user
		return nil
	})
}

func (r *userRepo) ListByRoles(_ context.Context, roles []domain.RoleCode, limit, offset int) ([]domain.User, error) {
	var out []domain.User
	r.store.read(func(d *state) {
		for _, user := range d.users {
			for _, role := range user.Roles {
				if contains(roles, role) {
					u := user
					u.Roles = append([]domain.RoleCode(nil), user.Roles...)
					out = append(out, u)
					break
				}
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return page(out, limit, offset), nil
}
