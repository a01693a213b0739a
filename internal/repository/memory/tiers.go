package memory

import (
	"context"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-service/internal/domain"
)

type priorityTierRepo struct {
	store   *Store
	catalog domain.TierCatalog
}

func (r *priorityTierRepo) Catalog() domain.TierCatalog {
	return r.catalog
}

// Lock is a no-op: transactions on the store are already serialized.
func (r *priorityTierRepo) Lock(context.Context) error {
	return nil
}

func (r *priorityTierRepo) Create(ctx context.Context, tier *domain.PriorityTier) error {
	return r.store.write(ctx, func(d *state) error {
		if tier.ID == "" {
			tier.ID = newID()
		}
		tier.Catalog = r.catalog
		d.tiers[r.catalog] = append(d.tiers[r.catalog], *tier)
		return nil
	})
}

func (r *priorityTierRepo) Update(ctx context.Context, tier *domain.PriorityTier) error {
	return r.store.write(ctx, func(d *state) error {
		rows := d.tiers[r.catalog]
		for i := range rows {
			if rows[i].ID == tier.ID {
				rows[i] = *tier
				rows[i].Catalog = r.catalog
				return nil
			}
		}
		return pgx.ErrNoRows
	})
}

func (r *priorityTierRepo) GetByID(_ context.Context, id string) (*domain.PriorityTier, error) {
	var found *domain.PriorityTier
	r.store.read(func(d *state) {
		for _, row := range d.tiers[r.catalog] {
			if row.ID == id {
				tier := row
				found = &tier
				return
			}
		}
	})
	if found == nil {
		return nil, pgx.ErrNoRows
	}
	return found, nil
}

func (r *priorityTierRepo) List(_ context.Context, activeOnly bool) ([]domain.PriorityTier, error) {
	var result []domain.PriorityTier
	r.store.read(func(d *state) {
		for _, row := range d.tiers[r.catalog] {
			if !activeOnly || row.IsActive {
				result = append(result, row)
			}
		}
	})
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].PriorityLevel != result[j].PriorityLevel {
			return result[i].PriorityLevel < result[j].PriorityLevel
		}
		return result[i].Threshold < result[j].Threshold
	})
	return result, nil
}

func (r *priorityTierRepo) ExistsSameLevelAndThreshold(_ context.Context, level int, threshold int64, excludeID string) (bool, error) {
	exists := false
	r.store.read(func(d *state) {
		for _, row := range d.tiers[r.catalog] {
			if row.ID != excludeID && row.PriorityLevel == level && row.Threshold == threshold {
				exists = true
				return
			}
		}
	})
	return exists, nil
}

func (r *priorityTierRepo) DeactivateOthersAtLevel(ctx context.Context, level int, keepID string) (int64, error) {
	var affected int64
	err := r.store.write(ctx, func(d *state) error {
		rows := d.tiers[r.catalog]
		for i := range rows {
			if rows[i].IsActive && rows[i].PriorityLevel == level && rows[i].ID != keepID {
				rows[i].IsActive = false
				affected++
			}
		}
		return nil
	})
	return affected, err
}

type auditLogRepo struct {
	store *Store
}

func (r *auditLogRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	return r.store.write(ctx, func(d *state) error {
		if entry.ID == "" {
			entry.ID = newID()
		}
		d.audit = append(d.audit, *entry)
		return nil
	})
}

func (r *auditLogRepo) ListByEntity(_ context.Context, entityType, entityID string) ([]domain.AuditLog, error) {
	var result []domain.AuditLog
	r.store.read(func(d *state) {
		for _, entry := range d.audit {
			if entry.EntityType == entityType && entry.EntityID == entityID {
				result = append(result, entry)
			}
		}
	})
	return result, nil
}
