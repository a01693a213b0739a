package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-service/internal/domain"
)

// PriorityTierRepository persists one tier catalog (support plans or loyalty rules).
type PriorityTierRepository interface {
	Catalog() domain.TierCatalog
	// Lock serializes catalog writers for the rest of the transaction.
	Lock(ctx context.Context) error
	Create(ctx context.Context, tier *domain.PriorityTier) error
	Update(ctx context.Context, tier *domain.PriorityTier) error
	GetByID(ctx context.Context, id string) (*domain.PriorityTier, error)
	List(ctx context.Context, activeOnly bool) ([]domain.PriorityTier, error)
	// ExistsSameLevelAndThreshold checks for another row (active or not) with the
	// same level and threshold, ignoring excludeID when non-empty.
	ExistsSameLevelAndThreshold(ctx context.Context, level int, threshold int64, excludeID string) (bool, error)
	// DeactivateOthersAtLevel deactivates every active row at level except keepID.
	DeactivateOthersAtLevel(ctx context.Context, level int, keepID string) (int64, error)
}

type tierTable struct {
	catalog   domain.TierCatalog
	name      string
	threshold string
}

var tierTables = map[domain.TierCatalog]tierTable{
	domain.CatalogSupportPlan: {catalog: domain.CatalogSupportPlan, name: "support_plans", threshold: "price"},
	domain.CatalogLoyaltyRule: {catalog: domain.CatalogLoyaltyRule, name: "support_priority_loyalty_rules", threshold: "min_total_spend"},
}

type priorityTierRepository struct {
	pool  *pgxpool.Pool
	table tierTable
}

// NewSupportPlanRepository returns the support plan catalog repository.
func NewSupportPlanRepository(pool *pgxpool.Pool) PriorityTierRepository {
	return &priorityTierRepository{pool: pool, table: tierTables[domain.CatalogSupportPlan]}
}

// NewLoyaltyRuleRepository returns the loyalty rule catalog repository.
func NewLoyaltyRuleRepository(pool *pgxpool.Pool) PriorityTierRepository {
	return &priorityTierRepository{pool: pool, table: tierTables[domain.CatalogLoyaltyRule]}
}

func (r *priorityTierRepository) Catalog() domain.TierCatalog {
	return r.table.catalog
}

func (r *priorityTierRepository) columns() string {
	return fmt.Sprintf("id, name, description, priority_level, %s, is_active, created_at, updated_at", r.table.threshold)
}

func (r *priorityTierRepository) Lock(ctx context.Context) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, r.table.name)
	return err
}

func (r *priorityTierRepository) Create(ctx context.Context, tier *domain.PriorityTier) error {
	query := fmt.Sprintf(`
        INSERT INTO %s (name, description, priority_level, %s, is_active, created_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id`, r.table.name, r.table.threshold)
	tier.Catalog = r.table.catalog
	return conn(ctx, r.pool).QueryRow(ctx, query,
		tier.Name,
		tier.Description,
		tier.PriorityLevel,
		tier.Threshold,
		tier.IsActive,
		tier.CreatedAt,
	).Scan(&tier.ID)
}

func (r *priorityTierRepository) Update(ctx context.Context, tier *domain.PriorityTier) error {
	query := fmt.Sprintf(`
        UPDATE %s SET name=$1, description=$2, priority_level=$3, %s=$4, is_active=$5, updated_at=$6
        WHERE id=$7`, r.table.name, r.table.threshold)
	cmd, err := conn(ctx, r.pool).Exec(ctx, query,
		tier.Name,
		tier.Description,
		tier.PriorityLevel,
		tier.Threshold,
		tier.IsActive,
		tier.UpdatedAt,
		tier.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *priorityTierRepository) GetByID(ctx context.Context, id string) (*domain.PriorityTier, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id=$1`, r.columns(), r.table.name)
	return r.scan(conn(ctx, r.pool).QueryRow(ctx, query, id))
}

func (r *priorityTierRepository) List(ctx context.Context, activeOnly bool) ([]domain.PriorityTier, error) {
	where := ""
	if activeOnly {
		where = "WHERE is_active"
	}
	query := fmt.Sprintf(`SELECT %s FROM %s %s ORDER BY priority_level ASC, %s ASC, created_at ASC`,
		r.columns(), r.table.name, where, r.table.threshold)
	rows, err := conn(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.PriorityTier
	for rows.Next() {
		tier, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *tier)
	}
	return result, rows.Err()
}

func (r *priorityTierRepository) ExistsSameLevelAndThreshold(ctx context.Context, level int, threshold int64, excludeID string) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (
            SELECT 1 FROM %s WHERE priority_level=$1 AND %s=$2 AND ($3 = '' OR id::text <> $3)
        )`, r.table.name, r.table.threshold)
	var exists bool
	if err := conn(ctx, r.pool).QueryRow(ctx, query, level, threshold, excludeID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *priorityTierRepository) DeactivateOthersAtLevel(ctx context.Context, level int, keepID string) (int64, error) {
	query := fmt.Sprintf(`UPDATE %s SET is_active=FALSE, updated_at=NOW()
        WHERE is_active AND priority_level=$1 AND id::text <> $2`, r.table.name)
	cmd, err := conn(ctx, r.pool).Exec(ctx, query, level, keepID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *priorityTierRepository) scan(row pgx.Row) (*domain.PriorityTier, error) {
	var (
		tier        domain.PriorityTier
		description *string
	)
	if err := row.Scan(
		&tier.ID,
		&tier.Name,
		&description,
		&tier.PriorityLevel,
		&tier.Threshold,
		&tier.IsActive,
		&tier.CreatedAt,
		&tier.UpdatedAt,
	); err != nil {
		return nil, err
	}
	tier.Catalog = r.table.catalog
	if description != nil {
		tier.Description = *description
	}
	return &tier, nil
}
