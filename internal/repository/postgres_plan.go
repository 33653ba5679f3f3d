package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/clubnet/billing-service/internal/domain"
	"github.com/clubnet/billing-service/pkg/logger"
)

// postgresPlanRepo реализует PlanRepository для PostgreSQL.
type postgresPlanRepo struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewPostgresPlanRepository создает новый экземпляр каталога планов для PostgreSQL.
func NewPostgresPlanRepository(db *sqlx.DB, log *logger.Logger) PlanRepository {
	return &postgresPlanRepo{
		db:  db,
		log: log,
	}
}

// planRow строка таблицы plans, billing_tiers хранится как JSONB.
type planRow struct {
	ID             string  `db:"id"`
	Name           string  `db:"name"`
	Price          float64 `db:"price"`
	Currency       string  `db:"currency"`
	CreditsGranted int     `db:"credits_granted"`
	DurationDays   int     `db:"duration_days"`
	BillingTiers   []byte  `db:"billing_tiers"`
}

func (row *planRow) toDomain() (*domain.SubscriptionPlan, error) {
	plan := &domain.SubscriptionPlan{
		ID:             row.ID,
		Name:           row.Name,
		Price:          row.Price,
		Currency:       row.Currency,
		CreditsGranted: row.CreditsGranted,
		DurationDays:   row.DurationDays,
	}

	if len(row.BillingTiers) > 0 {
		if err := json.Unmarshal(row.BillingTiers, &plan.BillingTiers); err != nil {
			return nil, fmt.Errorf("repository: failed to unmarshal billing tiers: %w", err)
		}
	}

	return plan, nil
}

// GetByID возвращает план по ID.
func (r *postgresPlanRepo) GetByID(ctx context.Context, id string) (*domain.SubscriptionPlan, error) {
	var row planRow
	query := `
        SELECT id, name, price, currency, credits_granted, duration_days, billing_tiers
        FROM plans
        WHERE id = $1`

	err := r.db.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.log.Errorw("Failed to get plan by ID from DB", "error", err, "planID", id)
		return nil, fmt.Errorf("repository: failed to get plan by ID: %w", err)
	}

	return row.toDomain()
}

// List возвращает все планы каталога.
func (r *postgresPlanRepo) List(ctx context.Context) ([]domain.SubscriptionPlan, error) {
	var rows []planRow
	query := `
        SELECT id, name, price, currency, credits_granted, duration_days, billing_tiers
        FROM plans
        ORDER BY name`

	err := r.db.SelectContext(ctx, &rows, query)
	if err != nil {
		r.log.Errorw("Failed to list plans from DB", "error", err)
		return nil, fmt.Errorf("repository: failed to list plans: %w", err)
	}

	plans := make([]domain.SubscriptionPlan, 0, len(rows))
	for i := range rows {
		plan, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		plans = append(plans, *plan)
	}

	return plans, nil
}
