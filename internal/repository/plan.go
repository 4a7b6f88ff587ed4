package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/vtuapp/vtu-backend/internal/domain"
)

const planColumns = `id, network, plan_name, data_size_label, price, validity_days,
	data_type, plan_type, gateway_name, gateway_plan_id, gateway_status,
	is_active, description, created_at, updated_at`

type PlanRepository struct {
	db *sql.DB
}

func NewPlanRepository(db *sql.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

func (r *PlanRepository) Create(ctx context.Context, plan *domain.DataPlan) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO data_plans (
			id, network, plan_name, data_size_label, price, validity_days,
			data_type, plan_type, gateway_name, gateway_plan_id, gateway_status,
			is_active, description, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		plan.ID, plan.Network, plan.PlanName, plan.DataSizeLabel, plan.Price,
		plan.ValidityDays, plan.DataType, plan.PlanType, plan.GatewayName,
		plan.GatewayPlanID, plan.GatewayStatus, plan.IsActive, plan.Description,
		plan.CreatedAt, plan.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *PlanRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.DataPlan, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+planColumns+` FROM data_plans WHERE id = $1`, id,
	)
	p, err := scanPlan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return p, nil
}

type PlanFilter struct {
	Network    *domain.Network
	ActiveOnly bool
}

func (r *PlanRepository) List(ctx context.Context, filter PlanFilter) ([]domain.DataPlan, error) {
	query := `SELECT ` + planColumns + ` FROM data_plans WHERE 1=1`
	var args []any

	if filter.Network != nil {
		args = append(args, *filter.Network)
		query += fmt.Sprintf(" AND network = $%d", len(args))
	}
	if filter.ActiveOnly {
		query += " AND is_active = true"
	}
	query += " ORDER BY network, price"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	defer rows.Close()

	var plans []domain.DataPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("List: scan: %w", err)
		}
		plans = append(plans, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("List: rows: %w", err)
	}
	return plans, nil
}

func (r *PlanRepository) Update(ctx context.Context, plan *domain.DataPlan) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE data_plans SET
			network = $1, plan_name = $2, data_size_label = $3, price = $4,
			validity_days = $5, data_type = $6, plan_type = $7, gateway_name = $8,
			gateway_plan_id = $9, gateway_status = $10, is_active = $11,
			description = $12, updated_at = now()
		WHERE id = $13`,
		plan.Network, plan.PlanName, plan.DataSizeLabel, plan.Price,
		plan.ValidityDays, plan.DataType, plan.PlanType, plan.GatewayName,
		plan.GatewayPlanID, plan.GatewayStatus, plan.IsActive, plan.Description,
		plan.ID,
	)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Update: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("Update: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *PlanRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM data_plans WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Delete: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("Delete: %w", domain.ErrNotFound)
	}
	return nil
}

func scanPlan(s scanner) (*domain.DataPlan, error) {
	var p domain.DataPlan
	err := s.Scan(
		&p.ID, &p.Network, &p.PlanName, &p.DataSizeLabel, &p.Price,
		&p.ValidityDays, &p.DataType, &p.PlanType, &p.GatewayName,
		&p.GatewayPlanID, &p.GatewayStatus, &p.IsActive, &p.Description,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
