package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vtuapp/vtu-backend/internal/domain"
	"github.com/vtuapp/vtu-backend/internal/repository"
)

type planRepo interface {
	Create(ctx context.Context, plan *domain.DataPlan) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.DataPlan, error)
	List(ctx context.Context, filter repository.PlanFilter) ([]domain.DataPlan, error)
	Update(ctx context.Context, plan *domain.DataPlan) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type PlanHandler struct {
	plans planRepo
}

func NewPlanHandler(plans planRepo) *PlanHandler {
	return &PlanHandler{plans: plans}
}

type planRequest struct {
	Network       string `json:"network"`
	PlanName      string `json:"plan_name"`
	DataSizeLabel string `json:"data_size_label"`
	Price         int64  `json:"price"`
	ValidityDays  int    `json:"validity_days"`
	DataType      string `json:"data_type"`
	PlanType      string `json:"plan_type"`
	GatewayName   string `json:"gateway_name"`
	GatewayPlanID string `json:"gateway_plan_id"`
	GatewayStatus bool   `json:"gateway_status"`
	IsActive      bool   `json:"is_active"`
	Description   string `json:"description"`
}

func (r planRequest) Validate() []FieldError {
	var errs []FieldError
	if !domain.Network(r.Network).IsValid() {
		errs = append(errs, FieldError{Field: "network", Message: "unknown network"})
	}
	if r.PlanName == "" {
		errs = append(errs, FieldError{Field: "plan_name", Message: "required"})
	}
	if r.Price <= 0 {
		errs = append(errs, FieldError{Field: "price", Message: "must be greater than zero"})
	}
	if r.ValidityDays <= 0 {
		errs = append(errs, FieldError{Field: "validity_days", Message: "must be greater than zero"})
	}
	if !domain.DataType(r.DataType).IsValid() {
		errs = append(errs, FieldError{Field: "data_type", Message: "unknown data type"})
	}
	if !domain.PlanType(r.PlanType).IsValid() {
		errs = append(errs, FieldError{Field: "plan_type", Message: "unknown plan type"})
	}
	if r.GatewayPlanID == "" {
		errs = append(errs, FieldError{Field: "gateway_plan_id", Message: "required"})
	}
	return errs
}

type planDTO struct {
	ID            uuid.UUID `json:"id"`
	Network       string    `json:"network"`
	PlanName      string    `json:"plan_name"`
	DataSizeLabel string    `json:"data_size_label"`
	Price         int64     `json:"price"`
	ValidityDays  int       `json:"validity_days"`
	DataType      string    `json:"data_type"`
	PlanType      string    `json:"plan_type"`
	GatewayStatus bool      `json:"gateway_status"`
	IsActive      bool      `json:"is_active"`
	Description   string    `json:"description,omitempty"`
}

func toPlanDTO(p *domain.DataPlan) planDTO {
	return planDTO{
		ID:            p.ID,
		Network:       string(p.Network),
		PlanName:      p.PlanName,
		DataSizeLabel: p.DataSizeLabel,
		Price:         p.Price,
		ValidityDays:  p.ValidityDays,
		DataType:      string(p.DataType),
		PlanType:      string(p.PlanType),
		GatewayStatus: p.GatewayStatus,
		IsActive:      p.IsActive,
		Description:   p.Description,
	}
}

// ListPlans is the public catalog: active plans only, optionally filtered by
// network.
func (h *PlanHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	filter := repository.PlanFilter{ActiveOnly: true}
	if raw := r.URL.Query().Get("network"); raw != "" {
		network := domain.Network(raw)
		if !network.IsValid() {
			RespondValidationError(w, []FieldError{{Field: "network", Message: "unknown network"}})
			return
		}
		filter.Network = &network
	}

	plans, err := h.plans.List(r.Context(), filter)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	out := make([]planDTO, 0, len(plans))
	for i := range plans {
		out = append(out, toPlanDTO(&plans[i]))
	}
	RespondSuccess(w, http.StatusOK, map[string]any{"plans": out})
}

func (h *PlanHandler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	now := time.Now().UTC()
	plan := &domain.DataPlan{
		ID:            uuid.New(),
		Network:       domain.Network(req.Network),
		PlanName:      req.PlanName,
		DataSizeLabel: req.DataSizeLabel,
		Price:         req.Price,
		ValidityDays:  req.ValidityDays,
		DataType:      domain.DataType(req.DataType),
		PlanType:      domain.PlanType(req.PlanType),
		GatewayName:   req.GatewayName,
		GatewayPlanID: req.GatewayPlanID,
		GatewayStatus: req.GatewayStatus,
		IsActive:      req.IsActive,
		Description:   req.Description,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := h.plans.Create(r.Context(), plan); err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, toPlanDTO(plan))
}

func (h *PlanHandler) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "id", Message: "must be a valid UUID"}})
		return
	}

	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	plan := &domain.DataPlan{
		ID:            id,
		Network:       domain.Network(req.Network),
		PlanName:      req.PlanName,
		DataSizeLabel: req.DataSizeLabel,
		Price:         req.Price,
		ValidityDays:  req.ValidityDays,
		DataType:      domain.DataType(req.DataType),
		PlanType:      domain.PlanType(req.PlanType),
		GatewayName:   req.GatewayName,
		GatewayPlanID: req.GatewayPlanID,
		GatewayStatus: req.GatewayStatus,
		IsActive:      req.IsActive,
		Description:   req.Description,
	}

	if err := h.plans.Update(r.Context(), plan); err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toPlanDTO(plan))
}

func (h *PlanHandler) DeletePlan(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "id", Message: "must be a valid UUID"}})
		return
	}

	if err := h.plans.Delete(r.Context(), id); err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, map[string]string{"status": "deleted"})
}
