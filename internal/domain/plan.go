package domain

import (
	"time"

	"github.com/google/uuid"
)

type Network string

const (
	NetworkMTN     Network = "MTN"
	NetworkAirtel  Network = "AIRTEL"
	NetworkGlo     Network = "GLO"
	Network9Mobile Network = "9MOBILE"
)

func (n Network) IsValid() bool {
	switch n {
	case NetworkMTN, NetworkAirtel, NetworkGlo, Network9Mobile:
		return true
	}
	return false
}

type DataType string

const (
	DataTypeSME       DataType = "SME"
	DataTypeCorporate DataType = "CORPORATE"
	DataTypeGifting   DataType = "GIFTING"
)

func (d DataType) IsValid() bool {
	switch d {
	case DataTypeSME, DataTypeCorporate, DataTypeGifting:
		return true
	}
	return false
}

type PlanType string

const (
	PlanTypeDaily      PlanType = "DAILY"
	PlanTypeWeekly     PlanType = "WEEKLY"
	PlanTypeMonthly    PlanType = "MONTHLY"
	PlanTypeQuarterly  PlanType = "3MONTHS"
	PlanTypeSemiannual PlanType = "6MONTHS"
	PlanTypeYearly     PlanType = "YEARLY"
)

func (p PlanType) IsValid() bool {
	switch p {
	case PlanTypeDaily, PlanTypeWeekly, PlanTypeMonthly, PlanTypeQuarterly, PlanTypeSemiannual, PlanTypeYearly:
		return true
	}
	return false
}

// DataPlan is a purchasable bundle from the catalog. Price is kobo.
// GatewayPlanID maps the plan onto the vendor's variation code.
type DataPlan struct {
	ID            uuid.UUID
	Network       Network
	PlanName      string
	DataSizeLabel string
	Price         int64
	ValidityDays  int
	DataType      DataType
	PlanType      PlanType
	GatewayName   string
	GatewayPlanID string
	GatewayStatus bool
	IsActive      bool
	Description   string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Purchasable reports whether the plan may be dispatched to the gateway.
func (p *DataPlan) Purchasable() bool {
	return p.IsActive && p.GatewayStatus
}
