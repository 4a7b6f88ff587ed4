package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type TransactionKind string

const (
	TransactionKindCredit   TransactionKind = "CREDIT"
	TransactionKindPurchase TransactionKind = "PURCHASE"
)

type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "pending"
	TransactionStatusSuccess TransactionStatus = "success"
	TransactionStatusFailed  TransactionStatus = "failed"
)

const (
	ChannelVirtualAccount = "payvessel_va"
	ChannelDataGateway    = "data_gateway"
)

// Transaction is one append-only ledger record. Reference is globally unique
// and is the idempotency boundary for both inbound credits and outbound
// purchases. Amounts are kobo.
type Transaction struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	Reference     string
	Kind          TransactionKind
	Channel       string
	Amount        int64
	Status        TransactionStatus
	WalletBefore  int64
	WalletAfter   int64
	Network       *string
	Phone         *string
	PlanID        *uuid.UUID
	GatewayName   *string
	GatewayPlanID *string
	Raw           json.RawMessage
	CreatedAt     time.Time
	UpdatedAt     time.Time
	SettledAt     *time.Time
}

func (s TransactionStatus) Terminal() bool {
	return s == TransactionStatusSuccess || s == TransactionStatusFailed
}
