package domain

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID            uuid.UUID
	Name          string
	Username      string
	Email         string
	Phone         string
	PasswordHash  string
	IsAdmin       bool
	WalletBalance int64
	BVN           *string
	NIN           *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// VirtualAccount is a provider-issued receiving account linked to a user.
// Inbound credits are resolved to their owner via AccountNumber.
type VirtualAccount struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	BankName          string
	AccountNumber     string
	AccountName       string
	AccountType       string
	TrackingReference string
	Provider          string
	CreatedAt         time.Time
}
