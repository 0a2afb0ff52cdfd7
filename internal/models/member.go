package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Member is a registered vehicle owner with a prepaid balance.
type Member struct {
	bun.BaseModel `bun:"table:members"`

	ID                 string          `bun:"id,pk" json:"id"`
	MemberCode         string          `bun:"member_code,notnull,unique" json:"member_code"`
	Name               string          `bun:"name,notnull" json:"name"`
	VehiclePlateNumber string          `bun:"vehicle_plate_number,notnull,unique" json:"vehicle_plate_number"`
	Email              string          `bun:"email,nullzero" json:"email,omitempty"`
	PhoneNumber        string          `bun:"phone_number,nullzero" json:"phone_number,omitempty"`
	Balance            decimal.Decimal `bun:"balance,type:decimal(12,2),notnull" json:"balance"`
	Active             bool            `bun:"active,notnull" json:"active"`
	RegisteredAt       time.Time       `bun:"registered_at,notnull" json:"registered_at"`
	LastActivity       *time.Time      `bun:"last_activity" json:"last_activity,omitempty"`
	UpdatedAt          time.Time       `bun:"updated_at,notnull" json:"updated_at"`
}

type MemberRegistration struct {
	Name               string `json:"name"`
	VehiclePlateNumber string `json:"vehicle_plate_number"`
	Email              string `json:"email,omitempty"`
	PhoneNumber        string `json:"phone_number,omitempty"`
}

type MemberUpdate struct {
	Name        *string `json:"name,omitempty"`
	Email       *string `json:"email,omitempty"`
	PhoneNumber *string `json:"phone_number,omitempty"`
}

type TopUpRequest struct {
	Amount decimal.Decimal `json:"amount"`
}
