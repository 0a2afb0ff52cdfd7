package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type SessionStatus string

const (
	SessionActive    SessionStatus = "ACTIVE"
	SessionCompleted SessionStatus = "COMPLETED"
	SessionCancelled SessionStatus = "CANCELLED"
)

// CanTransitionTo reports whether a session in status s may move to next.
// COMPLETED and CANCELLED are terminal.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	return s == SessionActive && (next == SessionCompleted || next == SessionCancelled)
}

func ParseSessionStatus(raw string) (SessionStatus, bool) {
	switch status := SessionStatus(strings.ToUpper(strings.TrimSpace(raw))); status {
	case SessionActive, SessionCompleted, SessionCancelled:
		return status, true
	}
	return "", false
}

type VehicleType string

const (
	VehicleCar        VehicleType = "CAR"
	VehicleMotorcycle VehicleType = "MOTORCYCLE"
	VehicleTruck      VehicleType = "TRUCK"
	VehicleBus        VehicleType = "BUS"
)

func ParseVehicleType(raw string) (VehicleType, bool) {
	switch vt := VehicleType(strings.ToUpper(strings.TrimSpace(raw))); vt {
	case VehicleCar, VehicleMotorcycle, VehicleTruck, VehicleBus:
		return vt, true
	}
	return "", false
}

// NormalizePlate trims the plate and upper-cases it. All lookups by plate go through it.
func NormalizePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}

// Session is one vehicle's stay, from check-in to check-out or cancellation.
type Session struct {
	bun.BaseModel `bun:"table:parking_sessions"`

	ID               string              `bun:"id,pk" json:"id"`
	PlateNumber      string              `bun:"plate_number,notnull" json:"plate_number"`
	VehicleType      VehicleType         `bun:"vehicle_type,notnull" json:"vehicle_type"`
	CheckInTime      time.Time           `bun:"check_in_time,notnull" json:"check_in_time"`
	CheckOutTime     *time.Time          `bun:"check_out_time" json:"check_out_time,omitempty"`
	CheckInGate      string              `bun:"check_in_gate" json:"check_in_gate"`
	CheckInOperator  string              `bun:"check_in_operator" json:"check_in_operator"`
	CheckOutGate     string              `bun:"check_out_gate,nullzero" json:"check_out_gate,omitempty"`
	CheckOutOperator string              `bun:"check_out_operator,nullzero" json:"check_out_operator,omitempty"`
	CheckInPhoto     string              `bun:"check_in_photo,nullzero" json:"check_in_photo,omitempty"`
	CheckOutPhoto    string              `bun:"check_out_photo,nullzero" json:"check_out_photo,omitempty"`
	MemberID         string              `bun:"member_id,nullzero" json:"member_id,omitempty"`
	MemberName       string              `bun:"member_name,nullzero" json:"member_name,omitempty"`
	VoucherCode      string              `bun:"voucher_code,nullzero" json:"voucher_code,omitempty"`
	ParkingFee       decimal.NullDecimal `bun:"parking_fee,type:decimal(12,2)" json:"parking_fee"`
	Status           SessionStatus       `bun:"status,notnull" json:"status"`
	CancelReason     string              `bun:"cancel_reason,nullzero" json:"cancel_reason,omitempty"`
	CancelledBy      string              `bun:"cancelled_by,nullzero" json:"cancelled_by,omitempty"`
	CreatedAt        time.Time           `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt        time.Time           `bun:"updated_at,notnull" json:"updated_at"`
}

func (s *Session) IsMember() bool {
	return s.MemberID != ""
}

// SessionFilter narrows ListSessions. Zero values mean "no filter".
type SessionFilter struct {
	Plate  string
	Date   time.Time
	Status SessionStatus
	Limit  int
	Offset int
}

type CheckInRequest struct {
	PlateNumber string `json:"plate_number"`
	VehicleType string `json:"vehicle_type"`
	Gate        string `json:"gate"`
	Operator    string `json:"operator"`
	PhotoPath   string `json:"photo_path,omitempty"`
}

type CancelRequest struct {
	Operator string `json:"operator"`
	Reason   string `json:"reason"`
}

type CheckOutRequest struct {
	PlateNumber   string        `json:"plate_number"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	VoucherCode   string        `json:"voucher_code,omitempty"`
	Gate          string        `json:"gate"`
	Operator      string        `json:"operator"`
	PhotoPath     string        `json:"photo_path,omitempty"`
}
