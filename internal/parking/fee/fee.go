// Package fee turns a parked interval into a base fee under the hourly tariff.
package fee

import (
	"fmt"
	"time"

	"ms-parking/internal/models"

	"github.com/shopspring/decimal"
)

// ErrClockSkew is returned when the exit time precedes the entry time.
var ErrClockSkew = &models.Error{Kind: models.KindInvalidInput, Msg: "check-out time precedes check-in time"}

type Rates struct {
	RatePerHour        decimal.Decimal
	GracePeriodMinutes int
	MaxParkingHours    int
}

type Result struct {
	BaseFee       decimal.Decimal
	Minutes       int64
	HoursParked   int64
	Duration      string
	InGracePeriod bool
}

// Calculate bills whole started hours after the grace window, capped at
// MaxParkingHours. Duration reports the real elapsed time.
func Calculate(checkIn, now time.Time, rates Rates) (Result, error) {
	elapsed := now.Sub(checkIn)
	if elapsed < 0 {
		return Result{}, fmt.Errorf("%w: check-in %s, now %s", ErrClockSkew,
			checkIn.Format(time.RFC3339), now.Format(time.RFC3339))
	}

	minutes := int64(elapsed / time.Minute)
	res := Result{
		BaseFee:  decimal.Zero,
		Minutes:  minutes,
		Duration: FormatDuration(minutes),
	}

	if minutes <= int64(rates.GracePeriodMinutes) {
		res.InGracePeriod = true
		return res, nil
	}

	hours := (minutes + 59) / 60
	if rates.MaxParkingHours > 0 && hours > int64(rates.MaxParkingHours) {
		hours = int64(rates.MaxParkingHours)
	}
	res.HoursParked = hours
	res.BaseFee = rates.RatePerHour.Mul(decimal.NewFromInt(hours))
	return res, nil
}

// FormatDuration renders minutes as "2h 5m" or "45m".
func FormatDuration(minutes int64) string {
	h, m := minutes/60, minutes%60
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}
