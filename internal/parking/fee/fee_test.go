package fee

import (
	"errors"
	"testing"
	"time"

	"ms-parking/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var checkIn = time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)

func rates(rate int64) Rates {
	return Rates{
		RatePerHour:        decimal.NewFromInt(rate),
		GracePeriodMinutes: 15,
		MaxParkingHours:    24,
	}
}

func TestGracePeriodBoundary(t *testing.T) {
	res, err := Calculate(checkIn, checkIn.Add(15*time.Minute), rates(5000))
	require.NoError(t, err)
	assert.True(t, res.InGracePeriod)
	assert.True(t, res.BaseFee.IsZero())
	assert.Equal(t, int64(0), res.HoursParked)

	res, err = Calculate(checkIn, checkIn.Add(16*time.Minute), rates(5000))
	require.NoError(t, err)
	assert.False(t, res.InGracePeriod)
	assert.True(t, res.BaseFee.IsPositive())
	assert.Equal(t, int64(1), res.HoursParked)
}

func TestPartialMinutesAreFloored(t *testing.T) {
	res, err := Calculate(checkIn, checkIn.Add(15*time.Minute+59*time.Second), rates(5000))
	require.NoError(t, err)
	assert.Equal(t, int64(15), res.Minutes)
	assert.True(t, res.InGracePeriod)
}

func TestHoursRoundUp(t *testing.T) {
	res, err := Calculate(checkIn, checkIn.Add(61*time.Minute), rates(10000))
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.HoursParked)
	assert.True(t, decimal.NewFromInt(20000).Equal(res.BaseFee))
	assert.Equal(t, "1h 1m", res.Duration)

	res, err = Calculate(checkIn, checkIn.Add(60*time.Minute), rates(10000))
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.HoursParked)
}

func TestCapAtMaxParkingHours(t *testing.T) {
	res, err := Calculate(checkIn, checkIn.Add(3000*time.Minute), rates(10000))
	require.NoError(t, err)
	assert.Equal(t, int64(24), res.HoursParked)
	assert.True(t, decimal.NewFromInt(240000).Equal(res.BaseFee))
	assert.Equal(t, "50h 0m", res.Duration)
}

func TestNegativeElapsedIsClockSkew(t *testing.T) {
	_, err := Calculate(checkIn, checkIn.Add(-time.Minute), rates(5000))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrClockSkew))
	assert.Equal(t, models.KindInvalidInput, models.KindOf(err))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0m", FormatDuration(0))
	assert.Equal(t, "45m", FormatDuration(45))
	assert.Equal(t, "2h 5m", FormatDuration(125))
}
