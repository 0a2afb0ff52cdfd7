package discount

import (
	"fmt"
	"time"

	"ms-parking/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Composer applies an optional voucher and the member benefit to a base fee.
type Composer struct {
	MemberPercent decimal.Decimal
}

func NewComposer(memberPercent int) *Composer {
	return &Composer{MemberPercent: decimal.NewFromInt(int64(memberPercent))}
}

type Input struct {
	BaseFee  decimal.Decimal
	Voucher  *models.Voucher // nil when no code was given
	IsMember bool
	Now      time.Time
}

type Result struct {
	VoucherDiscount decimal.Decimal
	MemberDiscount  decimal.Decimal
	TotalDiscount   decimal.Decimal
	TotalFee        decimal.Decimal
	VoucherApplied  bool
	VoucherCode     string
	Reason          string // why a supplied voucher was not applied
}

// Compose never fails: a voucher that does not qualify is skipped and the
// reason recorded. Unknown codes are rejected by the caller before this point.
func (c *Composer) Compose(in Input) Result {
	res := Result{
		VoucherDiscount: decimal.Zero,
		MemberDiscount:  decimal.Zero,
	}

	if in.Voucher != nil {
		res.VoucherCode = in.Voucher.Code
		amount, reason := VoucherDiscount(in.Voucher, in.BaseFee, in.Now)
		if reason != "" {
			res.Reason = reason
		} else {
			res.VoucherDiscount = amount
			res.VoucherApplied = true
		}
	}

	// Member benefit is computed on the base fee, not on the post-voucher amount.
	if in.IsMember {
		res.MemberDiscount = in.BaseFee.Mul(c.MemberPercent).Div(hundred).Round(2)
	}

	res.TotalDiscount = res.VoucherDiscount.Add(res.MemberDiscount)
	res.TotalFee = decimal.Max(in.BaseFee.Sub(res.TotalDiscount), decimal.Zero)
	return res
}

// VoucherDiscount returns the amount v takes off base, or a non-empty reason
// when v does not qualify at now.
func VoucherDiscount(v *models.Voucher, base decimal.Decimal, now time.Time) (decimal.Decimal, string) {
	switch {
	case !v.Active:
		return decimal.Zero, "voucher is no longer active"
	case now.Before(v.ValidFrom):
		return decimal.Zero, "voucher is not yet valid"
	case !now.Before(v.ValidUntil):
		return decimal.Zero, "voucher has expired"
	case v.UsageLimit != nil && v.UsageCount >= *v.UsageLimit:
		return decimal.Zero, "voucher usage limit has been reached"
	case base.LessThan(v.MinimumAmount):
		return decimal.Zero, fmt.Sprintf("fee does not meet minimum amount of %s", v.MinimumAmount.StringFixed(2))
	}

	switch v.DiscountType {
	case models.DiscountPercentage:
		// decimal.Round rounds half away from zero, which is half-up for fees.
		return base.Mul(v.DiscountValue).Div(hundred).Round(2), ""
	case models.DiscountFixed:
		return decimal.Min(v.DiscountValue, base), ""
	default:
		return decimal.Zero, fmt.Sprintf("unsupported discount type %q", v.DiscountType)
	}
}
