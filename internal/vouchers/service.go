package vouchers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ms-parking/internal/logger"
	"ms-parking/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type VoucherStore interface {
	GetVoucherByCode(ctx context.Context, code string) (*models.Voucher, error)
	GetVoucherByID(ctx context.Context, id string) (*models.Voucher, error)
	CreateVoucher(ctx context.Context, voucher *models.Voucher) error
	ListVouchers(ctx context.Context, activeOnly bool) ([]models.Voucher, error)
	TerminateVoucher(ctx context.Context, id string, at time.Time) (bool, error)
}

type VoucherService struct {
	Store  VoucherStore
	Logger *logger.Logger
	Now    func() time.Time
}

func NewVoucherService(store VoucherStore, log *logger.Logger) *VoucherService {
	return &VoucherService{Store: store, Logger: log, Now: time.Now}
}

var hundred = decimal.NewFromInt(100)

func (s *VoucherService) Create(ctx context.Context, req models.VoucherCreate) (*models.Voucher, error) {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if code == "" {
		return nil, models.InvalidInput("voucher code is required")
	}
	discountType, ok := models.ParseDiscountType(req.DiscountType)
	if !ok {
		return nil, models.InvalidInput("unknown discount type %q", req.DiscountType)
	}
	if !req.DiscountValue.IsPositive() {
		return nil, models.InvalidInput("discount value must be positive")
	}
	if discountType == models.DiscountPercentage && req.DiscountValue.GreaterThan(hundred) {
		return nil, models.InvalidInput("percentage discount cannot exceed 100")
	}
	if req.MinimumAmount.IsNegative() {
		return nil, models.InvalidInput("minimum amount cannot be negative")
	}
	if req.ValidFrom.IsZero() || req.ValidUntil.IsZero() {
		return nil, models.InvalidInput("valid_from and valid_until are required")
	}
	if !req.ValidFrom.Before(req.ValidUntil) {
		return nil, models.InvalidInput("valid_from must be before valid_until")
	}
	if req.UsageLimit != nil && *req.UsageLimit <= 0 {
		return nil, models.InvalidInput("usage limit must be positive")
	}

	_, err := s.Store.GetVoucherByCode(ctx, code)
	switch {
	case err == nil:
		return nil, fmt.Errorf("voucher %s: %w", code, models.ErrDuplicate)
	case !errors.Is(err, models.ErrVoucherNotFound):
		return nil, err
	}

	voucher := &models.Voucher{
		ID:            uuid.New().String(),
		Code:          code,
		Description:   strings.TrimSpace(req.Description),
		DiscountType:  discountType,
		DiscountValue: req.DiscountValue,
		MinimumAmount: req.MinimumAmount,
		ValidFrom:     req.ValidFrom.UTC(),
		ValidUntil:    req.ValidUntil.UTC(),
		UsageLimit:    req.UsageLimit,
		Active:        true,
		CreatedAt:     s.Now().UTC(),
	}
	if err := s.Store.CreateVoucher(ctx, voucher); err != nil {
		return nil, err
	}
	s.Logger.Info("VOUCHER", fmt.Sprintf("created %s (%s %s)", code, discountType, req.DiscountValue.String()))
	return voucher, nil
}

func (s *VoucherService) List(ctx context.Context, activeOnly bool) ([]models.Voucher, error) {
	return s.Store.ListVouchers(ctx, activeOnly)
}

func (s *VoucherService) GetByCode(ctx context.Context, code string) (*models.Voucher, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, models.InvalidInput("voucher code is required")
	}
	return s.Store.GetVoucherByCode(ctx, code)
}

// Terminate deactivates the voucher for good. Terminating twice is an error.
func (s *VoucherService) Terminate(ctx context.Context, id string) (*models.Voucher, error) {
	voucher, err := s.Store.GetVoucherByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !voucher.Active {
		return nil, models.InvalidInput("voucher %s is already inactive", voucher.Code)
	}

	ok, err := s.Store.TerminateVoucher(ctx, id, s.Now().UTC())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.InvalidInput("voucher %s is already inactive", voucher.Code)
	}
	s.Logger.Info("VOUCHER", fmt.Sprintf("terminated %s after %d uses", voucher.Code, voucher.UsageCount))
	return s.Store.GetVoucherByID(ctx, id)
}
