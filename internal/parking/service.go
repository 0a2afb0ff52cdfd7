package parking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ms-parking/internal/logger"
	"ms-parking/internal/metrics"
	"ms-parking/internal/models"
	"ms-parking/internal/parking/discount"
	"ms-parking/internal/parking/fee"
	"ms-parking/internal/parking/invoice"
	"ms-parking/internal/parking/payment"

	"github.com/google/uuid"
)

type Topics struct {
	CheckedIn  string
	CheckedOut string
	Cancelled  string
}

type Options struct {
	Rates                 fee.Rates
	MemberDiscountPercent int
	HintTTL               time.Duration
	StoreTimeout          time.Duration
	CacheTimeout          time.Duration
	StatusCacheTTL        time.Duration
	StatusCacheSize       int
	Location              *time.Location
	QRSecret              string
	Topics                Topics
}

func (o *Options) applyDefaults() {
	if o.HintTTL <= 0 {
		o.HintTTL = 24 * time.Hour
	}
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = 5 * time.Second
	}
	if o.CacheTimeout <= 0 {
		o.CacheTimeout = 500 * time.Millisecond
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
}

// ParkingService sequences check-in, pricing, check-out and cancellation over
// the store, the dedup cache and the event stream.
type ParkingService struct {
	Store   SessionStore
	Cache   DedupCache
	Events  EventPublisher
	Logger  *logger.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time

	opts      Options
	discounts *discount.Composer
	settler   *payment.Settler
	numberer  *invoice.Numberer
	qr        *invoice.QRGenerator
	status    *statusCache
}

func NewParkingService(store SessionStore, cache DedupCache, events EventPublisher, log *logger.Logger, m *metrics.Metrics, opts Options) *ParkingService {
	opts.applyDefaults()
	s := &ParkingService{
		Store:     store,
		Cache:     cache,
		Events:    events,
		Logger:    log,
		Metrics:   m,
		Now:       time.Now,
		opts:      opts,
		discounts: discount.NewComposer(opts.MemberDiscountPercent),
		numberer:  invoice.NewNumberer(opts.Location),
		qr:        invoice.NewQRGenerator(opts.QRSecret),
		status:    newStatusCache(opts.StatusCacheSize, opts.StatusCacheTTL),
	}
	s.settler = &payment.Settler{Now: s.now}
	return s
}

func (s *ParkingService) now() time.Time {
	return s.Now().UTC()
}

func (s *ParkingService) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opts.StoreTimeout)
}

func (s *ParkingService) cacheCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opts.CacheTimeout)
}

// CheckIn opens an ACTIVE session for the plate. The dedup hint is consulted
// first, but only the store decides whether the plate is already parked.
func (s *ParkingService) CheckIn(ctx context.Context, req models.CheckInRequest) (*models.Session, error) {
	defer s.Metrics.ObserveOperation("check_in", time.Now())

	session, err := s.checkIn(ctx, req)
	s.Metrics.CheckIn(outcome(err))
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (s *ParkingService) checkIn(ctx context.Context, req models.CheckInRequest) (*models.Session, error) {
	plate := models.NormalizePlate(req.PlateNumber)
	if plate == "" {
		return nil, models.InvalidInput("plate number is required")
	}
	vehicleType, ok := models.ParseVehicleType(req.VehicleType)
	if !ok {
		return nil, models.InvalidInput("unknown vehicle type %q", req.VehicleType)
	}

	hinted := s.hasHint(ctx, plate)

	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()

	existing, err := s.Store.GetActiveSessionByPlate(storeCtx, plate)
	switch {
	case err == nil:
		s.Logger.LogSession("CHECK_IN", plate, fmt.Sprintf("rejected, session %s still active", existing.ID))
		return nil, fmt.Errorf("plate %s: %w", plate, models.ErrVehicleAlreadyParked)
	case !errors.Is(err, models.ErrSessionNotFound):
		return nil, err
	}
	if hinted {
		// the hint outlived its session, typically a failed clear after check-out
		s.Logger.Warn("CACHE", fmt.Sprintf("stale active hint for %s, store has no active session", plate))
	}

	now := s.now()
	session := &models.Session{
		ID:              uuid.New().String(),
		PlateNumber:     plate,
		VehicleType:     vehicleType,
		CheckInTime:     now,
		CheckInGate:     req.Gate,
		CheckInOperator: req.Operator,
		CheckInPhoto:    req.PhotoPath,
		Status:          models.SessionActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	member, err := s.Store.GetMemberByPlate(storeCtx, plate)
	switch {
	case err == nil && member.Active:
		session.MemberID = member.ID
		session.MemberName = member.Name
	case err != nil && !errors.Is(err, models.ErrMemberNotFound):
		return nil, err
	}

	if err := s.Store.CreateSession(storeCtx, session); err != nil {
		return nil, err
	}

	s.setHint(ctx, plate, session.ID)
	s.status.evict(plate)
	s.Logger.LogSession("CHECK_IN", plate, fmt.Sprintf("session %s opened at gate %s", session.ID, session.CheckInGate))
	s.publish(ctx, s.opts.Topics.CheckedIn, models.SessionEvent{
		Type:        models.EventCheckedIn,
		SessionID:   session.ID,
		PlateNumber: plate,
		VehicleType: vehicleType,
		Gate:        session.CheckInGate,
		Operator:    session.CheckInOperator,
		OccurredAt:  now,
	})
	return session, nil
}

// GetActiveByPlate returns the plate's ACTIVE session, served briefly from
// the in-process status cache.
func (s *ParkingService) GetActiveByPlate(ctx context.Context, plate string) (*models.Session, error) {
	plate = models.NormalizePlate(plate)
	if plate == "" {
		return nil, models.InvalidInput("plate number is required")
	}
	if cached, ok := s.status.get(plate); ok {
		s.Metrics.StatusCache(true)
		return cached, nil
	}
	s.Metrics.StatusCache(false)

	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()

	session, err := s.Store.GetActiveSessionByPlate(storeCtx, plate)
	if err != nil {
		return nil, err
	}
	s.status.put(session)
	return session, nil
}

// CalculateFee quotes the fee as of now. It changes nothing; CheckOut prices
// again from scratch.
func (s *ParkingService) CalculateFee(ctx context.Context, plate, voucherCode string) (*models.Calculation, error) {
	plate = models.NormalizePlate(plate)
	if plate == "" {
		return nil, models.InvalidInput("plate number is required")
	}

	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()

	session, err := s.Store.GetActiveSessionByPlate(storeCtx, plate)
	if err != nil {
		return nil, err
	}

	now := s.now()
	base, err := fee.Calculate(session.CheckInTime, now, s.opts.Rates)
	if err != nil {
		return nil, err
	}

	voucher, err := lookupVoucher(storeCtx, s.Store, voucherCode)
	if err != nil {
		return nil, err
	}

	isMember := false
	if session.IsMember() {
		member, err := s.Store.GetMemberByPlate(storeCtx, plate)
		switch {
		case err == nil:
			isMember = member.ID == session.MemberID && member.Active
		case !errors.Is(err, models.ErrMemberNotFound):
			return nil, err
		}
	}

	quote := s.discounts.Compose(discount.Input{
		BaseFee:  base.BaseFee,
		Voucher:  voucher,
		IsMember: isMember,
		Now:      now,
	})

	calc := &models.Calculation{
		SessionID:       session.ID,
		PlateNumber:     plate,
		CheckInTime:     session.CheckInTime,
		CalculatedAt:    now,
		Duration:        base.Duration,
		MinutesParked:   base.Minutes,
		HoursParked:     base.HoursParked,
		InGracePeriod:   base.InGracePeriod,
		BaseFee:         base.BaseFee,
		VoucherDiscount: quote.VoucherDiscount,
		MemberDiscount:  quote.MemberDiscount,
		Discount:        quote.TotalDiscount,
		TotalFee:        quote.TotalFee,
		IsMember:        isMember,
		VoucherNote:     quote.Reason,
	}
	if quote.VoucherApplied {
		calc.AppliedVoucher = quote.VoucherCode
	}
	return calc, nil
}

// CancelSession closes an ACTIVE session without payment or invoice.
func (s *ParkingService) CancelSession(ctx context.Context, plate string, req models.CancelRequest) (*models.Session, error) {
	plate = models.NormalizePlate(plate)
	if plate == "" {
		return nil, models.InvalidInput("plate number is required")
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, models.InvalidInput("a cancellation reason is required")
	}

	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()

	var cancelled *models.Session
	err := s.Store.RunInTx(storeCtx, func(tx SessionTx) error {
		session, err := tx.GetActiveSessionByPlate(storeCtx, plate)
		if err != nil {
			return err
		}
		if !session.Status.CanTransitionTo(models.SessionCancelled) {
			return fmt.Errorf("session %s is %s: %w", session.ID, session.Status, models.ErrSessionNotFound)
		}
		session.Status = models.SessionCancelled
		session.CancelReason = reason
		session.CancelledBy = req.Operator
		session.UpdatedAt = s.now()
		if err := tx.CancelSession(storeCtx, session); err != nil {
			return err
		}
		cancelled = session
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterClose(ctx, plate)
	s.Metrics.Cancelled()
	s.Logger.LogSession("CANCEL", plate, fmt.Sprintf("session %s cancelled by %s: %s", cancelled.ID, req.Operator, reason))
	s.publish(ctx, s.opts.Topics.Cancelled, models.SessionEvent{
		Type:        models.EventCancelled,
		SessionID:   cancelled.ID,
		PlateNumber: plate,
		VehicleType: cancelled.VehicleType,
		Operator:    req.Operator,
		OccurredAt:  cancelled.UpdatedAt,
	})
	return cancelled, nil
}

func (s *ParkingService) ListSessions(ctx context.Context, filter models.SessionFilter) ([]models.Session, error) {
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, models.InvalidInput("limit and offset must not be negative")
	}
	if !filter.Date.IsZero() {
		filter.Date = filter.Date.In(s.opts.Location)
	}

	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.Store.ListSessions(storeCtx, filter)
}

func (s *ParkingService) GetInvoice(ctx context.Context, number string) (*models.Invoice, error) {
	number = strings.ToUpper(strings.TrimSpace(number))
	if number == "" {
		return nil, models.InvalidInput("invoice number is required")
	}

	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.Store.GetInvoiceByNumber(storeCtx, number)
}

// InvoiceQR returns the receipt QR stored with the invoice, rendering it
// again when the invoice was saved without one.
func (s *ParkingService) InvoiceQR(ctx context.Context, number string) ([]byte, error) {
	inv, err := s.GetInvoice(ctx, number)
	if err != nil {
		return nil, err
	}
	if len(inv.QRCode) > 0 {
		return inv.QRCode, nil
	}
	return s.qr.GenerateReceiptQR(inv)
}

// VerifyReceipt decrypts a scanned receipt and checks it against the invoice.
func (s *ParkingService) VerifyReceipt(ctx context.Context, encrypted string) (*models.Invoice, error) {
	receipt, err := s.qr.DecryptReceipt(strings.TrimSpace(encrypted))
	if err != nil {
		return nil, err
	}
	inv, err := s.GetInvoice(ctx, receipt.InvoiceNumber)
	if err != nil {
		return nil, err
	}
	if inv.PlateNumber != receipt.PlateNumber || !inv.TotalAmount.Equal(receipt.Total) {
		return nil, models.InvalidInput("receipt does not match invoice %s", inv.InvoiceNumber)
	}
	return inv, nil
}

func (s *ParkingService) PaymentMethods() []models.PaymentMethodInfo {
	out := make([]models.PaymentMethodInfo, len(models.PaymentMethods))
	copy(out, models.PaymentMethods)
	return out
}

type voucherReader interface {
	GetVoucherByCode(ctx context.Context, code string) (*models.Voucher, error)
}

// lookupVoucher resolves an optional code. An unknown code is an invalid
// voucher, not a missing resource.
func lookupVoucher(ctx context.Context, r voucherReader, code string) (*models.Voucher, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, nil
	}
	v, err := r.GetVoucherByCode(ctx, code)
	if errors.Is(err, models.ErrVoucherNotFound) {
		return nil, models.InvalidVoucher(fmt.Sprintf("unknown voucher code %s", code))
	}
	return v, err
}

func (s *ParkingService) hasHint(ctx context.Context, plate string) bool {
	if s.Cache == nil {
		return false
	}
	cacheCtx, cancel := s.cacheCtx(ctx)
	defer cancel()

	has, err := s.Cache.HasHint(cacheCtx, plate)
	if err != nil {
		s.Metrics.CacheError("has_hint")
		s.Logger.Warn("CACHE", fmt.Sprintf("hint lookup for %s failed, using store only: %v", plate, err))
		return false
	}
	return has
}

func (s *ParkingService) setHint(ctx context.Context, plate, sessionID string) {
	if s.Cache == nil {
		return
	}
	cacheCtx, cancel := s.cacheCtx(ctx)
	defer cancel()

	if err := s.Cache.SetHint(cacheCtx, plate, sessionID, s.opts.HintTTL); err != nil {
		s.Metrics.CacheError("set_hint")
		s.Logger.Warn("CACHE", fmt.Sprintf("failed to write active hint for %s: %v", plate, err))
	}
}

// afterClose drops every cached trace of the plate's session once the store
// has committed.
func (s *ParkingService) afterClose(ctx context.Context, plate string) {
	s.status.evict(plate)
	if s.Cache == nil {
		return
	}
	cacheCtx, cancel := s.cacheCtx(ctx)
	defer cancel()

	if err := s.Cache.ClearHint(cacheCtx, plate); err != nil {
		s.Metrics.CacheError("clear_hint")
		s.Logger.Warn("CACHE", fmt.Sprintf("failed to clear active hint for %s: %v", plate, err))
	}
}

func (s *ParkingService) publish(ctx context.Context, topic string, event models.SessionEvent) {
	if s.Events == nil || topic == "" {
		return
	}
	if err := s.Events.PublishSessionEvent(ctx, topic, event); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("publish %s for %s failed: %v", event.Type, event.PlateNumber, err))
	}
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return models.KindOf(err).String()
}
