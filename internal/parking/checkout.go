package parking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-parking/internal/models"
	"ms-parking/internal/parking/discount"
	"ms-parking/internal/parking/fee"
	"ms-parking/internal/parking/payment"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CheckOut prices the session again at the moment of exit, settles it and
// issues the invoice, all inside one store transaction. A failure at any step
// leaves the session ACTIVE with no payment, invoice, debit or voucher use.
func (s *ParkingService) CheckOut(ctx context.Context, req models.CheckOutRequest) (*models.Invoice, error) {
	defer s.Metrics.ObserveOperation("check_out", time.Now())

	inv, quote, err := s.checkOut(ctx, req)
	s.Metrics.CheckOut(methodLabel(req.PaymentMethod), outcome(err))
	if err != nil {
		s.Logger.Warn("SESSION", fmt.Sprintf("check-out for %s failed: %v", req.PlateNumber, err))
		return nil, err
	}

	s.Metrics.Revenue(string(inv.PaymentMethod), inv.TotalAmount.InexactFloat64(),
		quote.VoucherDiscount.InexactFloat64(), quote.MemberDiscount.InexactFloat64())
	return inv, nil
}

// methodLabel keeps the check-out counter's label set closed; anything that
// is not an accepted method is counted as "invalid".
func methodLabel(raw models.PaymentMethod) string {
	method, ok := models.ParsePaymentMethod(string(raw))
	if !ok {
		return "invalid"
	}
	return string(method)
}

func (s *ParkingService) checkOut(ctx context.Context, req models.CheckOutRequest) (*models.Invoice, discount.Result, error) {
	plate := models.NormalizePlate(req.PlateNumber)
	if plate == "" {
		return nil, discount.Result{}, models.InvalidInput("plate number is required")
	}
	method, ok := models.ParsePaymentMethod(string(req.PaymentMethod))
	if !ok {
		return nil, discount.Result{}, models.InvalidInput("unsupported payment method %q", req.PaymentMethod)
	}

	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()

	var (
		issued  *models.Invoice
		session *models.Session
		quote   discount.Result
	)
	err := s.Store.RunInTx(storeCtx, func(tx SessionTx) error {
		var err error
		session, err = tx.GetActiveSessionByPlate(storeCtx, plate)
		if err != nil {
			return err
		}
		if !session.Status.CanTransitionTo(models.SessionCompleted) {
			return fmt.Errorf("session %s is %s: %w", session.ID, session.Status, models.ErrSessionNotFound)
		}

		now := s.now()
		base, err := fee.Calculate(session.CheckInTime, now, s.opts.Rates)
		if err != nil {
			return err
		}

		member, err := s.linkedMember(storeCtx, tx, session)
		if err != nil {
			return err
		}
		if method == models.PaymentMemberBalance && member == nil {
			return models.InvalidInput("member balance payment requires an active member for %s", plate)
		}

		voucher, err := lookupVoucher(storeCtx, tx, req.VoucherCode)
		if err != nil {
			return err
		}

		quote = s.discounts.Compose(discount.Input{
			BaseFee:  base.BaseFee,
			Voucher:  voucher,
			IsMember: member != nil,
			Now:      now,
		})

		session.Status = models.SessionCompleted
		session.CheckOutTime = &now
		session.CheckOutGate = req.Gate
		session.CheckOutOperator = req.Operator
		session.CheckOutPhoto = req.PhotoPath
		session.ParkingFee = decimal.NewNullDecimal(quote.TotalFee)
		session.UpdatedAt = now
		if quote.VoucherApplied {
			session.VoucherCode = quote.VoucherCode
		}
		// Completing first takes the row lock, so a concurrent duplicate
		// check-out waits here and then finds no ACTIVE row.
		if err := tx.CompleteSession(storeCtx, session); err != nil {
			return err
		}

		// Redemption counts against the usage limit. The legacy flow never
		// incremented usage_count; this one does, in the same transaction.
		if quote.VoucherApplied {
			if err := tx.IncrementVoucherUsage(storeCtx, quote.VoucherCode); err != nil {
				return err
			}
		}

		payReq := payment.Request{
			SessionID: session.ID,
			Method:    method,
			Amount:    quote.TotalFee,
		}
		if member != nil {
			payReq.MemberID = member.ID
		}
		paid, err := s.settler.Settle(storeCtx, tx, payReq)
		if err != nil {
			return err
		}

		number, err := s.numberer.Next(storeCtx, tx, now)
		if err != nil {
			return err
		}

		if err := tx.SavePayment(storeCtx, paid); err != nil {
			return err
		}

		inv := s.buildInvoice(number, session, base, quote, paid, member)
		if err := tx.SaveInvoice(storeCtx, inv); err != nil {
			return err
		}
		issued = inv
		return nil
	})
	if err != nil {
		return nil, discount.Result{}, err
	}

	s.afterClose(ctx, plate)
	s.Logger.LogPayment(string(method), issued.PaymentReference, fmt.Sprintf("%s settled for %s", issued.TotalAmount.StringFixed(2), plate))
	s.Logger.LogInvoice(issued.InvoiceNumber, fmt.Sprintf("issued for session %s", session.ID))
	s.publish(ctx, s.opts.Topics.CheckedOut, models.SessionEvent{
		Type:          models.EventCheckedOut,
		SessionID:     session.ID,
		PlateNumber:   plate,
		VehicleType:   session.VehicleType,
		Gate:          req.Gate,
		Operator:      req.Operator,
		InvoiceNumber: issued.InvoiceNumber,
		PaymentMethod: method,
		TotalAmount:   issued.TotalAmount,
		OccurredAt:    issued.CheckOutTime,
	})
	return issued, quote, nil
}

// linkedMember re-reads the member inside the transaction. A member deleted
// or deactivated since check-in gets no benefit.
func (s *ParkingService) linkedMember(ctx context.Context, tx SessionTx, session *models.Session) (*models.Member, error) {
	if !session.IsMember() {
		return nil, nil
	}
	member, err := tx.GetMemberByID(ctx, session.MemberID)
	if errors.Is(err, models.ErrMemberNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !member.Active {
		return nil, nil
	}
	return member, nil
}

func (s *ParkingService) buildInvoice(number string, session *models.Session, base fee.Result, quote discount.Result, paid *models.Payment, member *models.Member) *models.Invoice {
	out := *session.CheckOutTime
	inv := &models.Invoice{
		ID:               uuid.New().String(),
		InvoiceNumber:    number,
		SessionID:        session.ID,
		InvoiceDate:      out,
		PlateNumber:      session.PlateNumber,
		CheckInTime:      session.CheckInTime,
		CheckOutTime:     out,
		DurationMinutes:  base.Minutes,
		Duration:         base.Duration,
		BaseAmount:       base.BaseFee,
		DiscountAmount:   quote.TotalDiscount,
		TotalAmount:      quote.TotalFee,
		PaymentMethod:    paid.PaymentMethod,
		PaymentReference: paid.ReferenceNumber,
		VoucherCode:      session.VoucherCode,
		OperatorName:     session.CheckOutOperator,
		CheckInGate:      session.CheckInGate,
		CheckOutGate:     session.CheckOutGate,
		Status:           models.InvoicePaid,
		CreatedAt:        out,
	}
	if member != nil {
		inv.MemberName = member.Name
	}

	png, err := s.qr.GenerateReceiptQR(inv)
	if err != nil {
		// InvoiceQR renders it on demand later
		s.Logger.Warn("INVOICE", fmt.Sprintf("receipt QR for %s not rendered: %v", number, err))
	} else {
		inv.QRCode = png
	}
	return inv
}
