package parking_api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"ms-parking/internal/models"
	"ms-parking/internal/utils"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req models.CheckInRequest
	if err := decode(r, &req); err != nil {
		h.badRequest(w, "CheckIn", err)
		return
	}
	req.Operator = operatorFor(r, req.Operator)
	h.Logger.Info("API", fmt.Sprintf("CheckIn: plate=%s gate=%s", req.PlateNumber, req.Gate))

	session, err := h.Parking.CheckIn(r.Context(), req)
	if err != nil {
		h.fail(w, "CheckIn", "Check-in rejected", err)
		return
	}
	h.write(w, http.StatusCreated, utils.SuccessResponse("Vehicle checked in", session))
}

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	plate := chi.URLParam(r, "plateNumber")
	h.Logger.Debug("API", fmt.Sprintf("GetStatus: plate=%s", plate))

	session, err := h.Parking.GetActiveByPlate(r.Context(), plate)
	if err != nil {
		h.fail(w, "GetStatus", "No active parking session", err)
		return
	}
	h.write(w, http.StatusOK, utils.SuccessResponse("Vehicle is parked", session))
}

func (h *Handler) CalculateFee(w http.ResponseWriter, r *http.Request) {
	plate := chi.URLParam(r, "plateNumber")
	voucher := r.URL.Query().Get("voucherCode")
	h.Logger.Info("API", fmt.Sprintf("CalculateFee: plate=%s voucher=%s", plate, voucher))

	calc, err := h.Parking.CalculateFee(r.Context(), plate, voucher)
	if err != nil {
		h.fail(w, "CalculateFee", "Fee calculation failed", err)
		return
	}
	h.write(w, http.StatusOK, utils.SuccessResponse("Fee calculated", calc))
}

func (h *Handler) CheckOut(w http.ResponseWriter, r *http.Request) {
	var req models.CheckOutRequest
	if err := decode(r, &req); err != nil {
		h.badRequest(w, "CheckOut", err)
		return
	}
	req.Operator = operatorFor(r, req.Operator)
	h.Logger.Info("API", fmt.Sprintf("CheckOut: plate=%s method=%s voucher=%s", req.PlateNumber, req.PaymentMethod, req.VoucherCode))

	inv, err := h.Parking.CheckOut(r.Context(), req)
	if err != nil {
		h.fail(w, "CheckOut", "Check-out failed", err)
		return
	}
	h.write(w, http.StatusOK, utils.SuccessResponse("Vehicle checked out", inv))
}

func (h *Handler) CancelSession(w http.ResponseWriter, r *http.Request) {
	plate := chi.URLParam(r, "plateNumber")
	var req models.CancelRequest
	if err := decode(r, &req); err != nil {
		h.badRequest(w, "CancelSession", err)
		return
	}
	req.Operator = operatorFor(r, req.Operator)
	h.Logger.Info("API", fmt.Sprintf("CancelSession: plate=%s by=%s", plate, req.Operator))

	session, err := h.Parking.CancelSession(r.Context(), plate, req)
	if err != nil {
		h.fail(w, "CancelSession", "Cancellation failed", err)
		return
	}
	h.write(w, http.StatusOK, utils.SuccessResponse("Parking session cancelled", session))
}

// ListActivities filters by ?plate=, ?status=, ?date=YYYY-MM-DD (local day),
// ?limit= and ?offset=.
func (h *Handler) ListActivities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.SessionFilter{Plate: q.Get("plate")}

	if raw := q.Get("status"); raw != "" {
		status, ok := models.ParseSessionStatus(raw)
		if !ok {
			h.fail(w, "ListActivities", "Invalid filter", models.InvalidInput("unknown status %q", raw))
			return
		}
		filter.Status = status
	}
	if raw := q.Get("date"); raw != "" {
		day, err := time.ParseInLocation("2006-01-02", raw, h.Location)
		if err != nil {
			h.fail(w, "ListActivities", "Invalid filter", models.InvalidInput("date must be YYYY-MM-DD"))
			return
		}
		filter.Date = day
	}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		h.fail(w, "ListActivities", "Invalid filter", err)
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		h.fail(w, "ListActivities", "Invalid filter", err)
		return
	}

	sessions, err := h.Parking.ListSessions(r.Context(), filter)
	if err != nil {
		h.fail(w, "ListActivities", "Could not list activities", err)
		return
	}
	h.write(w, http.StatusOK, utils.SuccessResponse(fmt.Sprintf("%d activities", len(sessions)), sessions))
}

func (h *Handler) PaymentMethods(w http.ResponseWriter, r *http.Request) {
	h.write(w, http.StatusOK, utils.SuccessResponse("Payment methods", h.Parking.PaymentMethods()))
}

func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "invoiceNumber")
	h.Logger.Info("API", fmt.Sprintf("GetInvoice: number=%s", number))

	inv, err := h.Parking.GetInvoice(r.Context(), number)
	if err != nil {
		h.fail(w, "GetInvoice", "Invoice not found", err)
		return
	}
	h.write(w, http.StatusOK, utils.SuccessResponse("Invoice found", inv))
}

func (h *Handler) GetInvoiceQR(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "invoiceNumber")

	png, err := h.Parking.InvoiceQR(r.Context(), number)
	if err != nil {
		h.fail(w, "GetInvoiceQR", "Receipt QR unavailable", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	if _, err := w.Write(png); err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetInvoiceQR: failed to write image: %v", err))
	}
}

func (h *Handler) VerifyReceipt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Payload string `json:"payload"`
	}
	if err := decode(r, &req); err != nil {
		h.badRequest(w, "VerifyReceipt", err)
		return
	}

	inv, err := h.Parking.VerifyReceipt(r.Context(), req.Payload)
	if err != nil {
		h.fail(w, "VerifyReceipt", "Receipt could not be verified", err)
		return
	}
	h.write(w, http.StatusOK, utils.SuccessResponse("Receipt is genuine", inv))
}

func (h *Handler) GetDailyStats(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if _, err := time.Parse("2006-01-02", date); err != nil {
		h.fail(w, "GetDailyStats", "Invalid date", models.InvalidInput("date must be YYYY-MM-DD"))
		return
	}
	if h.Stats == nil {
		h.fail(w, "GetDailyStats", "Statistics unavailable", models.Infrastructure("daily stats", fmt.Errorf("no stats reader configured")))
		return
	}

	stats, err := h.Stats.GetDailyStats(r.Context(), date)
	if err != nil {
		h.fail(w, "GetDailyStats", "Statistics unavailable", models.Infrastructure("daily stats", err))
		return
	}
	h.write(w, http.StatusOK, utils.SuccessResponse("Daily statistics", stats))
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, models.InvalidInput("%q is not a non-negative integer", raw)
	}
	return n, nil
}
