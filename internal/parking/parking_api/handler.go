package parking_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ms-parking/internal/auth"
	"ms-parking/internal/logger"
	"ms-parking/internal/models"
	parkingredis "ms-parking/internal/parking/redis"
	"ms-parking/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type ParkingAPI interface {
	CheckIn(ctx context.Context, req models.CheckInRequest) (*models.Session, error)
	GetActiveByPlate(ctx context.Context, plate string) (*models.Session, error)
	CalculateFee(ctx context.Context, plate, voucherCode string) (*models.Calculation, error)
	CheckOut(ctx context.Context, req models.CheckOutRequest) (*models.Invoice, error)
	CancelSession(ctx context.Context, plate string, req models.CancelRequest) (*models.Session, error)
	ListSessions(ctx context.Context, filter models.SessionFilter) ([]models.Session, error)
	GetInvoice(ctx context.Context, number string) (*models.Invoice, error)
	InvoiceQR(ctx context.Context, number string) ([]byte, error)
	VerifyReceipt(ctx context.Context, encrypted string) (*models.Invoice, error)
	PaymentMethods() []models.PaymentMethodInfo
}

type MemberAPI interface {
	Register(ctx context.Context, req models.MemberRegistration) (*models.Member, error)
	Get(ctx context.Context, id string) (*models.Member, error)
	List(ctx context.Context, activeOnly bool) ([]models.Member, error)
	Update(ctx context.Context, id string, req models.MemberUpdate) (*models.Member, error)
	Deactivate(ctx context.Context, id string) error
	TopUp(ctx context.Context, id string, amount decimal.Decimal) (*models.Member, error)
}

type VoucherAPI interface {
	Create(ctx context.Context, req models.VoucherCreate) (*models.Voucher, error)
	List(ctx context.Context, activeOnly bool) ([]models.Voucher, error)
	GetByCode(ctx context.Context, code string) (*models.Voucher, error)
	Terminate(ctx context.Context, id string) (*models.Voucher, error)
}

type StatsReader interface {
	GetDailyStats(ctx context.Context, date string) (*parkingredis.DailyStats, error)
}

// HealthCheck reports one dependency; a nil error means healthy.
type HealthCheck func(ctx context.Context) error

type Handler struct {
	Parking  ParkingAPI
	Members  MemberAPI
	Vouchers VoucherAPI
	Stats    StatsReader
	Logger   *logger.Logger
	Location *time.Location
	Checks   map[string]HealthCheck
}

func NewHandler(parking ParkingAPI, members MemberAPI, vouchers VoucherAPI, stats StatsReader, log *logger.Logger, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{
		Parking:  parking,
		Members:  members,
		Vouchers: vouchers,
		Stats:    stats,
		Logger:   log,
		Location: loc,
		Checks:   map[string]HealthCheck{},
	}
}

// Routes mounts under /api/parking. protect wraps every route except health;
// pass nil to leave them open.
func (h *Handler) Routes(protect func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/health", h.Health)

	r.Group(func(r chi.Router) {
		if protect != nil {
			r.Use(protect)
		}
		r.Post("/check-in", h.CheckIn)
		r.Get("/status/{plateNumber}", h.GetStatus)
		r.Get("/calculate/{plateNumber}", h.CalculateFee)
		r.Post("/check-out", h.CheckOut)
		r.Post("/cancel/{plateNumber}", h.CancelSession)
		r.Get("/activities", h.ListActivities)
		r.Get("/payment-methods", h.PaymentMethods)
		r.Get("/invoices/{invoiceNumber}", h.GetInvoice)
		r.Get("/invoices/{invoiceNumber}/qr", h.GetInvoiceQR)
		r.Post("/invoices/verify", h.VerifyReceipt)
		r.Get("/stats/{date}", h.GetDailyStats)

		r.Route("/members", func(r chi.Router) {
			r.Post("/", h.RegisterMember)
			r.Get("/", h.ListMembers)
			r.Get("/{id}", h.GetMember)
			r.Put("/{id}", h.UpdateMember)
			r.Delete("/{id}", h.DeactivateMember)
			r.Post("/{id}/topup", h.TopUpMember)
		})

		r.Route("/vouchers", func(r chi.Router) {
			r.Post("/", h.CreateVoucher)
			r.Get("/", h.ListVouchers)
			r.Get("/code/{code}", h.GetVoucherByCode)
			r.Post("/{id}/terminate", h.TerminateVoucher)
		})
	})
	return r
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{}
	healthy := true
	for name, check := range h.Checks {
		if err := check(ctx); err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}

	if !healthy {
		h.Logger.Warn("API", fmt.Sprintf("Health: degraded %v", status))
		h.write(w, http.StatusServiceUnavailable, utils.APIResponse{
			Success:   false,
			Message:   "Service degraded",
			Data:      status,
			Timestamp: time.Now(),
		})
		return
	}
	h.write(w, http.StatusOK, utils.SuccessResponse("Service healthy", status))
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind models.Kind) int {
	switch kind {
	case models.KindConflict:
		return http.StatusConflict
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindInvalidInput:
		return http.StatusBadRequest
	case models.KindInsufficientBalance:
		return http.StatusPaymentRequired
	case models.KindInvalidVoucher:
		return http.StatusUnprocessableEntity
	case models.KindInfrastructure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(w http.ResponseWriter, op, message string, err error) {
	kind := models.KindOf(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	} else {
		h.Logger.Warn("API", fmt.Sprintf("%s: %v", op, err))
	}

	resp := utils.ErrorResponse(message, err.Error())
	if kind != models.KindUnknown {
		resp.Kind = kind.String()
	}
	resp.Retryable = models.IsRetryable(err)
	if status == http.StatusInternalServerError {
		resp.Error = "internal error"
	}
	h.write(w, status, resp)
}

func (h *Handler) badRequest(w http.ResponseWriter, op string, err error) {
	h.Logger.Warn("API", fmt.Sprintf("%s: failed to decode request body: %v", op, err))
	h.write(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
}

func (h *Handler) write(w http.ResponseWriter, status int, resp utils.APIResponse) {
	if err := utils.WriteJSON(w, status, resp); err != nil {
		h.Logger.Error("API", fmt.Sprintf("failed to encode response: %v", err))
	}
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// operatorFor prefers the authenticated operator over one named in the body.
func operatorFor(r *http.Request, fromBody string) string {
	if op := auth.Operator(r.Context()); op != "" {
		return op
	}
	return fromBody
}
