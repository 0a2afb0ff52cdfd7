package parking

import (
	"context"
	"time"

	"ms-parking/internal/models"

	"github.com/shopspring/decimal"
)

// SessionStore is the authoritative record of sessions and the tables a
// check-out touches.
type SessionStore interface {
	GetActiveSessionByPlate(ctx context.Context, plate string) (*models.Session, error)
	CreateSession(ctx context.Context, session *models.Session) error
	GetMemberByPlate(ctx context.Context, plate string) (*models.Member, error)
	GetVoucherByCode(ctx context.Context, code string) (*models.Voucher, error)
	ListSessions(ctx context.Context, filter models.SessionFilter) ([]models.Session, error)
	GetInvoiceByNumber(ctx context.Context, number string) (*models.Invoice, error)
	RunInTx(ctx context.Context, fn func(tx SessionTx) error) error
}

// SessionTx is the view of the store inside one transaction. Every method
// is atomic on its own; the transaction makes them atomic together.
type SessionTx interface {
	GetActiveSessionByPlate(ctx context.Context, plate string) (*models.Session, error)
	GetMemberByID(ctx context.Context, id string) (*models.Member, error)
	GetVoucherByCode(ctx context.Context, code string) (*models.Voucher, error)
	IncrementVoucherUsage(ctx context.Context, code string) error
	DebitMemberBalance(ctx context.Context, memberID string, amount decimal.Decimal) error
	NextInvoiceSequence(ctx context.Context, day string) (int, error)
	SavePayment(ctx context.Context, payment *models.Payment) error
	SaveInvoice(ctx context.Context, invoice *models.Invoice) error
	CompleteSession(ctx context.Context, session *models.Session) error
	CancelSession(ctx context.Context, session *models.Session) error
}

// DedupCache holds advisory "plate is parked" hints. Never authoritative.
type DedupCache interface {
	SetHint(ctx context.Context, plate, sessionID string, ttl time.Duration) error
	HasHint(ctx context.Context, plate string) (bool, error)
	ClearHint(ctx context.Context, plate string) error
}

type EventPublisher interface {
	PublishSessionEvent(ctx context.Context, topic string, event models.SessionEvent) error
}
