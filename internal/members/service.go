package members

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ms-parking/internal/logger"
	"ms-parking/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// registerAttempts bounds retries when two registrations race for the same
// member code.
const registerAttempts = 3

var validate = validator.New()

type MemberStore interface {
	GetMemberByPlate(ctx context.Context, plate string) (*models.Member, error)
	GetMemberByID(ctx context.Context, id string) (*models.Member, error)
	CreateMember(ctx context.Context, member *models.Member) error
	CountMembers(ctx context.Context) (int, error)
	ListMembers(ctx context.Context, activeOnly bool) ([]models.Member, error)
	UpdateMember(ctx context.Context, member *models.Member) error
	TopUpMemberBalance(ctx context.Context, id string, amount decimal.Decimal, at time.Time) error
}

type MemberService struct {
	Store  MemberStore
	Logger *logger.Logger
	Now    func() time.Time
}

func NewMemberService(store MemberStore, log *logger.Logger) *MemberService {
	return &MemberService{Store: store, Logger: log, Now: time.Now}
}

// Register creates an active member with a zero balance. The plate may belong
// to one member only.
func (s *MemberService) Register(ctx context.Context, req models.MemberRegistration) (*models.Member, error) {
	name := strings.TrimSpace(req.Name)
	plate := models.NormalizePlate(req.VehiclePlateNumber)
	if name == "" {
		return nil, models.InvalidInput("member name is required")
	}
	if plate == "" {
		return nil, models.InvalidInput("vehicle plate number is required")
	}
	if err := validateEmail(req.Email); err != nil {
		return nil, err
	}

	existing, err := s.Store.GetMemberByPlate(ctx, plate)
	switch {
	case err == nil:
		return nil, fmt.Errorf("plate %s is registered to %s: %w", plate, existing.MemberCode, models.ErrDuplicate)
	case !errors.Is(err, models.ErrMemberNotFound):
		return nil, err
	}

	count, err := s.Store.CountMembers(ctx)
	if err != nil {
		return nil, err
	}

	now := s.Now().UTC()
	member := &models.Member{
		Name:               name,
		VehiclePlateNumber: plate,
		Email:              strings.TrimSpace(req.Email),
		PhoneNumber:        strings.TrimSpace(req.PhoneNumber),
		Balance:            decimal.Zero,
		Active:             true,
		RegisteredAt:       now,
		UpdatedAt:          now,
	}
	for attempt := 1; attempt <= registerAttempts; attempt++ {
		member.ID = uuid.New().String()
		member.MemberCode = fmt.Sprintf("MBR%03d", count+attempt)
		err = s.Store.CreateMember(ctx, member)
		if err == nil {
			s.Logger.Info("MEMBER", fmt.Sprintf("registered %s for plate %s", member.MemberCode, plate))
			return member, nil
		}
		if models.KindOf(err) != models.KindConflict {
			return nil, err
		}
		// the plate may have been taken by the racing registration
		if _, perr := s.Store.GetMemberByPlate(ctx, plate); perr == nil {
			return nil, fmt.Errorf("plate %s: %w", plate, models.ErrDuplicate)
		}
	}
	return nil, fmt.Errorf("allocate member code: %w", err)
}

func (s *MemberService) Get(ctx context.Context, id string) (*models.Member, error) {
	return s.Store.GetMemberByID(ctx, id)
}

func (s *MemberService) GetByPlate(ctx context.Context, plate string) (*models.Member, error) {
	return s.Store.GetMemberByPlate(ctx, plate)
}

func (s *MemberService) List(ctx context.Context, activeOnly bool) ([]models.Member, error) {
	return s.Store.ListMembers(ctx, activeOnly)
}

// Update changes the profile fields present in req. Plate and balance are
// not editable here.
func (s *MemberService) Update(ctx context.Context, id string, req models.MemberUpdate) (*models.Member, error) {
	member, err := s.Store.GetMemberByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, models.InvalidInput("member name cannot be empty")
		}
		member.Name = name
	}
	if req.Email != nil {
		if err := validateEmail(*req.Email); err != nil {
			return nil, err
		}
		member.Email = strings.TrimSpace(*req.Email)
	}
	if req.PhoneNumber != nil {
		member.PhoneNumber = strings.TrimSpace(*req.PhoneNumber)
	}
	member.UpdatedAt = s.Now().UTC()

	if err := s.Store.UpdateMember(ctx, member); err != nil {
		return nil, err
	}
	return member, nil
}

// Deactivate is a soft delete. Sessions already linked keep the member id
// but earn no discount at check-out.
func (s *MemberService) Deactivate(ctx context.Context, id string) error {
	member, err := s.Store.GetMemberByID(ctx, id)
	if err != nil {
		return err
	}
	if !member.Active {
		return nil
	}
	member.Active = false
	member.UpdatedAt = s.Now().UTC()
	if err := s.Store.UpdateMember(ctx, member); err != nil {
		return err
	}
	s.Logger.Info("MEMBER", fmt.Sprintf("deactivated %s", member.MemberCode))
	return nil
}

func (s *MemberService) TopUp(ctx context.Context, id string, amount decimal.Decimal) (*models.Member, error) {
	if !amount.IsPositive() {
		return nil, models.InvalidInput("top-up amount must be positive")
	}
	if amount.Exponent() < -2 {
		return nil, models.InvalidInput("top-up amount has more than two decimal places")
	}

	member, err := s.Store.GetMemberByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !member.Active {
		return nil, models.InvalidInput("member %s is inactive", member.MemberCode)
	}

	if err := s.Store.TopUpMemberBalance(ctx, id, amount, s.Now().UTC()); err != nil {
		return nil, err
	}
	s.Logger.LogPayment("TOPUP", member.MemberCode, fmt.Sprintf("credited %s", amount.StringFixed(2)))
	return s.Store.GetMemberByID(ctx, id)
}

func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil
	}
	if err := validate.Var(email, "email"); err != nil {
		return models.InvalidInput("invalid email %q", email)
	}
	return nil
}
