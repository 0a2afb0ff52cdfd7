package analytics

import (
	"context"
	"fmt"
	"math"
	"time"

	"ms-parking/internal/models"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPeriodDays = 30
	maxPeriodDays     = 92
	topMemberLimit    = 5
)

// Service aggregates dashboard figures straight from the session store.
type Service struct {
	db    *bun.DB
	loc   *time.Location
	cache *lru.LRU[string, Dashboard]

	Now func() time.Time
}

// NewService creates a dashboard service. Results are cached per period for
// cacheTTL; a zero TTL disables the cache.
func NewService(db *bun.DB, loc *time.Location, cacheTTL time.Duration) *Service {
	if loc == nil {
		loc = time.UTC
	}
	s := &Service{db: db, loc: loc, Now: time.Now}
	if cacheTTL > 0 {
		s.cache = lru.NewLRU[string, Dashboard](64, nil, cacheTTL)
	}
	return s
}

// Dashboard is the statistics payload for a reporting period.
type Dashboard struct {
	StartDate                 string                     `json:"start_date"`
	EndDate                   string                     `json:"end_date"`
	TotalVehiclesToday        int64                      `json:"total_vehicles_today"`
	ActiveVehicles            int64                      `json:"active_vehicles"`
	TotalRevenueToday         decimal.Decimal            `json:"total_revenue_today"`
	TotalRevenuePeriod        decimal.Decimal            `json:"total_revenue_period"`
	AverageDurationHours      *float64                   `json:"average_duration_hours,omitempty"`
	VehicleTypeDistribution   map[string]int64           `json:"vehicle_type_distribution"`
	PaymentMethodDistribution map[string]decimal.Decimal `json:"payment_method_distribution"`
	DailyStatistics           []DailyStatistic           `json:"daily_statistics"`
	TopMembers                []TopMember                `json:"top_members"`
}

// DailyStatistic holds check-ins and revenue for one local day
type DailyStatistic struct {
	Date          string          `json:"date"`
	TotalVehicles int64           `json:"total_vehicles"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
}

// TopMember ranks members by completed visits in the period
type TopMember struct {
	MemberCode    string          `bun:"member_code" json:"member_code"`
	Name          string          `bun:"name" json:"name"`
	PlateNumber   string          `bun:"vehicle_plate_number" json:"plate_number"`
	TotalParkings int64           `bun:"total_parkings" json:"total_parkings"`
	TotalSpent    decimal.Decimal `bun:"total_spent" json:"total_spent"`
}

// Period resolves optional YYYY-MM-DD bounds into an inclusive day range.
// Missing bounds default to the last 30 days ending today.
func (s *Service) Period(startRaw, endRaw string) (time.Time, time.Time, error) {
	today := s.startOfDay(s.Now().In(s.loc))

	end := today
	if endRaw != "" {
		t, err := time.ParseInLocation("2006-01-02", endRaw, s.loc)
		if err != nil {
			return time.Time{}, time.Time{}, models.InvalidInput("end_date must be YYYY-MM-DD")
		}
		end = t
	}
	start := end.AddDate(0, 0, -defaultPeriodDays)
	if startRaw != "" {
		t, err := time.ParseInLocation("2006-01-02", startRaw, s.loc)
		if err != nil {
			return time.Time{}, time.Time{}, models.InvalidInput("start_date must be YYYY-MM-DD")
		}
		start = t
	}

	if start.After(end) {
		return time.Time{}, time.Time{}, models.InvalidInput("start_date must not be after end_date")
	}
	if end.Sub(start) > maxPeriodDays*24*time.Hour {
		return time.Time{}, time.Time{}, models.InvalidInput("period cannot exceed %d days", maxPeriodDays)
	}
	return start, end, nil
}

// GetDashboard aggregates the inclusive day range [start, end].
func (s *Service) GetDashboard(ctx context.Context, start, end time.Time) (*Dashboard, error) {
	start, end = s.startOfDay(start.In(s.loc)), s.startOfDay(end.In(s.loc))
	key := start.Format("2006-01-02") + "_" + end.Format("2006-01-02")
	if s.cache != nil {
		if d, ok := s.cache.Get(key); ok {
			return &d, nil
		}
	}

	from, to := start, end.AddDate(0, 0, 1)
	d := Dashboard{
		StartDate:                 start.Format("2006-01-02"),
		EndDate:                   end.Format("2006-01-02"),
		TotalRevenueToday:         decimal.Zero,
		TotalRevenuePeriod:        decimal.Zero,
		VehicleTypeDistribution:   map[string]int64{},
		PaymentMethodDistribution: map[string]decimal.Decimal{},
		TopMembers:                []TopMember{},
	}

	daily := make(map[string]*DailyStatistic)
	for day := start; day.Before(to); day = day.AddDate(0, 0, 1) {
		stat := &DailyStatistic{Date: day.Format("2006-01-02"), TotalRevenue: decimal.Zero}
		daily[stat.Date] = stat
	}

	var (
		sessions []models.Session
		invoices []models.Invoice
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		sessions, err = s.sessionsBetween(gctx, from, to)
		return err
	})
	g.Go(func() (err error) {
		invoices, err = s.invoicesBetween(gctx, from, to)
		return err
	})
	g.Go(func() error { return s.today(gctx, &d) })
	g.Go(func() error { return s.topMembers(gctx, from, to, &d.TopMembers) })
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var totalMinutes float64
	var completed int
	for _, session := range sessions {
		d.VehicleTypeDistribution[string(session.VehicleType)]++
		if stat, ok := daily[session.CheckInTime.In(s.loc).Format("2006-01-02")]; ok {
			stat.TotalVehicles++
		}
		if session.Status == models.SessionCompleted && session.CheckOutTime != nil {
			totalMinutes += session.CheckOutTime.Sub(session.CheckInTime).Minutes()
			completed++
		}
	}
	if completed > 0 {
		hours := math.Round(totalMinutes/float64(completed)/60*100) / 100
		d.AverageDurationHours = &hours
	}

	for _, inv := range invoices {
		d.TotalRevenuePeriod = d.TotalRevenuePeriod.Add(inv.TotalAmount)
		method := string(inv.PaymentMethod)
		d.PaymentMethodDistribution[method] = d.PaymentMethodDistribution[method].Add(inv.TotalAmount)
		if stat, ok := daily[inv.InvoiceDate.In(s.loc).Format("2006-01-02")]; ok {
			stat.TotalRevenue = stat.TotalRevenue.Add(inv.TotalAmount)
		}
	}

	for day := start; day.Before(to); day = day.AddDate(0, 0, 1) {
		d.DailyStatistics = append(d.DailyStatistics, *daily[day.Format("2006-01-02")])
	}

	if s.cache != nil {
		s.cache.Add(key, d)
	}
	return &d, nil
}

// today fills the figures that ignore the requested period.
func (s *Service) today(ctx context.Context, d *Dashboard) error {
	from := s.startOfDay(s.Now().In(s.loc))
	to := from.AddDate(0, 0, 1)

	n, err := s.db.NewSelect().Model((*models.Session)(nil)).
		Where("check_in_time >= ?", from.UTC()).
		Where("check_in_time < ?", to.UTC()).
		Count(ctx)
	if err != nil {
		return models.Infrastructure("count today's sessions", err)
	}
	d.TotalVehiclesToday = int64(n)

	active, err := s.db.NewSelect().Model((*models.Session)(nil)).
		Where("status = ?", models.SessionActive).
		Count(ctx)
	if err != nil {
		return models.Infrastructure("count active sessions", err)
	}
	d.ActiveVehicles = int64(active)

	invoices, err := s.invoicesBetween(ctx, from, to)
	if err != nil {
		return err
	}
	for _, inv := range invoices {
		d.TotalRevenueToday = d.TotalRevenueToday.Add(inv.TotalAmount)
	}
	return nil
}

func (s *Service) topMembers(ctx context.Context, from, to time.Time, dest *[]TopMember) error {
	err := s.db.NewRaw(`
		SELECT m.member_code, m.name, m.vehicle_plate_number,
			COUNT(s.id) AS total_parkings,
			COALESCE(SUM(s.parking_fee), 0) AS total_spent
		FROM parking_sessions s
		JOIN members m ON m.id = s.member_id
		WHERE s.status = ? AND s.check_in_time >= ? AND s.check_in_time < ?
		GROUP BY m.member_code, m.name, m.vehicle_plate_number
		ORDER BY total_parkings DESC, total_spent DESC, m.member_code
		LIMIT ?`,
		models.SessionCompleted, from.UTC(), to.UTC(), topMemberLimit,
	).Scan(ctx, dest)
	if err != nil {
		return models.Infrastructure("top members", err)
	}
	return nil
}

func (s *Service) sessionsBetween(ctx context.Context, from, to time.Time) ([]models.Session, error) {
	var sessions []models.Session
	err := s.db.NewSelect().Model(&sessions).
		Column("id", "vehicle_type", "check_in_time", "check_out_time", "status").
		Where("check_in_time >= ?", from.UTC()).
		Where("check_in_time < ?", to.UTC()).
		Scan(ctx)
	if err != nil {
		return nil, models.Infrastructure("list sessions for dashboard", err)
	}
	return sessions, nil
}

func (s *Service) invoicesBetween(ctx context.Context, from, to time.Time) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := s.db.NewSelect().Model(&invoices).
		Column("id", "invoice_date", "payment_method", "total_amount").
		Where("invoice_date >= ?", from.UTC()).
		Where("invoice_date < ?", to.UTC()).
		Where("status = ?", models.InvoicePaid).
		Scan(ctx)
	if err != nil {
		return nil, models.Infrastructure(fmt.Sprintf("list invoices %s..%s", from.Format("2006-01-02"), to.Format("2006-01-02")), err)
	}
	return invoices, nil
}

func (s *Service) startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.loc)
}
