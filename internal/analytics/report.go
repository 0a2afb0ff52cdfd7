package analytics

import (
	"context"
	"fmt"
	"time"

	"ms-parking/internal/logger"

	"github.com/robfig/cron/v3"
)

// ReportRecorder receives the headline figures of each daily report.
type ReportRecorder interface {
	DailyReport(vehicles int64, revenue float64)
}

// Reporter closes out a finished day: it aggregates the day, logs the
// summary and hands the totals to the recorder.
type Reporter struct {
	Service  *Service
	Logger   *logger.Logger
	Recorder ReportRecorder
	Timeout  time.Duration
}

func NewReporter(service *Service, log *logger.Logger, recorder ReportRecorder) *Reporter {
	return &Reporter{Service: service, Logger: log, Recorder: recorder, Timeout: time.Minute}
}

// Run reports on the local day containing day.
func (r *Reporter) Run(ctx context.Context, day time.Time) (*Dashboard, error) {
	d, err := r.Service.GetDashboard(ctx, day, day)
	if err != nil {
		return nil, fmt.Errorf("daily report %s: %w", day.In(r.Service.loc).Format("2006-01-02"), err)
	}

	var vehicles int64
	for _, stat := range d.DailyStatistics {
		vehicles += stat.TotalVehicles
	}
	revenue, _ := d.TotalRevenuePeriod.Float64()
	if r.Recorder != nil {
		r.Recorder.DailyReport(vehicles, revenue)
	}

	r.Logger.Info("ANALYTICS", fmt.Sprintf("Daily report %s: %d vehicles, revenue %s, by method %v",
		d.StartDate, vehicles, d.TotalRevenuePeriod.StringFixed(2), d.PaymentMethodDistribution))
	return d, nil
}

// Schedule registers a job on c that reports on the previous local day.
func (r *Reporter) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.Timeout)
		defer cancel()

		yesterday := r.Service.Now().In(r.Service.loc).AddDate(0, 0, -1)
		if _, err := r.Run(ctx, yesterday); err != nil {
			r.Logger.Error("ANALYTICS", err.Error())
		}
	})
}
