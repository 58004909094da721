package service

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/mansoorceksport/smmpanel/internal/domain"
	"golang.org/x/sync/errgroup"
)

const (
	topServicesLimit = 5
	topUsersLimit    = 10
)

// analyticsPeriods maps the accepted period names to their length
var analyticsPeriods = map[string]time.Duration{
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
	"90d": 90 * 24 * time.Hour,
}

// DashboardService aggregates the admin reporting views
type DashboardService struct {
	stats     domain.StatsRepository
	env       string
	startedAt time.Time
	now       func() time.Time
}

// NewDashboardService creates a new DashboardService instance
func NewDashboardService(stats domain.StatsRepository, env string) *DashboardService {
	return &DashboardService{
		stats:     stats,
		env:       env,
		startedAt: time.Now(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Dashboard retrieves the admin overview
func (s *DashboardService) Dashboard(ctx context.Context) (*domain.Dashboard, error) {
	now := s.now()
	weekAgo := now.AddDate(0, 0, -7)
	dash := &domain.Dashboard{}

	// Use errgroup for concurrent fetching
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		dash.TotalUsers, err = s.stats.CountUsers(gCtx, false, nil)
		return wrapStat("total users", err)
	})
	g.Go(func() (err error) {
		dash.ActiveUsers, err = s.stats.CountUsers(gCtx, true, nil)
		return wrapStat("active users", err)
	})
	g.Go(func() (err error) {
		dash.NewUsersWeek, err = s.stats.CountUsers(gCtx, false, &weekAgo)
		return wrapStat("new users", err)
	})
	g.Go(func() (err error) {
		dash.TotalOrders, err = s.stats.CountOrders(gCtx, "")
		return wrapStat("total orders", err)
	})
	g.Go(func() (err error) {
		dash.PendingOrders, err = s.stats.CountOrders(gCtx, domain.OrderStatusPending)
		return wrapStat("pending orders", err)
	})
	g.Go(func() (err error) {
		dash.TotalRevenue, err = s.stats.PaidRevenue(gCtx)
		return wrapStat("revenue", err)
	})
	g.Go(func() (err error) {
		dash.OrdersByStatus, err = s.stats.OrdersByStatus(gCtx)
		return wrapStat("orders by status", err)
	})
	g.Go(func() (err error) {
		dash.DailyRevenue, err = s.stats.DailyRevenue(gCtx, weekAgo)
		return wrapStat("daily revenue", err)
	})
	g.Go(func() (err error) {
		dash.TopServices, err = s.stats.TopServices(gCtx, topServicesLimit)
		return wrapStat("top services", err)
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if dash.OrdersByStatus == nil {
		dash.OrdersByStatus = []domain.StatusBreakdown{}
	}
	if dash.DailyRevenue == nil {
		dash.DailyRevenue = []domain.DailyRevenue{}
	}
	if dash.TopServices == nil {
		dash.TopServices = []domain.ServiceSales{}
	}
	return dash, nil
}

// Analytics reports revenue and top spenders over period (7d, 30d or 90d)
func (s *DashboardService) Analytics(ctx context.Context, period string) (*domain.Analytics, error) {
	if period == "" {
		period = "30d"
	}
	window, ok := analyticsPeriods[period]
	if !ok {
		return nil, domain.NewValidationError("period", "period must be one of 7d, 30d, 90d")
	}

	since := s.now().Add(-window)
	report := &domain.Analytics{Period: period, Since: since}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		report.RevenueByPlatform, err = s.stats.RevenueByPlatform(gCtx, since)
		return wrapStat("revenue by platform", err)
	})
	g.Go(func() (err error) {
		report.MonthlyRevenue, err = s.stats.MonthlyRevenue(gCtx, since)
		return wrapStat("monthly revenue", err)
	})
	g.Go(func() (err error) {
		report.TopUsers, err = s.stats.TopUsers(gCtx, since, topUsersLimit)
		return wrapStat("top users", err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if report.RevenueByPlatform == nil {
		report.RevenueByPlatform = []domain.PlatformRevenue{}
	}
	if report.MonthlyRevenue == nil {
		report.MonthlyRevenue = []domain.MonthlyRevenue{}
	}
	if report.TopUsers == nil {
		report.TopUsers = []domain.TopUser{}
	}
	return report, nil
}

// SystemInfo describes the running process
type SystemInfo struct {
	GoVersion     string `json:"go_version"`
	OS            string `json:"os"`
	Arch          string `json:"arch"`
	CPUs          int    `json:"cpus"`
	Goroutines    int    `json:"goroutines"`
	Hostname      string `json:"hostname"`
	Environment   string `json:"environment"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	HeapAllocMB   uint64 `json:"heap_alloc_mb"`
	SysMB         uint64 `json:"sys_mb"`
}

func (s *DashboardService) SystemInfo() *SystemInfo {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	hostname, _ := os.Hostname()

	return &SystemInfo{
		GoVersion:     runtime.Version(),
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
		CPUs:          runtime.NumCPU(),
		Goroutines:    runtime.NumGoroutine(),
		Hostname:      hostname,
		Environment:   s.env,
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		HeapAllocMB:   mem.HeapAlloc / 1024 / 1024,
		SysMB:         mem.Sys / 1024 / 1024,
	}
}

func wrapStat(name string, err error) error {
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", name, err)
	}
	return nil
}
