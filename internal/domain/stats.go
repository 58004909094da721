package domain

import (
	"context"
	"time"
)

// DailyRevenue is the paid top-up volume of one day
type DailyRevenue struct {
	Date    string `bson:"_id" json:"date"`
	Revenue Money  `bson:"revenue" json:"revenue"`
	Count   int64  `bson:"count" json:"count"`
}

// MonthlyRevenue is the paid top-up volume of one month
type MonthlyRevenue struct {
	Month   string `bson:"_id" json:"month"`
	Revenue Money  `bson:"revenue" json:"revenue"`
	Count   int64  `bson:"count" json:"count"`
}

// ServiceSales ranks services by order volume
type ServiceSales struct {
	ServiceID string `bson:"_id" json:"service_id"`
	Name      string `bson:"name" json:"name"`
	Platform  string `bson:"platform" json:"platform"`
	Orders    int64  `bson:"orders" json:"orders"`
	Revenue   Money  `bson:"revenue" json:"revenue"`
}

// PlatformRevenue is the order volume of one platform
type PlatformRevenue struct {
	Platform string `bson:"_id" json:"platform"`
	Orders   int64  `bson:"orders" json:"orders"`
	Revenue  Money  `bson:"revenue" json:"revenue"`
}

// TopUser ranks users by spending
type TopUser struct {
	UserID   string `bson:"_id" json:"user_id"`
	Username string `bson:"username" json:"username"`
	Email    string `bson:"email" json:"email"`
	Orders   int64  `bson:"orders" json:"orders"`
	Spent    Money  `bson:"spent" json:"spent"`
}

// Dashboard is the admin overview
type Dashboard struct {
	TotalUsers     int64             `json:"total_users"`
	ActiveUsers    int64             `json:"active_users"`
	NewUsersWeek   int64             `json:"new_users_week"`
	TotalOrders    int64             `json:"total_orders"`
	PendingOrders  int64             `json:"pending_orders"`
	TotalRevenue   Money             `json:"total_revenue"`
	OrdersByStatus []StatusBreakdown `json:"orders_by_status"`
	DailyRevenue   []DailyRevenue    `json:"daily_revenue"`
	TopServices    []ServiceSales    `json:"top_services"`
}

// Analytics is the admin report for a period
type Analytics struct {
	Period            string            `json:"period"`
	Since             time.Time         `json:"since"`
	RevenueByPlatform []PlatformRevenue `json:"revenue_by_platform"`
	MonthlyRevenue    []MonthlyRevenue  `json:"monthly_revenue"`
	TopUsers          []TopUser         `json:"top_users"`
}

// StatsRepository runs the aggregations behind admin reporting
type StatsRepository interface {
	CountUsers(ctx context.Context, activeOnly bool, since *time.Time) (int64, error)
	CountOrders(ctx context.Context, status string) (int64, error)
	// PaidRevenue sums paid gateway top-ups
	PaidRevenue(ctx context.Context) (Money, error)
	OrdersByStatus(ctx context.Context) ([]StatusBreakdown, error)
	DailyRevenue(ctx context.Context, since time.Time) ([]DailyRevenue, error)
	MonthlyRevenue(ctx context.Context, since time.Time) ([]MonthlyRevenue, error)
	TopServices(ctx context.Context, limit int64) ([]ServiceSales, error)
	RevenueByPlatform(ctx context.Context, since time.Time) ([]PlatformRevenue, error)
	TopUsers(ctx context.Context, since time.Time, limit int64) ([]TopUser, error)
}

// TxManager runs fn inside a transaction. Repository calls made with the
// ctx passed to fn join that transaction; fn may be retried on transient
// conflicts and must not keep side effects outside of it.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
