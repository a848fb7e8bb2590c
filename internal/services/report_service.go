package services

import (
	"context"

	"github.com/shopspring/decimal"

	"threadline/internal/models"
	"threadline/internal/repositories"
)

// RevenueSummary aggregates order totals for the back office.
type RevenueSummary struct {
	OrderCount       int             `json:"order_count"`
	Revenue          decimal.Decimal `json:"revenue"`
	ExcludedReturned int             `json:"excluded_returned"`
	ExcludedInvalid  int             `json:"excluded_invalid"`
}

// ReportService computes revenue figures.
type ReportService struct {
	orders    repositories.OrderRepository
	exclusion ReturnExclusion
}

// NewReportService creates a new ReportService.
func NewReportService(orders repositories.OrderRepository, exclusion ReturnExclusion) *ReportService {
	if exclusion == "" {
		exclusion = ExclusionAny
	}
	return &ReportService{orders: orders, exclusion: exclusion}
}

// Revenue sums order totals, leaving out returned orders and orders without items. Order
// status does not matter.
func (s *ReportService) Revenue(ctx context.Context) (*RevenueSummary, error) {
	rows, err := s.orders.RevenueRows(ctx)
	if err != nil {
		return nil, err
	}
	summary := &RevenueSummary{Revenue: decimal.Zero}
	for _, row := range rows {
		if row.ItemCount == 0 {
			summary.ExcludedInvalid++
			continue
		}
		if row.ReturnStatus != nil && s.exclusion.Excludes(models.ReturnStatus(*row.ReturnStatus)) {
			summary.ExcludedReturned++
			continue
		}
		summary.OrderCount++
		summary.Revenue = summary.Revenue.Add(row.TotalAmount)
	}
	return summary, nil
}
