package service

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/esimmock/internal/esim/domain"
	"github.com/smallbiznis/esimmock/internal/observability/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const collectTimeout = 2 * time.Second

// Statistics projects the store into per-status counts.
func (s *Service) Statistics(ctx context.Context) (*domain.Statistics, error) {
	start := time.Now()
	stats, err := countStatuses(ctx, s.db, s.repo)
	s.observe(metrics.OperationStatistics, start, err)
	if err != nil {
		s.lifecycle.IncStoreError(metrics.OperationStatistics, err)
		return nil, err
	}
	return stats, nil
}

func countStatuses(ctx context.Context, db *gorm.DB, repo domain.Repository) (*domain.Statistics, error) {
	counts, err := repo.CountGroupedByStatus(ctx, db)
	if err != nil {
		return nil, err
	}
	stats := &domain.Statistics{
		Provisioned: counts[domain.StatusProvisioned],
		Active:      counts[domain.StatusActive],
		Deactivated: counts[domain.StatusDeactivated],
		Expired:     counts[domain.StatusExpired],
	}
	for _, n := range counts {
		stats.Total += n
	}
	return stats, nil
}

// StatusCollector exposes eSIM counts per status, read from the store on
// every scrape.
type StatusCollector struct {
	db   *gorm.DB
	repo domain.Repository
	log  *zap.Logger
	desc *prometheus.Desc
}

func NewStatusCollector(db *gorm.DB, repo domain.Repository, log *zap.Logger) *StatusCollector {
	return &StatusCollector{
		db:   db,
		repo: repo,
		log:  log.Named("esim.collector"),
		desc: prometheus.NewDesc(
			"esimmock_esims",
			"eSIMs currently in the store by lifecycle status.",
			[]string{"status"},
			nil,
		),
	}
}

func (c *StatusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *StatusCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), collectTimeout)
	defer cancel()

	counts, err := c.repo.CountGroupedByStatus(ctx, c.db)
	if err != nil {
		c.log.Warn("collect esim status counts", zap.Error(err))
		ch <- prometheus.NewInvalidMetric(c.desc, err)
		return
	}
	for _, status := range domain.Statuses {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(counts[status]), string(status))
	}
}
