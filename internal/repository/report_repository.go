package repository

import (
	"context"
	"errors"

	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/domain"
)

var (
	// ErrReportNotFound is returned when no report has the requested id.
	ErrReportNotFound = errors.New("report not found")

	// ErrSnapshotNotFound is returned when a report has no snapshot for the
	// requested configuration.
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

type ReportRepository interface {
	ListReports(ctx context.Context) ([]domain.Report, error)
	GetReport(ctx context.Context, id int64) (*domain.Report, error)
	ListOrderLines(ctx context.Context, reportID int64) ([]domain.OrderLine, error)
	CreateReport(ctx context.Context, report *domain.Report, lines []domain.OrderLine) (int64, error)

	// Snapshots
	SaveSnapshot(ctx context.Context, snapshot *domain.MetricSnapshot) error
	GetSnapshot(ctx context.Context, reportID int64, configHash string) (*domain.MetricSnapshot, error)
}
