package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/domain"
	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/ingest"
	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/metrics"
	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/repository"
	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/service"
)

const (
	defaultMinTier  = metrics.TierWarning
	maxUploadBytes  = 32 << 20
	uploadFormField = "file"
)

// ReportService is what the handler needs from service.ReportService.
type ReportService interface {
	ListReports(ctx context.Context) ([]domain.Report, error)
	Metrics(ctx context.Context, reportID int64) (*metrics.MetricResult, error)
	Orders(ctx context.Context, reportID int64, minTier metrics.Tier) ([]metrics.OrderDetail, error)
	Overview(ctx context.Context, reportIDs []int64) (*service.Overview, error)
	ComputeLines(ctx context.Context, lines []domain.OrderLine) (metrics.Report, error)
}

type ReportHandler struct {
	service ReportService
}

func NewReportHandler(svc ReportService) *ReportHandler {
	return &ReportHandler{service: svc}
}

// ComputeRequest is the body of an ad-hoc computation.
type ComputeRequest struct {
	Lines   []domain.OrderLine `json:"lines" binding:"required"`
	MinTier string             `json:"min_tier"`
}

// ComputeResponse carries the metrics plus the orders at or above the
// requested tier.
type ComputeResponse struct {
	Result   metrics.MetricResult  `json:"result"`
	Flagged  []metrics.OrderDetail `json:"flagged"`
	Skipped  int                   `json:"skipped,omitempty"`
	Warnings []ingest.Warning      `json:"warnings,omitempty"`
}

// ListReports returns every stored report
func (h *ReportHandler) ListReports(c *gin.Context) {
	reports, err := h.service.ListReports(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to list reports")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch reports"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": reports})
}

// GetMetrics returns the metric result of one report. ?top=N keeps only the
// N best products.
func (h *ReportHandler) GetMetrics(c *gin.Context) {
	id, ok := parseReportID(c)
	if !ok {
		return
	}

	result, err := h.service.Metrics(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "failed to compute metrics")
		return
	}

	if top := strings.TrimSpace(c.Query("top")); top != "" {
		n, err := strconv.Atoi(top)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "top must be a non-negative integer"})
			return
		}
		trimmed := *result
		trimmed.Products = result.TopProducts(n)
		result = &trimmed
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

// GetOrders returns flagged orders of one report, ?tier= defaults to WARNING.
func (h *ReportHandler) GetOrders(c *gin.Context) {
	id, ok := parseReportID(c)
	if !ok {
		return
	}

	tier, ok := parseTier(c)
	if !ok {
		return
	}

	orders, err := h.service.Orders(c.Request.Context(), id, tier)
	if err != nil {
		h.fail(c, err, "failed to classify orders")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":     orders,
		"min_tier": tier,
		"count":    len(orders),
	})
}

// GetOverview combines several reports, ?report_ids=1,2,3.
func (h *ReportHandler) GetOverview(c *gin.Context) {
	ids, err := parseInt64List(c.Query("report_ids"))
	if err != nil || len(ids) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "report_ids must be a comma separated list of ids"})
		return
	}

	overview, err := h.service.Overview(c.Request.Context(), ids)
	if err != nil {
		h.fail(c, err, "failed to build overview")
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": overview})
}

// Compute runs the engine over order lines posted as JSON.
func (h *ReportHandler) Compute(c *gin.Context) {
	var req ComputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	tier := defaultMinTier
	if req.MinTier != "" {
		parsed, ok := metrics.ParseTier(req.MinTier)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown tier " + req.MinTier})
			return
		}
		tier = parsed
	}

	h.compute(c, req.Lines, tier, nil)
}

// Upload computes an order export sent as multipart form field "file".
func (h *ReportHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	header, err := c.FormFile(uploadFormField)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file provided"})
		return
	}

	format, err := ingest.FormatFromName(header.Filename)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tier, ok := parseTier(c)
	if !ok {
		return
	}

	file, err := header.Open()
	if err != nil {
		log.Error().Err(err).Str("filename", header.Filename).Msg("failed to open uploaded file")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file"})
		return
	}
	defer file.Close()

	parsed, err := ingest.Read(file, format)
	if err != nil {
		log.Warn().Err(err).Str("filename", header.Filename).Msg("failed to read uploaded export")
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	h.compute(c, parsed.Lines, tier, parsed)
}

func (h *ReportHandler) compute(c *gin.Context, lines []domain.OrderLine, tier metrics.Tier, parsed *ingest.Result) {
	report, err := h.service.ComputeLines(c.Request.Context(), lines)
	if err != nil {
		h.fail(c, err, "failed to compute metrics")
		return
	}

	resp := ComputeResponse{
		Result:  report.Result,
		Flagged: report.Flagged(tier),
	}
	if parsed != nil {
		resp.Skipped = parsed.Skipped
		resp.Warnings = parsed.Warnings
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (h *ReportHandler) fail(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, repository.ErrReportNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNoReports):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, context.Canceled):
		c.AbortWithStatus(499)
	default:
		_ = c.Error(err)
		log.Error().Err(err).Str("path", c.FullPath()).Msg(message)
		c.JSON(http.StatusInternalServerError, gin.H{"error": message})
	}
}

func parseReportID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report id"})
		return 0, false
	}
	return id, true
}

func parseTier(c *gin.Context) (metrics.Tier, bool) {
	raw := strings.TrimSpace(c.Query("tier"))
	if raw == "" {
		return defaultMinTier, true
	}
	tier, ok := metrics.ParseTier(raw)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown tier " + raw})
		return "", false
	}
	return tier, true
}

// parseInt64List accepts "1,2, 3". Duplicates are dropped keeping the first.
func parseInt64List(value string) ([]int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	parts := strings.Split(value, ",")
	result := make([]int64, 0, len(parts))
	seen := make(map[int64]struct{}, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result, nil
}
