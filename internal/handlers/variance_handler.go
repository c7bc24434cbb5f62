package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "costwise/internal/errors"
	"costwise/internal/services"
)

// VarianceHandler handles variance reporting requests.
type VarianceHandler struct {
	varianceService services.VarianceServicer
	exportService   services.ExportServicer
}

// NewVarianceHandler creates a new VarianceHandler.
func NewVarianceHandler(varianceService services.VarianceServicer, exportService services.ExportServicer) *VarianceHandler {
	return &VarianceHandler{varianceService: varianceService, exportService: exportService}
}

// CompareServiceLinesRequest represents the request payload for a service
// line comparison.
type CompareServiceLinesRequest struct {
	ServiceLineIDs []string `json:"service_line_ids" binding:"required,min=1"`
}

// GetVariance handles computing a variance report for a cost center.
// @Summary     Get variance report
// @Description Get the per-category budget-vs-actual breakdown for a period
// @Tags        variance
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id           path  string true "Cost center ID"
// @Param       period_start query string true "Period start (YYYY-MM-DD)"
// @Param       period_end   query string true "Period end (YYYY-MM-DD)"
// @Success     200 {object} services.VarianceReport "Variance report"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Cost center not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /cost-centers/{id}/variance [get]
func (h *VarianceHandler) GetVariance(c *gin.Context) {
	report, err := h.reportFromRequest(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"report": report})
}

// ExportVariance handles downloading a variance report as CSV or XLSX.
// @Summary     Export variance report
// @Description Download the variance report for a period as CSV or XLSX
// @Tags        variance
// @Accept      json
// @Produce     text/csv
// @Produce     application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security    BearerAuth
// @Param       id           path  string true  "Cost center ID"
// @Param       period_start query string true  "Period start (YYYY-MM-DD)"
// @Param       period_end   query string true  "Period end (YYYY-MM-DD)"
// @Param       format       query string false "csv (default) or xlsx"
// @Success     200 {file} file "Exported report"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Cost center not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /cost-centers/{id}/variance/export [get]
func (h *VarianceHandler) ExportVariance(c *gin.Context) {
	report, err := h.reportFromRequest(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	format := c.DefaultQuery("format", "csv")
	filename := fmt.Sprintf("variance-%s-%s", report.CostCenterCode, report.PeriodStart.Format("2006-01"))

	switch format {
	case "csv":
		data, err := h.exportService.VarianceReportCSV(report)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="`+filename+`.csv"`)
		c.Data(http.StatusOK, "text/csv", data)
	case "xlsx":
		data, err := h.exportService.VarianceReportXLSX(report)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="`+filename+`.xlsx"`)
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
	default:
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, "format must be 'csv' or 'xlsx'"))
	}
}

func (h *VarianceHandler) reportFromRequest(c *gin.Context) (*services.VarianceReport, error) {
	id, err := pathID(c, "id")
	if err != nil {
		return nil, err
	}

	periodStart, periodEnd, err := periodFromQuery(c)
	if err != nil {
		return nil, err
	}

	return h.varianceService.CalculateVariance(id, periodStart, periodEnd)
}

// GetTrend handles computing a monthly trend series for a cost center.
// @Summary     Get trend analysis
// @Description Get one budget/actual point per month for the trailing months
// @Tags        variance
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id     path  string true  "Cost center ID"
// @Param       months query int    false "Number of months (default 6)"
// @Param       as_of  query string false "Series end date (YYYY-MM-DD, default today)"
// @Success     200 {array} services.TrendPoint "Trend points, oldest first"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Cost center not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /cost-centers/{id}/trend [get]
func (h *VarianceHandler) GetTrend(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	months := 6
	if v := c.Query("months"); v != "" {
		months, err = strconv.Atoi(v)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, "months must be an integer"))
			return
		}
	}

	asOf := time.Now()
	if v := c.Query("as_of"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, "as_of must be a YYYY-MM-DD date"))
			return
		}
		asOf = parsed
	}

	points, err := h.varianceService.GetTrendAnalysis(id, months, asOf)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"trend": points})
}

// CompareServiceLines handles ranking service lines by profitability.
// @Summary     Compare service lines
// @Description Rank service lines by profit margin for a period
// @Tags        variance
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       period_start query string                    true "Period start (YYYY-MM-DD)"
// @Param       period_end   query string                    true "Period end (YYYY-MM-DD)"
// @Param       request      body  CompareServiceLinesRequest true "Service line IDs"
// @Success     200 {array} services.ServiceLineProfit "Service lines, best margin first"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Service line not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /service-lines/compare [post]
func (h *VarianceHandler) CompareServiceLines(c *gin.Context) {
	periodStart, periodEnd, err := periodFromQuery(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CompareServiceLinesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, err.Error()))
		return
	}

	results, err := h.varianceService.CompareServiceLines(req.ServiceLineIDs, periodStart, periodEnd)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"service_lines": results})
}
