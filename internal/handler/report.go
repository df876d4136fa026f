package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wallet-score-lab/internal/reporting"
	"wallet-score-lab/internal/storage"
)

// ReportHandler renders run reports. The latest run is addressed as "latest".
type ReportHandler struct {
	Generator *reporting.Generator
	Logger    *zap.Logger
}

func (h *ReportHandler) Register(r *gin.Engine) {
	r.GET("/runs/:run_id/report", h.report)
	r.GET("/runs/:run_id/distribution.csv", h.distribution)
}

func (h *ReportHandler) load(c *gin.Context) (*reporting.Report, bool) {
	var (
		report *reporting.Report
		err    error
	)
	ctx := c.Request.Context()
	if runID := c.Param("run_id"); runID == "latest" {
		report, err = h.Generator.GenerateLatest(ctx)
	} else {
		report, err = h.Generator.Generate(ctx, runID)
	}
	if err == nil {
		return report, true
	}
	if errors.Is(err, storage.ErrNotFound) {
		Error(c, http.StatusNotFound, "run not found", nil)
		return nil, false
	}
	if h.Logger != nil {
		h.Logger.Error("report generation failed", zap.Error(err))
	}
	Error(c, http.StatusInternalServerError, "internal error", nil)
	return nil, false
}

func (h *ReportHandler) report(c *gin.Context) {
	report, ok := h.load(c)
	if !ok {
		return
	}
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(reporting.RenderMarkdown(report)))
}

func (h *ReportHandler) distribution(c *gin.Context) {
	report, ok := h.load(c)
	if !ok {
		return
	}
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(reporting.RenderDistributionCSV(report.Distribution)))
}
