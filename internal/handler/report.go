package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/support-bot/internal/errs"
	"github.com/psds-microservice/support-bot/internal/model"
	"github.com/psds-microservice/support-bot/internal/service"
)

// ReportHandler exposes reports read-only; all writes go through the bot.
type ReportHandler struct {
	svc service.ReportServicer
}

func NewReportHandler(svc service.ReportServicer) *ReportHandler {
	return &ReportHandler{svc: svc}
}

func (h *ReportHandler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	r, err := h.svc.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, errs.ErrReportNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get report"})
		return
	}
	c.JSON(http.StatusOK, r)
}

// List serves GET /reports?status=open|answered or ?user_id=..&limit=..
func (h *ReportHandler) List(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	var (
		items []model.Report
		err   error
	)
	if v := c.Query("user_id"); v != "" {
		userID, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
			return
		}
		items, err = h.svc.ListByRequester(c.Request.Context(), userID, limit)
	} else {
		status := model.ReportStatus(c.DefaultQuery("status", string(model.ReportStatusOpen)))
		if !status.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		items, err = h.svc.List(c.Request.Context(), status)
		if err == nil && limit > 0 && len(items) > limit {
			items = items[:limit]
		}
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list reports"})
		return
	}

	counts, err := h.svc.CountByStatus(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count reports"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"reports": items,
		"total":   len(items),
		"counts":  counts,
	})
}
