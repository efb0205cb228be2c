package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/support-bot/internal/service"
)

type StaffLister interface {
	ListStaff(ctx context.Context) ([]service.StaffMember, error)
}

type StaffHandler struct {
	staff StaffLister
}

func NewStaffHandler(staff StaffLister) *StaffHandler {
	return &StaffHandler{staff: staff}
}

func (h *StaffHandler) List(c *gin.Context) {
	items, err := h.staff.ListStaff(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list staff"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"staff": items})
}
