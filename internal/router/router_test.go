package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psds-microservice/support-bot/internal/database/dbtest"
	"github.com/psds-microservice/support-bot/internal/handler"
	"github.com/psds-microservice/support-bot/internal/metrics"
	"github.com/psds-microservice/support-bot/internal/model"
	"github.com/psds-microservice/support-bot/internal/service"
)

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func setup(t *testing.T, db handler.Pinger) (http.Handler, *service.ReportService, *service.StaffService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	gdb := dbtest.New(t)
	reports := service.NewReportService(gdb)
	staff := service.NewStaffService(gdb, []string{"admin"})
	h := New(Deps{
		Reports:  handler.NewReportHandler(reports),
		Staff:    handler.NewStaffHandler(staff),
		DB:       db,
		Registry: metrics.New().Registry,
	})
	return h, reports, staff
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealthAndReady(t *testing.T) {
	h, _, _ := setup(t, pinger{})
	assert.Equal(t, http.StatusOK, get(t, h, "/health").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/ready").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/metrics").Code)

	down, _, _ := setup(t, pinger{err: errors.New("down")})
	assert.Equal(t, http.StatusServiceUnavailable, get(t, down, "/ready").Code)
}

func TestReportsAPI(t *testing.T) {
	ctx := context.Background()
	h, reports, _ := setup(t, pinger{})
	a, err := reports.Create(ctx, model.Requester{UserID: 1, Username: "u"}, "first")
	require.NoError(t, err)
	_, err = reports.Create(ctx, model.Requester{UserID: 2}, "second")
	require.NoError(t, err)
	_, err = reports.MarkAnswered(ctx, a.ID, "ok", "admin")
	require.NoError(t, err)

	w := get(t, h, "/api/v1/reports?status=open")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Reports []model.Report   `json:"reports"`
		Total   int              `json:"total"`
		Counts  map[string]int64 `json:"counts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Total)
	assert.Equal(t, "second", body.Reports[0].Message)
	assert.Equal(t, int64(1), body.Counts["answered"])

	w = get(t, h, "/api/v1/reports?user_id=1")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Total)
	assert.Equal(t, model.ReportStatusAnswered, body.Reports[0].Status)

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/v1/reports?status=closed").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/v1/reports?limit=-1").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/v1/reports?user_id=x").Code)

	assert.Equal(t, http.StatusOK, get(t, h, "/api/v1/reports/1").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/v1/reports/999").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/v1/reports/abc").Code)
}

func TestStaffAPI(t *testing.T) {
	h, _, staff := setup(t, pinger{})
	_, err := staff.AddHelper(context.Background(), "bobby", "admin")
	require.NoError(t, err)

	w := get(t, h, "/api/v1/staff")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Staff []service.StaffMember `json:"staff"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []service.StaffMember{
		{Username: "admin", Admin: true},
		{Username: "bobby", AddedBy: "admin"},
	}, body.Staff)
}
