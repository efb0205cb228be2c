package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/psds-microservice/support-bot/internal/errs"
	"github.com/psds-microservice/support-bot/internal/model"
	"gorm.io/gorm"
)

// ReportServicer is the report store as seen by handlers and the chat engine.
type ReportServicer interface {
	Create(ctx context.Context, requester model.Requester, body string) (*model.Report, error)
	GetByID(ctx context.Context, id uint64) (*model.Report, error)
	List(ctx context.Context, status model.ReportStatus) ([]model.Report, error)
	ListByRequester(ctx context.Context, userID int64, limit int) ([]model.Report, error)
	CountByStatus(ctx context.Context) (map[model.ReportStatus]int64, error)
	MarkAnswered(ctx context.Context, id uint64, reply, answeredBy string) (*model.Report, error)
	RecordDeliveryReceipts(ctx context.Context, id uint64, receipts model.DeliveryReceipts) error
	DeleteAnsweredOlderThan(ctx context.Context, threshold time.Time) ([]model.Report, error)
}

type ReportService struct {
	db  *gorm.DB
	now func() time.Time
}

type ReportOption func(*ReportService)

// WithNow overrides the clock used for created_at and replied_at.
func WithNow(now func() time.Time) ReportOption {
	return func(s *ReportService) { s.now = now }
}

func NewReportService(db *gorm.DB, opts ...ReportOption) *ReportService {
	s := &ReportService{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ ReportServicer = (*ReportService)(nil)

func (s *ReportService) Create(ctx context.Context, requester model.Requester, body string) (*model.Report, error) {
	if strings.TrimSpace(body) == "" {
		return nil, errs.Validation("report body is empty")
	}
	r := &model.Report{
		UserID:    requester.UserID,
		FirstName: requester.DisplayName,
		Message:   body,
		Status:    model.ReportStatusOpen,
		CreatedAt: s.now().UTC(),
	}
	if requester.Username != "" {
		username := requester.Username
		r.Username = &username
	}
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, errs.Persistence("create report", err)
	}
	return r, nil
}

func (s *ReportService) GetByID(ctx context.Context, id uint64) (*model.Report, error) {
	return getReport(s.db.WithContext(ctx), id)
}

func getReport(tx *gorm.DB, id uint64) (*model.Report, error) {
	var r model.Report
	if err := tx.First(&r, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrReportNotFound
		}
		return nil, errs.Persistence("get report", err)
	}
	return &r, nil
}

// List returns reports with the given status, newest first. Answered reports
// are ordered by when they were answered.
func (s *ReportService) List(ctx context.Context, status model.ReportStatus) ([]model.Report, error) {
	order := "created_at DESC, id DESC"
	if status == model.ReportStatusAnswered {
		order = "replied_at DESC, id DESC"
	}
	var items []model.Report
	if err := s.db.WithContext(ctx).Where("status = ?", status).Order(order).Find(&items).Error; err != nil {
		return nil, errs.Persistence("list reports", err)
	}
	return items, nil
}

func (s *ReportService) ListByRequester(ctx context.Context, userID int64, limit int) ([]model.Report, error) {
	tx := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("id DESC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	var items []model.Report
	if err := tx.Find(&items).Error; err != nil {
		return nil, errs.Persistence("list reports by requester", err)
	}
	return items, nil
}

func (s *ReportService) CountByStatus(ctx context.Context) (map[model.ReportStatus]int64, error) {
	var rows []struct {
		Status model.ReportStatus
		Total  int64
	}
	err := s.db.WithContext(ctx).Model(&model.Report{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, errs.Persistence("count reports", err)
	}
	out := map[model.ReportStatus]int64{
		model.ReportStatusOpen:     0,
		model.ReportStatusAnswered: 0,
	}
	for _, row := range rows {
		out[row.Status] = row.Total
	}
	return out, nil
}

// MarkAnswered sets the reply. Answering an answered report replaces the
// previous reply; concurrent writers race and the last commit wins.
func (s *ReportService) MarkAnswered(ctx context.Context, id uint64, reply, answeredBy string) (*model.Report, error) {
	if strings.TrimSpace(reply) == "" {
		return nil, errs.Validation("reply is empty")
	}
	now := s.now().UTC()
	var out *model.Report
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Report{}).Where("id = ?", id).Updates(map[string]interface{}{
			"status":     model.ReportStatusAnswered,
			"reply":      reply,
			"replied_by": answeredBy,
			"replied_at": now,
		})
		if res.Error != nil {
			return errs.Persistence("mark answered", res.Error)
		}
		if res.RowsAffected == 0 {
			return errs.ErrReportNotFound
		}
		r, err := getReport(tx, id)
		if err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		if errors.Is(err, errs.ErrReportNotFound) || errors.Is(err, errs.ErrPersistence) {
			return nil, err
		}
		return nil, errs.Persistence("mark answered", err)
	}
	return out, nil
}

func (s *ReportService) RecordDeliveryReceipts(ctx context.Context, id uint64, receipts model.DeliveryReceipts) error {
	res := s.db.WithContext(ctx).Model(&model.Report{}).Where("id = ?", id).
		Update("notify_msg_ids", receipts)
	if res.Error != nil {
		return errs.Persistence("record delivery receipts", res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.ErrReportNotFound
	}
	return nil
}

// DeleteAnsweredOlderThan removes answered reports with replied_at <= threshold
// and returns them, receipts included, so their notices can be cleaned up.
func (s *ReportService) DeleteAnsweredOlderThan(ctx context.Context, threshold time.Time) ([]model.Report, error) {
	var deleted []model.Report
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("status = ? AND replied_at <= ?", model.ReportStatusAnswered, threshold.UTC()).
			Order("id").Find(&deleted).Error; err != nil {
			return err
		}
		if len(deleted) == 0 {
			return nil
		}
		ids := make([]uint64, len(deleted))
		for i := range deleted {
			ids[i] = deleted[i].ID
		}
		return tx.Where("id IN ? AND status = ?", ids, model.ReportStatusAnswered).
			Delete(&model.Report{}).Error
	})
	if err != nil {
		return nil, errs.Persistence("delete answered reports", err)
	}
	return deleted, nil
}
