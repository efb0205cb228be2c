package model

import "time"

type ReportStatus string

const (
	ReportStatusOpen     ReportStatus = "open"
	ReportStatusAnswered ReportStatus = "answered"
)

func (s ReportStatus) Valid() bool {
	return s == ReportStatusOpen || s == ReportStatusAnswered
}

// Report is a user's support request. Status moves from open to answered once
// and never back; answering again overwrites Reply in place.
type Report struct {
	ID           uint64           `gorm:"primaryKey" json:"id"`
	UserID       int64            `gorm:"index;not null" json:"user_id"`
	Username     *string          `gorm:"type:varchar(64)" json:"username,omitempty"`
	FirstName    string           `gorm:"type:varchar(255);not null;default:''" json:"first_name"`
	Message      string           `gorm:"type:text;not null" json:"message"`
	Status       ReportStatus     `gorm:"type:varchar(16);index;not null;default:open" json:"status"`
	Reply        *string          `gorm:"type:text" json:"reply,omitempty"`
	RepliedBy    *string          `gorm:"type:varchar(64)" json:"replied_by,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	RepliedAt    *time.Time       `gorm:"index" json:"replied_at,omitempty"`
	NotifyMsgIDs DeliveryReceipts `gorm:"column:notify_msg_ids;type:text;not null;default:''" json:"delivery_receipts"`
}

func (Report) TableName() string { return "reports" }

// Requester is the filer snapshot captured at creation time.
type Requester struct {
	UserID      int64
	Username    string
	DisplayName string
}

// Answer is the staff reply; present iff the report is answered.
type Answer struct {
	Text       string
	AnsweredBy string
	AnsweredAt time.Time
}

func (r *Report) Requester() Requester {
	req := Requester{UserID: r.UserID, DisplayName: r.FirstName}
	if r.Username != nil {
		req.Username = *r.Username
	}
	return req
}

func (r *Report) Answer() *Answer {
	if r.Status != ReportStatusAnswered || r.Reply == nil || r.RepliedAt == nil {
		return nil
	}
	a := &Answer{Text: *r.Reply, AnsweredAt: *r.RepliedAt}
	if r.RepliedBy != nil {
		a.AnsweredBy = *r.RepliedBy
	}
	return a
}

// Helper is a dynamically added staff member. Admins come from config and are
// not stored here.
type Helper struct {
	ID       uint64 `gorm:"primaryKey" json:"id"`
	Username string `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	AddedBy  string `gorm:"type:varchar(64);not null;default:''" json:"added_by"`
}

func (Helper) TableName() string { return "helpers" }
