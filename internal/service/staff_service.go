package service

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strings"

	"github.com/psds-microservice/support-bot/internal/errs"
	"github.com/psds-microservice/support-bot/internal/model"
	"gorm.io/gorm"
)

// usernamePattern follows Telegram's username rules. The upper bound also keeps
// remove_helper_<username> within the 64-byte callback data limit.
var usernamePattern = regexp.MustCompile(`^[a-z0-9_]{5,32}$`)

// StaffMember is one entry of the merged admin and helper set.
type StaffMember struct {
	Username string `json:"username"`
	Admin    bool   `json:"admin"`
	AddedBy  string `json:"added_by,omitempty"`
}

// StaffService answers access-control questions. Admins come from config and
// are immutable at runtime; helpers live in the helpers table.
type StaffService struct {
	db     *gorm.DB
	admins map[string]struct{}
}

func NewStaffService(db *gorm.DB, admins []string) *StaffService {
	set := make(map[string]struct{}, len(admins))
	for _, a := range admins {
		if a = NormalizeUsername(a); a != "" {
			set[a] = struct{}{}
		}
	}
	return &StaffService{db: db, admins: set}
}

// NormalizeUsername trims, drops a leading @ and lowercases.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "@"))
}

func (s *StaffService) IsAdmin(username string) bool {
	u := NormalizeUsername(username)
	if u == "" {
		return false
	}
	_, ok := s.admins[u]
	return ok
}

func (s *StaffService) IsStaff(ctx context.Context, username string) (bool, error) {
	u := NormalizeUsername(username)
	if u == "" {
		return false, nil
	}
	if s.IsAdmin(u) {
		return true, nil
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.Helper{}).Where("username = ?", u).Count(&n).Error; err != nil {
		return false, errs.Persistence("lookup helper", err)
	}
	return n > 0, nil
}

// AddHelper stores a new helper. An admin counts as already present.
func (s *StaffService) AddHelper(ctx context.Context, username, addedBy string) (*model.Helper, error) {
	u := NormalizeUsername(username)
	if !usernamePattern.MatchString(u) {
		return nil, errs.Validation("invalid username")
	}
	if s.IsAdmin(u) {
		return nil, errs.ErrHelperExists
	}
	h := &model.Helper{Username: u, AddedBy: NormalizeUsername(addedBy)}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&model.Helper{}).Where("username = ?", u).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return errs.ErrHelperExists
		}
		return tx.Create(h).Error
	})
	switch {
	case err == nil:
		return h, nil
	case errors.Is(err, errs.ErrHelperExists), errors.Is(err, gorm.ErrDuplicatedKey):
		return nil, errs.ErrHelperExists
	default:
		return nil, errs.Persistence("add helper", err)
	}
}

// RemoveHelper deletes a helper. Removing an admin is forbidden; removing an
// unknown username succeeds without change.
func (s *StaffService) RemoveHelper(ctx context.Context, username string) error {
	u := NormalizeUsername(username)
	if s.IsAdmin(u) {
		return errs.ErrForbidden
	}
	if err := s.db.WithContext(ctx).Where("username = ?", u).Delete(&model.Helper{}).Error; err != nil {
		return errs.Persistence("remove helper", err)
	}
	return nil
}

func (s *StaffService) ListHelpers(ctx context.Context) ([]model.Helper, error) {
	var items []model.Helper
	if err := s.db.WithContext(ctx).Order("username").Find(&items).Error; err != nil {
		return nil, errs.Persistence("list helpers", err)
	}
	return items, nil
}

// ListStaff returns admins and helpers merged by username, admins first.
func (s *StaffService) ListStaff(ctx context.Context) ([]StaffMember, error) {
	helpers, err := s.ListHelpers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]StaffMember, 0, len(s.admins)+len(helpers))
	for _, a := range s.Admins() {
		out = append(out, StaffMember{Username: a, Admin: true})
	}
	for _, h := range helpers {
		if s.IsAdmin(h.Username) {
			continue
		}
		out = append(out, StaffMember{Username: h.Username, AddedBy: h.AddedBy})
	}
	return out, nil
}

// Admins returns the configured admin usernames, sorted.
func (s *StaffService) Admins() []string {
	out := make([]string, 0, len(s.admins))
	for a := range s.admins {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
