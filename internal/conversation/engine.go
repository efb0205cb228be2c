// Package conversation turns independent chat events into multi-step flows:
// filing a report, answering one and adding a helper.
package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/psds-microservice/support-bot/internal/action"
	"github.com/psds-microservice/support-bot/internal/errs"
	"github.com/psds-microservice/support-bot/internal/events"
	"github.com/psds-microservice/support-bot/internal/metrics"
	"github.com/psds-microservice/support-bot/internal/model"
	"github.com/psds-microservice/support-bot/internal/notify"
	"github.com/psds-microservice/support-bot/internal/service"
)

const myReportsLimit = 10

// Identity is who sent an event.
type Identity struct {
	UserID      int64
	Username    string
	DisplayName string
}

// Event is one inbound interaction. Either Action is set (a command or a
// button press) or the event is a message, with HasText telling text from
// stickers, photos and the like.
type Event struct {
	From    Identity
	Address model.Address
	Text    string
	HasText bool
	Action  *action.Action
}

// Response is what the bot says back to the sender's address. Notice is a
// short popup for button presses; Alert makes it modal.
type Response struct {
	Messages []notify.Content
	Notice   string
	Alert    bool
}

func say(c ...notify.Content) Response { return Response{Messages: c} }

func alert(text string) Response { return Response{Notice: text, Alert: true} }

type Staff interface {
	IsAdmin(username string) bool
	IsStaff(ctx context.Context, username string) (bool, error)
	AddHelper(ctx context.Context, username, addedBy string) (*model.Helper, error)
	RemoveHelper(ctx context.Context, username string) error
	ListStaff(ctx context.Context) ([]service.StaffMember, error)
}

type AddressBook interface {
	Remember(username string, addr model.Address)
}

type Notifier interface {
	NotifyCreated(ctx context.Context, r *model.Report) (model.DeliveryReceipts, error)
	NotifyAnswered(ctx context.Context, r *model.Report) notify.AnswerResult
}

// Engine is the conversation state machine.
type Engine struct {
	reports  service.ReportServicer
	staff    Staff
	book     AddressBook
	notifier Notifier
	sessions *Sessions
	events   events.Publisher
	log      *slog.Logger
	metrics  *metrics.Metrics
}

type Deps struct {
	Reports  service.ReportServicer
	Staff    Staff
	Book     AddressBook
	Notifier Notifier
	Sessions *Sessions
	Events   events.Publisher
	Log      *slog.Logger
	Metrics  *metrics.Metrics
}

func NewEngine(d Deps) *Engine {
	e := &Engine{
		reports:  d.Reports,
		staff:    d.Staff,
		book:     d.Book,
		notifier: d.Notifier,
		sessions: d.Sessions,
		events:   d.Events,
		log:      d.Log,
		metrics:  d.Metrics,
	}
	if e.sessions == nil {
		e.sessions = NewSessions()
	}
	if e.events == nil {
		e.events = events.Nop{}
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	return e
}

// Step returns the pending step of a user.
func (e *Engine) Step(userID int64) Step { return e.sessions.Get(userID) }

// Handle processes one event. The error is non-nil only for storage failures;
// the Response then carries a generic failure message for the user.
func (e *Engine) Handle(ctx context.Context, ev Event) (Response, error) {
	if ev.From.Username != "" {
		e.book.Remember(ev.From.Username, ev.Address)
	}
	var (
		resp Response
		err  error
	)
	if ev.Action != nil {
		e.metrics.Update("action")
		resp, err = e.handleAction(ctx, ev, *ev.Action)
	} else {
		e.metrics.Update("message")
		resp, err = e.handleMessage(ctx, ev)
	}
	if err != nil {
		e.log.Error("conversation: storage failure", "user_id", ev.From.UserID, "error", err)
		return say(withText(mainMenu(), textFailure)), err
	}
	return resp, nil
}

func (e *Engine) handleMessage(ctx context.Context, ev Event) (Response, error) {
	switch st := e.sessions.Get(ev.From.UserID).(type) {
	case Idle:
		return say(mainMenu()), nil
	case AwaitingTicketBody:
		return e.submitTicket(ctx, ev)
	case AwaitingReplyBody:
		return e.submitReply(ctx, ev, st.ReportID)
	case AwaitingHelperUsername:
		return e.submitHelper(ctx, ev)
	default:
		e.sessions.Reset(ev.From.UserID)
		return say(mainMenu()), nil
	}
}

func text(ev Event) (string, bool) {
	if !ev.HasText || strings.TrimSpace(ev.Text) == "" {
		return "", false
	}
	return ev.Text, true
}

func (e *Engine) submitTicket(ctx context.Context, ev Event) (Response, error) {
	body, ok := text(ev)
	if !ok {
		return say(withText(ticketPrompt(), textSendText)), nil
	}
	r, err := e.reports.Create(ctx, model.Requester{
		UserID:      ev.From.UserID,
		Username:    ev.From.Username,
		DisplayName: ev.From.DisplayName,
	}, body)
	if err != nil {
		if errors.Is(err, errs.ErrValidation) {
			return say(withText(ticketPrompt(), textSendText)), nil
		}
		return Response{}, err
	}
	e.sessions.Reset(ev.From.UserID)
	e.metrics.Transition("created")
	e.log.Info("conversation: report created", "report_id", r.ID, "user_id", r.UserID)

	if _, err := e.notifier.NotifyCreated(ctx, r); err != nil {
		e.log.Error("conversation: creation fan-out incomplete", "report_id", r.ID, "error", err)
	}
	e.events.Publish(ctx, events.ForReport(events.ReportCreated, r))
	return say(ticketCreated(r)), nil
}

func (e *Engine) submitReply(ctx context.Context, ev Event, reportID uint64) (Response, error) {
	staff, err := e.staff.IsStaff(ctx, ev.From.Username)
	if err != nil {
		return Response{}, err
	}
	if !staff {
		e.sessions.Reset(ev.From.UserID)
		return say(withText(mainMenu(), textNoAccess)), nil
	}
	reply, ok := text(ev)
	if !ok {
		return say(withText(replyPrompt(reportID), textSendText)), nil
	}
	r, err := e.reports.MarkAnswered(ctx, reportID, reply, answeredBy(ev.From))
	switch {
	case errors.Is(err, errs.ErrReportNotFound):
		e.sessions.Reset(ev.From.UserID)
		return say(withText(mainMenu(), "❌ "+textNotFound+".")), nil
	case errors.Is(err, errs.ErrValidation):
		return say(withText(replyPrompt(reportID), textSendText)), nil
	case err != nil:
		return Response{}, err
	}
	e.sessions.Reset(ev.From.UserID)
	e.metrics.Transition("answered")
	e.log.Info("conversation: report answered", "report_id", r.ID, "by", ev.From.Username)

	res := e.notifier.NotifyAnswered(ctx, r)
	e.events.Publish(ctx, events.ForReport(events.ReportAnswered, r))

	counts := e.committedCounts(ctx)
	return say(replySent(r, counts, e.staff.IsAdmin(ev.From.Username), res.RequesterNotified)), nil
}

// committedCounts is for responses to a change already saved: a failed count
// is logged and the panel goes without totals instead of reporting a failure.
func (e *Engine) committedCounts(ctx context.Context) map[model.ReportStatus]int64 {
	counts, err := e.reports.CountByStatus(ctx)
	if err != nil {
		e.log.Warn("conversation: count reports", "error", err)
		return nil
	}
	return counts
}

func answeredBy(from Identity) string {
	if from.Username != "" {
		return from.Username
	}
	if from.DisplayName != "" {
		return from.DisplayName
	}
	return strconv.FormatInt(from.UserID, 10)
}

func (e *Engine) submitHelper(ctx context.Context, ev Event) (Response, error) {
	if !e.staff.IsAdmin(ev.From.Username) {
		e.sessions.Reset(ev.From.UserID)
		return say(withText(mainMenu(), textAdminsOnly)), nil
	}
	raw, ok := text(ev)
	if !ok {
		return say(withText(helperPrompt(), textBadUsername)), nil
	}
	h, err := e.staff.AddHelper(ctx, raw, ev.From.Username)
	switch {
	case errors.Is(err, errs.ErrValidation):
		return say(withText(helperPrompt(), textBadUsername)), nil
	case errors.Is(err, errs.ErrHelperExists):
		e.sessions.Reset(ev.From.UserID)
		return e.panelWith(ctx, ev, "❌ @"+notify.Esc(service.NormalizeUsername(raw))+" is already staff.")
	case err != nil:
		return Response{}, err
	}
	e.sessions.Reset(ev.From.UserID)
	e.log.Info("conversation: helper added", "username", h.Username, "by", ev.From.Username)
	e.events.Publish(ctx, events.ForHelper(events.HelperAdded, h.Username, h.AddedBy))
	c := panel(e.committedCounts(ctx), true)
	c.Text = "<b>✅ Helper @" + notify.Esc(h.Username) + " added!</b>\n\n" + c.Text
	return say(c), nil
}

// handleAction runs a command or button press. An allowed action leaves the
// pending step first and the ones that open a new step set it afterwards. A
// denied action keeps the step untouched.
func (e *Engine) handleAction(ctx context.Context, ev Event, a action.Action) (Response, error) {
	switch a.Kind {
	case action.Start, action.BackToMenu:
		e.sessions.Reset(ev.From.UserID)
		return say(mainMenu()), nil
	case action.Cancel:
		e.sessions.Reset(ev.From.UserID)
		return say(withText(mainMenu(), "Cancelled.")), nil
	case action.Support:
		e.sessions.Reset(ev.From.UserID)
		return say(supportMenu()), nil
	case action.FileTicket:
		e.sessions.Set(ev.From.UserID, AwaitingTicketBody{})
		return say(ticketPrompt()), nil
	case action.MyReports:
		e.sessions.Reset(ev.From.UserID)
		items, err := e.reports.ListByRequester(ctx, ev.From.UserID, myReportsLimit)
		if err != nil {
			return Response{}, err
		}
		return say(myReports(items)), nil
	case action.Panel, action.BackToPanel:
		ok, err := e.staff.IsStaff(ctx, ev.From.Username)
		if err != nil {
			return Response{}, err
		}
		if !ok {
			if a.Kind == action.Panel {
				return say(withText(mainMenu(), textPanelDenied)), nil
			}
			return alert(textNoAccess), nil
		}
		e.sessions.Reset(ev.From.UserID)
		return e.panelWith(ctx, ev, "")
	case action.OpenReports, action.AnsweredReports:
		return e.requireStaff(ctx, ev, func() (Response, error) {
			status := model.ReportStatusOpen
			if a.Kind == action.AnsweredReports {
				status = model.ReportStatusAnswered
			}
			items, err := e.reports.List(ctx, status)
			if err != nil {
				return Response{}, err
			}
			return say(reportList(status, items)), nil
		})
	case action.ViewReport:
		return e.requireStaff(ctx, ev, func() (Response, error) {
			r, err := e.reports.GetByID(ctx, a.ReportID)
			if errors.Is(err, errs.ErrReportNotFound) {
				return alert(textNotFound), nil
			}
			if err != nil {
				return Response{}, err
			}
			return say(reportView(r)), nil
		})
	case action.Reply:
		return e.requireStaff(ctx, ev, func() (Response, error) {
			if _, err := e.reports.GetByID(ctx, a.ReportID); err != nil {
				if errors.Is(err, errs.ErrReportNotFound) {
					return alert(textNotFound), nil
				}
				return Response{}, err
			}
			e.sessions.Set(ev.From.UserID, AwaitingReplyBody{ReportID: a.ReportID})
			return say(replyPrompt(a.ReportID)), nil
		})
	case action.ManageHelpers:
		return e.requireAdmin(ev, func() (Response, error) { return e.helpers(ctx) })
	case action.AddHelper:
		return e.requireAdmin(ev, func() (Response, error) {
			e.sessions.Set(ev.From.UserID, AwaitingHelperUsername{})
			return say(helperPrompt()), nil
		})
	case action.RemoveHelper:
		return e.requireAdmin(ev, func() (Response, error) {
			username := service.NormalizeUsername(a.Username)
			err := e.staff.RemoveHelper(ctx, username)
			if errors.Is(err, errs.ErrForbidden) {
				return alert(textAdminImmortal), nil
			}
			if err != nil {
				return Response{}, err
			}
			e.log.Info("conversation: helper removed", "username", username, "by", ev.From.Username)
			e.events.Publish(ctx, events.ForHelper(events.HelperRemoved, username, ev.From.Username))
			resp, err := e.helpers(ctx)
			if err != nil {
				return Response{}, err
			}
			resp.Notice = "✅ @" + username + " removed from helpers"
			resp.Alert = true
			return resp, nil
		})
	}
	e.sessions.Reset(ev.From.UserID)
	return say(mainMenu()), nil
}

// requireStaff runs fn for staff only; the pending step is reset once access
// is granted.
func (e *Engine) requireStaff(ctx context.Context, ev Event, fn func() (Response, error)) (Response, error) {
	ok, err := e.staff.IsStaff(ctx, ev.From.Username)
	if err != nil {
		return Response{}, err
	}
	if !ok {
		return alert(textNoAccess), nil
	}
	e.sessions.Reset(ev.From.UserID)
	return fn()
}

func (e *Engine) requireAdmin(ev Event, fn func() (Response, error)) (Response, error) {
	if !e.staff.IsAdmin(ev.From.Username) {
		return alert(textAdminsOnly), nil
	}
	e.sessions.Reset(ev.From.UserID)
	return fn()
}

// panelWith renders the staff panel, optionally headed by a status line.
func (e *Engine) panelWith(ctx context.Context, ev Event, head string) (Response, error) {
	counts, err := e.reports.CountByStatus(ctx)
	if err != nil {
		return Response{}, err
	}
	c := panel(counts, e.staff.IsAdmin(ev.From.Username))
	if head != "" {
		c.Text = head + "\n\n" + c.Text
	}
	return say(c), nil
}

func (e *Engine) helpers(ctx context.Context) (Response, error) {
	staff, err := e.staff.ListStaff(ctx)
	if err != nil {
		return Response{}, err
	}
	return say(helpersView(staff)), nil
}
