package conversation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/psds-microservice/support-bot/internal/action"
	"github.com/psds-microservice/support-bot/internal/model"
	"github.com/psds-microservice/support-bot/internal/notify"
	"github.com/psds-microservice/support-bot/internal/service"
)

const timeLayout = "2006-01-02 15:04:05"

var (
	btnSupport     = notify.Button{Text: "🛡 Support", Action: action.Action{Kind: action.Support}}
	btnBackToMenu  = notify.Button{Text: "◀️ Back to menu", Action: action.Action{Kind: action.BackToMenu}}
	btnBackToPanel = notify.Button{Text: "◀️ Back", Action: action.Action{Kind: action.BackToPanel}}
)

const (
	textNoAccess      = "❌ No access"
	textAdminsOnly    = "❌ Only administrators can manage helpers"
	textPanelDenied   = "❌ You have no access to the panel."
	textSendText      = "❌ Please send a text message."
	textBadUsername   = "❌ Enter a valid username (5-32 letters, digits or underscores)."
	textNotFound      = "Report not found"
	textAdminImmortal = "❌ Administrators cannot be removed"
	textFailure       = "⚠️ Something went wrong. Please try again later."
)

func preview(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}

func mainMenu() notify.Content {
	return notify.Content{
		Text: "<b>👋 Welcome!</b>\n\nNeed help? Open <b>Support</b> to file a report " +
			"and our team will answer you right here.",
		Buttons: [][]notify.Button{notify.Row(btnSupport)},
	}
}

func supportMenu() notify.Content {
	return notify.Content{
		Text: "<b>🛡 Support</b>\n\nDescribe your problem and we will get back to you.",
		Buttons: [][]notify.Button{
			notify.Row(notify.Button{Text: "📝 File a report", Action: action.Action{Kind: action.FileTicket}}),
			notify.Row(notify.Button{Text: "📋 My reports", Action: action.Action{Kind: action.MyReports}}),
			notify.Row(btnBackToMenu),
		},
	}
}

func ticketPrompt() notify.Content {
	return notify.Content{
		Text: "<b>📝 New report</b>\n\nDescribe your problem in <b>one message</b>.\n\n" +
			"<i>Send it below ⬇️</i>",
		Buttons: [][]notify.Button{notify.Row(notify.Button{Text: "❌ Cancel", Action: action.Action{Kind: action.Support}})},
	}
}

func ticketCreated(r *model.Report) notify.Content {
	c := mainMenu()
	c.Text = fmt.Sprintf("<b>✅ Report #%d created!</b>\n\n📝 <b>Your question:</b>\n<i>%s</i>\n\n"+
		"⏳ Please wait for an answer from the team.\nIt will arrive in this chat.",
		r.ID, notify.Esc(r.Message))
	return c
}

func myReports(items []model.Report) notify.Content {
	c := supportMenu()
	var b strings.Builder
	b.WriteString("<b>📋 My reports</b>\n\n")
	if len(items) == 0 {
		b.WriteString("You have no reports yet.")
	}
	for _, r := range items {
		fmt.Fprintf(&b, "%s <b>#%d</b> - %s\n", statusIcon(r.Status), r.ID, notify.Esc(preview(r.Message, 50)))
		if a := r.Answer(); a != nil {
			fmt.Fprintf(&b, "   ↳ <i>Answer: %s</i>\n", notify.Esc(preview(a.Text, 60)))
		}
		b.WriteString("\n")
	}
	c.Text = strings.TrimRight(b.String(), "\n")
	return c
}

func statusIcon(s model.ReportStatus) string {
	if s == model.ReportStatusAnswered {
		return "✅"
	}
	return "🟡"
}

// panel renders the staff panel; nil counts leave the totals out.
func panel(counts map[model.ReportStatus]int64, admin bool) notify.Content {
	rows := [][]notify.Button{
		notify.Row(notify.Button{Text: "📬 Open reports", Action: action.Action{Kind: action.OpenReports}}),
		notify.Row(notify.Button{Text: "✅ Answered reports", Action: action.Action{Kind: action.AnsweredReports}}),
	}
	if admin {
		rows = append(rows, notify.Row(notify.Button{Text: "👥 Manage helpers", Action: action.Action{Kind: action.ManageHelpers}}))
	}
	rows = append(rows, notify.Row(btnBackToMenu))
	if counts == nil {
		return notify.Content{Text: "<b>🛠 Staff panel</b>", Buttons: rows}
	}
	return notify.Content{
		Text: fmt.Sprintf("<b>🛠 Staff panel</b>\n\n🟡 Open: <b>%d</b>\n✅ Answered: <b>%d</b>",
			counts[model.ReportStatusOpen], counts[model.ReportStatusAnswered]),
		Buttons: rows,
	}
}

func reportList(status model.ReportStatus, items []model.Report) notify.Content {
	title := "📬 Open reports"
	if status == model.ReportStatusAnswered {
		title = "✅ Answered reports"
	}
	c := notify.Content{Text: fmt.Sprintf("<b>%s</b> (%d)", title, len(items))}
	if len(items) == 0 {
		c.Text = fmt.Sprintf("<b>%s</b>\n\nNothing here.", title)
	}
	for _, r := range items {
		name := r.FirstName
		if name == "" {
			name = "Anonymous"
		}
		c.Buttons = append(c.Buttons, notify.Row(notify.Button{
			Text:   fmt.Sprintf("%s #%d | %s - %s", statusIcon(r.Status), r.ID, name, preview(r.Message, 30)),
			Action: action.ViewReportOf(r.ID),
		}))
	}
	c.Buttons = append(c.Buttons, notify.Row(btnBackToPanel))
	return c
}

func reportView(r *model.Report) notify.Content {
	status := "🟡 Open"
	replyLabel := "💬 Reply"
	back := action.Action{Kind: action.OpenReports}
	if r.Status == model.ReportStatusAnswered {
		status = "✅ Answered"
		replyLabel = "✏️ Edit reply"
		back = action.Action{Kind: action.AnsweredReports}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "<b>📄 Report #%d</b>\n\n", r.ID)
	fmt.Fprintf(&b, "📊 <b>Status:</b> %s\n", status)
	fmt.Fprintf(&b, "👤 <b>From:</b> %s\n", notify.RequesterLine(r))
	fmt.Fprintf(&b, "🆔 <b>User ID:</b> <code>%d</code>\n", r.UserID)
	fmt.Fprintf(&b, "📅 <b>Created:</b> %s\n\n", r.CreatedAt.Format(timeLayout))
	fmt.Fprintf(&b, "💬 <b>Message:</b>\n<i>%s</i>\n", notify.Esc(r.Message))
	if a := r.Answer(); a != nil {
		fmt.Fprintf(&b, "\n━━━━━━━━━━━━━━━━━━━━━━\n\n✅ <b>Answer from</b> @%s:\n<i>%s</i>\n📅 <b>Answered:</b> %s",
			notify.Esc(a.AnsweredBy), notify.Esc(a.Text), a.AnsweredAt.Format(timeLayout))
	}
	return notify.Content{
		Text: b.String(),
		Buttons: [][]notify.Button{
			notify.Row(notify.Button{Text: replyLabel, Action: action.ReplyTo(r.ID)}),
			notify.Row(notify.Button{Text: "◀️ Back", Action: back}),
		},
	}
}

func replyPrompt(id uint64) notify.Content {
	return notify.Content{
		Text: fmt.Sprintf("<b>💬 Reply to report #%d</b>\n\nWrite your answer in <b>one message</b>.\n\n"+
			"<i>Send it below ⬇️</i>", id),
		Buttons: [][]notify.Button{notify.Row(notify.Button{Text: "❌ Cancel", Action: action.Action{Kind: action.BackToPanel}})},
	}
}

func replySent(r *model.Report, counts map[model.ReportStatus]int64, admin bool, notified bool) notify.Content {
	c := panel(counts, admin)
	who := notify.RequesterLine(r)
	line := fmt.Sprintf("User %s has been notified.", who)
	if !notified {
		line = fmt.Sprintf("⚠️ User %s could not be reached; the answer is saved.", who)
	}
	c.Text = fmt.Sprintf("<b>✅ Answer to report #%d sent!</b>\n\n%s\n\n%s", r.ID, line, c.Text)
	return c
}

func helpersView(staff []service.StaffMember) notify.Content {
	var b strings.Builder
	b.WriteString("<b>👥 Manage helpers</b>\n\n")
	rows := [][]notify.Button{
		notify.Row(notify.Button{Text: "➕ Add helper", Action: action.Action{Kind: action.AddHelper}}),
	}
	helpers := 0
	for _, m := range staff {
		if m.Admin {
			fmt.Fprintf(&b, "👑 @%s (administrator)\n", notify.Esc(m.Username))
			continue
		}
		helpers++
		fmt.Fprintf(&b, "🛡 @%s (added by @%s)\n", notify.Esc(m.Username), notify.Esc(m.AddedBy))
		rows = append(rows, notify.Row(notify.Button{
			Text:   "❌ Remove @" + m.Username,
			Action: action.RemoveHelperNamed(m.Username),
		}))
	}
	if helpers == 0 {
		b.WriteString("No helpers yet.\n")
	}
	rows = append(rows, notify.Row(btnBackToPanel))
	return notify.Content{Text: strings.TrimRight(b.String(), "\n"), Buttons: rows}
}

func helperPrompt() notify.Content {
	return notify.Content{
		Text: "<b>➕ Add helper</b>\n\nSend the <b>username</b> of the new helper.\n\n" +
			"<i>Send it below ⬇️</i>",
		Buttons: [][]notify.Button{notify.Row(notify.Button{Text: "❌ Cancel", Action: action.Action{Kind: action.ManageHelpers}})},
	}
}

func withText(c notify.Content, text string) notify.Content {
	c.Text = text
	return c
}
