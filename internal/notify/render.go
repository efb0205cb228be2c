package notify

import (
	"fmt"
	"html"
	"strings"

	"github.com/psds-microservice/support-bot/internal/action"
	"github.com/psds-microservice/support-bot/internal/model"
)

const divider = "━━━━━━━━━━━━━━━━━━━━━━"

// Esc escapes user text for HTML parse mode.
func Esc(s string) string { return html.EscapeString(s) }

// RequesterLine renders "Name (@username)" or just the name.
func RequesterLine(r *model.Report) string {
	req := r.Requester()
	name := req.DisplayName
	if name == "" {
		name = "Anonymous"
	}
	if req.Username == "" {
		return Esc(name)
	}
	return fmt.Sprintf("%s (@%s)", Esc(name), Esc(req.Username))
}

// CreatedNotice is pushed to staff when a report is filed.
func CreatedNotice(r *model.Report) Content {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>📬 New report #%d</b>\n\n", r.ID)
	fmt.Fprintf(&b, "👤 <b>From:</b> %s\n", RequesterLine(r))
	fmt.Fprintf(&b, "🆔 <b>User ID:</b> <code>%d</code>\n\n", r.UserID)
	fmt.Fprintf(&b, "💬 <b>Message:</b>\n<i>%s</i>", Esc(r.Message))
	return Content{
		Text:    b.String(),
		Buttons: [][]Button{Row(Button{Text: "💬 Reply", Action: action.ReplyTo(r.ID)})},
	}
}

// AnsweredNotice replaces a CreatedNotice once the report has a reply.
func AnsweredNotice(r *model.Report) Content {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>✅ Report #%d: ANSWERED</b>\n\n", r.ID)
	fmt.Fprintf(&b, "👤 <b>From:</b> %s\n\n", RequesterLine(r))
	fmt.Fprintf(&b, "💬 <b>Question:</b>\n<i>%s</i>\n\n%s\n\n", Esc(r.Message), divider)
	if a := r.Answer(); a != nil {
		fmt.Fprintf(&b, "✅ <b>Answer from</b> @%s:\n<i>%s</i>", Esc(a.AnsweredBy), Esc(a.Text))
	}
	return Content{
		Text:    b.String(),
		Buttons: [][]Button{Row(Button{Text: "✏️ Edit reply", Action: action.ReplyTo(r.ID)})},
	}
}

// ResolutionNotice tells the requester their report was answered.
func ResolutionNotice(r *model.Report) Content {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>✅ Answer to your report #%d</b>\n\n", r.ID)
	fmt.Fprintf(&b, "📝 <b>Your question:</b>\n<i>%s</i>\n\n%s\n\n", Esc(r.Message), divider)
	if a := r.Answer(); a != nil {
		fmt.Fprintf(&b, "💬 <b>Support answer:</b>\n<i>%s</i>\n\n", Esc(a.Text))
	}
	b.WriteString("<i>Thanks for reaching out! If the problem persists,\nplease file a new report.</i>")
	return Content{
		Text:    b.String(),
		Buttons: [][]Button{Row(Button{Text: "🛡 Support", Action: action.Action{Kind: action.Support}})},
	}
}
