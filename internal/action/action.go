// Package action describes what a user asked the bot to do, independent of
// how the chat platform delivered the request.
package action

import (
	"fmt"
	"strconv"
	"strings"
)

type Kind string

const (
	Start           Kind = "start"
	Panel           Kind = "panel"
	Cancel          Kind = "cancel"
	BackToMenu      Kind = "back_to_menu"
	BackToPanel     Kind = "back_to_panel"
	Support         Kind = "support"
	FileTicket      Kind = "create_report"
	MyReports       Kind = "my_reports"
	OpenReports     Kind = "staff_open_reports"
	AnsweredReports Kind = "staff_answered_reports"
	ViewReport      Kind = "view_report"
	Reply           Kind = "reply_report"
	ManageHelpers   Kind = "manage_helpers"
	AddHelper       Kind = "add_helper"
	RemoveHelper    Kind = "remove_helper"
)

// Action is a structured request. ReportID is set for ViewReport and Reply,
// Username for RemoveHelper.
type Action struct {
	Kind     Kind
	ReportID uint64
	Username string
}

var plain = map[Kind]struct{}{
	Start: {}, Panel: {}, Cancel: {}, BackToMenu: {}, BackToPanel: {},
	Support: {}, FileTicket: {}, MyReports: {}, OpenReports: {},
	AnsweredReports: {}, ManageHelpers: {}, AddHelper: {},
}

// Encode renders the action as inline button callback data.
func (a Action) Encode() string {
	switch a.Kind {
	case ViewReport, Reply:
		return string(a.Kind) + "_" + strconv.FormatUint(a.ReportID, 10)
	case RemoveHelper:
		return string(a.Kind) + "_" + a.Username
	}
	return string(a.Kind)
}

// Parse decodes callback data produced by Encode.
func Parse(data string) (Action, error) {
	data = strings.TrimSpace(data)
	if _, ok := plain[Kind(data)]; ok {
		return Action{Kind: Kind(data)}, nil
	}
	for _, k := range []Kind{ViewReport, Reply} {
		if rest, ok := strings.CutPrefix(data, string(k)+"_"); ok {
			id, err := strconv.ParseUint(rest, 10, 64)
			if err != nil || id == 0 {
				return Action{}, fmt.Errorf("action: bad report id in %q", data)
			}
			return Action{Kind: k, ReportID: id}, nil
		}
	}
	if rest, ok := strings.CutPrefix(data, string(RemoveHelper)+"_"); ok && rest != "" {
		return Action{Kind: RemoveHelper, Username: rest}, nil
	}
	return Action{}, fmt.Errorf("action: unknown callback %q", data)
}

// FromCommand maps a slash command such as "/start" or "/panel@my_bot".
func FromCommand(cmd string) (Action, bool) {
	cmd = strings.TrimPrefix(strings.TrimSpace(cmd), "/")
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	switch Kind(strings.ToLower(cmd)) {
	case Start:
		return Action{Kind: Start}, true
	case Panel:
		return Action{Kind: Panel}, true
	case Cancel:
		return Action{Kind: Cancel}, true
	}
	return Action{}, false
}

func ViewReportOf(id uint64) Action { return Action{Kind: ViewReport, ReportID: id} }

func ReplyTo(id uint64) Action { return Action{Kind: Reply, ReportID: id} }

func RemoveHelperNamed(username string) Action {
	return Action{Kind: RemoveHelper, Username: username}
}
