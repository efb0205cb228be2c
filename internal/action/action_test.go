package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeParse(t *testing.T) {
	cases := []struct {
		action Action
		data   string
	}{
		{Action{Kind: Support}, "support"},
		{Action{Kind: FileTicket}, "create_report"},
		{Action{Kind: OpenReports}, "staff_open_reports"},
		{ViewReportOf(12), "view_report_12"},
		{ReplyTo(7), "reply_report_7"},
		{RemoveHelperNamed("bob_2"), "remove_helper_bob_2"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.data, tc.action.Encode())
		got, err := Parse(tc.data)
		require.NoError(t, err, tc.data)
		assert.Equal(t, tc.action, got)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, data := range []string{"", "connect", "reply_report_", "reply_report_x", "view_report_0", "remove_helper_"} {
		_, err := Parse(data)
		assert.Error(t, err, data)
	}
}

func TestFromCommand(t *testing.T) {
	a, ok := FromCommand("/panel@support_bot")
	require.True(t, ok)
	assert.Equal(t, Panel, a.Kind)

	a, ok = FromCommand("/START")
	require.True(t, ok)
	assert.Equal(t, Start, a.Kind)

	_, ok = FromCommand("/unknown")
	assert.False(t, ok)
}
