package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psds-microservice/support-bot/internal/action"
	"github.com/psds-microservice/support-bot/internal/database/dbtest"
	"github.com/psds-microservice/support-bot/internal/errs"
)

func TestNormalizeUsername(t *testing.T) {
	cases := map[string]string{
		"@Bobby":     "bobby",
		"  alice ": "alice",
		"CAROL_1":  "carol_1",
		"":         "",
		"@":        "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeUsername(in), in)
	}
}

func TestStaffServiceAdminScenario(t *testing.T) {
	ctx := context.Background()
	svc := NewStaffService(dbtest.New(t), []string{"@Admin"})

	ok, err := svc.IsStaff(ctx, "admin")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = svc.IsStaff(ctx, "bobby")
	require.NoError(t, err)
	assert.False(t, ok)

	h, err := svc.AddHelper(ctx, "@Bobby", "admin")
	require.NoError(t, err)
	assert.Equal(t, "bobby", h.Username)
	assert.Equal(t, "admin", h.AddedBy)

	ok, err = svc.IsStaff(ctx, "BOBBY")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, svc.IsAdmin("bobby"))

	_, err = svc.AddHelper(ctx, "bobby", "admin")
	assert.ErrorIs(t, err, errs.ErrHelperExists)

	require.NoError(t, svc.RemoveHelper(ctx, "bobby"))
	ok, err = svc.IsStaff(ctx, "bobby")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, svc.RemoveHelper(ctx, "admin"), errs.ErrForbidden)
	ok, err = svc.IsStaff(ctx, "admin")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStaffServiceAddHelperValidation(t *testing.T) {
	ctx := context.Background()
	svc := NewStaffService(dbtest.New(t), []string{"admin"})

	bad := []string{"", "@", "has space", "dash-name", "ünïcode", "abcd", strings.Repeat("a", 33), strings.Repeat("a", 60)}
	for _, bad := range bad {
		_, err := svc.AddHelper(ctx, bad, "admin")
		assert.ErrorIs(t, err, errs.ErrValidation, bad)
	}

	_, err := svc.AddHelper(ctx, "@admin", "admin")
	assert.ErrorIs(t, err, errs.ErrHelperExists)

	longest := strings.Repeat("z", 32)
	h, err := svc.AddHelper(ctx, longest, "admin")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(action.RemoveHelperNamed(h.Username).Encode()), 64)
}

func TestStaffServiceRemoveUnknownIsNoop(t *testing.T) {
	svc := NewStaffService(dbtest.New(t), nil)
	assert.NoError(t, svc.RemoveHelper(context.Background(), "ghost"))
}

func TestStaffServiceListStaff(t *testing.T) {
	ctx := context.Background()
	svc := NewStaffService(dbtest.New(t), []string{"zed", "amy"})

	_, err := svc.AddHelper(ctx, "mikhail", "amy")
	require.NoError(t, err)
	_, err = svc.AddHelper(ctx, "beatrice", "zed")
	require.NoError(t, err)

	helpers, err := svc.ListHelpers(ctx)
	require.NoError(t, err)
	require.Len(t, helpers, 2)
	assert.Equal(t, "beatrice", helpers[0].Username)

	staff, err := svc.ListStaff(ctx)
	require.NoError(t, err)
	assert.Equal(t, []StaffMember{
		{Username: "amy", Admin: true},
		{Username: "zed", Admin: true},
		{Username: "beatrice", AddedBy: "zed"},
		{Username: "mikhail", AddedBy: "amy"},
	}, staff)
	assert.Equal(t, []string{"amy", "zed"}, svc.Admins())
}

func TestStaffServiceEmptyUsernameIsNotStaff(t *testing.T) {
	svc := NewStaffService(dbtest.New(t), []string{"admin"})
	ok, err := svc.IsStaff(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, ok)
}
