package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/psds-microservice/support-bot/internal/database/dbtest"
	"github.com/psds-microservice/support-bot/internal/errs"
	"github.com/psds-microservice/support-bot/internal/model"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func newReportService(t *testing.T) (*ReportService, *stepClock) {
	t.Helper()
	clk := &stepClock{now: base}
	return NewReportService(dbtest.New(t), WithNow(clk.Now)), clk
}

var alice = model.Requester{UserID: 1001, Username: "alice", DisplayName: "Alice"}

func TestReportServiceCreateStartsOpen(t *testing.T) {
	svc, _ := newReportService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, alice, "server crashed")
	require.NoError(t, err)
	second, err := svc.Create(ctx, model.Requester{UserID: 7, DisplayName: "Anon"}, "lag")
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	got, err := svc.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReportStatusOpen, got.Status)
	assert.Nil(t, got.Reply)
	assert.Nil(t, got.RepliedAt)
	assert.Nil(t, got.Answer())
	assert.Empty(t, got.NotifyMsgIDs)
	assert.Equal(t, alice, got.Requester())
	assert.True(t, got.CreatedAt.Equal(base))

	anon, err := svc.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Nil(t, anon.Username)
}

func TestReportServiceCreateRejectsBlankBody(t *testing.T) {
	svc, _ := newReportService(t)
	_, err := svc.Create(context.Background(), alice, "  \n ")
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestReportServiceGetMissing(t *testing.T) {
	svc, _ := newReportService(t)
	_, err := svc.GetByID(context.Background(), 404)
	assert.ErrorIs(t, err, errs.ErrReportNotFound)
}

func TestReportServiceMarkAnsweredOverwritesInPlace(t *testing.T) {
	svc, clk := newReportService(t)
	ctx := context.Background()
	r, err := svc.Create(ctx, alice, "cannot connect")
	require.NoError(t, err)

	clk.Set(base.Add(time.Minute))
	answered, err := svc.MarkAnswered(ctx, r.ID, "restart the client", "bob")
	require.NoError(t, err)
	require.NotNil(t, answered.Answer())
	assert.Equal(t, model.ReportStatusAnswered, answered.Status)
	assert.Equal(t, "restart the client", answered.Answer().Text)
	assert.Equal(t, "bob", answered.Answer().AnsweredBy)

	clk.Set(base.Add(2 * time.Minute))
	edited, err := svc.MarkAnswered(ctx, r.ID, "fixed, please retry", "carol")
	require.NoError(t, err)

	got, err := svc.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReportStatusAnswered, got.Status)
	assert.Equal(t, "fixed, please retry", got.Answer().Text)
	assert.Equal(t, "carol", got.Answer().AnsweredBy)
	assert.True(t, got.Answer().AnsweredAt.Equal(base.Add(2*time.Minute)))
	assert.Equal(t, edited.Answer(), got.Answer())
	assert.Equal(t, "cannot connect", got.Message, "body is immutable")
}

func TestReportServiceMarkAnsweredMissing(t *testing.T) {
	svc, _ := newReportService(t)
	_, err := svc.MarkAnswered(context.Background(), 99, "hello", "bob")
	assert.ErrorIs(t, err, errs.ErrReportNotFound)
}

func TestReportServiceMarkAnsweredConcurrentLastWriteWins(t *testing.T) {
	svc, _ := newReportService(t)
	ctx := context.Background()
	r, err := svc.Create(ctx, alice, "race")
	require.NoError(t, err)

	replies := []string{"first", "second", "third", "fourth"}
	var wg sync.WaitGroup
	for _, reply := range replies {
		wg.Add(1)
		go func(reply string) {
			defer wg.Done()
			_, err := svc.MarkAnswered(ctx, r.ID, reply, "staff")
			assert.NoError(t, err)
		}(reply)
	}
	wg.Wait()

	got, err := svc.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReportStatusAnswered, got.Status)
	assert.Contains(t, replies, got.Answer().Text)
}

func TestReportServiceListOrdering(t *testing.T) {
	svc, clk := newReportService(t)
	ctx := context.Background()

	var ids []uint64
	for i, body := range []string{"a", "b", "c"} {
		clk.Set(base.Add(time.Duration(i) * time.Minute))
		r, err := svc.Create(ctx, alice, body)
		require.NoError(t, err)
		ids = append(ids, r.ID)
	}
	clk.Set(base.Add(10 * time.Minute))
	_, err := svc.MarkAnswered(ctx, ids[2], "later", "bob")
	require.NoError(t, err)
	clk.Set(base.Add(20 * time.Minute))
	_, err = svc.MarkAnswered(ctx, ids[0], "latest", "bob")
	require.NoError(t, err)

	open, err := svc.List(ctx, model.ReportStatusOpen)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, ids[1], open[0].ID)

	answered, err := svc.List(ctx, model.ReportStatusAnswered)
	require.NoError(t, err)
	require.Len(t, answered, 2)
	assert.Equal(t, ids[0], answered[0].ID, "most recently answered first")
	assert.Equal(t, ids[2], answered[1].ID)

	counts, err := svc.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[model.ReportStatusOpen])
	assert.Equal(t, int64(2), counts[model.ReportStatusAnswered])
}

func TestReportServiceListByRequester(t *testing.T) {
	svc, _ := newReportService(t)
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		_, err := svc.Create(ctx, alice, "issue")
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, model.Requester{UserID: 2}, "other")
	require.NoError(t, err)

	mine, err := svc.ListByRequester(ctx, alice.UserID, 10)
	require.NoError(t, err)
	require.Len(t, mine, 10)
	assert.Greater(t, mine[0].ID, mine[9].ID)
	for _, r := range mine {
		assert.Equal(t, alice.UserID, r.UserID)
	}

	all, err := svc.ListByRequester(ctx, alice.UserID, 0)
	require.NoError(t, err)
	assert.Len(t, all, 12)
}

func TestReportServiceRecordDeliveryReceipts(t *testing.T) {
	svc, _ := newReportService(t)
	ctx := context.Background()
	r, err := svc.Create(ctx, alice, "help")
	require.NoError(t, err)

	receipts := model.DeliveryReceipts{{Address: 10, Handle: 1}, {Address: 20, Handle: 2}}
	require.NoError(t, svc.RecordDeliveryReceipts(ctx, r.ID, receipts))

	got, err := svc.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, receipts, got.NotifyMsgIDs)

	assert.ErrorIs(t, svc.RecordDeliveryReceipts(ctx, 12345, receipts), errs.ErrReportNotFound)
}

func TestReportServiceDeleteAnsweredOlderThan(t *testing.T) {
	svc, clk := newReportService(t)
	ctx := context.Background()

	old, err := svc.Create(ctx, alice, "old")
	require.NoError(t, err)
	edge, err := svc.Create(ctx, alice, "edge")
	require.NoError(t, err)
	fresh, err := svc.Create(ctx, alice, "fresh")
	require.NoError(t, err)
	open, err := svc.Create(ctx, alice, "still open")
	require.NoError(t, err)

	require.NoError(t, svc.RecordDeliveryReceipts(ctx, old.ID, model.DeliveryReceipts{{Address: 5, Handle: 50}}))

	clk.Set(base.Add(-2 * time.Hour))
	_, err = svc.MarkAnswered(ctx, old.ID, "r", "bob")
	require.NoError(t, err)
	clk.Set(base.Add(-time.Hour))
	_, err = svc.MarkAnswered(ctx, edge.ID, "r", "bob")
	require.NoError(t, err)
	clk.Set(base)
	_, err = svc.MarkAnswered(ctx, fresh.ID, "r", "bob")
	require.NoError(t, err)

	deleted, err := svc.DeleteAnsweredOlderThan(ctx, base.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, deleted, 2)
	assert.Equal(t, old.ID, deleted[0].ID)
	assert.Equal(t, model.DeliveryReceipts{{Address: 5, Handle: 50}}, deleted[0].NotifyMsgIDs)
	assert.Equal(t, edge.ID, deleted[1].ID)

	for _, id := range []uint64{old.ID, edge.ID} {
		_, err := svc.GetByID(ctx, id)
		assert.ErrorIs(t, err, errs.ErrReportNotFound)
	}
	for _, id := range []uint64{fresh.ID, open.ID} {
		_, err := svc.GetByID(ctx, id)
		assert.NoError(t, err)
	}

	again, err := svc.DeleteAnsweredOlderThan(ctx, base.Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestReportServiceIDsAreNeverReused(t *testing.T) {
	svc, clk := newReportService(t)
	ctx := context.Background()
	r, err := svc.Create(ctx, alice, "one")
	require.NoError(t, err)
	_, err = svc.MarkAnswered(ctx, r.ID, "ok", "bob")
	require.NoError(t, err)
	clk.Set(base.Add(48 * time.Hour))
	_, err = svc.DeleteAnsweredOlderThan(ctx, clk.Now())
	require.NoError(t, err)

	next, err := svc.Create(ctx, alice, "two")
	require.NoError(t, err)
	assert.Greater(t, next.ID, r.ID)
}

func TestReportServiceWrapsStorageFailures(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	svc := NewReportService(db)

	boom := errors.New("connection reset by peer")
	mock.ExpectQuery(`INSERT INTO "reports"`).WillReturnError(boom)
	_, err = svc.Create(context.Background(), alice, "body")
	assert.ErrorIs(t, err, errs.ErrPersistence)
	assert.ErrorIs(t, err, boom)

	mock.ExpectQuery(`SELECT \* FROM "reports"`).WillReturnError(boom)
	_, err = svc.List(context.Background(), model.ReportStatusOpen)
	assert.ErrorIs(t, err, errs.ErrPersistence)

	assert.NoError(t, mock.ExpectationsWereMet())
}
