package core_test

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orrn/printdesk/internal/apperr"
	"github.com/orrn/printdesk/internal/core"
	"github.com/orrn/printdesk/internal/db"
	"github.com/orrn/printdesk/internal/model"
)

type recordingPublisher struct {
	mu   sync.Mutex
	sent []*model.Notification
}

func (p *recordingPublisher) Publish(n *model.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, n)
}

func (p *recordingPublisher) published() []*model.Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*model.Notification(nil), p.sent...)
}

type recordingEvents struct {
	mu      sync.Mutex
	events  []string
	changed []model.JobStatus
}

func (e *recordingEvents) record(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, name)
}

func (e *recordingEvents) SendJobSubmitted(job *model.PrintJob, file *model.File) {
	e.record("job.submitted")
}

func (e *recordingEvents) SendJobStatusChanged(job *model.PrintJob, previous model.JobStatus) {
	e.mu.Lock()
	e.changed = append(e.changed, previous)
	e.mu.Unlock()
	e.record("job.status_changed")
}

func (e *recordingEvents) SendNotificationCreated(n *model.Notification) {
	e.record("notification.created")
}

func (e *recordingEvents) names() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.events...)
}

type fixture struct {
	store    *db.Store
	jobs     *core.JobManager
	notifs   *core.Dispatcher
	history  *core.HistoryService
	accounts *core.AccountService
	pub      *recordingPublisher
	events   *recordingEvents
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureAt(t, ":memory:")
}

func newFixtureAt(t *testing.T, path string) *fixture {
	t.Helper()
	store, err := db.Open(db.Config{Path: path, BusyTimeout: 5 * time.Second, QueryTimeout: 10 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	pub := &recordingPublisher{}
	events := &recordingEvents{}
	dispatcher := core.NewDispatcher(store, pub, events, nil)
	return &fixture{
		store:    store,
		jobs:     core.NewJobManager(store, dispatcher, events, nil),
		notifs:   dispatcher,
		history:  core.NewHistoryService(store),
		accounts: core.NewAccountService(store, 4, nil),
		pub:      pub,
		events:   events,
	}
}

// users creates n users with ids 1..n.
func (f *fixture) users(t *testing.T, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		u := &model.User{
			Fullname:     fmt.Sprintf("User %d", i),
			Username:     fmt.Sprintf("user%d", i),
			Email:        fmt.Sprintf("user%d@example.com", i),
			PasswordHash: "x",
		}
		require.NoError(t, f.store.CreateUser(context.Background(), u))
		require.Equal(t, int64(i), u.ID)
	}
}

func submitReq(userID int64, name string) core.SubmitRequest {
	return core.SubmitRequest{
		UserID:      userID,
		File:        model.FileMeta{LocalPath: "/home/docs/" + name, FileName: name},
		Pages:       5,
		Copies:      2,
		ColorOption: model.ColorColor,
	}
}

func userID(id int64) *int64 { return &id }

func TestSubmitApproveNotifyScenario(t *testing.T) {
	f := newFixture(t)
	f.users(t, 3)
	ctx := context.Background()

	jobID, err := f.jobs.Submit(ctx, submitReq(3, "thesis.pdf"))
	require.NoError(t, err)

	job, err := f.jobs.GetJob(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPending, job.Status)
	assert.Equal(t, int64(3), job.UserID)
	assert.Equal(t, 5, job.Pages)
	assert.Equal(t, 2, job.Copies)
	assert.Equal(t, model.ColorColor, job.ColorOption)
	assert.Equal(t, model.PaperA4, job.PaperSize)
	require.NotNil(t, job.FileID)

	updated, err := f.jobs.UpdateStatus(ctx, jobID, model.JobStatusApproved, "admin:root")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusApproved, updated.Status)

	list, err := f.notifs.ListFor(ctx, 3)
	require.NoError(t, err)
	require.Len(t, list, 1)
	n := list[0]
	require.NotNil(t, n.UserID)
	assert.Equal(t, int64(3), *n.UserID)
	assert.Equal(t, model.NotificationUnread, n.Status)
	assert.Equal(t, "Print request approved", n.Subject)
	assert.Contains(t, n.Message, "thesis.pdf")

	require.NoError(t, f.notifs.MarkRead(ctx, n.ID))
	list, err = f.notifs.ListFor(ctx, 3)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.NotificationRead, list[0].Status)

	require.Len(t, f.pub.published(), 1)
	assert.Equal(t, []string{"job.submitted", "notification.created", "job.status_changed"}, f.events.names())
	assert.Equal(t, []model.JobStatus{model.JobStatusPending}, f.events.changed)
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t)
	f.users(t, 1)

	tests := []struct {
		name   string
		mutate func(r *core.SubmitRequest)
	}{
		{"zero pages", func(r *core.SubmitRequest) { r.Pages = 0 }},
		{"negative pages", func(r *core.SubmitRequest) { r.Pages = -2 }},
		{"zero copies", func(r *core.SubmitRequest) { r.Copies = 0 }},
		{"bad color", func(r *core.SubmitRequest) { r.ColorOption = "Sepia" }},
		{"empty color", func(r *core.SubmitRequest) { r.ColorOption = "" }},
		{"bad paper", func(r *core.SubmitRequest) { r.PaperSize = "Letter" }},
		{"no file name", func(r *core.SubmitRequest) { r.File.FileName = "  " }},
		{"no user", func(r *core.SubmitRequest) { r.UserID = 0 }},
		{"long notes", func(r *core.SubmitRequest) { r.Notes = strings.Repeat("ñ", 2001) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := submitReq(1, "a.pdf")
			tt.mutate(&req)
			_, err := f.jobs.Submit(context.Background(), req)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}

	jobs, err := f.jobs.ListRecent(context.Background(), 1, 0)
	require.NoError(t, err)
	assert.Empty(t, jobs)
	assert.Empty(t, f.events.names())
}

func TestSubmitNotesLimitCountsCharacters(t *testing.T) {
	f := newFixture(t)
	f.users(t, 1)

	req := submitReq(1, "a.pdf")
	req.Notes = strings.Repeat("ñ", 2000)
	_, err := f.jobs.Submit(context.Background(), req)
	assert.NoError(t, err)
}

func TestSubmitUnknownUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.jobs.Submit(context.Background(), submitReq(42, "a.pdf"))
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	entries, err := f.history.HistoryFor(context.Background(), 42)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSubmitDerivesFileType(t *testing.T) {
	f := newFixture(t)
	f.users(t, 1)
	ctx := context.Background()

	id, err := f.jobs.Submit(ctx, submitReq(1, "Slides.PPTX"))
	require.NoError(t, err)
	job, err := f.jobs.GetJob(ctx, id)
	require.NoError(t, err)

	file, err := f.store.GetFile(ctx, *job.FileID)
	require.NoError(t, err)
	assert.Equal(t, "pptx", file.FileType)
	assert.Equal(t, "/home/docs/Slides.PPTX", file.FilePath)
}

func TestSubmitRecordsAudit(t *testing.T) {
	f := newFixture(t)
	f.users(t, 1)
	ctx := context.Background()

	id, err := f.jobs.Submit(ctx, submitReq(1, "a.pdf"))
	require.NoError(t, err)
	_, err = f.jobs.UpdateStatus(ctx, id, model.JobStatusDeclined, "admin:root")
	require.NoError(t, err)

	trail, err := f.jobs.AuditTrail(ctx, id)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, model.AuditJobSubmitted, trail[0].Action)
	assert.Equal(t, "user:1", trail[0].Actor)
	assert.Equal(t, model.AuditJobDeclined, trail[1].Action)
	assert.Equal(t, "admin:root", trail[1].Actor)
	assert.JSONEq(t, `{"from":"Pending","to":"Declined"}`, trail[1].Details)

	_, err = f.jobs.AuditTrail(ctx, 999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestTerminalStatesHaveNoTransitions(t *testing.T) {
	f := newFixture(t)
	f.users(t, 1)
	ctx := context.Background()

	for _, first := range []model.JobStatus{model.JobStatusApproved, model.JobStatusDeclined} {
		for _, second := range []model.JobStatus{model.JobStatusApproved, model.JobStatusDeclined} {
			t.Run(fmt.Sprintf("%s then %s", first, second), func(t *testing.T) {
				id, err := f.jobs.Submit(ctx, submitReq(1, "a.pdf"))
				require.NoError(t, err)

				_, err = f.jobs.UpdateStatus(ctx, id, first, "admin")
				require.NoError(t, err)
				_, err = f.jobs.UpdateStatus(ctx, id, second, "admin")
				assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

				job, err := f.jobs.GetJob(ctx, id)
				require.NoError(t, err)
				assert.Equal(t, first, job.Status)
			})
		}
	}
}

func TestUpdateStatusRejectsPending(t *testing.T) {
	f := newFixture(t)
	f.users(t, 1)
	ctx := context.Background()

	id, err := f.jobs.Submit(ctx, submitReq(1, "a.pdf"))
	require.NoError(t, err)

	_, err = f.jobs.UpdateStatus(ctx, id, model.JobStatusPending, "admin")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.jobs.UpdateStatus(ctx, id, "Printed", "admin")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestUpdateStatusUnknownJob(t *testing.T) {
	f := newFixture(t)
	_, err := f.jobs.UpdateStatus(context.Background(), 77, model.JobStatusApproved, "admin")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Empty(t, f.pub.published())
}

func TestDeclineNotifiesOwnerOnly(t *testing.T) {
	f := newFixture(t)
	f.users(t, 2)
	ctx := context.Background()

	id, err := f.jobs.Submit(ctx, submitReq(1, "poster.png"))
	require.NoError(t, err)
	_, err = f.jobs.UpdateStatus(ctx, id, model.JobStatusDeclined, "admin")
	require.NoError(t, err)

	mine, err := f.notifs.ListFor(ctx, 1)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Print request declined", mine[0].Subject)

	other, err := f.notifs.ListFor(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestConcurrentDecisionsOneWins(t *testing.T) {
	f := newFixtureAt(t, filepath.Join(t.TempDir(), "printdesk.db"))
	f.users(t, 1)
	ctx := context.Background()

	id, err := f.jobs.Submit(ctx, submitReq(1, "a.pdf"))
	require.NoError(t, err)

	targets := []model.JobStatus{model.JobStatusApproved, model.JobStatusDeclined}
	errs := make([]error, len(targets))
	var wg sync.WaitGroup
	for i, s := range targets {
		wg.Add(1)
		go func(i int, s model.JobStatus) {
			defer wg.Done()
			_, errs[i] = f.jobs.UpdateStatus(ctx, id, s, "admin")
		}(i, s)
	}
	wg.Wait()

	var ok, lost int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case apperr.IsInvalidTransition(err):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, lost)

	list, err := f.notifs.ListFor(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestListRecent(t *testing.T) {
	f := newFixture(t)
	f.users(t, 2)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 7; i++ {
		id, err := f.jobs.Submit(ctx, submitReq(1, fmt.Sprintf("doc%d.pdf", i)))
		require.NoError(t, err)
		ids = append(ids, id)
	}
	_, err := f.jobs.Submit(ctx, submitReq(2, "other.pdf"))
	require.NoError(t, err)

	recent, err := f.jobs.ListRecent(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, recent, core.DefaultRecentLimit)
	for i, j := range recent {
		assert.Equal(t, ids[len(ids)-1-i], j.ID)
		assert.Equal(t, int64(1), j.UserID)
	}

	recent, err = f.jobs.ListRecent(ctx, 1, 3)
	require.NoError(t, err)
	assert.Len(t, recent, 3)

	recent, err = f.jobs.ListRecent(ctx, 1, 1000)
	require.NoError(t, err)
	assert.Len(t, recent, 7)

	recent, err = f.jobs.ListRecent(ctx, 99, 5)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestListJobsAndStats(t *testing.T) {
	f := newFixture(t)
	f.users(t, 2)
	ctx := context.Background()

	a, err := f.jobs.Submit(ctx, submitReq(1, "a.pdf"))
	require.NoError(t, err)
	b, err := f.jobs.Submit(ctx, submitReq(2, "b.pdf"))
	require.NoError(t, err)
	_, err = f.jobs.Submit(ctx, submitReq(2, "c.pdf"))
	require.NoError(t, err)

	_, err = f.jobs.UpdateStatus(ctx, a, model.JobStatusApproved, "admin")
	require.NoError(t, err)
	_, err = f.jobs.UpdateStatus(ctx, b, model.JobStatusDeclined, "admin")
	require.NoError(t, err)

	pending, err := f.jobs.ListJobs(ctx, model.JobFilter{Status: model.JobStatusPending})
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	byUser, err := f.jobs.ListJobs(ctx, model.JobFilter{UserID: 2})
	require.NoError(t, err)
	assert.Len(t, byUser, 2)

	_, err = f.jobs.ListJobs(ctx, model.JobFilter{Status: "Lost"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	stats, err := f.jobs.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.JobStats{Pending: 1, Approved: 1, Declined: 1, Total: 3}, *stats)
}

func TestHistoryFor(t *testing.T) {
	f := newFixture(t)
	f.users(t, 1)
	ctx := context.Background()

	first, err := f.jobs.Submit(ctx, submitReq(1, "first.pdf"))
	require.NoError(t, err)
	second, err := f.jobs.Submit(ctx, submitReq(1, "second.docx"))
	require.NoError(t, err)
	_, err = f.jobs.UpdateStatus(ctx, first, model.JobStatusApproved, "admin")
	require.NoError(t, err)

	entries, err := f.history.HistoryFor(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, second, entries[0].JobID)
	assert.Equal(t, "second.docx", entries[0].FileName)
	assert.Equal(t, model.JobStatusPending, entries[0].Status)
	assert.Equal(t, first, entries[1].JobID)
	assert.Equal(t, model.JobStatusApproved, entries[1].Status)
	assert.False(t, entries[1].SubmittedAt.After(entries[0].SubmittedAt))
}

func TestDeletedFileRendersPlaceholder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "printdesk.db")
	f := newFixtureAt(t, path)
	f.users(t, 1)
	ctx := context.Background()

	id, err := f.jobs.Submit(ctx, submitReq(1, "gone.pdf"))
	require.NoError(t, err)

	// Delete the file out-of-band on a connection without foreign keys, so
	// the job keeps a dangling file id.
	raw, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	require.NoError(t, err)
	_, err = raw.Exec(`DELETE FROM files`)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	entries, err := f.history.HistoryFor(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.MissingFileName, entries[0].FileName)

	_, err = f.jobs.UpdateStatus(ctx, id, model.JobStatusApproved, "admin")
	require.NoError(t, err)
	list, err := f.notifs.ListFor(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Contains(t, list[0].Message, model.MissingFileName)
}
