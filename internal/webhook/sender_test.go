package webhook

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orrn/printdesk/internal/model"
)

type received struct {
	event     string
	signature string
	body      []byte
}

func startSender(t *testing.T, cfg Config) *Sender {
	t.Helper()
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 5 * time.Millisecond
	}
	s := NewSender(cfg, nil)
	s.Start()
	t.Cleanup(s.Stop)
	return s
}

func testJob() *model.PrintJob {
	return &model.PrintJob{
		ID:          11,
		UserID:      3,
		Pages:       5,
		Copies:      2,
		ColorOption: model.ColorColor,
		PaperSize:   model.PaperA4,
		Status:      model.JobStatusApproved,
	}
}

func TestSignedDelivery(t *testing.T) {
	got := make(chan received, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- received{event: r.Header.Get(EventHeader), signature: r.Header.Get(SignatureHeader), body: body}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := startSender(t, Config{Endpoints: []Endpoint{{Name: "ops", URL: srv.URL, Secret: "s3cret", Events: []string{"job.status_changed"}}}})
	s.SendJobStatusChanged(testJob(), model.JobStatusPending)

	select {
	case r := <-got:
		assert.Equal(t, "job.status_changed", r.event)
		assert.Equal(t, Sign(r.body, "s3cret"), r.signature)

		var payload struct {
			Event string       `json:"event"`
			Data  JobEventData `json:"data"`
		}
		require.NoError(t, json.Unmarshal(r.body, &payload))
		assert.Equal(t, "job.status_changed", payload.Event)
		assert.Equal(t, int64(11), payload.Data.JobID)
		assert.Equal(t, "Approved", payload.Data.Status)
		assert.Equal(t, "Pending", payload.Data.PreviousStatus)
	case <-time.After(2 * time.Second):
		t.Fatal("webhook not delivered")
	}
}

func TestEventFiltering(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	s := startSender(t, Config{Endpoints: []Endpoint{{Name: "jobs", URL: srv.URL, Events: []string{"job.submitted"}}}})
	s.SendNotificationCreated(&model.Notification{ID: 1, Subject: "hi"})
	s.SendJobSubmitted(testJob(), &model.File{FileName: "a.pdf"})

	assert.Eventually(t, func() bool { return hits.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), hits.Load())
}

func TestRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := startSender(t, Config{RetryCount: 3, Endpoints: []Endpoint{{Name: "flaky", URL: srv.URL, Events: []string{"*"}}}})
	s.SendJobSubmitted(testJob(), nil)

	assert.Eventually(t, func() bool { return hits.Load() == 3 }, 2*time.Second, 10*time.Millisecond)
}

func TestNoRetryOnClientError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := startSender(t, Config{RetryCount: 5, Endpoints: []Endpoint{{Name: "strict", URL: srv.URL, Events: []string{"*"}}}})
	s.SendJobSubmitted(testJob(), nil)

	assert.Eventually(t, func() bool { return hits.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), hits.Load())
}

func TestStopAbortsInFlightDelivery(t *testing.T) {
	started := make(chan struct{})
	var once sync.Once
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() { close(started) })
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	s := NewSender(Config{RetryCount: 1, Timeout: time.Minute, Endpoints: []Endpoint{{Name: "hung", URL: srv.URL, Events: []string{"*"}}}}, nil)
	s.Start()
	s.SendJobSubmitted(testJob(), nil)

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("delivery never started")
	}

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop waited for the hung delivery")
	}
}

func TestFullQueueDrops(t *testing.T) {
	// Workers are never started, so the queue only fills.
	s := NewSender(Config{QueueSize: 1, Endpoints: []Endpoint{{Name: "x", URL: "http://127.0.0.1:1", Events: []string{"*"}}}}, nil)
	s.SendJobSubmitted(testJob(), nil)
	s.SendJobSubmitted(testJob(), nil)
	assert.Len(t, s.queue, 1)
}

func TestIsClientError(t *testing.T) {
	assert.True(t, isClientError(&statusError{code: 404}))
	assert.False(t, isClientError(&statusError{code: 503}))
	assert.False(t, isClientError(io.EOF))
}
