package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/orrn/printdesk/internal/core"
	"github.com/orrn/printdesk/internal/metrics"
	"github.com/orrn/printdesk/internal/model"
)

type WebhookEvent string

const (
	EventJobSubmitted        WebhookEvent = "job.submitted"
	EventJobStatusChanged    WebhookEvent = "job.status_changed"
	EventNotificationCreated WebhookEvent = "notification.created"
)

const (
	SignatureHeader = "X-Webhook-Signature"
	EventHeader     = "X-Webhook-Event"
)

type WebhookPayload struct {
	Event     string      `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

type JobEventData struct {
	JobID          int64  `json:"job_id"`
	UserID         int64  `json:"user_id"`
	FileName       string `json:"file_name,omitempty"`
	Pages          int    `json:"pages"`
	Copies         int    `json:"copies"`
	ColorOption    string `json:"color_option"`
	PaperSize      string `json:"paper_size"`
	Status         string `json:"status"`
	PreviousStatus string `json:"previous_status,omitempty"`
}

type NotificationEventData struct {
	NotifID   int64  `json:"notif_id"`
	UserID    *int64 `json:"user_id"`
	Broadcast bool   `json:"broadcast"`
	Subject   string `json:"subject"`
}

type Endpoint struct {
	Name   string
	URL    string
	Secret string
	// Events lists the subscribed event names; "*" matches all.
	Events []string
}

func (e Endpoint) wants(event WebhookEvent) bool {
	for _, ev := range e.Events {
		if ev == "*" || ev == string(event) {
			return true
		}
	}
	return false
}

type Config struct {
	RetryCount  int
	RetryDelay  time.Duration
	Timeout     time.Duration
	WorkerCount int
	QueueSize   int
	Endpoints   []Endpoint
}

type webhookTask struct {
	endpoint Endpoint
	event    WebhookEvent
	payload  *WebhookPayload
	attempt  int
}

// Sender delivers domain events to the configured endpoints from a pool of
// workers. Events are dropped when the queue is full.
type Sender struct {
	endpoints   []Endpoint
	httpClient  *http.Client
	retryCount  int
	retryDelay  time.Duration
	workerCount int
	queue       chan *webhookTask
	stopCh      chan struct{}
	stopCtx     context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	logger      *slog.Logger
}

var _ core.EventSender = (*Sender)(nil)

func NewSender(config Config, logger *slog.Logger) *Sender {
	if config.RetryCount <= 0 {
		config.RetryCount = 3
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 5 * time.Second
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = 3
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}

	stopCtx, cancel := context.WithCancel(context.Background())
	return &Sender{
		endpoints: config.Endpoints,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		retryCount:  config.RetryCount,
		retryDelay:  config.RetryDelay,
		workerCount: config.WorkerCount,
		queue:       make(chan *webhookTask, config.QueueSize),
		stopCh:      make(chan struct{}),
		stopCtx:     stopCtx,
		cancel:      cancel,
		logger:      logger.With(slog.String("component", "webhook")),
	}
}

func (s *Sender) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
}

// Stop signals the workers, aborts in-flight deliveries and waits for the
// workers to return. Queued tasks that have not started are discarded.
func (s *Sender) Stop() {
	close(s.stopCh)
	s.cancel()
	s.wg.Wait()
}

// Run starts the workers and stops them when ctx is done.
func (s *Sender) Run(ctx context.Context) error {
	s.Start()
	<-ctx.Done()
	s.Stop()
	return nil
}

func (s *Sender) SendJobSubmitted(job *model.PrintJob, file *model.File) {
	data := jobData(job)
	if file != nil {
		data.FileName = file.FileName
	}
	s.enqueue(EventJobSubmitted, data)
}

func (s *Sender) SendJobStatusChanged(job *model.PrintJob, previous model.JobStatus) {
	data := jobData(job)
	data.PreviousStatus = string(previous)
	s.enqueue(EventJobStatusChanged, data)
}

func (s *Sender) SendNotificationCreated(n *model.Notification) {
	s.enqueue(EventNotificationCreated, &NotificationEventData{
		NotifID:   n.ID,
		UserID:    n.UserID,
		Broadcast: n.IsBroadcast(),
		Subject:   n.Subject,
	})
}

func jobData(job *model.PrintJob) *JobEventData {
	return &JobEventData{
		JobID:       job.ID,
		UserID:      job.UserID,
		Pages:       job.Pages,
		Copies:      job.Copies,
		ColorOption: string(job.ColorOption),
		PaperSize:   string(job.PaperSize),
		Status:      string(job.Status),
	}
}

func (s *Sender) enqueue(event WebhookEvent, data interface{}) {
	for _, ep := range s.endpoints {
		if !ep.wants(event) {
			continue
		}

		task := &webhookTask{
			endpoint: ep,
			event:    event,
			payload: &WebhookPayload{
				Event:     string(event),
				Timestamp: time.Now().UTC(),
				Data:      data,
			},
		}

		select {
		case s.queue <- task:
		default:
			metrics.WebhookDeliveries.WithLabelValues(string(event), "dropped").Inc()
			s.logger.Warn("queue full, dropping webhook",
				slog.String("endpoint", ep.Name),
				slog.String("event", string(event)))
		}
	}
}

func (s *Sender) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			return
		case task := <-s.queue:
			outcome := "delivered"
			if err := s.sendWithRetry(task); err != nil {
				outcome = "failed"
				s.logger.Error("webhook delivery failed",
					slog.Int("worker", id),
					slog.String("endpoint", task.endpoint.Name),
					slog.String("event", string(task.event)),
					slog.Int("attempts", task.attempt),
					slog.Any("error", err))
			}
			metrics.WebhookDeliveries.WithLabelValues(string(task.event), outcome).Inc()
		}
	}
}

func (s *Sender) sendWithRetry(task *webhookTask) error {
	body, err := json.Marshal(task.payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	var lastErr error
	for task.attempt < s.retryCount {
		task.attempt++

		err := s.sendRequest(task.endpoint, task.event, body)
		if err == nil {
			return nil
		}

		lastErr = err

		if isClientError(err) {
			s.logger.Warn("client error, not retrying",
				slog.String("endpoint", task.endpoint.Name),
				slog.Any("error", err))
			return err
		}

		if task.attempt < s.retryCount {
			backoff := s.retryDelay * time.Duration(1<<(task.attempt-1))
			s.logger.Info("retrying webhook",
				slog.String("endpoint", task.endpoint.Name),
				slog.Int("attempt", task.attempt),
				slog.Int("max", s.retryCount),
				slog.Duration("backoff", backoff),
				slog.Any("error", err))

			select {
			case <-s.stopCh:
				return fmt.Errorf("shutdown requested")
			case <-time.After(backoff):
			}
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("http error: %d", e.code)
}

func (s *Sender) sendRequest(ep Endpoint, event WebhookEvent, body []byte) error {
	req, err := http.NewRequestWithContext(s.stopCtx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventHeader, string(event))
	if ep.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(body, ep.Secret))
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &statusError{code: resp.StatusCode}
	}

	return nil
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(body []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func isClientError(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 400 && se.code < 500
	}
	return false
}
