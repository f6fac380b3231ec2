package simd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/warehouse-sim/pkg/logger"
	"github.com/GoSim-25-26J-441/warehouse-sim/pkg/models"
	"github.com/GoSim-25-26J-441/warehouse-sim/pkg/utils"
)

const callbackSecretHeader = "X-Evaluation-Callback-Secret"

var (
	ErrInvalidURL       = errors.New("invalid callback url")
	ErrMetadataEndpoint = errors.New("callback url targets a cloud metadata endpoint")
	ErrInternalHost     = errors.New("callback url targets an internal address")
)

// NotificationPayload represents the JSON payload sent to the callback URL
type NotificationPayload struct {
	RunID     string             `json:"run_id"`
	Status    models.RunStatus   `json:"status"`
	Policy    string             `json:"policy"`
	CreatedAt time.Time          `json:"created_at"`
	StartTime time.Time          `json:"start_time,omitempty"`
	EndTime   time.Time          `json:"end_time,omitempty"`
	Error     string             `json:"error,omitempty"`
	Summary   *models.RunSummary `json:"summary,omitempty"`
	Timestamp int64              `json:"timestamp"` // When notification was sent
}

// Notifier posts run completion to a callback URL
type Notifier struct {
	httpClient *http.Client
	maxRetries int
	backoff    utils.BackoffStrategy

	wg sync.WaitGroup
}

// NewNotifier creates a notifier with the given request timeout and retry count
func NewNotifier(timeout time.Duration, maxRetries int) *Notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		backoff:    utils.NewExponentialBackoff(time.Second, 30*time.Second, 2.0, nil),
	}
}

// SetBackoff replaces the delay strategy between attempts
func (n *Notifier) SetBackoff(b utils.BackoffStrategy) {
	n.backoff = b
}

// Wait blocks until every pending notification finished
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// Notify sends the run state to its callback URL in the background. Runs
// without a callback URL are ignored.
func (n *Notifier) Notify(rec *RunRecord) {
	if n == nil || rec == nil || rec.Run == nil || rec.Run.CallbackURL == "" {
		return
	}

	finalURL := strings.ReplaceAll(rec.Run.CallbackURL, "{run_id}", url.PathEscape(rec.Run.ID))
	if err := validateCallbackURL(finalURL); err != nil {
		logger.Warn("callback url rejected", "run_id", rec.Run.ID, "error", err)
		return
	}

	payload := NotificationPayload{
		RunID:     rec.Run.ID,
		Status:    rec.Run.Status,
		Policy:    rec.Run.Policy,
		CreatedAt: rec.Run.CreatedAt,
		StartTime: rec.Run.StartTime,
		EndTime:   rec.Run.EndTime,
		Error:     rec.Run.Error,
		Summary:   rec.Run.Summary,
		Timestamp: time.Now().UTC().UnixMilli(),
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.send(finalURL, rec.CallbackSecret, payload)
	}()
}

// send performs the HTTP POST with retries
func (n *Notifier) send(callbackURL, secret string, payload NotificationPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		logger.Error("failed to marshal notification payload", "run_id", payload.RunID, "error", err)
		return
	}

	var lastErr error
	for attempt := 0; attempt <= n.maxRetries; attempt++ {
		if attempt > 0 {
			delay := n.backoff.NextDelay(attempt - 1)
			logger.Debug("retrying notification",
				"run_id", payload.RunID,
				"attempt", attempt,
				"delay", delay)
			time.Sleep(delay)
		}

		if lastErr = n.post(callbackURL, secret, body); lastErr == nil {
			logger.Info("notification sent", "run_id", payload.RunID, "status", payload.Status)
			return
		}
		logger.Warn("notification attempt failed",
			"run_id", payload.RunID,
			"attempt", attempt+1,
			"error", lastErr)
	}

	logger.Error("failed to send notification after retries",
		"callback_url", callbackURL,
		"run_id", payload.RunID,
		"max_retries", n.maxRetries,
		"last_error", lastErr)
}

func (n *Notifier) post(callbackURL, secret string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, callbackURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "warehouse-sim/1.0")
	if secret != "" {
		req.Header.Set(callbackSecretHeader, secret)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
	return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, snippet)
}

// validateCallbackURL accepts http(s) URLs that do not point at metadata
// services or literal loopback/private addresses. The name localhost is
// allowed for development.
func validateCallbackURL(raw string) error {
	u, err := url.Parse(strings.ReplaceAll(raw, "{run_id}", "run"))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q", ErrInvalidURL, u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	if host == "metadata.google.internal" || host == "169.254.169.254" {
		return fmt.Errorf("%w: %s", ErrMetadataEndpoint, host)
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsUnspecified() || ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() {
			return fmt.Errorf("%w: %s", ErrInternalHost, host)
		}
	}
	return nil
}
