// Package alert forwards unexpected handler failures to an external webhook,
// typically an automation that files an issue.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/grovetools/socratic/logging"
	"github.com/grovetools/socratic/version"
	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds a single webhook call.
const DefaultTimeout = 5 * time.Second

// Incident describes a failed handler invocation.
type Incident struct {
	Handler  string
	Err      error
	UserID   int64
	Username string
	Message  string
	Stack    string
}

// Text renders the incident as the webhook message body.
func (i Incident) Text() string {
	username := "No username"
	if i.Username != "" {
		username = i.Username
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Ошибка в %s:\n\n", i.Handler)
	fmt.Fprintf(&b, "**Текст ошибки:** %v\n\n", i.Err)
	fmt.Fprintf(&b, "**User ID:** %d\n", i.UserID)
	fmt.Fprintf(&b, "**Username:** @%s\n", username)
	if i.Message != "" {
		fmt.Fprintf(&b, "**Сообщение пользователя:** %s\n", i.Message)
	}
	if i.Stack != "" {
		fmt.Fprintf(&b, "\n**Трейсбек:**\n```\n%s\n```", strings.TrimSpace(i.Stack))
	}
	return b.String()
}

type payload struct {
	Text       string `json:"text"`
	IncidentID string `json:"incident_id"`
}

// Reporter posts incidents to a webhook. A Reporter without a URL only logs.
type Reporter struct {
	url    string
	client *http.Client
	logger *logrus.Entry
}

// New returns a Reporter posting to url.
func New(url string) *Reporter {
	return &Reporter{
		url:    url,
		client: &http.Client{Timeout: DefaultTimeout},
		logger: logging.NewLogger("alert"),
	}
}

// Enabled reports whether a webhook is configured.
func (r *Reporter) Enabled() bool {
	return r != nil && r.url != ""
}

// Report sends the incident and returns its id. Delivery failures are logged
// and never returned.
func (r *Reporter) Report(ctx context.Context, inc Incident) string {
	id := uuid.NewString()
	if r == nil {
		return id
	}

	log := r.logger.WithFields(logrus.Fields{
		"incident_id": id,
		"handler":     inc.Handler,
		"user_id":     inc.UserID,
	})
	log.WithError(inc.Err).Error("Handler failed")

	if r.url == "" {
		return id
	}

	if err := r.post(ctx, payload{Text: inc.Text(), IncidentID: id}); err != nil {
		log.WithError(err).Warn("Failed to deliver incident to webhook")
		return id
	}
	log.Debug("Incident delivered")
	return id
}

func (r *Reporter) post(ctx context.Context, p payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}
