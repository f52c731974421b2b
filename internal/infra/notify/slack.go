// Package notifyinfra contains the concrete notification sinks behind the
// domain Notifier interface.
package notifyinfra

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"ad_kill_switch/internal/domain/notify"

	"github.com/sirupsen/logrus"
)

// Severity to Slack attachment sidebar colors.
var slackColors = map[notify.Severity]string{
	notify.SeverityInfo:    "#2196f3",
	notify.SeveritySuccess: "#4caf50",
	notify.SeverityWarning: "#ff9800",
	notify.SeverityError:   "#f44336",
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title,omitempty"`
	Text   string       `json:"text"`
	Fields []slackField `json:"fields,omitempty"`
}

type slackPayload struct {
	Attachments []slackAttachment `json:"attachments"`
}

// SlackNotifier posts attachment-style messages to an incoming webhook.
// With an empty webhook URL it is disabled and reports every send as failed.
type SlackNotifier struct {
	webhookURL string
	httpClient *http.Client
	log        *logrus.Logger
}

func NewSlackNotifier(webhookURL string, log *logrus.Logger) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

func (n *SlackNotifier) Enabled() bool {
	return n.webhookURL != ""
}

func (n *SlackNotifier) Notify(message, title string, severity notify.Severity, fields map[string]string) bool {
	if !n.Enabled() {
		n.log.Debugf("slack disabled, dropping notification: %s", message)
		return false
	}

	color, ok := slackColors[severity]
	if !ok {
		color = slackColors[notify.SeverityInfo]
	}
	attachment := slackAttachment{
		Color: color,
		Title: title,
		Text:  message,
	}

	// Deterministic field order.
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attachment.Fields = append(attachment.Fields, slackField{Title: k, Value: fields[k], Short: true})
	}

	body, err := json.Marshal(slackPayload{Attachments: []slackAttachment{attachment}})
	if err != nil {
		n.log.Errorf("slack payload marshal failed: %v", err)
		return false
	}

	resp, err := n.httpClient.Post(n.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		n.log.Errorf("slack notification failed: %v", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		n.log.Errorf("slack notification rejected with status %d", resp.StatusCode)
		return false
	}
	return true
}
