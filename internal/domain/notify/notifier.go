package notify

// Severity classifies a notification for the sink to render (e.g. as a
// Slack attachment color).
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notifier delivers a best-effort operational notification. It reports
// success as a boolean and must never fail hard: delivery problems are the
// sink's concern, not the caller's.
type Notifier interface {
	Notify(message, title string, severity Severity, fields map[string]string) bool
}

// Noop discards every notification. Used when no sink is configured.
type Noop struct{}

func (Noop) Notify(string, string, Severity, map[string]string) bool { return false }
