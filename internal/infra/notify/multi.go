package notifyinfra

import "ad_kill_switch/internal/domain/notify"

// Multi fans a notification out to every configured sink. It reports success
// when at least one sink delivered.
type Multi []notify.Notifier

func (m Multi) Notify(message, title string, severity notify.Severity, fields map[string]string) bool {
	delivered := false
	for _, n := range m {
		if n.Notify(message, title, severity, fields) {
			delivered = true
		}
	}
	return delivered
}
