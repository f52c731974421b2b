package notifyinfra

import (
	"fmt"
	"sort"
	"strings"

	"ad_kill_switch/internal/domain/notify"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

var severityMarks = map[notify.Severity]string{
	notify.SeverityInfo:    "ℹ️",
	notify.SeveritySuccess: "✅",
	notify.SeverityWarning: "⚠️",
	notify.SeverityError:   "🚨",
}

// TelegramNotifier implements the Notifier interface using the
// gopkg.in/telebot.v3 library, sending plain-text messages to one chat.
type TelegramNotifier struct {
	bot    *telebot.Bot
	chatID int64
	log    *logrus.Logger
}

func NewTelegramNotifier(bot *telebot.Bot, chatID int64, log *logrus.Logger) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, chatID: chatID, log: log}
}

func (n *TelegramNotifier) Notify(message, title string, severity notify.Severity, fields map[string]string) bool {
	var b strings.Builder
	if mark, ok := severityMarks[severity]; ok {
		b.WriteString(mark)
		b.WriteString(" ")
	}
	if title != "" {
		b.WriteString(title)
		b.WriteString("\n")
	}
	b.WriteString(message)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(fmt.Sprintf("\n%s: %s", k, fields[k]))
	}

	recipient := &telebot.User{ID: n.chatID}
	if _, err := n.bot.Send(recipient, b.String(), &telebot.SendOptions{}); err != nil {
		n.log.Errorf("telegram notification failed: %v", err)
		return false
	}
	return true
}
