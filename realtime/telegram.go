package realtime

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// relayedEvents are the admin-room events worth a chat message.
var relayedEvents = map[string]bool{
	EventParticipantRegistered: true,
	EventParticipantApproved:   true,
	EventParticipantRejected:   true,
	EventRoundStarted:          true,
	EventRoundEnded:            true,
	EventRoundPromoted:         true,
	EventEvaluationSummary:     true,
	EventJudgeLoggedIn:         true,
	EventQueryReceived:         true,
}

// TelegramRelay forwards admin-room events to an organisers' chat.
type TelegramRelay struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	queue  chan Message
}

func NewTelegramRelay(token string, chatID int64) (*TelegramRelay, error) {
	b, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	log.Printf("✅ [TELEGRAM] Authorized as @%s", b.Self.UserName)
	return &TelegramRelay{bot: b, chatID: chatID, queue: make(chan Message, 128)}, nil
}

func (t *TelegramRelay) Publish(room, event string, payload any) {
	if room != RoomAdmin || !relayedEvents[event] {
		return
	}
	select {
	case t.queue <- Message{Room: room, Event: event, Data: payload}:
	default:
		log.Printf("⚠️ [TELEGRAM] Queue full, dropping %s", event)
	}
}

// Run sends queued messages until ctx is cancelled.
func (t *TelegramRelay) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-t.queue:
			out := tgbotapi.NewMessage(t.chatID, FormatAdminEvent(msg.Event, msg.Data))
			if _, err := t.bot.Send(out); err != nil {
				log.Printf("❌ [TELEGRAM] Send %s failed: %v", msg.Event, err)
			}
		}
	}
}

// FormatAdminEvent renders an event as a short plain-text chat message.
func FormatAdminEvent(event string, payload any) string {
	var b strings.Builder
	b.WriteString("🔔 ")
	b.WriteString(event)

	fields, ok := payload.(map[string]any)
	if !ok {
		if payload != nil {
			fmt.Fprintf(&b, "\n%v", payload)
		}
		return b.String()
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n%s: %v", k, fields[k])
	}
	return b.String()
}
