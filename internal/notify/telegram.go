package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// messageSender is the subset of *bot.Bot used to post notifications.
type messageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// TelegramPublisher posts a short Portuguese summary of each event to one chat.
type TelegramPublisher struct {
	sender messageSender
	chatID int64
}

// NewTelegramPublisher creates a bot client for token without contacting the API.
func NewTelegramPublisher(token string, chatID int64) (*TelegramPublisher, error) {
	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &TelegramPublisher{sender: b, chatID: chatID}, nil
}

// Publish sends the formatted event text.
func (p *TelegramPublisher) Publish(ctx context.Context, event Event) error {
	_, err := p.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: p.chatID,
		Text:   FormatMessage(event),
	})
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

var eventTitles = map[string]string{
	ReservationCreated:             "Nova reserva",
	ReservationCancelled:           "Reserva cancelada",
	ReservationOccurrenceCancelled: "Ocorrência cancelada",
	ClassCreated:                   "Aula fixa criada",
	ClassUpdated:                   "Aula fixa atualizada",
	ClassToggled:                   "Aula fixa ativada/desativada",
	ClassDeleted:                   "Aula fixa removida",
}

// FormatMessage renders event as a multi-line chat message.
func FormatMessage(event Event) string {
	title, ok := eventTitles[event.Type]
	if !ok {
		title = event.Type
	}

	var b strings.Builder
	b.WriteString(title)
	if event.RoomSlug != "" {
		fmt.Fprintf(&b, "\nSala: %s", event.RoomSlug)
	}
	if start, ok := event.Data["start"].(string); ok && start != "" {
		fmt.Fprintf(&b, "\nInício: %s", start)
	}
	if date, ok := event.Data["date"].(string); ok && date != "" {
		fmt.Fprintf(&b, "\nData: %s", date)
	}
	if label, ok := event.Data["label"].(string); ok && label != "" {
		fmt.Fprintf(&b, "\nHorário: %s", label)
	}
	fmt.Fprintf(&b, "\nID: %s", event.ResourceID)
	return b.String()
}
