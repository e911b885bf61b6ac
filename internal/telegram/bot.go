package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"stock-target-bot/internal/commands"
	"stock-target-bot/internal/types"
	"stock-target-bot/lib/helpers"
	"stock-target-bot/lib/translation"
)

const (
	commandTimeout        = 15 * time.Second
	defaultRequestTimeout = 10 * time.Second
)

// newAPIClient bounds every Bot API request. A stalled send must surface
// as an error so the monitor's fallback and retry paths can run.
func newAPIClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &http.Client{Timeout: timeout}
}

// NewBot creates new telegram bot
func NewBot(c BotConfig) (*Bot, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(c.Token, tgbotapi.APIEndpoint, newAPIClient(c.RequestTimeout))
	if err != nil {
		return nil, errors.Wrap(err, "could not create telegram bot")
	}

	bot.Debug = c.Debug

	return &Bot{
		Bot:    bot,
		Config: c,
	}, nil
}

// GetUpdatesChannel gets new updates
func (b *Bot) GetUpdatesChannel() (tgbotapi.UpdatesChannel, error) {
	updatesConfig := tgbotapi.NewUpdate(0)
	if b.Config.UpdatesTimeout > 0 {
		updatesConfig.Timeout = b.Config.UpdatesTimeout
	}
	return b.Bot.GetUpdatesChan(updatesConfig), nil
}

// SendMessage sends a telegram reply to a command.
func (b *Bot) SendMessage(m Message) error {
	msg := tgbotapi.NewMessage(m.ChatID, m.Text)
	msg.ReplyToMessageID = m.MessageID
	msg.DisableWebPagePreview = true
	msg.ParseMode = "MarkdownV2"
	_, err := b.Bot.Send(msg)
	return errors.Wrapf(err, "could not send message: %v", m)
}

// Send delivers a notification and returns its handle so the monitor
// can replace it later. Implements the monitor's Notifier.
func (b *Bot) Send(chatID int64, text string) (types.MessageRef, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	msg.ParseMode = "MarkdownV2"

	sent, err := b.Bot.Send(msg)
	if err != nil {
		return types.MessageRef{}, errors.Wrapf(err, "could not send notification to chat %d", chatID)
	}
	return types.MessageRef{ChatID: sent.Chat.ID, MessageID: sent.MessageID}, nil
}

// Delete removes a previously sent notification. A message that is
// already gone counts as deleted.
func (b *Bot) Delete(ref types.MessageRef) error {
	if ref.IsZero() {
		return nil
	}

	_, err := b.Bot.Request(tgbotapi.NewDeleteMessage(ref.ChatID, ref.MessageID))
	if err != nil {
		if deletedAlready(err) {
			return nil
		}
		return errors.Wrapf(err, "could not delete message %d in chat %d", ref.MessageID, ref.ChatID)
	}
	return nil
}

// deletedAlready reports whether the API rejected the delete because the
// message is already gone.
func deletedAlready(err error) bool {
	var apiErr *tgbotapi.Error
	return errors.As(err, &apiErr) &&
		apiErr.Code == http.StatusBadRequest &&
		strings.Contains(strings.ToLower(apiErr.Message), "message to delete not found")
}

// HandleUpdate processes Telegram commands.
func (b *Bot) HandleUpdate(u tgbotapi.Update) string {
	text := helpers.EscapeMarkdownV2(translation.Translate(
		"Commands: /set SYMBOL PRICE [above|below] [dm|here] [N%], /check, /all, /delete SYMBOL, /levels SYMBOL, /chart SYMBOL"))
	log.Debugf("received command: %s", u.Message.Command())

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	ownerID := u.Message.From.ID
	chatID := u.Message.Chat.ID
	isPrivate := u.Message.Chat.IsPrivate()

	switch u.Message.Command() {
	case "set":
		text = b.handleSet(ownerID, chatID, isPrivate, u.Message.CommandArguments())
	case "check":
		text = commands.CommandCheck(ctx, b.Registry, b.Prices, b.Provider, ownerID)
	case "all":
		text = commands.CommandAll(ctx, b.Registry, b.Prices, b.Provider)
	case "delete":
		text = b.handleDelete(ownerID, u.Message.CommandArguments())
	case "levels":
		report, err := commands.CommandLevels(ctx, b.Provider, u.Message.CommandArguments(),
			b.Config.HistoryDays, b.Config.FibLookback)
		if err != nil {
			log.Error(err)
			text = helpers.EscapeMarkdownV2(translation.Translate("No data for that symbol"))
		} else {
			text = report
		}
	case "chart":
		return b.handleChart(ctx, u, ownerID)
	}

	return text
}

func (b *Bot) handleSet(ownerID, chatID int64, isPrivate bool, args string) string {
	t, err := commands.ParseSet(ownerID, chatID, isPrivate, args)
	if err != nil {
		return helpers.EscapeMarkdownV2(err.Error())
	}

	// Replacing a target orphans its live notification; clean it up.
	if old, ok := b.Registry.Get(ownerID, t.Symbol); ok && !old.LiveMessage.IsZero() {
		if err := b.Delete(old.LiveMessage); err != nil {
			log.Debugf("could not delete old notification for %s: %v", t.Symbol, err)
		}
	}

	if err := b.Registry.Upsert(t); err != nil {
		log.Error(err)
		return helpers.EscapeMarkdownV2(translation.Translate("Failed to save target. Please try again later."))
	}

	direction := translation.Translate("at or below")
	if t.Condition == types.AtOrAbove {
		direction = translation.Translate("at or above")
	}
	return fmt.Sprintf("✅ %s",
		helpers.EscapeMarkdownV2(fmt.Sprintf(
			translation.Translate("Watching %s: alert %s %s"),
			t.Symbol, direction, helpers.FormatPriceUS(t.TargetPrice, false))))
}

func (b *Bot) handleDelete(ownerID int64, args string) string {
	symbol := strings.ToUpper(strings.TrimSpace(args))
	if symbol == "" {
		return helpers.EscapeMarkdownV2(translation.Translate("Usage: /delete SYMBOL"))
	}

	removed, ok := b.Registry.Delete(ownerID, symbol)
	if !ok {
		return helpers.EscapeMarkdownV2(translation.Translate("You have no target for that symbol"))
	}

	if !removed.LiveMessage.IsZero() {
		if err := b.Delete(removed.LiveMessage); err != nil {
			log.Debugf("could not delete notification for removed target %s: %v", symbol, err)
		}
	}

	return fmt.Sprintf("🗑️ %s", helpers.EscapeMarkdownV2(
		fmt.Sprintf(translation.Translate("Deleted target for %s"), symbol)))
}

func (b *Bot) handleChart(ctx context.Context, u tgbotapi.Update, ownerID int64) string {
	symbol := strings.ToUpper(strings.TrimSpace(u.Message.CommandArguments()))

	var targetPrice float64
	if t, ok := b.Registry.Get(ownerID, symbol); ok {
		targetPrice = t.TargetPrice
	}

	chartData, caption, err := commands.CommandChart(ctx, b.Provider, symbol, targetPrice,
		b.Config.HistoryDays, b.Config.FibLookback)
	if err != nil {
		log.Error(err)
		return helpers.EscapeMarkdownV2(translation.Translate("No data for that symbol"))
	}

	photo := tgbotapi.NewPhoto(u.Message.Chat.ID, tgbotapi.FileBytes{
		Name:  "chart.png",
		Bytes: chartData,
	})
	photo.Caption = caption
	photo.ParseMode = "MarkdownV2"
	photo.ReplyToMessageID = u.Message.MessageID
	if _, err := b.Bot.Send(photo); err != nil {
		log.Error("error sending chart:", err)
	}
	return ""
}
