package telegram

import (
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"stock-target-bot/internal/marketdata"
	"stock-target-bot/internal/price"
	"stock-target-bot/internal/registry"
)

// BotConfig configuration of the bot
type BotConfig struct {
	Token          string
	Debug          bool
	UpdatesTimeout int
	RequestTimeout time.Duration
	HistoryDays    int
	FibLookback    int
}

// Bot telegram interaction client
type Bot struct {
	Bot      *tgbotapi.BotAPI
	Config   BotConfig
	Registry *registry.Registry
	Prices   *price.Cache
	Provider marketdata.Provider
}

// Message a telegram message struct
type Message struct {
	ChatID    int64
	MessageID int
	Text      string
}
