// internal/bot/bot.go
package bot

import (
	"context"
	"time"

	"github.com/rovshanmuradov/dogenode/internal/events"
	"github.com/rovshanmuradov/dogenode/internal/logging"
	"github.com/rovshanmuradov/dogenode/internal/models"
	"github.com/rovshanmuradov/dogenode/internal/session"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/tucnak/telebot.v2"
)

// Controller is what the bot needs from the session engine.
type Controller interface {
	ConnectWallet(ctx context.Context, provider, address string) (*models.WalletRef, error)
	Start(ctx context.Context) (models.Session, error)
	StopSession(ctx context.Context) error
	Snapshot(ctx context.Context) (*session.Snapshot, error)
	LoadTransactions(ctx context.Context, limit int) ([]models.Transaction, bool, error)
	RequestWithdrawal(ctx context.Context, address string, amount decimal.Decimal) (*models.Transaction, error)
}

const requestTimeout = 45 * time.Second

// Bot is a Telegram dashboard that serves only its owner.
type Bot struct {
	telegramBot *telebot.Bot
	engine      Controller
	hub         *events.Hub
	ownerID     int64
	stopChan    chan struct{} // Channel to stop the bot
}

func NewBot(token string, ownerID int64, engine Controller, hub *events.Hub) (*Bot, error) {
	b, err := telebot.NewBot(telebot.Settings{
		Token:  token,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, err
	}

	return &Bot{
		telegramBot: b,
		engine:      engine,
		hub:         hub,
		ownerID:     ownerID,
		stopChan:    make(chan struct{}),
	}, nil
}

// Start registers handlers and blocks until Stop is called.
func (b *Bot) Start() {
	b.registerHandlers()
	logging.Info("The bot has been launched", zap.Int64("owner", b.ownerID))

	sub := b.hub.Subscribe(32)
	defer sub.Close()
	go b.forwardEvents(sub)

	go b.telegramBot.Start()

	<-b.stopChan
	b.telegramBot.Stop()
	logging.Info("The bot has been stopped")
}

// Stop signals the end of the bot's work
func (b *Bot) Stop() {
	close(b.stopChan)
}

func (b *Bot) authorized(u *telebot.User) bool {
	return u != nil && int64(u.ID) == b.ownerID
}

// forwardEvents pushes celebrations and withdrawal updates to the owner chat.
func (b *Bot) forwardEvents(sub *events.Subscription) {
	owner := &telebot.User{ID: b.ownerID}
	for ev := range sub.C {
		if text, ok := formatEvent(ev); ok {
			b.sendMessage(owner, text)
		}
	}
}

// sendMessage sends a message to the user and logs an error if one occurs
func (b *Bot) sendMessage(to telebot.Recipient, message string) {
	if _, err := b.telegramBot.Send(to, message); err != nil {
		logging.Error("Error sending message",
			zap.String("message", message),
			zap.Error(err),
		)
	}
}
