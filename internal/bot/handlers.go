// internal/bot/handlers.go
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rovshanmuradov/dogenode/internal/events"
	"github.com/rovshanmuradov/dogenode/internal/ledger"
	"github.com/rovshanmuradov/dogenode/internal/milestone"
	"github.com/rovshanmuradov/dogenode/internal/models"
	"github.com/rovshanmuradov/dogenode/internal/session"
	"github.com/rovshanmuradov/dogenode/internal/wallet"
	"gopkg.in/tucnak/telebot.v2"
)

const helpText = `/start - Welcome message
/connect <address> - Connect your Dogecoin wallet
/mine - Start earning
/stop - Stop earning
/balance - Balance and session stats
/history - Last transactions
/withdraw <address> <amount> - Request a withdrawal
/progress - Milestone progress
/help - This help`

var commands = []string{"/start", "/help", "/connect", "/mine", "/stop", "/balance", "/history", "/withdraw", "/progress"}

func (b *Bot) registerHandlers() {
	for _, cmd := range commands {
		cmd := cmd
		b.telegramBot.Handle(cmd, func(m *telebot.Message) {
			if !b.authorized(m.Sender) {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()
			b.sendMessage(m.Sender, b.respond(ctx, cmd, m.Payload))
		})
	}
}

// respond runs one command and returns the reply text.
func (b *Bot) respond(ctx context.Context, cmd, payload string) string {
	args := strings.Fields(payload)

	switch cmd {
	case "/start":
		return "Welcome to DogeNode! Connect a wallet with /connect, then /mine to start earning. /help lists all commands."
	case "/help":
		return helpText

	case "/connect":
		if len(args) != 1 {
			return "Usage: /connect <address>"
		}
		w, err := b.engine.ConnectWallet(ctx, "telegram", args[0])
		if err != nil {
			return errorText("Could not connect wallet", err)
		}
		return fmt.Sprintf("Wallet connected: %s", w.Address)

	case "/mine":
		if _, err := b.engine.Start(ctx); err != nil {
			return errorText("Could not start mining", err)
		}
		return "Mining started."

	case "/stop":
		if err := b.engine.StopSession(ctx); err != nil {
			return errorText("Could not stop mining", err)
		}
		return "Mining stopped."

	case "/balance":
		snap, err := b.engine.Snapshot(ctx)
		if err != nil {
			return errorText("Could not load balance", err)
		}
		return formatBalance(snap)

	case "/history":
		txs, _, err := b.engine.LoadTransactions(ctx, 10)
		if err != nil {
			return errorText("Could not load transactions", err)
		}
		return formatHistory(txs)

	case "/withdraw":
		if len(args) != 2 {
			return "Usage: /withdraw <address> <amount>"
		}
		amount, err := wallet.ParseAmount(args[1])
		if err != nil {
			return errorText("Withdrawal rejected", err)
		}
		tx, err := b.engine.RequestWithdrawal(ctx, args[0], amount)
		if err != nil {
			return errorText("Withdrawal rejected", err)
		}
		return fmt.Sprintf("Withdrawal of %s DOGE requested.\nID: %s\nStatus: %s", tx.Amount.StringFixed(2), tx.ID, tx.Status)

	case "/progress":
		snap, err := b.engine.Snapshot(ctx)
		if err != nil {
			return errorText("Could not load progress", err)
		}
		return formatProgress(snap.Progress)
	}
	return "Unknown command. Use /help."
}

func errorText(prefix string, err error) string {
	var (
		verr   *wallet.ValidationError
		perr   *session.PreconditionError
		remote *ledger.RemoteError
	)
	switch {
	case errors.As(err, &verr):
		return fmt.Sprintf("%s: %s", prefix, verr.Message)
	case errors.Is(err, session.ErrWalletNotConnected):
		return prefix + ": connect a wallet first with /connect."
	case errors.As(err, &perr):
		return fmt.Sprintf("%s: %v", prefix, perr.Err)
	case errors.As(err, &remote):
		return fmt.Sprintf("%s: %s", prefix, remote.Message)
	case ledger.IsUnavailable(err):
		return prefix + ": the backend is unreachable, try again later."
	}
	return fmt.Sprintf("%s: %v", prefix, err)
}

func formatBalance(s *session.Snapshot) string {
	state := "stopped"
	if s.Active {
		state = "running"
	}
	online := "offline"
	if s.Status.Online {
		online = "online"
	}
	usd := s.User.Balance.Mul(s.Status.Price)
	return fmt.Sprintf("Balance: %s DOGE (~$%s)\nToday: %s DOGE\nTotal earned: %s DOGE\nWithdrawals: %d\nMining: %s, uptime %s\nBackend: %s",
		s.User.Balance.StringFixed(2), usd.StringFixed(2),
		s.User.TodayEarnings.StringFixed(2),
		s.User.TotalEarnings.StringFixed(2),
		s.User.TotalWithdrawals,
		state, formatUptime(s.Session.UptimeSeconds),
		online)
}

func formatUptime(seconds int64) string {
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, seconds%3600/60, seconds%60)
}

func formatHistory(txs []models.Transaction) string {
	if len(txs) == 0 {
		return "No transactions yet. Start mining to see your earnings here."
	}
	var sb strings.Builder
	sb.WriteString("Last transactions:\n\n")
	for _, tx := range txs {
		sign := "+"
		if tx.Type == models.TransactionTypeWithdrawal {
			sign = "-"
		}
		fmt.Fprintf(&sb, "%s %s DOGE  %s  %s\n", sign, tx.Amount.StringFixed(2), tx.Status, tx.CreatedAt.Format("02.01.2006 15:04:05"))
	}
	return sb.String()
}

func formatProgress(p models.Progress) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Bandwidth shared: %.2f GB\n\n", p.TotalBandwidthGB)
	for _, m := range p.Milestones {
		mark := "[ ]"
		if m.Reached {
			mark = "[x]"
		}
		fmt.Fprintf(&sb, "%s %s - %s DOGE\n", mark, m.Label, m.RewardDoge.String())
	}
	return sb.String()
}

func formatEvent(ev events.Event) (string, bool) {
	switch ev.Type {
	case events.TypeCelebration:
		c, ok := ev.Data.(milestone.Celebration)
		if !ok {
			return "", false
		}
		return fmt.Sprintf("Milestone reached: %s! Reward %s DOGE", c.Label, c.Reward.String()), true
	case events.TypeFinalCelebration:
		return "You reached the final milestone. Legendary!", true
	case events.TypeWithdrawal:
		tx, ok := ev.Data.(models.Transaction)
		if !ok || !tx.Status.Final() {
			return "", false
		}
		text := fmt.Sprintf("Withdrawal %s: %s", tx.ID, tx.Status)
		if tx.ExplorerURL != nil {
			text += "\n" + *tx.ExplorerURL
		}
		return text, true
	}
	return "", false
}
