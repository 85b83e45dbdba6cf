// Package bot is the operator-facing Telegram surface: authorized
// operators can check chain/registration status and recent executions
// without touching the admin HTTP API or the wire protocol directly.
package bot

import (
	"encoding/hex"
	"fmt"
	"log"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/relaykit/quoterkernel/config"
	"github.com/relaykit/quoterkernel/internal/storage"
)

type Bot struct {
	api   *tgbotapi.BotAPI
	cfg   *config.Config
	store *storage.Store
}

func New(cfg *config.Config, store *storage.Store) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("creating bot API: %w", err)
	}

	log.Printf("Authorized on account %s", api.Self.UserName)
	return &Bot{api: api, cfg: cfg, store: store}, nil
}

func (b *Bot) BotAPI() *tgbotapi.BotAPI {
	return b.api
}

func (b *Bot) Run() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil {
			continue
		}

		msg := update.Message
		if !b.cfg.IsOperator(msg.From.ID) {
			b.reply(msg, "You are not authorized to use this bot.")
			continue
		}

		b.handleMessage(msg)
	}

	return nil
}

func (b *Bot) Stop() {
	b.api.StopReceivingUpdates()
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	if !msg.IsCommand() {
		return
	}

	switch msg.Command() {
	case "start", "help":
		b.handleStart(msg)
	case "chains":
		b.handleChains(msg)
	case "registrations":
		b.handleRegistrations(msg)
	case "recent":
		b.handleRecent(msg)
	case "config":
		b.handleConfig(msg)
	default:
		b.reply(msg, "Unknown command. Use /start to get started.")
	}
}

func (b *Bot) handleStart(msg *tgbotapi.Message) {
	text := "Quoter kernel operator bot.\n\n" +
		"*Commands:*\n" +
		"/chains - List configured chains and their enabled state\n" +
		"/registrations - List registered quoters\n" +
		"/recent `[n]` - Show the n most recent executions (default 10)\n" +
		"/config - Show router/quoter singleton configuration"
	b.reply(msg, text)
}

func (b *Bot) handleChains(msg *tgbotapi.Message) {
	chains, err := b.store.ListChainInfo()
	if err != nil {
		b.reply(msg, fmt.Sprintf("Error: %v", err))
		return
	}
	if len(chains) == 0 {
		b.reply(msg, "No chains configured.")
		return
	}

	var lines []string
	for _, c := range chains {
		state := "enabled"
		if !c.Enabled {
			state = "disabled"
		}
		lines = append(lines, fmt.Sprintf("chain %d: %s (gas_price_decimals=%d, native_decimals=%d)",
			c.ChainID, state, c.GasPriceDecimals, c.NativeDecimals))
	}
	b.reply(msg, strings.Join(lines, "\n"))
}

func (b *Bot) handleRegistrations(msg *tgbotapi.Message) {
	regs, err := b.store.ListQuoterRegistrations()
	if err != nil {
		b.reply(msg, fmt.Sprintf("Error: %v", err))
		return
	}
	if len(regs) == 0 {
		b.reply(msg, "No quoters registered.")
		return
	}

	var lines []string
	for _, reg := range regs {
		lines = append(lines, fmt.Sprintf("0x%s -> 0x%s",
			hex.EncodeToString(reg.QuoterAddress[:]), hex.EncodeToString(reg.ImplementationProgramID[:])))
	}
	b.reply(msg, strings.Join(lines, "\n"))
}

func (b *Bot) handleRecent(msg *tgbotapi.Message) {
	limit := 10
	if arg := strings.TrimSpace(msg.CommandArguments()); arg != "" {
		if n, err := strconv.Atoi(arg); err == nil && n > 0 {
			limit = n
		}
	}

	rows, err := b.store.RecentExecutions(limit)
	if err != nil {
		b.reply(msg, fmt.Sprintf("Error: %v", err))
		return
	}
	if len(rows) == 0 {
		b.reply(msg, "No executions recorded yet.")
		return
	}

	var lines []string
	for _, rec := range rows {
		lines = append(lines, fmt.Sprintf("%s: chain %d, paid %d, refunded %d (%s)",
			rec.CorrelationID, rec.DstChain, rec.AmountPaid, rec.Refunded, rec.CreatedAt))
	}
	b.reply(msg, strings.Join(lines, "\n"))
}

func (b *Bot) handleConfig(msg *tgbotapi.Message) {
	routerCfg, err := b.store.GetRouterConfig()
	if err != nil {
		b.reply(msg, fmt.Sprintf("Error reading router config: %v", err))
		return
	}
	quoterCfg, err := b.store.GetQuoterConfig()
	if err != nil {
		b.reply(msg, fmt.Sprintf("Error reading quoter config: %v", err))
		return
	}

	text := fmt.Sprintf(
		"our_chain: %d\nexecutor_program_id: 0x%s\nupdater_address: 0x%s\npayee_address: 0x%s",
		routerCfg.OurChain,
		hex.EncodeToString(routerCfg.ExecutorProgramID[:]),
		hex.EncodeToString(quoterCfg.UpdaterAddress[:]),
		hex.EncodeToString(quoterCfg.PayeeAddress[:]),
	)
	b.reply(msg, text)
}

func (b *Bot) reply(msg *tgbotapi.Message, text string) {
	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	reply.ReplyToMessageID = msg.MessageID
	reply.ParseMode = "Markdown"
	reply.DisableWebPagePreview = true
	if _, err := b.api.Send(reply); err != nil {
		log.Printf("Error sending markdown message, retrying as plain text: %v", err)
		reply.ParseMode = ""
		if _, err := b.api.Send(reply); err != nil {
			log.Printf("Error sending plain text message: %v", err)
		}
	}
}
