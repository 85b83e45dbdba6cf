// Package tracker polls kernel state for operator-relevant transitions —
// a chain flipping disabled, a new quoter registration, a completed
// execution — and pushes a Telegram notification to every configured
// operator when one occurs.
package tracker

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/relaykit/quoterkernel/config"
	"github.com/relaykit/quoterkernel/internal/storage"
)

type Tracker struct {
	cfg    *config.Config
	store  *storage.Store
	botAPI *tgbotapi.BotAPI

	chainEnabled  map[uint16]bool
	registrations map[[20]byte][32]byte
	seenExecution map[string]bool
}

func New(cfg *config.Config, store *storage.Store, botAPI *tgbotapi.BotAPI) *Tracker {
	return &Tracker{
		cfg:           cfg,
		store:         store,
		botAPI:        botAPI,
		chainEnabled:  make(map[uint16]bool),
		registrations: make(map[[20]byte][32]byte),
		seenExecution: make(map[string]bool),
	}
}

func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	t.poll()

	for {
		select {
		case <-ctx.Done():
			log.Println("Tracker stopped")
			return
		case <-ticker.C:
			t.poll()
		}
	}
}

func (t *Tracker) poll() {
	t.pollChains()
	t.pollRegistrations()
	t.pollExecutions()
}

func (t *Tracker) pollChains() {
	chains, err := t.store.ListChainInfo()
	if err != nil {
		log.Printf("Tracker: error listing chain info: %v", err)
		return
	}

	for _, c := range chains {
		prev, known := t.chainEnabled[c.ChainID]
		t.chainEnabled[c.ChainID] = c.Enabled
		if !known {
			continue // first observation, nothing to compare against
		}
		if prev && !c.Enabled {
			t.notifyOperators(fmt.Sprintf("Chain %d was disabled.", c.ChainID))
		} else if !prev && c.Enabled {
			t.notifyOperators(fmt.Sprintf("Chain %d was re-enabled.", c.ChainID))
		}
	}
}

func (t *Tracker) pollRegistrations() {
	regs, err := t.store.ListQuoterRegistrations()
	if err != nil {
		log.Printf("Tracker: error listing quoter registrations: %v", err)
		return
	}

	for _, reg := range regs {
		prev, known := t.registrations[reg.QuoterAddress]
		t.registrations[reg.QuoterAddress] = reg.ImplementationProgramID
		if known && prev == reg.ImplementationProgramID {
			continue
		}
		quoter := "0x" + hex.EncodeToString(reg.QuoterAddress[:])
		impl := "0x" + hex.EncodeToString(reg.ImplementationProgramID[:])
		if !known {
			t.notifyOperators(fmt.Sprintf("Quoter %s registered with implementation %s.", quoter, impl))
		} else {
			t.notifyOperators(fmt.Sprintf("Quoter %s re-registered under implementation %s.", quoter, impl))
		}
	}
}

func (t *Tracker) pollExecutions() {
	rows, err := t.store.RecentExecutions(50)
	if err != nil {
		log.Printf("Tracker: error listing recent executions: %v", err)
		return
	}

	for _, rec := range rows {
		if t.seenExecution[rec.CorrelationID] {
			continue
		}
		t.seenExecution[rec.CorrelationID] = true
		quoter := "0x" + hex.EncodeToString(rec.QuoterAddress[:])
		t.notifyOperators(fmt.Sprintf(
			"Execution %s: quoter %s -> chain %d, paid %d, refunded %d.",
			rec.CorrelationID, quoter, rec.DstChain, rec.AmountPaid, rec.Refunded,
		))
	}
}

func (t *Tracker) notifyOperators(text string) {
	if t.botAPI == nil {
		log.Printf("Tracker: %s", text)
		return
	}
	for _, userID := range t.cfg.OperatorUserIDs {
		msg := tgbotapi.NewMessage(userID, text)
		if _, err := t.botAPI.Send(msg); err != nil {
			log.Printf("Tracker: error notifying operator %d: %v", userID, err)
		}
	}
}
