package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relaykit/quoterkernel/config"
	server "github.com/relaykit/quoterkernel/internal/adminapi"
	bot "github.com/relaykit/quoterkernel/internal/opsbot"

	"github.com/relaykit/quoterkernel/internal/evmcrypto"
	"github.com/relaykit/quoterkernel/internal/executor"
	"github.com/relaykit/quoterkernel/internal/keys"
	"github.com/relaykit/quoterkernel/internal/quoter"
	"github.com/relaykit/quoterkernel/internal/router"
	"github.com/relaykit/quoterkernel/internal/storage"
	"github.com/relaykit/quoterkernel/internal/tracker"
)

func decodeID(name, hexStr string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(hexStr)
	if err != nil {
		return out, fmt.Errorf("decoding %s: %w", name, err)
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("%s must be exactly 32 bytes, got %d", name, len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// loggingLedger stands in for the host chain's token-transfer system,
// which stays external per this kernel's scope; it logs every transfer it
// is asked to perform instead of moving real funds.
type loggingLedger struct{}

func (loggingLedger) Pay(payee [32]byte, amount uint64) error {
	log.Printf("ledger: pay %d to 0x%s", amount, hex.EncodeToString(payee[:]))
	return nil
}

func (loggingLedger) Refund(refundAddr [32]byte, amount uint64) error {
	log.Printf("ledger: refund %d to 0x%s", amount, hex.EncodeToString(refundAddr[:]))
	return nil
}

func (loggingLedger) Transfer(payee [32]byte, amount uint64) error {
	log.Printf("ledger: transfer %d to 0x%s", amount, hex.EncodeToString(payee[:]))
	return nil
}

// executorAdapter satisfies router.ExecutorClient by calling straight into
// an in-process *executor.Executor — the Go-native reading of "intra-chain
// call" this repository uses throughout.
type executorAdapter struct {
	ex *executor.Executor
}

func (a executorAdapter) RequestForExecution(amount uint64, dstChain uint16, dstAddr, refundAddr, payee [32]byte, signedQuoteBytes, requestBytes, relayInstructions []byte) error {
	return a.ex.RequestForExecution(amount, dstChain, dstAddr, refundAddr, payee, signedQuoteBytes, requestBytes, relayInstructions)
}

func main() {
	configPath := flag.String("config", "config.json", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	store := storage.NewStore(db)

	executorProgramID, err := decodeID("executor_program_id", cfg.ExecutorProgramIDHex)
	if err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	implementationID, err := decodeID("quoter_implementation_id", cfg.QuoterImplementationIDHex)
	if err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	updaterAddr, err := keys.DeriveAddress(cfg.Mnemonic, keys.UpdaterIndex)
	if err != nil {
		log.Fatalf("Failed to derive updater address: %v", err)
	}
	payeeAddr, err := keys.DeriveAddress(cfg.Mnemonic, keys.UpdaterIndex+10)
	if err != nil {
		log.Fatalf("Failed to derive payee address: %v", err)
	}

	q := quoter.New(store, time.Duration(cfg.CacheTTLSeconds)*time.Second)
	if err := q.Initialize(keys.As32(updaterAddr), keys.As32(payeeAddr)); err != nil {
		log.Printf("Quoter already initialized: %v", err)
	}

	ledger := loggingLedger{}
	ex := executor.New(cfg.OurChain, ledger)

	r := router.New(store, evmcrypto.EthereumVerifier{}, ledger, executorAdapter{ex: ex})
	if err := r.Initialize(cfg.OurChain, executorProgramID); err != nil {
		log.Printf("Router already initialized: %v", err)
	}
	r.RegisterImplementation(implementationID, q)

	srv := server.New(cfg, store)
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatalf("Admin API error: %v", err)
		}
	}()

	var ops *bot.Bot
	if cfg.TelegramToken != "" {
		ops, err = bot.New(cfg, store)
		if err != nil {
			log.Fatalf("Failed to create ops bot: %v", err)
		}

		trk := tracker.New(cfg, store, ops.BotAPI())
		ctx, cancel := context.WithCancel(context.Background())
		go trk.Run(ctx)

		go func() {
			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			<-sig
			log.Println("Shutting down...")
			cancel()
			ops.Stop()
			os.Exit(0)
		}()

		log.Println("Starting ops bot...")
		if err := ops.Run(); err != nil {
			log.Fatalf("Ops bot error: %v", err)
		}
		return
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("Shutting down...")
}
