package storage

import (
	"database/sql"
	"fmt"

	"github.com/relaykit/quoterkernel/internal/qerr"
	"github.com/relaykit/quoterkernel/internal/u256"
)

// Store adds the kernel's keyed read/write methods on top of a migrated
// *DB. Every keyed-store row carries a `kind` column; checkKind compares it
// against the expected constant on every read the same way the reference Solana ports
// check an account discriminator before trusting a row's other columns.
type Store struct {
	*DB
}

func NewStore(db *DB) *Store {
	return &Store{DB: db}
}

const (
	kindRouterConfig        = "router_config"
	kindQuoterConfig        = "quoter_config"
	kindChainInfo           = "chain_info"
	kindQuoteBody           = "quote_body"
	kindQuoterRegistration  = "quoter_registration"
)

func checkKind(got, want string) error {
	if got != want {
		return qerr.New(qerr.CodeInvalidDiscriminator,
			fmt.Sprintf("storage: row kind %q does not match expected %q", got, want))
	}
	return nil
}

// RouterConfig is the router's immutable-after-initialization singleton.
type RouterConfig struct {
	OurChain         uint16
	ExecutorProgramID [32]byte
}

func (s *Store) InitRouterConfig(ourChain uint16, executorProgramID [32]byte) error {
	_, err := s.conn.Exec(
		`INSERT INTO router_config (id, our_chain, executor_program_id) VALUES (1, ?, ?)`,
		ourChain, executorProgramID[:],
	)
	if err != nil {
		if isUniqueViolation(err) {
			return qerr.New(qerr.CodeAlreadyInitialized, "router config already initialized")
		}
		return fmt.Errorf("inserting router config: %w", err)
	}
	return nil
}

func (s *Store) GetRouterConfig() (RouterConfig, error) {
	var kind string
	var ourChain uint16
	var executorProgramID []byte
	err := s.conn.QueryRow(
		`SELECT kind, our_chain, executor_program_id FROM router_config WHERE id = 1`,
	).Scan(&kind, &ourChain, &executorProgramID)
	if err == sql.ErrNoRows {
		return RouterConfig{}, qerr.New(qerr.CodeNotInitialized, "router config not initialized")
	}
	if err != nil {
		return RouterConfig{}, fmt.Errorf("querying router config: %w", err)
	}
	if err := checkKind(kind, kindRouterConfig); err != nil {
		return RouterConfig{}, err
	}
	var out RouterConfig
	out.OurChain = ourChain
	copy(out.ExecutorProgramID[:], executorProgramID)
	return out, nil
}

// QuoterConfig is a single deployed quoter's immutable updater identity and
// the payee it declares for every quote it prices.
type QuoterConfig struct {
	UpdaterAddress [32]byte
	PayeeAddress   [32]byte
}

func (s *Store) InitQuoterConfig(updater, payee [32]byte) error {
	_, err := s.conn.Exec(
		`INSERT INTO quoter_config (id, updater_address, payee_address) VALUES (1, ?, ?)`,
		updater[:], payee[:],
	)
	if err != nil {
		if isUniqueViolation(err) {
			return qerr.New(qerr.CodeAlreadyInitialized, "quoter config already initialized")
		}
		return fmt.Errorf("inserting quoter config: %w", err)
	}
	return nil
}

func (s *Store) GetQuoterConfig() (QuoterConfig, error) {
	var kind string
	var updater, payee []byte
	err := s.conn.QueryRow(
		`SELECT kind, updater_address, payee_address FROM quoter_config WHERE id = 1`,
	).Scan(&kind, &updater, &payee)
	if err == sql.ErrNoRows {
		return QuoterConfig{}, qerr.New(qerr.CodeNotInitialized, "quoter config not initialized")
	}
	if err != nil {
		return QuoterConfig{}, fmt.Errorf("querying quoter config: %w", err)
	}
	if err := checkKind(kind, kindQuoterConfig); err != nil {
		return QuoterConfig{}, err
	}
	var out QuoterConfig
	copy(out.UpdaterAddress[:], updater)
	copy(out.PayeeAddress[:], payee)
	return out, nil
}

// ChainInfo is the per-chain pricing reference the quote formula reads.
type ChainInfo struct {
	ChainID           uint16
	Price             u256.U256
	GasPrice          u256.U256
	GasPriceDecimals  uint8
	NativeDecimals    uint8
	Enabled           bool
}

func (s *Store) UpsertChainInfo(info ChainInfo) error {
	priceBytes := info.Price.ToBigEndianBytes()
	gasPriceBytes := info.GasPrice.ToBigEndianBytes()
	_, err := s.conn.Exec(`
		INSERT INTO chain_info (chain_id, price, gas_price, gas_price_decimals, native_decimals, enabled, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(chain_id) DO UPDATE SET
			price = excluded.price,
			gas_price = excluded.gas_price,
			gas_price_decimals = excluded.gas_price_decimals,
			native_decimals = excluded.native_decimals,
			enabled = excluded.enabled,
			updated_at = CURRENT_TIMESTAMP
	`, info.ChainID, priceBytes[:], gasPriceBytes[:], info.GasPriceDecimals, info.NativeDecimals, info.Enabled)
	if err != nil {
		return fmt.Errorf("upserting chain info: %w", err)
	}
	return nil
}

func (s *Store) GetChainInfo(chainID uint16) (ChainInfo, error) {
	var kind string
	var price, gasPrice []byte
	var gasPriceDecimals, nativeDecimals uint8
	var enabled bool
	err := s.conn.QueryRow(`
		SELECT kind, price, gas_price, gas_price_decimals, native_decimals, enabled
		FROM chain_info WHERE chain_id = ?
	`, chainID).Scan(&kind, &price, &gasPrice, &gasPriceDecimals, &nativeDecimals, &enabled)
	if err == sql.ErrNoRows {
		return ChainInfo{}, qerr.New(qerr.CodeChainDisabled, "chain info not found")
	}
	if err != nil {
		return ChainInfo{}, fmt.Errorf("querying chain info: %w", err)
	}
	if err := checkKind(kind, kindChainInfo); err != nil {
		return ChainInfo{}, err
	}
	var priceArr, gasArr [32]byte
	copy(priceArr[:], price)
	copy(gasArr[:], gasPrice)
	return ChainInfo{
		ChainID:          chainID,
		Price:            u256.FromBigEndianBytes(priceArr),
		GasPrice:         u256.FromBigEndianBytes(gasArr),
		GasPriceDecimals: gasPriceDecimals,
		NativeDecimals:   nativeDecimals,
		Enabled:          enabled,
	}, nil
}

// ListChainInfo returns every configured chain, ordered by chain_id, for
// the admin observability surface.
func (s *Store) ListChainInfo() ([]ChainInfo, error) {
	rows, err := s.conn.Query(`
		SELECT kind, chain_id, price, gas_price, gas_price_decimals, native_decimals, enabled
		FROM chain_info ORDER BY chain_id
	`)
	if err != nil {
		return nil, fmt.Errorf("listing chain info: %w", err)
	}
	defer rows.Close()

	var out []ChainInfo
	for rows.Next() {
		var kind string
		var chainID uint16
		var price, gasPrice []byte
		var gasPriceDecimals, nativeDecimals uint8
		var enabled bool
		if err := rows.Scan(&kind, &chainID, &price, &gasPrice, &gasPriceDecimals, &nativeDecimals, &enabled); err != nil {
			return nil, fmt.Errorf("scanning chain info row: %w", err)
		}
		if err := checkKind(kind, kindChainInfo); err != nil {
			return nil, err
		}
		var priceArr, gasArr [32]byte
		copy(priceArr[:], price)
		copy(gasArr[:], gasPrice)
		out = append(out, ChainInfo{
			ChainID:          chainID,
			Price:            u256.FromBigEndianBytes(priceArr),
			GasPrice:         u256.FromBigEndianBytes(gasArr),
			GasPriceDecimals: gasPriceDecimals,
			NativeDecimals:   nativeDecimals,
			Enabled:          enabled,
		})
	}
	return out, rows.Err()
}

// ListQuoterRegistrations returns every registered quoter, for the admin
// observability surface.
func (s *Store) ListQuoterRegistrations() ([]QuoterRegistration, error) {
	rows, err := s.conn.Query(`
		SELECT kind, quoter_address, implementation_program_id FROM quoter_registration
	`)
	if err != nil {
		return nil, fmt.Errorf("listing quoter registrations: %w", err)
	}
	defer rows.Close()

	var out []QuoterRegistration
	for rows.Next() {
		var kind string
		var addr, implementationProgramID []byte
		if err := rows.Scan(&kind, &addr, &implementationProgramID); err != nil {
			return nil, fmt.Errorf("scanning quoter registration row: %w", err)
		}
		if err := checkKind(kind, kindQuoterRegistration); err != nil {
			return nil, err
		}
		var reg QuoterRegistration
		copy(reg.QuoterAddress[:], addr)
		copy(reg.ImplementationProgramID[:], implementationProgramID)
		out = append(out, reg)
	}
	return out, rows.Err()
}

// QuoteBody is the packed EQ01 body for a chain's current quote.
type QuoteBody struct {
	ChainID uint16
	Body    [32]byte
}

func (s *Store) UpsertQuoteBody(chainID uint16, body [32]byte) error {
	_, err := s.conn.Exec(`
		INSERT INTO quote_body (chain_id, body, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(chain_id) DO UPDATE SET body = excluded.body, updated_at = CURRENT_TIMESTAMP
	`, chainID, body[:])
	if err != nil {
		return fmt.Errorf("upserting quote body: %w", err)
	}
	return nil
}

func (s *Store) GetQuoteBody(chainID uint16) (QuoteBody, error) {
	var kind string
	var body []byte
	err := s.conn.QueryRow(
		`SELECT kind, body FROM quote_body WHERE chain_id = ?`, chainID,
	).Scan(&kind, &body)
	if err == sql.ErrNoRows {
		return QuoteBody{}, qerr.New(qerr.CodeChainDisabled, "quote body not found")
	}
	if err != nil {
		return QuoteBody{}, fmt.Errorf("querying quote body: %w", err)
	}
	if err := checkKind(kind, kindQuoteBody); err != nil {
		return QuoteBody{}, err
	}
	var out QuoteBody
	out.ChainID = chainID
	copy(out.Body[:], body)
	return out, nil
}

// QuoterRegistration maps a 20-byte quoter address to its implementation.
type QuoterRegistration struct {
	QuoterAddress            [20]byte
	ImplementationProgramID  [32]byte
}

func (s *Store) UpsertQuoterRegistration(addr [20]byte, implementationProgramID [32]byte) error {
	_, err := s.conn.Exec(`
		INSERT INTO quoter_registration (quoter_address, implementation_program_id)
		VALUES (?, ?)
		ON CONFLICT(quoter_address) DO UPDATE SET implementation_program_id = excluded.implementation_program_id
	`, addr[:], implementationProgramID[:])
	if err != nil {
		return fmt.Errorf("upserting quoter registration: %w", err)
	}
	return nil
}

func (s *Store) GetQuoterRegistration(addr [20]byte) (QuoterRegistration, error) {
	var kind string
	var implementationProgramID []byte
	err := s.conn.QueryRow(
		`SELECT kind, implementation_program_id FROM quoter_registration WHERE quoter_address = ?`,
		addr[:],
	).Scan(&kind, &implementationProgramID)
	if err == sql.ErrNoRows {
		return QuoterRegistration{}, qerr.New(qerr.CodeQuoterNotRegistered, "quoter not registered")
	}
	if err != nil {
		return QuoterRegistration{}, fmt.Errorf("querying quoter registration: %w", err)
	}
	if err := checkKind(kind, kindQuoterRegistration); err != nil {
		return QuoterRegistration{}, err
	}
	out := QuoterRegistration{QuoterAddress: addr}
	copy(out.ImplementationProgramID[:], implementationProgramID)
	return out, nil
}

// LogExecution records one RequestExecution outcome for the admin feed.
func (s *Store) LogExecution(correlationID string, quoter [20]byte, dstChain uint16, amountPaid, refunded uint64) error {
	_, err := s.conn.Exec(`
		INSERT INTO execution_log (correlation_id, quoter_address, dst_chain, amount_paid, refunded)
		VALUES (?, ?, ?, ?, ?)
	`, correlationID, quoter[:], dstChain, amountPaid, refunded)
	if err != nil {
		return fmt.Errorf("logging execution: %w", err)
	}
	return nil
}

// RecentExecutions returns the most recent execution log rows, newest
// first, for the admin observability surface.
func (s *Store) RecentExecutions(limit int) ([]ExecutionRecord, error) {
	rows, err := s.conn.Query(`
		SELECT correlation_id, quoter_address, dst_chain, amount_paid, refunded, created_at
		FROM execution_log ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying execution log: %w", err)
	}
	defer rows.Close()

	var out []ExecutionRecord
	for rows.Next() {
		var rec ExecutionRecord
		var quoter []byte
		if err := rows.Scan(&rec.CorrelationID, &quoter, &rec.DstChain, &rec.AmountPaid, &rec.Refunded, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning execution log row: %w", err)
		}
		copy(rec.QuoterAddress[:], quoter)
		out = append(out, rec)
	}
	return out, rows.Err()
}

type ExecutionRecord struct {
	CorrelationID string
	QuoterAddress [20]byte
	DstChain      uint16
	AmountPaid    uint64
	Refunded      uint64
	CreatedAt     string
}

func isUniqueViolation(err error) bool {
	return err != nil && (containsFold(err.Error(), "unique") || containsFold(err.Error(), "constraint"))
}

func containsFold(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		match := true
		for j := 0; j < len(substr); j++ {
			a, b := s[i+j], substr[j]
			if 'A' <= a && a <= 'Z' {
				a += 'a' - 'A'
			}
			if 'A' <= b && b <= 'Z' {
				b += 'a' - 'A'
			}
			if a != b {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
