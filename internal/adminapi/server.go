// Package adminapi is the kernel's read-only operator HTTP surface: a
// password-gated JSON view over router/quoter state and the execution log,
// for dashboards and on-call tooling that don't want to speak the wire
// protocol directly.
package server

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"

	"github.com/relaykit/quoterkernel/config"
	"github.com/relaykit/quoterkernel/internal/storage"
)

// session tokens (in-memory), exactly the teacher's admin-cookie pattern.
var (
	sessionMu     sync.RWMutex
	adminSessions = map[string]bool{}
)

type Server struct {
	cfg   *config.Config
	store *storage.Store
}

func New(cfg *config.Config, store *storage.Store) *Server {
	return &Server{cfg: cfg, store: store}
}

func (s *Server) Start() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/admin/login", s.handleAdminLogin)
	mux.HandleFunc("/api/admin/chains", s.withAdminAuth(s.handleChains))
	mux.HandleFunc("/api/admin/registrations", s.withAdminAuth(s.handleRegistrations))
	mux.HandleFunc("/api/admin/executions", s.withAdminAuth(s.handleExecutions))
	mux.HandleFunc("/api/admin/config", s.withAdminAuth(s.handleConfig))

	addr := fmt.Sprintf(":%d", s.cfg.Port)
	log.Printf("Admin API listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}

// --- Auth helpers ---

func generateToken() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}

func hashPassword(pw string) [32]byte {
	return sha256.Sum256([]byte(pw))
}

func (s *Server) withAdminAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("admin_session")
		if err != nil {
			http.Error(w, "not authenticated", http.StatusUnauthorized)
			return
		}
		sessionMu.RLock()
		valid := adminSessions[cookie.Value]
		sessionMu.RUnlock()
		if !valid {
			http.Error(w, "not authenticated", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	r.ParseForm()
	pw := r.FormValue("password")
	expected := hashPassword(s.cfg.AdminPassword)
	got := hashPassword(pw)
	if subtle.ConstantTimeCompare(expected[:], got[:]) != 1 {
		http.Error(w, "invalid password", http.StatusUnauthorized)
		return
	}
	token := generateToken()
	sessionMu.Lock()
	adminSessions[token] = true
	sessionMu.Unlock()
	http.SetCookie(w, &http.Cookie{Name: "admin_session", Value: token, Path: "/", HttpOnly: true, SameSite: http.SameSiteStrictMode})
	writeJSON(w, map[string]string{"status": "ok"})
}

// --- API handlers ---

func (s *Server) handleChains(w http.ResponseWriter, r *http.Request) {
	chains, err := s.store.ListChainInfo()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	type chainView struct {
		ChainID          uint16 `json:"chain_id"`
		GasPriceDecimals uint8  `json:"gas_price_decimals"`
		NativeDecimals   uint8  `json:"native_decimals"`
		Enabled          bool   `json:"enabled"`
	}
	out := make([]chainView, 0, len(chains))
	for _, c := range chains {
		out = append(out, chainView{
			ChainID:          c.ChainID,
			GasPriceDecimals: c.GasPriceDecimals,
			NativeDecimals:   c.NativeDecimals,
			Enabled:          c.Enabled,
		})
	}
	writeJSON(w, out)
}

func (s *Server) handleRegistrations(w http.ResponseWriter, r *http.Request) {
	regs, err := s.store.ListQuoterRegistrations()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	type regView struct {
		QuoterAddress           string `json:"quoter_address"`
		ImplementationProgramID string `json:"implementation_program_id"`
	}
	out := make([]regView, 0, len(regs))
	for _, reg := range regs {
		out = append(out, regView{
			QuoterAddress:           "0x" + hex.EncodeToString(reg.QuoterAddress[:]),
			ImplementationProgramID: "0x" + hex.EncodeToString(reg.ImplementationProgramID[:]),
		})
	}
	writeJSON(w, out)
}

func (s *Server) handleExecutions(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := s.store.RecentExecutions(limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	type execView struct {
		CorrelationID string `json:"correlation_id"`
		QuoterAddress string `json:"quoter_address"`
		DstChain      uint16 `json:"dst_chain"`
		AmountPaid    uint64 `json:"amount_paid"`
		Refunded      uint64 `json:"refunded"`
		CreatedAt     string `json:"created_at"`
	}
	out := make([]execView, 0, len(rows))
	for _, rec := range rows {
		out = append(out, execView{
			CorrelationID: rec.CorrelationID,
			QuoterAddress: "0x" + hex.EncodeToString(rec.QuoterAddress[:]),
			DstChain:      rec.DstChain,
			AmountPaid:    rec.AmountPaid,
			Refunded:      rec.Refunded,
			CreatedAt:     rec.CreatedAt,
		})
	}
	writeJSON(w, out)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	routerCfg, err := s.store.GetRouterConfig()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	quoterCfg, err := s.store.GetQuoterConfig()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]string{
		"our_chain":           strconv.Itoa(int(routerCfg.OurChain)),
		"executor_program_id": "0x" + hex.EncodeToString(routerCfg.ExecutorProgramID[:]),
		"updater_address":     "0x" + hex.EncodeToString(quoterCfg.UpdaterAddress[:]),
		"payee_address":       "0x" + hex.EncodeToString(quoterCfg.PayeeAddress[:]),
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
