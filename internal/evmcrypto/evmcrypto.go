// Package evmcrypto wraps the two EVM-flavoured signature primitives the
// router's governance check needs: keccak256 and secp256k1 public-key
// recovery. Both are injected as a Verifier interface exactly per the
// design notes' "treat as injected capabilities" guidance, so tests can
// stub them without touching the real curve.
package evmcrypto

import (
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/relaykit/quoterkernel/internal/qerr"
)

// Verifier is the injected capability surface for governance-message
// signature verification.
type Verifier interface {
	// Keccak256 hashes the concatenation of data.
	Keccak256(data ...[]byte) [32]byte
	// RecoverPublicKey recovers the 64-byte uncompressed public key (no
	// 0x04 prefix) that produced (r, s) over digest, given the EVM
	// recovery byte v (27 or 28).
	RecoverPublicKey(digest [32]byte, v byte, r, s [32]byte) ([64]byte, error)
}

// EthereumVerifier backs Verifier with go-ethereum's crypto package —
// the same secp256k1/keccak implementation the wallet derivation in this
// repository already depends on.
type EthereumVerifier struct{}

func (EthereumVerifier) Keccak256(data ...[]byte) [32]byte {
	var out [32]byte
	copy(out[:], crypto.Keccak256(data...))
	return out
}

func (EthereumVerifier) RecoverPublicKey(digest [32]byte, v byte, r, s [32]byte) ([64]byte, error) {
	if v != 27 && v != 28 {
		return [64]byte{}, qerr.New(qerr.CodeInvalidSignature, "evmcrypto: signature_v must be 27 or 28")
	}
	sig := make([]byte, 65)
	copy(sig[0:32], r[:])
	copy(sig[32:64], s[:])
	sig[64] = v - 27

	pub, err := crypto.Ecrecover(digest[:], sig)
	if err != nil {
		return [64]byte{}, qerr.Wrap(qerr.CodeInvalidSignature, err)
	}
	var out [64]byte
	copy(out[:], pub[1:]) // drop the leading 0x04 uncompressed-point marker
	return out, nil
}

// RecoverAddress derives the 20-byte keccak-style address for a 64-byte
// uncompressed public key.
func RecoverAddress(v Verifier, pubkey [64]byte) [20]byte {
	hash := v.Keccak256(pubkey[:])
	var addr [20]byte
	copy(addr[:], hash[12:32])
	return addr
}
