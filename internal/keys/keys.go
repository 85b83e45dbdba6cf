// Package keys derives the kernel's operator identities — the quoter's
// updater key and the router's governance signing key — from a single
// mnemonic using standard BIP32/BIP39 Ethereum derivation.
package keys

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"
)

// Well-known account indices under the single operator mnemonic. Index 0 is
// the quoter's updater_address, the identity UpdateChainInfo/UpdateQuote
// check; index 1 signs EG01 governance messages, and its address is the
// quoter_address the router recovers from that signature.
const (
	UpdaterIndex   uint32 = 0
	GovernanceIndex uint32 = 1
)

// DeriveKey derives an ECDSA private key from a mnemonic at the given
// account index. Path: m/44'/60'/0'/0/{index}
func DeriveKey(mnemonic string, index uint32) (*ecdsa.PrivateKey, error) {
	seed := bip39.NewSeed(mnemonic, "")

	masterKey, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("creating master key: %w", err)
	}

	// m/44'
	purpose, err := masterKey.NewChildKey(bip32.FirstHardenedChild + 44)
	if err != nil {
		return nil, fmt.Errorf("deriving purpose: %w", err)
	}

	// m/44'/60'
	coinType, err := purpose.NewChildKey(bip32.FirstHardenedChild + 60)
	if err != nil {
		return nil, fmt.Errorf("deriving coin type: %w", err)
	}

	// m/44'/60'/0'
	account, err := coinType.NewChildKey(bip32.FirstHardenedChild + 0)
	if err != nil {
		return nil, fmt.Errorf("deriving account: %w", err)
	}

	// m/44'/60'/0'/0
	change, err := account.NewChildKey(0)
	if err != nil {
		return nil, fmt.Errorf("deriving change: %w", err)
	}

	// m/44'/60'/0'/0/{index}
	child, err := change.NewChildKey(index)
	if err != nil {
		return nil, fmt.Errorf("deriving child %d: %w", index, err)
	}

	privateKey, err := crypto.ToECDSA(child.Key)
	if err != nil {
		return nil, fmt.Errorf("converting to ECDSA: %w", err)
	}

	return privateKey, nil
}

// DeriveAddress derives an Ethereum-style address from a mnemonic at the
// given account index.
func DeriveAddress(mnemonic string, index uint32) (common.Address, error) {
	key, err := DeriveKey(mnemonic, index)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(key.PublicKey), nil
}

// DeriveUpdaterKey derives the quoter's updater signing key.
func DeriveUpdaterKey(mnemonic string) (*ecdsa.PrivateKey, error) {
	return DeriveKey(mnemonic, UpdaterIndex)
}

// DeriveGovernanceKey derives the EG01 governance signing key (the quoter
// identity whose signature UpdateQuoterContract verifies).
func DeriveGovernanceKey(mnemonic string) (*ecdsa.PrivateKey, error) {
	return DeriveKey(mnemonic, GovernanceIndex)
}

// As32 widens a 20-byte Ethereum address into the 32-byte address form the
// wire formats and stores in this repository use.
func As32(addr common.Address) [32]byte {
	var out [32]byte
	copy(out[12:], addr[:])
	return out
}

// As20 narrows a 32-byte address back to the 20-byte Ethereum form,
// rejecting anything with a non-zero high padding region.
func As20(addr [32]byte) ([20]byte, error) {
	for _, b := range addr[:12] {
		if b != 0 {
			return [20]byte{}, fmt.Errorf("keys: address %x has non-zero padding in the high 12 bytes", addr)
		}
	}
	var out [20]byte
	copy(out[:], addr[12:])
	return out, nil
}
