// Command govsign builds and signs an EG01 governance message offline,
// printing the hex-encoded wire bytes a caller submits to
// router.UpdateQuoterContract.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/relaykit/quoterkernel/internal/codec"
	"github.com/relaykit/quoterkernel/internal/keys"
)

func main() {
	mnemonic := flag.String("mnemonic", "", "BIP39 mnemonic the governance key is derived from")
	chainID := flag.Uint("chain", 0, "chain_id the message governs")
	contractHex := flag.String("contract", "", "universal_contract_address (implementation_program_id), 32 bytes hex")
	senderHex := flag.String("sender", "", "universal_sender_address, 32 bytes hex (defaults to the derived governance address, widened to 32 bytes)")
	expiry := flag.Uint64("expiry", ^uint64(0), "expiry_time, seconds since Unix epoch (default: never)")
	flag.Parse()

	if *mnemonic == "" || *contractHex == "" {
		log.Fatal("--mnemonic and --contract are required")
	}

	key, err := keys.DeriveGovernanceKey(*mnemonic)
	if err != nil {
		log.Fatalf("deriving governance key: %v", err)
	}
	quoterAddr := ethcrypto.PubkeyToAddress(key.PublicKey)

	var sender [32]byte
	if *senderHex != "" {
		raw, err := hex.DecodeString(*senderHex)
		if err != nil || len(raw) != 32 {
			log.Fatalf("--sender must be 32 bytes hex")
		}
		copy(sender[:], raw)
	} else {
		sender = keys.As32(quoterAddr)
	}

	contractRaw, err := hex.DecodeString(*contractHex)
	if err != nil || len(contractRaw) != 32 {
		log.Fatalf("--contract must be 32 bytes hex")
	}
	var contract [32]byte
	copy(contract[:], contractRaw)

	var quoterAddrArr [20]byte
	copy(quoterAddrArr[:], quoterAddr[:])

	msg := codec.EG01{
		ChainID:                  uint16(*chainID),
		QuoterAddress:            quoterAddrArr,
		UniversalContractAddress: contract,
		UniversalSenderAddress:   sender,
		ExpiryTime:               *expiry,
	}

	encoded := msg.Encode()
	digest := ethcrypto.Keccak256(encoded[:codec.EG01SignedLen])
	sig, err := ethcrypto.Sign(digest, key)
	if err != nil {
		log.Fatalf("signing: %v", err)
	}
	copy(msg.SignatureR[:], sig[0:32])
	copy(msg.SignatureS[:], sig[32:64])
	msg.SignatureV = sig[64] + 27

	signed := msg.Encode()
	fmt.Printf("quoter_address: 0x%s\n", hex.EncodeToString(quoterAddrArr[:]))
	fmt.Printf("eg01: 0x%s\n", hex.EncodeToString(signed[:]))
}
