// Package vmcrypto supplies the default vm.Crypto implementation: the
// hash functions and signature check the VM's HASH160/HASH256/CHECKSIG
// family of opcodes delegate to. It reuses the same curve and DER
// machinery mass-core/txscript already imports for its own
// checkSignatureEncoding/checkPubKeyEncoding validation, rather than
// hand-rolling ECDSA.
package vmcrypto

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec"
	"golang.org/x/crypto/ripemd160"
)

// Default is the stock vm.Crypto implementation: Hash160 =
// ripemd160(sha256(x)), Hash256 = sha256(sha256(x)), and ECDSA
// signature verification over secp256k1 via btcec.
type Default struct{}

// Hash160 computes RIPEMD160(SHA256(data)), the script-hash digest
// used for ScriptHash and the HASH160 opcode.
func (Default) Hash160(data []byte) []byte {
	sum := sha256.Sum256(data)
	h := ripemd160.New()
	h.Write(sum[:])
	return h.Sum(nil)
}

// Hash256 computes SHA256(SHA256(data)), used by the HASH256 opcode.
func (Default) Hash256(data []byte) []byte {
	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])
	return second[:]
}

// VerifySignature checks a DER-encoded ECDSA signature over message
// against a compressed or uncompressed secp256k1 public key. Any
// parse failure is treated as a failed verification rather than an
// error, matching the VM's policy (spec.md §7) that host crypto
// exceptions during CHECKSIG/VERIFY/CHECKMULTISIG produce a Boolean
// false rather than a fault.
func (Default) VerifySignature(message, signature, pubkey []byte) bool {
	pk, err := btcec.ParsePubKey(pubkey, btcec.S256())
	if err != nil {
		return false
	}
	sig, err := btcec.ParseDERSignature(signature, btcec.S256())
	if err != nil {
		return false
	}
	return sig.Verify(message, pk)
}
