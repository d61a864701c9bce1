package vm

import (
	"crypto/sha1"
	"crypto/sha256"
)

// sha1Sum and sha256Sum back the SHA1/SHA256 opcodes directly; unlike
// HASH160/HASH256 they need no curve or RIPEMD machinery, so they stay
// in the vm package rather than going through the Crypto collaborator.
func sha1Sum(b []byte) []byte {
	sum := sha1.Sum(b)
	return sum[:]
}

func sha256Sum(b []byte) []byte {
	sum := sha256.Sum256(b)
	return sum[:]
}
