package vmcrypto_test

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcec"
	"github.com/stretchr/testify/require"

	"github.com/wangxinyu2018/mass-vm/internal/vmcrypto"
)

func TestHash160KnownVector(t *testing.T) {
	got := vmcrypto.Default{}.Hash160([]byte("hello"))
	require.Len(t, got, 20)
	require.Equal(t, "b6a9c8c230722b7c748331a8b450f05566dc7d0f", hex.EncodeToString(got))
}

func TestHash256IsDoubleSHA256(t *testing.T) {
	got := vmcrypto.Default{}.Hash256([]byte("hello"))
	require.Len(t, got, 32)

	first := sha256.Sum256([]byte("hello"))
	second := sha256.Sum256(first[:])
	require.Equal(t, second[:], got)

	again := vmcrypto.Default{}.Hash256([]byte("hello"))
	require.Equal(t, got, again, "hashing must be deterministic")
}

func TestVerifySignatureRoundTrip(t *testing.T) {
	priv, err := btcec.NewPrivateKey(btcec.S256())
	require.NoError(t, err)

	message := vmcrypto.Default{}.Hash256([]byte("a signable message"))
	sig, err := priv.Sign(message)
	require.NoError(t, err)

	pubkeyBytes := priv.PubKey().SerializeCompressed()
	sigBytes := sig.Serialize()

	require.True(t, vmcrypto.Default{}.VerifySignature(message, sigBytes, pubkeyBytes))
}

func TestVerifySignatureRejectsGarbage(t *testing.T) {
	require.False(t, vmcrypto.Default{}.VerifySignature([]byte("msg"), []byte("not-a-signature"), []byte("not-a-pubkey")))
}

func TestVerifySignatureRejectsWrongKey(t *testing.T) {
	priv, err := btcec.NewPrivateKey(btcec.S256())
	require.NoError(t, err)
	other, err := btcec.NewPrivateKey(btcec.S256())
	require.NoError(t, err)

	message := vmcrypto.Default{}.Hash256([]byte("a signable message"))
	sig, err := priv.Sign(message)
	require.NoError(t, err)

	require.False(t, vmcrypto.Default{}.VerifySignature(message, sig.Serialize(), other.PubKey().SerializeCompressed()))
}
