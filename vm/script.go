package vm

import "sync"

// Script is an immutable bytecode sequence together with its lazily
// computed content hash. Multiple ExecutionContexts (one per CALL
// frame) may share the same *Script by reference; only the Script's
// bytes are shared — each frame gets its own instruction cache and
// instruction pointer (see context.go).
type Script struct {
	bytes []byte
	crypto Crypto

	hashOnce sync.Once
	hash     []byte
}

// NewScript wraps raw bytecode. crypto supplies the Hash160
// implementation used to lazily compute ScriptHash.
func NewScript(crypto Crypto, bytes []byte) *Script {
	return &Script{bytes: bytes, crypto: crypto}
}

// Bytes returns the underlying bytecode. Callers must not mutate it.
func (s *Script) Bytes() []byte { return s.bytes }

// Length is the number of bytes in the script.
func (s *Script) Length() int { return len(s.bytes) }

// ScriptHash is the Hash160 of the script's bytes, computed once and
// cached.
func (s *Script) ScriptHash() []byte {
	s.hashOnce.Do(func() {
		s.hash = s.crypto.Hash160(s.bytes)
	})
	return s.hash
}

// At returns the byte at offset, and whether offset was in range.
func (s *Script) At(offset int) (byte, bool) {
	if offset < 0 || offset >= len(s.bytes) {
		return 0, false
	}
	return s.bytes[offset], true
}

// Slice returns bytes[from:to], clamped to the script's bounds; the
// caller is responsible for validating from/to make sense.
func (s *Script) Slice(from, to int) []byte {
	if from < 0 {
		from = 0
	}
	if to > len(s.bytes) {
		to = len(s.bytes)
	}
	if from >= to {
		return nil
	}
	return s.bytes[from:to]
}
