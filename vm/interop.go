package vm

// Crypto is the set of cryptographic primitives the engine needs but
// does not implement itself: hashing used for script identity and the
// HASH160/HASH256 opcodes, and signature verification used by
// CHECKSIG/VERIFY/CHECKMULTISIG. A concrete default lives in
// internal/vmcrypto; the engine only ever depends on this interface.
type Crypto interface {
	Hash160(data []byte) []byte
	Hash256(data []byte) []byte
	VerifySignature(message, signature, pubkey []byte) bool
}

// ScriptTable resolves a 20-byte script hash to the script bytes it
// names, for APPCALL/TAILCALL/CALL_E and friends. The VM never writes
// to it; persistence and lookup strategy are entirely the host's
// concern.
type ScriptTable interface {
	GetScript(scriptHash []byte) []byte
}

// ScriptContainer supplies the message bytes a CHECKSIG/CHECKMULTISIG
// opcode verifies a signature against — typically the signable digest
// of the transaction or block the script is attached to.
type ScriptContainer interface {
	GetMessage() []byte
}

// InteropService dispatches a named SYSCALL to its host-provided
// implementation. The callback is expected to read/write
// engine.CurrentContext().EvaluationStack() directly and report
// whether the call succeeded.
type InteropService interface {
	Invoke(name string, engine *Engine) bool
}
