package config

// TriggerType tells a syscall handler what circumstance invoked the
// contract: verifying a transaction/block, or running as part of an
// application transaction. It has no effect on the core interpreter;
// it is plumbed through ApplicationEngine purely for the syscall
// service to inspect.
type TriggerType byte

const (
	// Verification runs a contract as a signature/witness check; the
	// script is expected to leave exactly one Boolean on the stack.
	Verification TriggerType = 0x00

	// Application runs a contract as part of executing a transaction;
	// state-changing syscalls are only meaningful under this trigger.
	Application TriggerType = 0x10
)

func (t TriggerType) String() string {
	switch t {
	case Verification:
		return "Verification"
	case Application:
		return "Application"
	default:
		return "Unknown"
	}
}
