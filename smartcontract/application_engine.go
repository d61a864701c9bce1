// Package smartcontract binds vm.Engine to the trigger/container/
// syscall context a contract invocation actually runs under, the way
// mass-core/blockchain layers a thin policy wrapper over its lower
// level pieces (grounded on blockchain/consensus.go's wrapping style).
package smartcontract

import (
	"github.com/pkg/errors"

	"github.com/wangxinyu2018/mass-vm/config"
	"github.com/wangxinyu2018/mass-vm/vm"
)

// ApplicationEngine is a thin refinement of vm.Engine: it adds the
// TriggerType a syscall handler needs to tell a verification run from
// an application run, and a running total of evaluation-stack growth
// across the engine's lifetime for a host to bill gas against
// (spec.md §4.5's "stack-item-count accumulator"; see ItemsPushed).
type ApplicationEngine struct {
	*vm.Engine

	Trigger config.TriggerType

	notifications []Notification
	itemsPushed   int64
}

// Notification is an application-level event a contract emits via a
// "Notify"-style syscall; the VM core has no notion of this, it is
// purely an ApplicationEngine bookkeeping concern the syscall service
// writes into via Notify.
type Notification struct {
	ScriptHash []byte
	State      vm.StackItem
}

// NewApplicationEngine constructs an ApplicationEngine ready to load
// an entry script. crypto must not be nil.
func NewApplicationEngine(trigger config.TriggerType, crypto vm.Crypto, scriptTable vm.ScriptTable, scriptContainer vm.ScriptContainer, interopService vm.InteropService) (*ApplicationEngine, error) {
	if crypto == nil {
		return nil, errors.New("smartcontract: crypto collaborator is required")
	}
	return &ApplicationEngine{
		Engine:  vm.NewEngine(crypto, scriptTable, scriptContainer, interopService),
		Trigger: trigger,
	}, nil
}

// Notify records a contract-emitted notification. Called by a
// SYSCALL's InteropService implementation, never by the VM core
// itself.
func (a *ApplicationEngine) Notify(scriptHash []byte, state vm.StackItem) {
	a.notifications = append(a.notifications, Notification{ScriptHash: scriptHash, State: state})
}

// Notifications returns every notification recorded so far, in
// emission order.
func (a *ApplicationEngine) Notifications() []Notification {
	return a.notifications
}

// ItemsPushed is the running sum, over every step run through
// StepInto, of how much that step grew the evaluation stack: the
// current frame's stack count after the step minus the current frame's
// count before it (across a CALL or RET these are different frames).
// Steps that shrink the stack or leave its size unchanged add nothing,
// so this is not a count of individual pushes (ADD pops two items,
// pushes one, and adds nothing). It is a crude but monotonic proxy a
// host can bill gas against without the VM core knowing anything about
// fees.
func (a *ApplicationEngine) ItemsPushed() int64 {
	return a.itemsPushed
}

// StepInto executes exactly one instruction and updates the gas-proxy
// accumulator, wrapping vm.Engine.StepInto rather than duplicating its
// dispatch loop.
func (a *ApplicationEngine) StepInto() {
	before := a.Engine.CurrentContext()
	var beforeCount int
	if before != nil {
		beforeCount = before.EvaluationStack().Count()
	}
	a.Engine.StepInto()
	after := a.Engine.CurrentContext()
	if after != nil {
		if delta := after.EvaluationStack().Count() - beforeCount; delta > 0 {
			a.itemsPushed += int64(delta)
		}
	}
}

// Execute runs to completion via StepInto so the accumulator stays
// correct, rather than delegating straight to vm.Engine.Execute.
func (a *ApplicationEngine) Execute() bool {
	for a.State()&(vm.StateHalt|vm.StateFault|vm.StateBreak) == 0 {
		a.StepInto()
	}
	return a.State()&vm.StateFault == 0
}
