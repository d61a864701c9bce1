package smartcontract_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wangxinyu2018/mass-vm/config"
	"github.com/wangxinyu2018/mass-vm/internal/vmcrypto"
	"github.com/wangxinyu2018/mass-vm/smartcontract"
	"github.com/wangxinyu2018/mass-vm/vm"
)

func TestNewApplicationEngineRequiresCrypto(t *testing.T) {
	_, err := smartcontract.NewApplicationEngine(config.Application, nil, nil, nil, nil)
	require.Error(t, err)
}

func TestApplicationEngineRunsScriptAndTracksTrigger(t *testing.T) {
	a, err := smartcontract.NewApplicationEngine(config.Verification, vmcrypto.Default{}, nil, nil, nil)
	require.NoError(t, err)
	require.Equal(t, config.Verification, a.Trigger)

	code := []byte{vm.PUSH1, vm.PUSH2, vm.ADD}
	require.True(t, a.LoadScript(vm.NewScript(vmcrypto.Default{}, code), -1))
	require.True(t, a.Execute())

	require.Equal(t, 1, a.ResultStack().Count())
	require.Greater(t, a.ItemsPushed(), int64(0))
}

func TestApplicationEngineNotify(t *testing.T) {
	a, err := smartcontract.NewApplicationEngine(config.Application, vmcrypto.Default{}, nil, nil, nil)
	require.NoError(t, err)

	a.Notify([]byte("contract-hash"), vm.Boolean(true))
	require.Len(t, a.Notifications(), 1)
	require.Equal(t, "contract-hash", string(a.Notifications()[0].ScriptHash))
}
