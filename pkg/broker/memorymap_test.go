package broker_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiwa/sigbroker/pkg/broker"
	"github.com/shiwa/sigbroker/pkg/typedesc"
)

func TestMemoryMapInput(t *testing.T) {
	ds := newManualSource(
		broker.Signal{Name: "A", Type: typedesc.Int16, Elements: 3},
		broker.Signal{Name: "B", Type: typedesc.Float32},
	)
	copy(ds.mem["A"], []byte{1, 2, 3, 4, 5, 6})
	typedesc.CodecOf[float32]().Store(ds.mem["B"], 1.5)

	fn, err := broker.NewFunction("GAMA", []broker.Signal{
		{Name: "B", Type: typedesc.Float32},
		{Name: "A", DataSource: dsName, Type: typedesc.Int16, Elements: 3},
		{Name: "C", DataSource: "Other", Type: typedesc.Uint8},
	}, nil)
	require.NoError(t, err)

	var b broker.MemoryMapBroker
	require.NoError(t, b.Init(broker.InputSignals, ds, fn))
	// C относится к другому источнику
	assert.Equal(t, 2, b.NumberOfCopies())
	assert.Equal(t, broker.InputSignals, b.Direction())
	assert.Equal(t, "B", b.Copies()[0].Signal)
	assert.Equal(t, uint32(6), b.Copies()[1].ByteSize)

	require.NoError(t, b.Execute())
	assert.Equal(t, float32(1.5), typedesc.CodecOf[float32]().Load(fn.SignalMemory(broker.InputSignals, 0)))
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, fn.SignalMemory(broker.InputSignals, 1))
	assert.Equal(t, []byte{0}, fn.SignalMemory(broker.InputSignals, 2))

	// память функции не пересекается с памятью источника
	fn.SignalMemory(broker.InputSignals, 1)[0] = 99
	assert.Equal(t, byte(1), ds.mem["A"][0])
}

func TestMemoryMapOutput(t *testing.T) {
	ds := newManualSource(broker.Signal{Name: "Out", Type: typedesc.Uint32, Elements: 2})
	fn, err := broker.NewFunction("GAMB", nil, []broker.Signal{{Name: "Out", Type: typedesc.Uint32, Elements: 2}})
	require.NoError(t, err)
	idx, ok := fn.SignalIndex(broker.OutputSignals, "Out")
	require.True(t, ok)

	var b broker.MemoryMapBroker
	require.NoError(t, b.Init(broker.OutputSignals, ds, fn))
	u32 := typedesc.CodecOf[uint32]()
	out := fn.SignalMemory(broker.OutputSignals, idx)
	u32.Store(out, 7)
	u32.Store(out[4:], 0xdeadbeef)

	require.NoError(t, b.Execute())
	assert.Equal(t, uint32(7), u32.Load(ds.mem["Out"]))
	assert.Equal(t, uint32(0xdeadbeef), u32.Load(ds.mem["Out"][4:]))
	assert.Len(t, fn.InputSignalsMemory(), 0)
	assert.Len(t, fn.OutputSignalsMemory(), 8)
}

func TestMemoryMapInitErrors(t *testing.T) {
	ds := newManualSource(broker.Signal{Name: "A", Type: typedesc.Int8})
	fn, err := broker.NewFunction("GAMA", []broker.Signal{{Name: "A", Type: typedesc.Int8}}, nil)
	require.NoError(t, err)

	var b broker.MemoryMapBroker
	assert.ErrorIs(t, b.Init(broker.InputSignals, nil, fn), broker.ErrInitialization)
	assert.ErrorIs(t, b.Init(broker.InputSignals, ds, nil), broker.ErrInitialization)

	// память источника короче объявленного сигнала
	ds.mem["A"] = nil
	assert.ErrorIs(t, b.Init(broker.InputSignals, ds, fn), broker.ErrInitialization)
	delete(ds.mem, "A")
	assert.ErrorIs(t, b.Init(broker.InputSignals, ds, fn), broker.ErrInitialization)
	assert.Equal(t, 0, b.NumberOfCopies())
}

func TestNewFunctionErrors(t *testing.T) {
	_, err := broker.NewFunction("GAMA", []broker.Signal{{Name: "A", Type: typedesc.Invalid}}, nil)
	assert.Error(t, err)
	_, err = broker.NewFunction("GAMA", nil, []broker.Signal{
		{Name: "A", Type: typedesc.Int8},
		{Name: "A", Type: typedesc.Int16},
	})
	assert.Error(t, err)

	fn, err := broker.NewFunction("GAMA", []broker.Signal{{Name: "A", Type: typedesc.Int8, Elements: 4}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "GAMA", fn.Name())
	_, ok := fn.SignalIndex(broker.InputSignals, "B")
	assert.False(t, ok)
	assert.Len(t, fn.SignalMemory(broker.InputSignals, 0), 4)
}
