package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiwa/sigbroker/pkg/broker"
	"github.com/shiwa/sigbroker/pkg/typedesc"
)

func TestRampSynchronise(t *testing.T) {
	cfg := DefaultRampConfig()
	cfg.Signals = []broker.Signal{
		{Name: "U8", Type: typedesc.Uint8, Elements: 2},
		{Name: "F64", Type: typedesc.Float64},
	}
	cfg.MaxSynchronises = 2
	r, err := NewRamp(cfg)
	require.NoError(t, err)

	// сигнал времени добавлен первым
	require.Len(t, r.Signals(), 3)
	assert.Equal(t, "Time", r.Signals()[0].Name)
	assert.Equal(t, typedesc.Uint64, r.Signals()[0].Type)

	timeMem, err := r.SignalMemory("Time")
	require.NoError(t, err)
	u8, err := r.SignalMemory("U8")
	require.NoError(t, err)
	f64, err := r.SignalMemory("F64")
	require.NoError(t, err)
	loadTime := typedesc.CodecOf[uint64]().Load
	loadF64 := typedesc.CodecOf[float64]().Load

	assert.Equal(t, uint64(5), loadTime(timeMem))
	assert.Equal(t, StatusUnavailable, r.Status())

	for i := 1; i <= 4; i++ {
		require.NoError(t, r.Synchronise())
		wantTime := uint64(5 + 5*min(i, 2))
		assert.Equal(t, wantTime, loadTime(timeMem), "sync %d", i)
		assert.Equal(t, []byte{byte(10 * i), byte(10 * i)}, u8, "sync %d", i)
		assert.InDelta(t, 0.1345*float64(i), loadF64(f64), 1e-12, "sync %d", i)
	}
	assert.Equal(t, StatusStale, r.Status())
	assert.Equal(t, 4, r.Synchronisations())
}

func TestRampWrap(t *testing.T) {
	cfg := DefaultRampConfig()
	cfg.Signals = []broker.Signal{{Name: "I8", Type: typedesc.Int8}}
	cfg.InitialInt = 120
	r, err := NewRamp(cfg)
	require.NoError(t, err)
	mem, _ := r.SignalMemory("I8")

	require.NoError(t, r.Synchronise())
	assert.Equal(t, int8(-126), int8(mem[0]))
}

func TestRampRewind(t *testing.T) {
	cfg := DefaultRampConfig()
	cfg.Signals = []broker.Signal{
		{Name: "I32", Type: typedesc.Int32},
		{Name: "F32", Type: typedesc.Float32},
	}
	r, err := NewRamp(cfg)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, r.Synchronise())
	}

	r.Rewind(1000, 4, 2)
	assert.Equal(t, 0, r.Synchronisations())
	timeMem, _ := r.SignalMemory("Time")
	i32, _ := r.SignalMemory("I32")
	f32, _ := r.SignalMemory("F32")
	assert.Equal(t, uint64(1000), typedesc.CodecOf[uint64]().Load(timeMem))
	assert.Equal(t, int32(4), typedesc.CodecOf[int32]().Load(i32))
	assert.Equal(t, float32(2), typedesc.CodecOf[float32]().Load(f32))
}

func TestRampDeclaredTimeSignal(t *testing.T) {
	cfg := DefaultRampConfig()
	cfg.TimeSignal = "Clock"
	cfg.StartTime = 0.5
	cfg.TimeIncrement = 0.25
	cfg.Signals = []broker.Signal{
		{Name: "A", Type: typedesc.Int16},
		{Name: "Clock", Type: typedesc.Float64},
	}
	r, err := NewRamp(cfg)
	require.NoError(t, err)
	require.Len(t, r.Signals(), 2)
	clock, _ := r.SignalMemory("Clock")
	require.NoError(t, r.Synchronise())
	assert.Equal(t, 0.75, typedesc.CodecOf[float64]().Load(clock))
}

func TestRampErrors(t *testing.T) {
	cfg := DefaultRampConfig()
	cfg.Signals = []broker.Signal{{Name: "Time", Type: typedesc.Uint64, Elements: 2}}
	_, err := NewRamp(cfg)
	assert.Error(t, err)

	cfg.Signals = []broker.Signal{{Name: "A", Type: typedesc.Invalid}}
	_, err = NewRamp(cfg)
	assert.Error(t, err)

	r, err := NewRamp(DefaultRampConfig())
	require.NoError(t, err)
	_, err = r.SignalMemory("missing")
	assert.Error(t, err)
}
