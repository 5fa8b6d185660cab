package source

import (
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiwa/sigbroker/internal/frame"
	"github.com/shiwa/sigbroker/pkg/broker"
	"github.com/shiwa/sigbroker/pkg/typedesc"
)

func newPipeSerial(t *testing.T, signals []broker.Signal) (*Serial, *frame.Port) {
	t.Helper()
	a, b := net.Pipe()
	s, err := newSerial(SerialConfig{Name: "S1", Signals: signals, Timeout: time.Second}, frame.NewPort(b), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
		_ = a.Close()
	})
	return s, frame.NewPort(a)
}

func send(t *testing.T, w *frame.Port, seq uint64, block []byte) {
	packet, err := frame.EncodeSample(seq, block)
	if assert.NoError(t, err) {
		assert.NoError(t, w.WriteFrame(packet))
	}
}

func TestSerialSynchronise(t *testing.T) {
	signals := []broker.Signal{
		{Name: "Time", Type: typedesc.Uint32},
		{Name: "V", Type: typedesc.Int16, Elements: 2},
	}
	s, w := newPipeSerial(t, signals)
	assert.Equal(t, StatusUnavailable, s.Status())

	block := make([]byte, 8)
	typedesc.CodecOf[uint32]().Store(block, 77)
	typedesc.CodecOf[int16]().Store(block[4:], -3)
	typedesc.CodecOf[int16]().Store(block[6:], 9)
	go send(t, w, 1, block)

	require.NoError(t, s.Synchronise())
	assert.Equal(t, StatusLive, s.Status())
	timeMem, _ := s.SignalMemory("Time")
	v, _ := s.SignalMemory("V")
	assert.Equal(t, uint32(77), typedesc.CodecOf[uint32]().Load(timeMem))
	assert.Equal(t, int16(-3), typedesc.CodecOf[int16]().Load(v))
	assert.Equal(t, int16(9), typedesc.CodecOf[int16]().Load(v[2:]))
}

func TestSerialTimeout(t *testing.T) {
	s, _ := newPipeSerial(t, []broker.Signal{{Name: "Time", Type: typedesc.Uint64}})
	s.timeout = 30 * time.Millisecond

	err := s.Synchronise()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no sample")
	assert.Equal(t, StatusStale, s.Status())
}

func TestSerialSameSampleNotReissued(t *testing.T) {
	s, w := newPipeSerial(t, []broker.Signal{{Name: "Time", Type: typedesc.Uint8}})
	s.timeout = 50 * time.Millisecond

	go send(t, w, 5, []byte{1})
	require.NoError(t, s.Synchronise())
	// новый кадр не пришёл — ждём и падаем по таймауту
	assert.Error(t, s.Synchronise())

	go send(t, w, 6, []byte{2})
	s.timeout = time.Second
	require.NoError(t, s.Synchronise())
	mem, _ := s.SignalMemory("Time")
	assert.Equal(t, byte(2), mem[0])
}

func TestSerialPayloadMismatch(t *testing.T) {
	s, w := newPipeSerial(t, []broker.Signal{{Name: "Time", Type: typedesc.Uint64}})

	go send(t, w, 1, []byte{1, 2, 3})
	err := s.Synchronise()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payload 3 bytes, expected 8")
}

type readResult struct {
	packet []byte
	err    error
}

// scriptedReader отдаёт заранее заданные результаты ReadFrame, затем таймауты
type scriptedReader struct {
	results chan readResult
	closed  chan struct{}
	once    sync.Once
}

func newScriptedReader(results ...readResult) *scriptedReader {
	r := &scriptedReader{results: make(chan readResult, len(results)), closed: make(chan struct{})}
	for _, res := range results {
		r.results <- res
	}
	return r
}

func (r *scriptedReader) ReadFrame(timeout time.Duration) ([]byte, error) {
	select {
	case res := <-r.results:
		return res.packet, res.err
	case <-r.closed:
		return nil, errors.New("use of closed port")
	case <-time.After(timeout):
		return nil, os.ErrDeadlineExceeded
	}
}

func (r *scriptedReader) Close() error {
	r.once.Do(func() { close(r.closed) })
	return nil
}

func samplePacket(t *testing.T, seq uint64, block []byte) []byte {
	t.Helper()
	packet, err := frame.EncodeSample(seq, block)
	require.NoError(t, err)
	return packet
}

func TestSerialIdleReadsKeepReceiving(t *testing.T) {
	// пустое чтение tarm/serial приходит как io.EOF, оборванный кадр как io.ErrUnexpectedEOF
	r := newScriptedReader(
		readResult{err: io.EOF},
		readResult{packet: samplePacket(t, 1, []byte{10})},
		readResult{err: io.ErrUnexpectedEOF},
		readResult{err: io.EOF},
	)
	s, err := newSerial(SerialConfig{Name: "S", Signals: []broker.Signal{{Name: "Time", Type: typedesc.Uint8}}, Timeout: time.Second}, r, nil)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Prime())
	mem, _ := s.SignalMemory("Time")
	assert.Equal(t, byte(10), mem[0])
	// повторный Prime не ждёт новый кадр
	require.NoError(t, s.Prime())

	r.results <- readResult{packet: samplePacket(t, 2, []byte{20})}
	require.NoError(t, s.Synchronise())
	assert.Equal(t, byte(20), mem[0])
	assert.Equal(t, StatusLive, s.Status())
}

func TestSerialReadError(t *testing.T) {
	r := newScriptedReader(readResult{err: errors.New("device gone")})
	s, err := newSerial(SerialConfig{Signals: []broker.Signal{{Name: "Time", Type: typedesc.Uint64}}, Timeout: time.Second}, r, nil)
	require.NoError(t, err)
	defer s.Close()

	err = s.Synchronise()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device gone")
	assert.Equal(t, "serial", s.Name())
	assert.Equal(t, "serial", s.Protocol())
}
