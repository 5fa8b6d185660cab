package source

import (
	"fmt"

	"github.com/shiwa/sigbroker/pkg/broker"
	"github.com/shiwa/sigbroker/pkg/typedesc"
)

// Source — источник данных для брокера: ramp, serial, i2c
type Source interface {
	broker.DataSource
	// Protocol возвращает протокол: ramp, serial, i2c
	Protocol() string
	// Prime заполняет память сигналов первым отсчётом, если его ещё не было.
	// Вызывается до первого Execute брокера: по этой памяти брокер привязывает
	// начало виртуального времени.
	Prime() error
	// Status возвращает состояние по последнему Synchronise
	Status() Status
	// Close освобождает ресурсы
	Close() error
}

// Status — состояние источника
type Status int

const (
	StatusUnavailable Status = iota // отсчётов ещё не было
	StatusStale                     // последний Synchronise не принёс нового отсчёта
	StatusLive                      // последний Synchronise принёс новый отсчёт
)

func (s Status) String() string {
	switch s {
	case StatusUnavailable:
		return "unavailable"
	case StatusStale:
		return "stale"
	case StatusLive:
		return "live"
	default:
		return "unknown"
	}
}

// IsUsable возвращает true, если в памяти источника свежие данные
func (s Status) IsUsable() bool {
	return s == StatusLive
}

// signalBlock — память сигналов источника: все сигналы подряд в одном блоке
type signalBlock struct {
	signals []broker.Signal
	offsets map[string]int
	mem     []byte
}

func newSignalBlock(signals []broker.Signal) (*signalBlock, error) {
	if len(signals) == 0 {
		return nil, fmt.Errorf("no signals")
	}
	b := &signalBlock{
		signals: append([]broker.Signal(nil), signals...),
		offsets: make(map[string]int, len(signals)),
	}
	total := 0
	for _, s := range b.signals {
		if !s.Type.Valid() {
			return nil, fmt.Errorf("signal %q: unsupported type %s", s.Name, s.Type)
		}
		if _, dup := b.offsets[s.Name]; dup {
			return nil, fmt.Errorf("duplicate signal %q", s.Name)
		}
		b.offsets[s.Name] = total
		total += s.ByteSize()
	}
	b.mem = make([]byte, total)
	return b, nil
}

func (b *signalBlock) Signals() []broker.Signal {
	return b.signals
}

func (b *signalBlock) SignalMemory(name string) ([]byte, error) {
	off, ok := b.offsets[name]
	if !ok {
		return nil, fmt.Errorf("unknown signal %q", name)
	}
	s, _ := b.signal(name)
	return b.mem[off : off+s.ByteSize() : off+s.ByteSize()], nil
}

func (b *signalBlock) signal(name string) (broker.Signal, bool) {
	for _, s := range b.signals {
		if s.Name == name {
			return s, true
		}
	}
	return broker.Signal{}, false
}

// timeSignal проверяет, что сигнал времени есть в блоке и скалярный
func (b *signalBlock) timeSignal(name string) (broker.Signal, error) {
	s, ok := b.signal(name)
	if !ok {
		return s, fmt.Errorf("time signal %q not declared", name)
	}
	if s.NumberOfElements() != 1 {
		return s, fmt.Errorf("time signal %q must have one element", name)
	}
	if _, ok := typedesc.Float64Storer(s.Type); !ok {
		return s, fmt.Errorf("time signal %q: unsupported type %s", name, s.Type)
	}
	return s, nil
}
