package source

import (
	"fmt"

	"github.com/shiwa/sigbroker/internal/hostclock"
	"github.com/shiwa/sigbroker/pkg/broker"
	"github.com/shiwa/sigbroker/pkg/typedesc"
)

// I2CConfig — параметры источника по шине I2C
type I2CConfig struct {
	Name string
	// Bus — имя шины для i2creg ("/dev/i2c-1", "1", "")
	Bus      string
	Addr     uint16
	Register byte
	// Signals — сигналы в порядке регистров устройства; сигнал времени
	// (TimeSignal) с устройства не читается, а ставится по часам хоста в нс
	Signals    []broker.Signal
	TimeSignal string
}

// registerBus — транзакция запись-чтение на устройстве (i2c.Dev)
type registerBus interface {
	Tx(w, r []byte) error
}

// I2C — источник, читающий блок регистров устройства на каждом Synchronise
type I2C struct {
	name    string
	dev     registerBus
	closer  func() error
	reg     byte
	clock   hostclock.Clock
	block   *signalBlock
	timeMem []byte
	timeSet func(b []byte, v float64)
	data    [][]byte
	scratch []byte
	status  Status
	sampled bool
}

func newI2C(cfg I2CConfig, dev registerBus, closer func() error, clock hostclock.Clock) (*I2C, error) {
	if cfg.Name == "" {
		cfg.Name = "i2c"
	}
	if cfg.TimeSignal == "" {
		cfg.TimeSignal = "Time"
	}
	if clock == nil {
		clock = hostclock.Monotonic
	}
	block, err := newSignalBlock(cfg.Signals)
	if err != nil {
		return nil, fmt.Errorf("i2c %s: %w", cfg.Name, err)
	}
	ts, err := block.timeSignal(cfg.TimeSignal)
	if err != nil {
		return nil, fmt.Errorf("i2c %s: %w", cfg.Name, err)
	}
	d := &I2C{
		name:   cfg.Name,
		dev:    dev,
		closer: closer,
		reg:    cfg.Register,
		clock:  clock,
		block:  block,
	}
	d.timeMem, _ = block.SignalMemory(ts.Name)
	d.timeSet, _ = typedesc.Float64Storer(ts.Type)
	size := 0
	for _, s := range block.Signals() {
		if s.Name == ts.Name {
			continue
		}
		mem, _ := block.SignalMemory(s.Name)
		d.data = append(d.data, mem)
		size += len(mem)
	}
	d.scratch = make([]byte, size)
	return d, nil
}

// Name возвращает имя источника
func (d *I2C) Name() string {
	return d.name
}

// Protocol возвращает протокол
func (d *I2C) Protocol() string {
	return "i2c"
}

// Signals возвращает сигналы источника
func (d *I2C) Signals() []broker.Signal {
	return d.block.Signals()
}

// SignalMemory возвращает память сигнала
func (d *I2C) SignalMemory(name string) ([]byte, error) {
	return d.block.SignalMemory(name)
}

// Synchronise читает регистры начиная с Register и ставит метку времени.
// При ошибке шины память сигналов не меняется.
func (d *I2C) Synchronise() error {
	if err := d.dev.Tx([]byte{d.reg}, d.scratch); err != nil {
		d.status = StatusStale
		return fmt.Errorf("i2c %s: read register 0x%02x: %w", d.name, d.reg, err)
	}
	off := 0
	for _, mem := range d.data {
		off += copy(mem, d.scratch[off:])
	}
	d.timeSet(d.timeMem, float64(d.clock()))
	d.status = StatusLive
	d.sampled = true
	return nil
}

// Prime читает регистры, если успешного чтения ещё не было
func (d *I2C) Prime() error {
	if d.sampled {
		return nil
	}
	return d.Synchronise()
}

// Status возвращает состояние по последнему Synchronise
func (d *I2C) Status() Status {
	return d.status
}

// Close закрывает шину
func (d *I2C) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer()
}
