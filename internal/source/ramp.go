package source

import (
	"fmt"

	"github.com/shiwa/sigbroker/pkg/broker"
	"github.com/shiwa/sigbroker/pkg/typedesc"
)

// RampConfig — параметры синтетического источника
type RampConfig struct {
	Name            string
	Signals         []broker.Signal
	TimeSignal      string  // по умолчанию "Time"
	StartTime       float64 // значение сигнала времени до первого Synchronise
	TimeIncrement   float64 // шаг времени за Synchronise
	IntIncrement    float64 // шаг целых сигналов за Synchronise
	FloatIncrement  float64 // шаг float32/float64 сигналов за Synchronise
	InitialInt      float64
	InitialFloat    float64
	MaxSynchronises int // после стольких Synchronise время перестаёт расти; 0 — без ограничения
}

// DefaultRampConfig — время 5, +5 за отсчёт, целые +10, вещественные +0.1345,
// восемь продвижений времени. Шаг вещественных переопределяется через
// option float_increment.
func DefaultRampConfig() RampConfig {
	return RampConfig{
		Name:            "ramp",
		TimeSignal:      "Time",
		StartTime:       5,
		TimeIncrement:   5,
		IntIncrement:    10,
		FloatIncrement:  0.1345,
		MaxSynchronises: 8,
	}
}

type rampSignal struct {
	mem   []byte
	size  int
	load  func(b []byte) float64
	store func(b []byte, v float64)
	inc   float64
	float bool
}

// Ramp — синтетический источник: каждый Synchronise прибавляет к каждому
// элементу каждого сигнала фиксированный шаг (в арифметике типа сигнала,
// с переполнением) и сдвигает сигнал времени, пока не исчерпан MaxSynchronises.
type Ramp struct {
	cfg     RampConfig
	block   *signalBlock
	timeMem []byte
	timeSet func(b []byte, v float64)
	signals []rampSignal
	now     float64
	syncs   int
	status  Status
}

// NewRamp создаёт источник и заполняет память начальными значениями.
// Сигнал времени добавляется автоматически (uint64), если его нет в списке.
func NewRamp(cfg RampConfig) (*Ramp, error) {
	if cfg.Name == "" {
		cfg.Name = "ramp"
	}
	if cfg.TimeSignal == "" {
		cfg.TimeSignal = "Time"
	}
	signals := cfg.Signals
	declared := false
	for _, s := range signals {
		if s.Name == cfg.TimeSignal {
			declared = true
			break
		}
	}
	if !declared {
		signals = append([]broker.Signal{{Name: cfg.TimeSignal, Type: typedesc.Uint64}}, signals...)
	}
	block, err := newSignalBlock(signals)
	if err != nil {
		return nil, fmt.Errorf("ramp %s: %w", cfg.Name, err)
	}
	ts, err := block.timeSignal(cfg.TimeSignal)
	if err != nil {
		return nil, fmt.Errorf("ramp %s: %w", cfg.Name, err)
	}

	r := &Ramp{cfg: cfg, block: block}
	r.timeMem, _ = block.SignalMemory(ts.Name)
	r.timeSet, _ = typedesc.Float64Storer(ts.Type)
	for _, s := range block.Signals() {
		if s.Name == ts.Name {
			continue
		}
		mem, _ := block.SignalMemory(s.Name)
		load, _ := typedesc.Float64Loader(s.Type)
		store, _ := typedesc.Float64Storer(s.Type)
		inc := cfg.IntIncrement
		if s.Type.IsFloat() {
			inc = cfg.FloatIncrement
		}
		r.signals = append(r.signals, rampSignal{
			mem: mem, size: s.Type.Size(), load: load, store: store, inc: inc, float: s.Type.IsFloat(),
		})
	}
	r.Rewind(cfg.StartTime, cfg.InitialInt, cfg.InitialFloat)
	return r, nil
}

// Rewind возвращает источник в начальное состояние с новыми стартовыми
// значениями времени и сигналов; счётчик Synchronise обнуляется.
func (r *Ramp) Rewind(startTime, initialInt, initialFloat float64) {
	r.cfg.StartTime, r.cfg.InitialInt, r.cfg.InitialFloat = startTime, initialInt, initialFloat
	r.now = startTime
	r.syncs = 0
	r.status = StatusUnavailable
	r.timeSet(r.timeMem, r.now)
	for _, s := range r.signals {
		v := initialInt
		if s.float {
			v = initialFloat
		}
		for off := 0; off+s.size <= len(s.mem); off += s.size {
			s.store(s.mem[off:], v)
		}
	}
}

// Name возвращает имя источника
func (r *Ramp) Name() string {
	return r.cfg.Name
}

// Protocol возвращает протокол
func (r *Ramp) Protocol() string {
	return "ramp"
}

// Signals возвращает сигналы источника, включая сигнал времени
func (r *Ramp) Signals() []broker.Signal {
	return r.block.Signals()
}

// SignalMemory возвращает память сигнала
func (r *Ramp) SignalMemory(name string) ([]byte, error) {
	return r.block.SignalMemory(name)
}

// Synchronise генерирует следующий отсчёт
func (r *Ramp) Synchronise() error {
	advanced := r.cfg.MaxSynchronises <= 0 || r.syncs < r.cfg.MaxSynchronises
	if advanced {
		r.now += r.cfg.TimeIncrement
		r.timeSet(r.timeMem, r.now)
	}
	r.syncs++
	for _, s := range r.signals {
		for off := 0; off+s.size <= len(s.mem); off += s.size {
			s.store(s.mem[off:], s.load(s.mem[off:])+s.inc)
		}
	}
	if advanced {
		r.status = StatusLive
	} else {
		r.status = StatusStale
	}
	return nil
}

// Prime ничего не делает: начальный отсчёт записан при создании и в Rewind
func (r *Ramp) Prime() error {
	return nil
}

// Status возвращает состояние по последнему Synchronise
func (r *Ramp) Status() Status {
	return r.status
}

// Synchronisations возвращает число вызовов Synchronise после Rewind
func (r *Ramp) Synchronisations() int {
	return r.syncs
}

// Payload возвращает весь блок памяти сигналов (для передачи кадром)
func (r *Ramp) Payload() []byte {
	return r.block.mem
}

// TimeSignal возвращает имя сигнала времени
func (r *Ramp) TimeSignal() string {
	return r.cfg.TimeSignal
}

// Close ничего не делает
func (r *Ramp) Close() error {
	return nil
}
