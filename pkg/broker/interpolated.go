package broker

import (
	"fmt"

	"github.com/sgostarter/i/l"

	"github.com/shiwa/sigbroker/pkg/typedesc"
)

const (
	// DefaultMaxResyncs — сколько раз за один Execute можно вызвать
	// Synchronise, пока время источника не догонит виртуальное время
	DefaultMaxResyncs = 64

	// длительность первого отрезка: y0 = y1, наклон нулевой
	kickStartDt = 1.0
)

// Stats — снимок состояния брокера
type Stats struct {
	Executions   uint64
	T0           float64
	T1           float64
	Origin       float64
	VirtualTime  float64
	Period       float64
	LastResyncs  int
	TotalResyncs uint64
	Copies       int
}

// Option настраивает InterpolatedInputBroker
type Option func(*InterpolatedInputBroker)

// WithMaxResyncs задаёт предел ресинхронизаций за один Execute (n < 1 игнорируется)
func WithMaxResyncs(n int) Option {
	return func(b *InterpolatedInputBroker) {
		if n >= 1 {
			b.maxResyncs = n
		}
	}
}

// WithLogger задаёт логгер
func WithLogger(logger l.Wrapper) Option {
	return func(b *InterpolatedInputBroker) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// InterpolatedInputBroker — входной брокер, который на каждом цикле функции
// выдаёт значения сигналов, линейно интерполированные на виртуальное время
// origin + counter*period. Когда виртуальное время уходит за конец текущего
// отрезка [t0, t1], брокер вызывает Synchronise источника и сдвигает отрезок,
// но не более maxResyncs раз за цикл.
//
// Брокер не потокобезопасен: Execute вызывается из одного потока цикла.
type InterpolatedInputBroker struct {
	base       MemoryMapBroker
	logger     l.Wrapper
	maxResyncs int
	segments   []interpolator

	timeMem  []byte
	timeType typedesc.TypeTag
	loadTime func(b []byte) float64
	period   float64

	t0, t1       float64
	origin       float64
	virtualTime  float64
	counter      uint64
	lastResyncs  int
	totalResyncs uint64
}

// NewInterpolatedInputBroker создаёт брокер; до Init он не содержит копий
func NewInterpolatedInputBroker(opts ...Option) *InterpolatedInputBroker {
	b := &InterpolatedInputBroker{
		maxResyncs: DefaultMaxResyncs,
		logger:     l.NewNopLoggerWrapper(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.WithFields(l.StringField(l.ClsKey, "InterpolatedInputBroker"))
	return b
}

// Init строит таблицу копирования входов функции из источника ds и
// выделяет состояние интерполяции под каждую строку.
func (b *InterpolatedInputBroker) Init(ds DataSource, fn *Function) error {
	var base MemoryMapBroker
	if err := base.Init(InputSignals, ds, fn); err != nil {
		return err
	}
	segments := make([]interpolator, 0, base.NumberOfCopies())
	for _, e := range base.Copies() {
		s, err := newInterpolator(e)
		if err != nil {
			return err
		}
		segments = append(segments, s)
	}
	b.base, b.segments = base, segments
	b.Reset()

	b.logger.WithFields(l.StringField("dataSource", ds.Name()), l.StringField("function", fn.Name()),
		l.IntField("copies", len(segments))).Info("initialised")
	return nil
}

// SetTimeSignal задаёт память сигнала времени источника, его тип и период
// интерполяции в единицах этого сигнала. Период не проверяется: он должен
// быть положительным и конечным.
func (b *InterpolatedInputBroker) SetTimeSignal(mem []byte, tag typedesc.TypeTag, period float64) error {
	load, ok := typedesc.Float64Loader(tag)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedTimeSignalType, tag)
	}
	if len(mem) < tag.Size() {
		return fmt.Errorf("%w: time signal memory %d bytes, need %d", ErrInitialization, len(mem), tag.Size())
	}
	b.timeMem, b.timeType, b.loadTime, b.period = mem, tag, load, period
	if !(period > 0) {
		b.logger.WithFields(l.StringField("period", fmt.Sprint(period))).Warn("non-positive interpolation period")
	}
	return nil
}

// SetTimeSignalByName берёт сигнал времени из источника, переданного в Init
func (b *InterpolatedInputBroker) SetTimeSignalByName(name string, period float64) error {
	ds := b.base.DataSource()
	if ds == nil {
		return ErrNotInitialised
	}
	for _, s := range ds.Signals() {
		if s.Name != name {
			continue
		}
		if s.NumberOfElements() != 1 {
			return fmt.Errorf("%w: time signal %q has %d elements", ErrInitialization, name, s.NumberOfElements())
		}
		if !s.Type.Valid() {
			return fmt.Errorf("%w: %s", ErrUnsupportedTimeSignalType, s.Type)
		}
		mem, err := ds.SignalMemory(name)
		if err != nil {
			return fmt.Errorf("%w: time signal %q: %w", ErrInitialization, name, err)
		}
		return b.SetTimeSignal(mem, s.Type, period)
	}
	return fmt.Errorf("%w: time signal %q not found in %s", ErrInitialization, name, ds.Name())
}

// Reset возвращает брокер в состояние до первого Execute: следующий Execute
// заново привяжет отсчёт времени к текущему времени источника.
func (b *InterpolatedInputBroker) Reset() {
	b.counter = 0
	b.t0, b.t1, b.origin, b.virtualTime = 0, 0, 0, 0
	b.lastResyncs = 0
}

// Execute выполняет один цикл: при необходимости подтягивает новые отсчёты
// из источника и пишет интерполированные значения в память функции.
//
// Если время источника не догнало виртуальное время за maxResyncs вызовов
// Synchronise, в память функции ничего не пишется и возвращается
// ErrStalledTimeSource. Ошибка Synchronise прерывает подтягивание, но
// значения всё равно выдаются по последнему отрезку (экстраполяция).
// В обоих случаях счётчик циклов увеличивается.
func (b *InterpolatedInputBroker) Execute() error {
	if b.base.DataSource() == nil {
		return ErrNotInitialised
	}
	if b.loadTime == nil {
		return ErrTimeSignalNotSet
	}
	if b.counter == 0 {
		if err := b.bootstrap(); err != nil {
			return err
		}
	}
	b.virtualTime = b.origin + float64(b.counter)*b.period

	var syncErr error
	resyncs := 0
	for b.virtualTime > b.t1 {
		if resyncs >= b.maxResyncs {
			b.finish(resyncs)
			return &ExecuteError{
				Kind:        ErrStalledTimeSource,
				Resyncs:     resyncs,
				VirtualTime: b.virtualTime,
				SegmentEnd:  b.t1,
			}
		}
		resyncs++
		if err := b.base.DataSource().Synchronise(); err != nil {
			syncErr = &ExecuteError{
				Kind:        ErrSynchronise,
				Resyncs:     resyncs,
				VirtualTime: b.virtualTime,
				SegmentEnd:  b.t1,
				Err:         err,
			}
			break
		}
		if err := b.advance(); err != nil {
			b.finish(resyncs)
			return err
		}
	}

	elapsed := b.virtualTime - b.t0
	for _, s := range b.segments {
		s.interpolate(elapsed)
	}
	b.finish(resyncs)
	return syncErr
}

func (b *InterpolatedInputBroker) finish(resyncs int) {
	b.lastResyncs = resyncs
	b.totalResyncs += uint64(resyncs)
	b.counter++
}

// bootstrap привязывает отсчёт виртуального времени к текущему времени
// источника и начинает первый отрезок с нулевым наклоном.
func (b *InterpolatedInputBroker) bootstrap() error {
	if err := b.updateTimes(); err != nil {
		return err
	}
	b.t0 = b.t1
	b.origin = b.t1
	for _, s := range b.segments {
		s.prime()
	}
	b.initSegments(kickStartDt)
	return nil
}

// advance читает новое время источника и сдвигает отрезки. Если время не
// выросло, отсчёт считается не пришедшим и границы отрезка не меняются.
func (b *InterpolatedInputBroker) advance() error {
	t0, t1 := b.t0, b.t1
	if err := b.updateTimes(); err != nil {
		return err
	}
	if !b.initSegments(b.t1 - b.t0) {
		b.t0, b.t1 = t0, t1
	}
	return nil
}

// updateTimes: t0 <- t1, t1 <- текущее время источника.
// Для неподдерживаемого типа t1 не меняется.
func (b *InterpolatedInputBroker) updateTimes() error {
	if b.loadTime == nil {
		return fmt.Errorf("%w: %s", ErrUnsupportedTimeSignalType, b.timeType)
	}
	b.t0 = b.t1
	b.t1 = b.loadTime(b.timeMem)
	return nil
}

// initSegments сдвигает отрезки всех сигналов на длительность dt; при dt <= 0
// ничего не делает и возвращает false.
func (b *InterpolatedInputBroker) initSegments(dt float64) bool {
	if !(dt > 0) {
		return false
	}
	for _, s := range b.segments {
		s.advance(dt)
	}
	return true
}

// NumberOfCopies возвращает число сигналов под управлением брокера (0 до Init)
func (b *InterpolatedInputBroker) NumberOfCopies() int {
	return b.base.NumberOfCopies()
}

// Copies возвращает таблицу копирования
func (b *InterpolatedInputBroker) Copies() []CopyEntry {
	return b.base.Copies()
}

// DataSource возвращает источник, переданный в Init
func (b *InterpolatedInputBroker) DataSource() DataSource {
	return b.base.DataSource()
}

// Stats возвращает снимок состояния
func (b *InterpolatedInputBroker) Stats() Stats {
	return Stats{
		Executions:   b.counter,
		T0:           b.t0,
		T1:           b.t1,
		Origin:       b.origin,
		VirtualTime:  b.virtualTime,
		Period:       b.period,
		LastResyncs:  b.lastResyncs,
		TotalResyncs: b.totalResyncs,
		Copies:       b.base.NumberOfCopies(),
	}
}
