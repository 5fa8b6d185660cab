// Package broker переносит сигналы между источником данных (DataSource) и
// вычислительной функцией (GAM) на каждом цикле: обычное копирование памяти
// (MemoryMapBroker) и копирование с линейной интерполяцией во времени
// (InterpolatedInputBroker), когда период исполнения функции отличается от
// периода дискретизации источника.
package broker

import (
	"fmt"

	"github.com/shiwa/sigbroker/pkg/typedesc"
)

// Signal — описание сигнала: имя, тип и число элементов.
// Для сигналов функции DataSource указывает, из какого источника сигнал берётся.
type Signal struct {
	Name       string
	DataSource string
	Type       typedesc.TypeTag
	Elements   int
}

// NumberOfElements возвращает число элементов (0 трактуется как 1)
func (s Signal) NumberOfElements() int {
	if s.Elements <= 0 {
		return 1
	}
	return s.Elements
}

// ByteSize возвращает размер сигнала в байтах
func (s Signal) ByteSize() int {
	return s.NumberOfElements() * s.Type.Size()
}

// DataSource — источник данных (аналог DataSourceI): владеет памятью сигналов
// и по Synchronise подтягивает в неё следующий набор отсчётов.
// Потокобезопасность Synchronise — ответственность реализации.
type DataSource interface {
	// Name возвращает имя источника (сопоставляется с Signal.DataSource)
	Name() string
	// Signals возвращает сигналы, которые источник выставляет наружу
	Signals() []Signal
	// SignalMemory возвращает память сигнала; срез живёт столько же, сколько источник
	SignalMemory(name string) ([]byte, error)
	// Synchronise подтягивает следующий набор отсчётов в память сигналов
	Synchronise() error
}

// Direction — направление копирования относительно функции
type Direction int

const (
	InputSignals Direction = iota
	OutputSignals
)

func (d Direction) String() string {
	switch d {
	case InputSignals:
		return "input"
	case OutputSignals:
		return "output"
	default:
		return "unknown"
	}
}

// Function — потребитель сигналов (GAM): входы и выходы, уложенные подряд
// в два приватных блока памяти.
type Function struct {
	name    string
	inputs  []Signal
	outputs []Signal
	inOff   []int
	outOff  []int
	inMem   []byte
	outMem  []byte
}

// NewFunction раскладывает сигналы функции в памяти. Типы должны быть из
// десяти поддерживаемых, имена внутри направления — уникальны.
func NewFunction(name string, inputs, outputs []Signal) (*Function, error) {
	f := &Function{
		name:    name,
		inputs:  append([]Signal(nil), inputs...),
		outputs: append([]Signal(nil), outputs...),
	}
	var err error
	if f.inOff, f.inMem, err = layout(name, InputSignals, f.inputs); err != nil {
		return nil, err
	}
	if f.outOff, f.outMem, err = layout(name, OutputSignals, f.outputs); err != nil {
		return nil, err
	}
	return f, nil
}

func layout(fn string, dir Direction, signals []Signal) ([]int, []byte, error) {
	offsets := make([]int, len(signals))
	seen := make(map[string]bool, len(signals))
	total := 0
	for i, s := range signals {
		if !s.Type.Valid() {
			return nil, nil, fmt.Errorf("function %s: %s signal %q: unsupported type %s", fn, dir, s.Name, s.Type)
		}
		if seen[s.Name] {
			return nil, nil, fmt.Errorf("function %s: duplicate %s signal %q", fn, dir, s.Name)
		}
		seen[s.Name] = true
		offsets[i] = total
		total += s.ByteSize()
	}
	return offsets, make([]byte, total), nil
}

// Name возвращает имя функции
func (f *Function) Name() string {
	return f.name
}

// Signals возвращает сигналы функции в заданном направлении
func (f *Function) Signals(dir Direction) []Signal {
	if dir == OutputSignals {
		return f.outputs
	}
	return f.inputs
}

// SignalMemory возвращает память idx-го сигнала в заданном направлении
func (f *Function) SignalMemory(dir Direction, idx int) []byte {
	signals, offsets, mem := f.inputs, f.inOff, f.inMem
	if dir == OutputSignals {
		signals, offsets, mem = f.outputs, f.outOff, f.outMem
	}
	if idx < 0 || idx >= len(signals) {
		return nil
	}
	off := offsets[idx]
	return mem[off : off+signals[idx].ByteSize() : off+signals[idx].ByteSize()]
}

// SignalIndex ищет сигнал по имени
func (f *Function) SignalIndex(dir Direction, name string) (int, bool) {
	for i, s := range f.Signals(dir) {
		if s.Name == name {
			return i, true
		}
	}
	return -1, false
}

// InputSignalsMemory возвращает весь блок входной памяти
func (f *Function) InputSignalsMemory() []byte {
	return f.inMem
}

// OutputSignalsMemory возвращает весь блок выходной памяти
func (f *Function) OutputSignalsMemory() []byte {
	return f.outMem
}
