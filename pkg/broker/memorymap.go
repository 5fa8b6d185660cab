package broker

import (
	"fmt"

	"github.com/shiwa/sigbroker/pkg/typedesc"
)

// CopyEntry — одна строка таблицы копирования: откуда, куда, сколько байт и
// какого типа. Source и Dest ссылаются на память источника и функции, копий
// не делается.
type CopyEntry struct {
	Signal   string
	Type     typedesc.TypeTag
	Source   []byte
	Dest     []byte
	ByteSize uint32
}

// MemoryMapBroker копирует сигналы между памятью источника и функции по
// таблице, построенной один раз в Init.
type MemoryMapBroker struct {
	dir    Direction
	ds     DataSource
	fn     *Function
	copies []CopyEntry
}

// Init строит таблицу копирования для всех сигналов функции в направлении dir,
// которые берутся из источника ds. Сигнал с пустым DataSource относится к
// любому источнику.
func (b *MemoryMapBroker) Init(dir Direction, ds DataSource, fn *Function) error {
	if ds == nil || fn == nil {
		return fmt.Errorf("%w: nil data source or function", ErrInitialization)
	}
	exposed := make(map[string]Signal)
	for _, s := range ds.Signals() {
		exposed[s.Name] = s
	}

	copies := make([]CopyEntry, 0, len(fn.Signals(dir)))
	for i, s := range fn.Signals(dir) {
		if s.DataSource != "" && s.DataSource != ds.Name() {
			continue
		}
		src, ok := exposed[s.Name]
		if !ok {
			return fmt.Errorf("%w: %s signal %q of %s not found in data source %s",
				ErrInitialization, dir, s.Name, fn.Name(), ds.Name())
		}
		if src.Type != s.Type {
			return fmt.Errorf("%w: signal %q: type %s in %s, %s in %s",
				ErrInitialization, s.Name, s.Type, fn.Name(), src.Type, ds.Name())
		}
		if src.NumberOfElements() != s.NumberOfElements() {
			return fmt.Errorf("%w: signal %q: %d elements in %s, %d in %s",
				ErrInitialization, s.Name, s.NumberOfElements(), fn.Name(), src.NumberOfElements(), ds.Name())
		}
		dsMem, err := ds.SignalMemory(s.Name)
		if err != nil {
			return fmt.Errorf("%w: signal %q: %w", ErrInitialization, s.Name, err)
		}
		size := s.ByteSize()
		if len(dsMem) < size {
			return fmt.Errorf("%w: signal %q: data source memory %d bytes, need %d",
				ErrInitialization, s.Name, len(dsMem), size)
		}
		fnMem := fn.SignalMemory(dir, i)

		e := CopyEntry{Signal: s.Name, Type: s.Type, ByteSize: uint32(size)}
		if dir == InputSignals {
			e.Source, e.Dest = dsMem[:size], fnMem
		} else {
			e.Source, e.Dest = fnMem, dsMem[:size]
		}
		copies = append(copies, e)
	}

	b.dir, b.ds, b.fn, b.copies = dir, ds, fn, copies
	return nil
}

// Execute выполняет все копирования таблицы
func (b *MemoryMapBroker) Execute() error {
	for i := range b.copies {
		copy(b.copies[i].Dest, b.copies[i].Source)
	}
	return nil
}

// NumberOfCopies возвращает число строк таблицы (0 до Init)
func (b *MemoryMapBroker) NumberOfCopies() int {
	return len(b.copies)
}

// Copies возвращает таблицу копирования
func (b *MemoryMapBroker) Copies() []CopyEntry {
	return b.copies
}

// DataSource возвращает источник, с которым связан брокер
func (b *MemoryMapBroker) DataSource() DataSource {
	return b.ds
}

// Direction возвращает направление копирования
func (b *MemoryMapBroker) Direction() Direction {
	return b.dir
}
