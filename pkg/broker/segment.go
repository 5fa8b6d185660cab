package broker

import (
	"fmt"

	"github.com/shiwa/sigbroker/pkg/typedesc"
)

// interpolator — состояние интерполяции одного сигнала; конкретный тип
// выбирается один раз в Init.
type interpolator interface {
	// prime запоминает текущий отсчёт источника как последний
	prime()
	// advance сдвигает отрезок: предыдущий <- последний, последний <- источник,
	// наклон = (последний - предыдущий) / dt
	advance(dt float64)
	// interpolate пишет в память функции значение через elapsed после начала отрезка
	interpolate(elapsed float64)
}

// segment хранит для каждого элемента сигнала начало отрезка y0, конец y1 и
// наклон в единицах сигнала на единицу времени. Наклон имеет тот же тип, что
// и сигнал, поэтому для целых он усекается.
type segment[T typedesc.Number] struct {
	codec typedesc.Codec[T]
	size  int
	src   []byte
	dst   []byte
	y0    []T
	y1    []T
	slope []T
}

func newSegment[T typedesc.Number](e CopyEntry) (interpolator, error) {
	codec := typedesc.CodecOf[T]()
	size := codec.Tag.Size()
	if int(e.ByteSize)%size != 0 {
		return nil, fmt.Errorf("%w: signal %q: %d bytes is not a multiple of %s",
			ErrInitialization, e.Signal, e.ByteSize, codec.Tag)
	}
	n := int(e.ByteSize) / size
	return &segment[T]{
		codec: codec,
		size:  size,
		src:   e.Source,
		dst:   e.Dest,
		y0:    make([]T, n),
		y1:    make([]T, n),
		slope: make([]T, n),
	}, nil
}

func (s *segment[T]) prime() {
	for i := range s.y1 {
		s.y1[i] = s.codec.Load(s.src[i*s.size:])
	}
}

func (s *segment[T]) advance(dt float64) {
	for i := range s.y1 {
		s.y0[i] = s.y1[i]
		s.y1[i] = s.codec.Load(s.src[i*s.size:])
		// разность в арифметике типа: переход через границу беззнакового
		// счётчика даёт малое приращение
		diff := s.y1[i] - s.y0[i]
		s.slope[i] = s.codec.FromFloat(s.codec.Signed(diff) / dt)
	}
}

func (s *segment[T]) interpolate(elapsed float64) {
	for i := range s.y0 {
		v := float64(s.y0[i]) + s.codec.Signed(s.slope[i])*elapsed
		s.codec.Store(s.dst[i*s.size:], s.codec.FromFloat(v))
	}
}

func newInterpolator(e CopyEntry) (interpolator, error) {
	switch e.Type {
	case typedesc.Int8:
		return newSegment[int8](e)
	case typedesc.Uint8:
		return newSegment[uint8](e)
	case typedesc.Int16:
		return newSegment[int16](e)
	case typedesc.Uint16:
		return newSegment[uint16](e)
	case typedesc.Int32:
		return newSegment[int32](e)
	case typedesc.Uint32:
		return newSegment[uint32](e)
	case typedesc.Int64:
		return newSegment[int64](e)
	case typedesc.Uint64:
		return newSegment[uint64](e)
	case typedesc.Float32:
		return newSegment[float32](e)
	case typedesc.Float64:
		return newSegment[float64](e)
	}
	return nil, fmt.Errorf("%w: signal %q: unsupported type %s", ErrInitialization, e.Signal, e.Type)
}
