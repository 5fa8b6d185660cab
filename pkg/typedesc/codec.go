package typedesc

import (
	"encoding/binary"
	"math"
)

// Number — множество Go-типов, соответствующих TypeTag
type Number interface {
	int8 | uint8 | int16 | uint16 | int32 | uint32 | int64 | uint64 | float32 | float64
}

// Codec — доступ к элементу типа T в сырой памяти (порядок байт платформы)
// и обратное приведение из float64 с усечением/переполнением как при
// обычном преобразовании в целый тип.
type Codec[T Number] struct {
	Tag       TypeTag
	Load      func(b []byte) T
	Store     func(b []byte, v T)
	FromFloat func(v float64) T
	// Signed переводит значение в float64, трактуя беззнаковые целые как
	// дополнительный код той же ширины. Нужен для приращений: uint8(250)
	// означает -6, а не 250.
	Signed func(v T) float64
}

// Of возвращает TypeTag для Go-типа T
func Of[T Number]() TypeTag {
	var zero T
	switch any(zero).(type) {
	case int8:
		return Int8
	case uint8:
		return Uint8
	case int16:
		return Int16
	case uint16:
		return Uint16
	case int32:
		return Int32
	case uint32:
		return Uint32
	case int64:
		return Int64
	case uint64:
		return Uint64
	case float32:
		return Float32
	case float64:
		return Float64
	}
	return Invalid
}

// CodecOf строит кодек один раз; выбор по типу не повторяется на каждом элементе.
func CodecOf[T Number]() Codec[T] {
	c := Codec[T]{Tag: Of[T](), FromFloat: truncate[T], Signed: func(v T) float64 { return float64(v) }}
	switch c.Tag {
	case Int8:
		c.Load = func(b []byte) T { return T(int8(b[0])) }
		c.Store = func(b []byte, v T) { b[0] = byte(int8(v)) }
	case Uint8:
		c.Load = func(b []byte) T { return T(b[0]) }
		c.Store = func(b []byte, v T) { b[0] = uint8(v) }
		c.Signed = func(v T) float64 { return float64(int8(uint8(v))) }
	case Int16:
		c.Load = func(b []byte) T { return T(int16(binary.NativeEndian.Uint16(b))) }
		c.Store = func(b []byte, v T) { binary.NativeEndian.PutUint16(b, uint16(int16(v))) }
	case Uint16:
		c.Load = func(b []byte) T { return T(binary.NativeEndian.Uint16(b)) }
		c.Store = func(b []byte, v T) { binary.NativeEndian.PutUint16(b, uint16(v)) }
		c.Signed = func(v T) float64 { return float64(int16(uint16(v))) }
	case Int32:
		c.Load = func(b []byte) T { return T(int32(binary.NativeEndian.Uint32(b))) }
		c.Store = func(b []byte, v T) { binary.NativeEndian.PutUint32(b, uint32(int32(v))) }
	case Uint32:
		c.Load = func(b []byte) T { return T(binary.NativeEndian.Uint32(b)) }
		c.Store = func(b []byte, v T) { binary.NativeEndian.PutUint32(b, uint32(v)) }
		c.Signed = func(v T) float64 { return float64(int32(uint32(v))) }
	case Int64:
		c.Load = func(b []byte) T { return T(int64(binary.NativeEndian.Uint64(b))) }
		c.Store = func(b []byte, v T) { binary.NativeEndian.PutUint64(b, uint64(int64(v))) }
	case Uint64:
		c.Load = func(b []byte) T { return T(binary.NativeEndian.Uint64(b)) }
		c.Store = func(b []byte, v T) { binary.NativeEndian.PutUint64(b, uint64(v)) }
		c.Signed = func(v T) float64 { return float64(int64(uint64(v))) }
	case Float32:
		c.Load = func(b []byte) T { return T(math.Float32frombits(binary.NativeEndian.Uint32(b))) }
		c.Store = func(b []byte, v T) { binary.NativeEndian.PutUint32(b, math.Float32bits(float32(v))) }
		c.FromFloat = func(v float64) T { return T(v) }
	case Float64:
		c.Load = func(b []byte) T { return T(math.Float64frombits(binary.NativeEndian.Uint64(b))) }
		c.Store = func(b []byte, v T) { binary.NativeEndian.PutUint64(b, math.Float64bits(float64(v))) }
		c.FromFloat = func(v float64) T { return T(v) }
	}
	return c
}

// truncate приводит float64 к целому T: дробная часть отбрасывается (к нулю),
// значения вне диапазона заворачиваются по модулю ширины типа (для |v| >= 2^64
// сначала по модулю 2^64, конверсия float->int там не определена). NaN и ±Inf -> 0.
func truncate[T Number](v float64) T {
	const two64 = 1 << 64
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	if math.Abs(v) >= two64 {
		v = math.Mod(v, two64)
	}
	v = math.Trunc(v)
	if v < -two64/2 {
		v += two64
	}
	if v < 0 {
		return T(int64(v))
	}
	return T(uint64(v))
}

// Float64Loader возвращает функцию чтения одного значения типа t как float64.
// Используется для сигнала времени; ok=false для неподдерживаемого типа.
func Float64Loader(t TypeTag) (load func(b []byte) float64, ok bool) {
	switch t {
	case Int8:
		return loader[int8](), true
	case Uint8:
		return loader[uint8](), true
	case Int16:
		return loader[int16](), true
	case Uint16:
		return loader[uint16](), true
	case Int32:
		return loader[int32](), true
	case Uint32:
		return loader[uint32](), true
	case Int64:
		return loader[int64](), true
	case Uint64:
		return loader[uint64](), true
	case Float32:
		return loader[float32](), true
	case Float64:
		return loader[float64](), true
	}
	return nil, false
}

func loader[T Number]() func(b []byte) float64 {
	c := CodecOf[T]()
	return func(b []byte) float64 { return float64(c.Load(b)) }
}

// Float64Storer — обратная операция: запись float64 в память элемента типа t
// с тем же усечением, что и при интерполяции.
func Float64Storer(t TypeTag) (store func(b []byte, v float64), ok bool) {
	switch t {
	case Int8:
		return storer[int8](), true
	case Uint8:
		return storer[uint8](), true
	case Int16:
		return storer[int16](), true
	case Uint16:
		return storer[uint16](), true
	case Int32:
		return storer[int32](), true
	case Uint32:
		return storer[uint32](), true
	case Int64:
		return storer[int64](), true
	case Uint64:
		return storer[uint64](), true
	case Float32:
		return storer[float32](), true
	case Float64:
		return storer[float64](), true
	}
	return nil, false
}

func storer[T Number]() func(b []byte, v float64) {
	c := CodecOf[T]()
	return func(b []byte, v float64) { c.Store(b, c.FromFloat(v)) }
}
