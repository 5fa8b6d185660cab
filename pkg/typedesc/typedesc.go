// Package typedesc описывает базовые числовые типы сигналов: десять вариантов
// (знаковые/беззнаковые целые 8–64 бит и два типа с плавающей точкой),
// их ширину и доступ к элементам в сырой памяти источника данных.
package typedesc

import (
	"fmt"
	"strings"
)

// TypeTag — закрытое перечисление поддерживаемых типов сигнала
type TypeTag uint8

const (
	Invalid TypeTag = iota
	Int8
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Int64
	Uint64
	Float32
	Float64
)

// All — все поддерживаемые типы в порядке объявления
var All = []TypeTag{Int8, Uint8, Int16, Uint16, Int32, Uint32, Int64, Uint64, Float32, Float64}

var names = map[TypeTag]string{
	Int8:    "int8",
	Uint8:   "uint8",
	Int16:   "int16",
	Uint16:  "uint16",
	Int32:   "int32",
	Uint32:  "uint32",
	Int64:   "int64",
	Uint64:  "uint64",
	Float32: "float32",
	Float64: "float64",
}

// Bits возвращает ширину типа в битах (0 для Invalid)
func (t TypeTag) Bits() int {
	switch t {
	case Int8, Uint8:
		return 8
	case Int16, Uint16:
		return 16
	case Int32, Uint32, Float32:
		return 32
	case Int64, Uint64, Float64:
		return 64
	default:
		return 0
	}
}

// Size возвращает ширину типа в байтах
func (t TypeTag) Size() int {
	return t.Bits() / 8
}

// Valid возвращает true для одного из десяти поддерживаемых типов
func (t TypeTag) Valid() bool {
	return t.Bits() != 0
}

// IsFloat возвращает true для float32/float64
func (t TypeTag) IsFloat() bool {
	return t == Float32 || t == Float64
}

// IsSigned возвращает true для знаковых целых и чисел с плавающей точкой
func (t TypeTag) IsSigned() bool {
	switch t {
	case Int8, Int16, Int32, Int64, Float32, Float64:
		return true
	default:
		return false
	}
}

func (t TypeTag) String() string {
	if n, ok := names[t]; ok {
		return n
	}
	return fmt.Sprintf("invalid(%d)", uint8(t))
}

// Parse разбирает имя типа из конфига ("uint8", "float32", ...).
// Регистр не важен; "float" и "double" принимаются как синонимы.
func Parse(name string) (TypeTag, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	switch n {
	case "float":
		return Float32, nil
	case "double":
		return Float64, nil
	}
	for t, s := range names {
		if s == n {
			return t, nil
		}
	}
	return Invalid, fmt.Errorf("unknown signal type %q", name)
}

// MarshalText / UnmarshalText позволяют использовать TypeTag прямо в YAML
func (t TypeTag) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid signal type %d", uint8(t))
	}
	return []byte(t.String()), nil
}

func (t *TypeTag) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
