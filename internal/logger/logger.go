// Package logger — единый вывод логов sigbroker с префиксом и учётом quiet.
// Текстовые сообщения CLI идут через Info/Warn/Error/Debug, компоненты
// (брокер, источники) получают структурный логгер через Wrapper.
package logger

import (
	"log"

	"github.com/sgostarter/i/l"
)

const prefix = "sigbroker: "

// Quiet при true отключает информационные сообщения (Info, Debug); Warn и Error выводятся всегда.
var Quiet bool

// Debug при true включает отладочные сообщения (ресинхронизации, отчёты цикла).
var Debug bool

// Info выводит сообщение с префиксом "sigbroker: ", если Quiet == false.
func Info(format string, args ...interface{}) {
	if Quiet {
		return
	}
	log.Printf(prefix+format, args...)
}

// Debugf выводит сообщение только при Debug и без Quiet.
func Debugf(format string, args ...interface{}) {
	if Quiet || !Debug {
		return
	}
	log.Printf(prefix+"debug: "+format, args...)
}

// Warn выводит предупреждение всегда.
func Warn(format string, args ...interface{}) {
	log.Printf(prefix+"warn: "+format, args...)
}

// Error выводит сообщение об ошибке с префиксом "sigbroker: " всегда.
func Error(format string, args ...interface{}) {
	log.Printf(prefix+format, args...)
}

// Wrapper возвращает структурный логгер для компонентов: консольный или,
// при Quiet, пустой.
func Wrapper() l.Wrapper {
	if Quiet {
		return l.NewNopLoggerWrapper()
	}
	return l.NewConsoleLoggerWrapper()
}
