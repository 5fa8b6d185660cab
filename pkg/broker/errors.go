package broker

import (
	"errors"
	"fmt"
)

var (
	// ErrInitialization — не удалось построить таблицу копирования или
	// состояние интерполяции (несовпадение сигналов, нет памяти и т.п.)
	ErrInitialization = errors.New("broker initialization failure")
	// ErrUnsupportedTimeSignalType — тип сигнала времени не из поддерживаемых
	ErrUnsupportedTimeSignalType = errors.New("unsupported time signal type")
	// ErrStalledTimeSource — время источника не продвинулось за допустимое
	// число ресинхронизаций
	ErrStalledTimeSource = errors.New("time source stalled")
	// ErrSynchronise — источник данных вернул ошибку Synchronise
	ErrSynchronise = errors.New("data source synchronise failure")
	// ErrNotInitialised — Execute или SetTimeSignalByName до Init
	ErrNotInitialised = errors.New("broker not initialised")
	// ErrTimeSignalNotSet — Execute до SetTimeSignal
	ErrTimeSignalNotSet = errors.New("time signal not set")
)

// ExecuteError — ошибка цикла Execute с подробностями о состоянии времени.
// errors.Is срабатывает и на Kind, и на исходную ошибку Err.
type ExecuteError struct {
	Kind        error
	Resyncs     int
	VirtualTime float64
	SegmentEnd  float64
	Err         error
}

func (e *ExecuteError) Error() string {
	s := fmt.Sprintf("%v (virtual time %g, segment end %g, %d resyncs)", e.Kind, e.VirtualTime, e.SegmentEnd, e.Resyncs)
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *ExecuteError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
