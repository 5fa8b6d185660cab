// sigbroker — брокер сигналов между источником данных и вычислительной функцией
// с линейной интерполяцией во времени, когда период цикла функции отличается
// от периода дискретизации источника.
//
//   - Источники: ramp (синтетический), serial (кадры отсчётов), i2c (регистры устройства)
//   - Брокер: таблица копирования + интерполяция по виртуальному времени
//   - Цикл: Execute на каждый тик, ошибки цикла не останавливают работу
//   - emit — генератор кадров ramp в последовательный порт (пара для serial)
//
// Использование:
//
//	sigbroker run -config sigbroker.yml  — цикл с метриками
//	sigbroker simulate                   — ramp в процессе, строка на цикл
//	sigbroker emit -port /dev/ttyUSB0    — передача ramp-кадров
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shiwa/sigbroker/internal/logger"
	"github.com/shiwa/sigbroker/pkg/config"
	"github.com/shiwa/sigbroker/pkg/cycle"
)

var (
	configPath string
	quiet      bool

	rootCmd = &cobra.Command{
		Use:           "sigbroker",
		Short:         "Interpolating signal broker between a data source and a function",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the broker cycle (source -> broker -> function) with metrics",
		Args:  cobra.NoArgs,
		RunE:  runDaemon,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "путь к YAML конфигу (по умолчанию sigbroker.yml)")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "меньше вывода")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(emitCmd)
	simulateCmd.Flags().IntVar(&simulateCount, "count", 10, "число циклов")
	emitCmd.Flags().StringVar(&emitPort, "port", "", "последовательный порт (переопределяет options.device)")
	emitCmd.Flags().IntVar(&emitBaud, "baud", 0, "скорость порта (переопределяет options.baud)")
	emitCmd.Flags().IntVar(&emitCount, "count", 0, "число кадров (0 — до остановки)")
	emitCmd.Flags().StringVar(&emitInterval, "interval", "", "период кадров (по умолчанию cycle.interval)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

// loadConfig читает конфиг; без явного --config и без sigbroker.yml — Default()
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = "sigbroker.yml"
		if _, err := os.Stat(path); os.IsNotExist(err) {
			c := config.Default()
			config.ApplyDefaults(c)
			return c, nil
		}
	}
	return config.Load(path)
}

// withShutdown возвращает контекст, отменяемый по SIGINT/SIGTERM
func withShutdown() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("получен сигнал %v, завершение...", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func runDaemon(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger.Quiet = quiet || cfg.Log.Quiet
	ctx, cancel := withShutdown()
	defer cancel()

	err = cycle.RunDaemon(ctx, cfg, cycle.Options{Quiet: quiet})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
