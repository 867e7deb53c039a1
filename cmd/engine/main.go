package main

import (
	"context"
	"log"

	"go.uber.org/fx"

	"trade_engine/internal/bus"
	"trade_engine/internal/modules/bybit_client"
	"trade_engine/internal/modules/bybit_ws"
	"trade_engine/internal/modules/config"
	"trade_engine/internal/modules/credstore"
	"trade_engine/internal/modules/health"
	"trade_engine/internal/modules/lifecycle"
	"trade_engine/internal/modules/postgres"
	"trade_engine/internal/notify"
	"trade_engine/pkg/logger"
	"trade_engine/pkg/tracing"
)

func main() {
	if err := logger.Init(); err != nil {
		log.Fatal(err)
	}
	logger.SetServiceName("trade_engine")
	tracing.SetServiceName("trade_engine")

	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
			func(cfg *config.Config) *bus.Bus {
				return bus.New(cfg.SubscriberQueueMax)
			},
			// Notifier: если TELEGRAM_* нет — используем stdout
			func(cfg *config.Config) notify.Notifier {
				if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
					if tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID); err == nil {
						return tg
					}
				}
				return notify.NewStdout()
			},
		),
		config.Module(),
		postgres.Module(),
		bybit_client.Module(),
		bybit_ws.Module(),
		lifecycle.Module(),
		credstore.Module(),
		health.Module(),
		fx.Invoke(runTracing),
		fx.Invoke(runNotify),
	)
	if err := app.Start(context.Background()); err != nil {
		log.Fatal(err)
	}
	<-app.Done()
	if err := app.Stop(context.Background()); err != nil {
		log.Fatal(err)
	}
}

func runTracing(lc fx.Lifecycle, cfg *config.Config) {
	var closeTracer func()
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			_, closer, err := tracing.InitTracer(tracing.Config{
				Host: cfg.Jaeger.Host,
				Port: cfg.Jaeger.Port,
			})
			if err != nil {
				// трейсинг не критичен для торговли
				logger.Error("jaeger init failed, spans go to noop tracer: %v", err)
				return nil
			}
			closeTracer = closer
			return nil
		},
		OnStop: func(context.Context) error {
			if closeTracer != nil {
				closeTracer()
			}
			return nil
		},
	})
}

func runNotify(lc fx.Lifecycle, b *bus.Bus, n notify.Notifier) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				notify.Run(ctx, b, n)
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			<-done
			return nil
		},
	})
}
