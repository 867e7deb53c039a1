package lifecycle

import (
	"context"

	bybit "trade_engine/internal/modules/bybit_client/service"
	"trade_engine/internal/modules/lifecycle/service"

	"go.uber.org/fx"
)

// Module собирает оркестратор ордеров поверх REST-клиента.
func Module() fx.Option {
	return fx.Module("lifecycle",
		fx.Provide(
			func(c *bybit.Client) service.AccountClient { return c },
			service.NewManager,
			service.NewWatcher,
		),
		fx.Invoke(func(lc fx.Lifecycle, w *service.Watcher) {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					go func() {
						defer close(done)
						w.Run(ctx)
					}()
					return nil
				},
				OnStop: func(_ context.Context) error {
					cancel()
					<-done
					return nil
				},
			})
		}),
	)
}
