package bybit_ws

import (
	"context"
	"trade_engine/internal/modules/bybit_ws/service"

	"go.uber.org/fx"
)

// Module поднимает стриминговый фид Bybit (tickers + position).
func Module() fx.Option {
	return fx.Module("bybit_ws",
		fx.Provide(
			service.NewClient,
		),
		fx.Invoke(func(lc fx.Lifecycle, c *service.Client, ctx context.Context) {
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					c.Start(ctx)
					return nil
				},
				OnStop: func(_ context.Context) error {
					c.Stop()
					return nil
				},
			})
		}),
	)
}
