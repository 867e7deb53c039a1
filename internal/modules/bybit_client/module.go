package bybit_client

import (
	"trade_engine/internal/modules/bybit_client/service"

	"go.uber.org/fx"
)

// Module отдаёт REST-клиент Bybit как единственный экземпляр.
func Module() fx.Option {
	return fx.Module("bybit_client",
		fx.Provide(
			service.NewClient,
		),
	)
}
