package config

import "go.uber.org/fx"

// Module отдаёт конфиг движка (yaml + env-оверрайды секретов).
func Module() fx.Option {
	return fx.Module("config",
		fx.Provide(
			NewConfig,
		),
	)
}
