package helper

import "math"

// Относительный допуск: абсолютный (1e-12) теряется на больших
// количествах шагов (px/tick ~ 5e5 для BTC при тике 0.1).
const tickEps = 1e-9

// RoundDownToTick прижимает цену вниз к сетке тиков биржи.
func RoundDownToTick(px, tick float64) float64 {
	if tick <= 0 {
		return px
	}
	steps := px / tick
	return math.Floor(steps+math.Abs(steps)*tickEps+1e-12) * tick
}

// RoundUpToTick прижимает цену вверх к сетке тиков биржи.
func RoundUpToTick(px, tick float64) float64 {
	if tick <= 0 {
		return px
	}
	steps := px / tick
	return math.Ceil(steps-math.Abs(steps)*tickEps-1e-12) * tick
}
