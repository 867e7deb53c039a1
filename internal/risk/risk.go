package risk

import (
	"fmt"
	"math"

	"trade_engine/internal/models"
)

// Дефолты протективных уровней: +0.5% тейк, -2% стоп от входа.
const (
	DefaultTPPct = 0.005
	DefaultSLPct = 0.02
)

// PositionSize считает количество в базовой монете:
//
//	qty = available * leverage * riskPct / price
//
// и срезает ВНИЗ до шага инструмента qtyStep (lotSz). Вверх не округляем —
// лучше недобрать размер, чем превысить маржу.
func PositionSize(available, leverage, riskPct, price, qtyStep float64) (float64, error) {
	if available <= 0 {
		return 0, &models.RiskParameterError{Reason: "available <= 0"}
	}
	if leverage <= 0 {
		return 0, &models.RiskParameterError{Reason: "leverage <= 0"}
	}
	if riskPct <= 0 {
		return 0, &models.RiskParameterError{Reason: "riskPct <= 0"}
	}
	if price <= 0 {
		return 0, &models.RiskParameterError{Reason: "price <= 0"}
	}

	qty := available * leverage * riskPct / price
	if math.IsNaN(qty) || math.IsInf(qty, 0) {
		return 0, &models.RiskParameterError{Reason: fmt.Sprintf("qty invalid: %v", qty)}
	}

	if qtyStep > 0 {
		steps := math.Floor(qty/qtyStep + 1e-9)
		qty = steps * qtyStep
	}
	if qty < 0 {
		return 0, &models.RiskParameterError{Reason: "qty < 0 after rounding"}
	}
	return qty, nil
}

// TakeProfitStopLoss — протективные уровни от цены входа.
// Лонг: tp выше входа, sl ниже; шорт — зеркально.
func TakeProfitStopLoss(entry float64, side string, tpPct, slPct float64) (tp, sl float64, err error) {
	if entry <= 0 {
		return 0, 0, &models.RiskParameterError{Reason: "entry <= 0"}
	}
	if tpPct <= 0 || slPct <= 0 {
		return 0, 0, &models.RiskParameterError{Reason: "tpPct/slPct <= 0"}
	}

	switch side {
	case models.SideBuy:
		tp = entry * (1 + tpPct)
		sl = entry * (1 - slPct)
	case models.SideSell:
		tp = entry * (1 - tpPct)
		sl = entry * (1 + slPct)
	default:
		return 0, 0, &models.RiskParameterError{Reason: fmt.Sprintf("unknown side %q", side)}
	}

	if tp <= 0 || sl <= 0 {
		return 0, 0, &models.RiskParameterError{Reason: "tp/sl <= 0"}
	}
	// Уровни не должны пересекаться: оба строго по свою сторону от входа.
	if side == models.SideBuy && !(tp > entry && entry > sl) {
		return 0, 0, &models.RiskParameterError{Reason: "crossed tp/sl for long"}
	}
	if side == models.SideSell && !(sl > entry && entry > tp) {
		return 0, 0, &models.RiskParameterError{Reason: "crossed tp/sl for short"}
	}
	return tp, sl, nil
}
