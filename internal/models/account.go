package models

// Credentials — ключ/секрет одного пользователя Bybit.
// Пара меняется целиком (copy-on-rotate), по одному полю не трогаем.
type Credentials struct {
	APIKey    string
	APISecret string
}

func (c Credentials) Valid() bool { return c.APIKey != "" && c.APISecret != "" }

// AccountSummary — снапшот UNIFIED-аккаунта. Не кешируем:
// перед каждым сайзингом перечитываем заново.
type AccountSummary struct {
	TotalEquity        float64
	TotalMarginBalance float64
	TotalAvailBalance  float64
	TotalPerpUPL       float64
}
