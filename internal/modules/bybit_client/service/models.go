package service

// Ответы Bybit V5. Общий конверт: retCode=0 — успех.
type baseResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Time    int64  `json:"time"`
}

type tickersResponse struct {
	baseResponse
	Result struct {
		Category string `json:"category"`
		List     []struct {
			Symbol       string `json:"symbol"`
			LastPrice    string `json:"lastPrice"`
			Price24hPcnt string `json:"price24hPcnt"`
		} `json:"list"`
	} `json:"result"`
}

type walletBalanceResponse struct {
	baseResponse
	Result struct {
		List []struct {
			AccountType        string `json:"accountType"`
			TotalEquity        string `json:"totalEquity"`
			TotalMarginBalance string `json:"totalMarginBalance"`
			TotalAvailBalance  string `json:"totalAvailableBalance"`
			TotalPerpUPL       string `json:"totalPerpUPL"`
		} `json:"list"`
	} `json:"result"`
}

type positionListResponse struct {
	baseResponse
	Result struct {
		Category string `json:"category"`
		List     []struct {
			Symbol        string `json:"symbol"`
			Side          string `json:"side"`
			Size          string `json:"size"`
			AvgPrice      string `json:"avgPrice"`
			UnrealisedPnl string `json:"unrealisedPnl"`
			Leverage      string `json:"leverage"`
			UpdatedTime   string `json:"updatedTime"`
		} `json:"list"`
	} `json:"result"`
}

type instrumentsInfoResponse struct {
	baseResponse
	Result struct {
		Category string `json:"category"`
		List     []struct {
			Symbol         string `json:"symbol"`
			Status         string `json:"status"`
			LeverageFilter struct {
				MinLeverage string `json:"minLeverage"`
				MaxLeverage string `json:"maxLeverage"`
			} `json:"leverageFilter"`
			PriceFilter struct {
				TickSize string `json:"tickSize"`
			} `json:"priceFilter"`
			LotSizeFilter struct {
				QtyStep     string `json:"qtyStep"`
				MinOrderQty string `json:"minOrderQty"`
			} `json:"lotSizeFilter"`
		} `json:"list"`
	} `json:"result"`
}

type orderCreateResponse struct {
	baseResponse
	Result struct {
		OrderID     string `json:"orderId"`
		OrderLinkID string `json:"orderLinkId"`
	} `json:"result"`
}

type closedPnlResponse struct {
	baseResponse
	Result struct {
		Category string `json:"category"`
		List     []struct {
			Symbol      string `json:"symbol"`
			Side        string `json:"side"`
			Qty         string `json:"qty"`
			AvgEntryPx  string `json:"avgEntryPrice"`
			AvgExitPx   string `json:"avgExitPrice"`
			ClosedPnl   string `json:"closedPnl"`
			UpdatedTime string `json:"updatedTime"`
		} `json:"list"`
	} `json:"result"`
}
