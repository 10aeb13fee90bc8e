package polymarket

// DTOs raw de la API de Polymarket. Solo se usan dentro de este paquete;
// la conversión a señales planas se hace en feed.go.

// --- CLOB API ---

// samplingMarketsResponse es la respuesta paginada de GET /sampling-markets.
type samplingMarketsResponse struct {
	Limit      int              `json:"limit"`
	Count      int              `json:"count"`
	NextCursor string           `json:"next_cursor"`
	Data       []samplingMarket `json:"data"`
}

// samplingMarket es un mercado con rewards activos del CLOB.
type samplingMarket struct {
	ConditionID string      `json:"condition_id"`
	QuestionID  string      `json:"question_id"`
	Tokens      []clobToken `json:"tokens"`
	Rewards     clobRewards `json:"rewards"`
	Active      bool        `json:"active"`
	Closed      bool        `json:"closed"`
}

// clobToken representa un token (YES/NO) en el CLOB.
type clobToken struct {
	TokenID string  `json:"token_id"`
	Outcome string  `json:"outcome"`
	Price   float64 `json:"price"`
	Winner  bool    `json:"winner"`
}

// clobRewards contiene la configuración de rewards del mercado.
type clobRewards struct {
	Rates     []rewardRate `json:"rates"`
	MinSize   float64      `json:"min_size"`
	MaxSpread float64      `json:"max_spread"`
}

// rewardRate es la tasa de reward por asset.
type rewardRate struct {
	AssetAddress     string  `json:"asset_address"`
	RewardsDailyRate float64 `json:"rewards_daily_rate"`
}

// orderBookRequest es el body del POST /books batch.
type orderBookRequest struct {
	TokenID string `json:"token_id"`
}

// orderBookResponse es la respuesta de un item en POST /books.
type orderBookResponse struct {
	AssetID string         `json:"asset_id"`
	Bids    []bookEntryRaw `json:"bids"`
	Asks    []bookEntryRaw `json:"asks"`
}

// bookEntryRaw es un nivel de precio raw de la API (strings para mayor precisión).
type bookEntryRaw struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// --- Order submission ---

// clobOrderRequest is the JSON body sent to POST /order.
type clobOrderRequest struct {
	ClientOrderID string  `json:"client_order_id"`
	TokenID       string  `json:"token_id"`
	Side          string  `json:"side"` // "BUY" o "SELL"
	SizeUSDC      float64 `json:"size"`
	OrderType     string  `json:"orderType"` // siempre FOK para el orquestador
}

// clobOrderResponse es la respuesta de POST /order.
type clobOrderResponse struct {
	ErrorMsg string `json:"errorMsg"`
	OrderID  string `json:"orderID"`
	Status   string `json:"status"` // "matched", "live", "unmatched"
	Price    string `json:"price"`
	Success  bool   `json:"success"`
}
