package polymarket

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alejandrodnm/polycycle/internal/domain"
)

const (
	samplingPageSize = 100
	maxSamplingPages = 5
)

// Feed implementa ports.SignalFeed contra la API CLOB de Polymarket.
// Refresh descarga los sampling markets y sus order books y los aplana
// en un payload de señales por condition_id. Cached devuelve el último
// snapshot obtenido sin tocar la red.
type Feed struct {
	client     *Client
	maxMarkets int
	clock      func() time.Time

	mu       sync.RWMutex
	snapshot domain.SignalSnapshot
	hasSnap  bool
	tokens   map[string]string // condition_id → token YES
}

// NewFeed crea un Feed sobre el client compartido. maxMarkets limita
// cuántos mercados se muestrean por refresh (0 → 50).
func NewFeed(client *Client, maxMarkets int) *Feed {
	if maxMarkets <= 0 {
		maxMarkets = 50
	}
	return &Feed{
		client:     client,
		maxMarkets: maxMarkets,
		clock:      time.Now,
	}
}

// Cached devuelve el último snapshot descargado, si existe.
func (f *Feed) Cached() (domain.SignalSnapshot, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.snapshot, f.hasSnap
}

// Refresh descarga un snapshot nuevo desde la API y lo cachea.
func (f *Feed) Refresh(ctx context.Context) (domain.SignalSnapshot, error) {
	markets, err := f.fetchSamplingMarkets(ctx)
	if err != nil {
		return domain.SignalSnapshot{}, fmt.Errorf("polymarket.Refresh: fetch markets: %w", err)
	}

	payload := make(map[string]float64, len(markets)*6)
	tokens := make(map[string]string, len(markets))
	for _, m := range markets {
		yes := yesToken(m)
		if yes == nil {
			continue
		}
		book, err := f.fetchBook(ctx, yes.TokenID)
		if err != nil {
			slog.Warn("skipping market without book", "condition_id", m.ConditionID, "error", err)
			continue
		}
		flattenMarket(payload, m, book)
		tokens[m.ConditionID] = yes.TokenID
	}

	snap := domain.SignalSnapshot{
		FetchedAt: f.clock(),
		Payload:   payload,
	}
	if snap.Empty() {
		return domain.SignalSnapshot{}, fmt.Errorf("polymarket.Refresh: empty payload from %d markets", len(markets))
	}

	f.mu.Lock()
	f.snapshot = snap
	f.hasSnap = true
	f.tokens = tokens
	f.mu.Unlock()

	slog.Info("signal snapshot refreshed", "markets", len(markets), "signals", len(payload))
	return snap, nil
}

// YesTokenID resuelve el condition_id de un mercado al token YES del CLOB,
// usando el mapeo del último refresh.
func (f *Feed) YesTokenID(conditionID string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	id, ok := f.tokens[conditionID]
	return id, ok
}

// fetchSamplingMarkets pagina GET /sampling-markets hasta maxMarkets.
func (f *Feed) fetchSamplingMarkets(ctx context.Context) ([]samplingMarket, error) {
	var markets []samplingMarket
	cursor := ""
	for page := 0; page < maxSamplingPages; page++ {
		url := fmt.Sprintf("%s/sampling-markets?limit=%d", f.client.clobBase, samplingPageSize)
		if cursor != "" {
			url += "&next_cursor=" + cursor
		}
		var resp samplingMarketsResponse
		if err := f.client.get(ctx, f.client.clobLimiter, url, &resp); err != nil {
			return nil, err
		}
		for _, m := range resp.Data {
			if !m.Active || m.Closed {
				continue
			}
			markets = append(markets, m)
			if len(markets) >= f.maxMarkets {
				return markets, nil
			}
		}
		// "LTE=" es el cursor terminal de la API de Polymarket.
		if resp.NextCursor == "" || resp.NextCursor == "LTE=" {
			break
		}
		cursor = resp.NextCursor
	}
	return markets, nil
}

// fetchBook descarga el order book de un token vía POST /books.
func (f *Feed) fetchBook(ctx context.Context, tokenID string) (orderBookResponse, error) {
	url := f.client.clobBase + "/books"
	body := []orderBookRequest{{TokenID: tokenID}}
	var books []orderBookResponse
	if err := f.client.post(ctx, f.client.booksLimiter, maxRetries, url, body, &books); err != nil {
		return orderBookResponse{}, err
	}
	if len(books) == 0 {
		return orderBookResponse{}, fmt.Errorf("empty books response for token %s", tokenID)
	}
	return books[0], nil
}

// flattenMarket escribe las señales de un mercado en el payload plano.
// Claves: <condition_id>/best_bid_yes, best_ask_yes, mid_yes, spread,
// reward_daily_rate, min_reward_size.
func flattenMarket(payload map[string]float64, m samplingMarket, book orderBookResponse) {
	bid, hasBid := bestPrice(book.Bids, true)
	ask, hasAsk := bestPrice(book.Asks, false)
	if !hasBid || !hasAsk {
		return
	}
	prefix := m.ConditionID + "/"
	payload[prefix+"best_bid_yes"] = bid
	payload[prefix+"best_ask_yes"] = ask
	payload[prefix+"mid_yes"] = (bid + ask) / 2
	payload[prefix+"spread"] = ask - bid
	payload[prefix+"min_reward_size"] = m.Rewards.MinSize
	if rate := dailyRewardRate(m.Rewards); rate > 0 {
		payload[prefix+"reward_daily_rate"] = rate
	}
}

// bestPrice devuelve el mejor precio de un lado del book.
// Los bids vienen ordenados ascendente y los asks descendente en la API,
// así que el mejor nivel es el último con size > 0.
func bestPrice(entries []bookEntryRaw, isBid bool) (float64, bool) {
	best := 0.0
	found := false
	for _, e := range entries {
		size, err := strconv.ParseFloat(e.Size, 64)
		if err != nil || size <= 0 {
			continue
		}
		price, err := strconv.ParseFloat(e.Price, 64)
		if err != nil {
			continue
		}
		if !found || (isBid && price > best) || (!isBid && price < best) {
			best = price
			found = true
		}
	}
	return best, found
}

// yesToken devuelve el token YES del mercado, o nil si no existe.
func yesToken(m samplingMarket) *clobToken {
	for i := range m.Tokens {
		if strings.EqualFold(m.Tokens[i].Outcome, "Yes") {
			return &m.Tokens[i]
		}
	}
	return nil
}

// dailyRewardRate suma las tasas diarias de todos los assets del mercado.
func dailyRewardRate(r clobRewards) float64 {
	total := 0.0
	for _, rr := range r.Rates {
		total += rr.RewardsDailyRate
	}
	return total
}
