package shoonya

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"ladder-trading-bot/internal/logger"
	"ladder-trading-bot/internal/types"
)

// quoteMaxAge bounds how stale a cached websocket tick may be before a
// caller falls back to REST.
const quoteMaxAge = 5 * time.Second

// Ticker maintains a touchline cache fed by the Noren websocket. Ticks are
// deltas: fields absent from a message keep their previous value.
type Ticker struct {
	wsURL     string
	userID    string
	accountID string

	mu     sync.RWMutex
	conn   *websocket.Conn
	quotes map[string]cachedQuote
	subs   map[string]struct{}
	done   chan struct{}
}

type cachedQuote struct {
	quote types.Quote
	at    time.Time
}

// tickMessage covers the touchline ack ("tk") and feed ("tf") frames.
type tickMessage struct {
	Type         string `json:"t"`
	Exchange     string `json:"e"`
	Token        string `json:"tk"`
	LP           string `json:"lp"`
	LowerCircuit string `json:"lc"`
	UpperCircuit string `json:"uc"`
	BestSellQty1 string `json:"sq1"`
}

func newTicker(wsURL, userID, accountID string) *Ticker {
	return &Ticker{
		wsURL:     wsURL,
		userID:    userID,
		accountID: accountID,
		quotes:    make(map[string]cachedQuote),
		subs:      make(map[string]struct{}),
	}
}

// Start dials the websocket, authenticates with the session token and
// begins consuming ticks in the background.
func (t *Ticker) Start(ctx context.Context, sessionToken string) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, t.wsURL, nil)
	if err != nil {
		return err
	}

	connect := map[string]string{
		"t":          "c",
		"uid":        t.userID,
		"actid":      t.accountID,
		"source":     "API",
		"susertoken": sessionToken,
	}
	if err := conn.WriteJSON(connect); err != nil {
		conn.Close()
		return err
	}

	t.mu.Lock()
	t.conn = conn
	t.done = make(chan struct{})
	t.mu.Unlock()

	go t.readLoop(ctx, conn)
	return nil
}

// Stop closes the connection and drops the cache.
func (t *Ticker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
	if t.done != nil {
		select {
		case <-t.done:
		default:
			close(t.done)
		}
	}
	t.quotes = make(map[string]cachedQuote)
}

// Subscribe requests touchline ticks for one instrument.
func (t *Ticker) Subscribe(exchange, token string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := exchange + "|" + token
	t.subs[key] = struct{}{}
	if t.conn == nil {
		return nil
	}
	return t.conn.WriteJSON(map[string]string{"t": "t", "k": key})
}

// Quote returns the cached touchline for an instrument if it is fresh
// enough to act on.
func (t *Ticker) Quote(exchange, token string) (types.Quote, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	cq, ok := t.quotes[exchange+"|"+token]
	if !ok || time.Since(cq.at) > quoteMaxAge {
		return types.Quote{}, false
	}
	return cq.quote, true
}

func (t *Ticker) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.mu.RLock()
			done := t.done
			t.mu.RUnlock()
			select {
			case <-done:
			default:
				logger.Warn(ctx, "Live feed read failed", "error", err)
			}
			return
		}

		var msg tickMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "ck":
			// Connect ack: replay pending subscriptions.
			t.mu.Lock()
			for key := range t.subs {
				_ = conn.WriteJSON(map[string]string{"t": "t", "k": key})
			}
			t.mu.Unlock()
		case "tk", "tf":
			t.apply(msg)
		}
	}
}

func (t *Ticker) apply(msg tickMessage) {
	if msg.Token == "" {
		return
	}
	key := msg.Exchange + "|" + msg.Token

	t.mu.Lock()
	defer t.mu.Unlock()
	cq := t.quotes[key]
	if msg.LP != "" {
		if v, err := decimal.NewFromString(msg.LP); err == nil {
			cq.quote.LTP = v
		}
	}
	if msg.LowerCircuit != "" {
		if v, err := decimal.NewFromString(msg.LowerCircuit); err == nil {
			cq.quote.LowerCircuit = v
		}
	}
	if msg.UpperCircuit != "" {
		if v, err := decimal.NewFromString(msg.UpperCircuit); err == nil {
			cq.quote.UpperCircuit = v
		}
	}
	if msg.BestSellQty1 != "" {
		if v, err := strconv.ParseInt(msg.BestSellQty1, 10, 64); err == nil {
			cq.quote.BestBidSellQty = v
		}
	}
	cq.at = time.Now()
	t.quotes[key] = cq
}
