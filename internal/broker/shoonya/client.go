// Package shoonya is a gateway to the Shoonya (Noren) retail API. Every
// call is a form POST of jData=<json>&jKey=<session token>; numeric fields
// come back as strings and are parsed into decimals at the boundary.
package shoonya

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ladder-trading-bot/internal/interfaces"
	"ladder-trading-bot/internal/types"
)

const (
	defaultBaseURL = "https://api.shoonya.com/NorenWClientTP/"
	defaultWSURL   = "wss://api.shoonya.com/NorenWSTP/"

	statOK = "Ok"
)

type Params struct {
	UserID     string
	Password   string
	APIKey     string
	TOTPSecret string
	VendorCode string
	IMEI       string
	AccountID  string
	BaseURL    string
	WSURL      string
	LiveFeed   bool
}

type Client struct {
	p      Params
	http   *http.Client
	token  string
	ticker *Ticker
}

var _ interfaces.Broker = (*Client)(nil)

func New(p Params) *Client {
	if p.BaseURL == "" {
		p.BaseURL = defaultBaseURL
	}
	if p.WSURL == "" {
		p.WSURL = defaultWSURL
	}
	if p.AccountID == "" {
		p.AccountID = p.UserID
	}
	if p.IMEI == "" {
		p.IMEI = "abc1234"
	}
	c := &Client{
		p:    p,
		http: &http.Client{Timeout: 10 * time.Second},
	}
	if p.LiveFeed {
		c.ticker = newTicker(p.WSURL, p.UserID, p.AccountID)
	}
	return c
}

// post sends one jData form request. withKey attaches the session token;
// login is the only call made without it.
func (c *Client) post(ctx context.Context, endpoint string, payload any, withKey bool, out any) error {
	jData, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	form := "jData=" + string(jData)
	if withKey {
		if c.token == "" {
			return fmt.Errorf("%s: not logged in", endpoint)
		}
		form += "&jKey=" + c.token
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.p.BaseURL+endpoint, strings.NewReader(form))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read body: %w", endpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: http %d: %s", endpoint, resp.StatusCode, bytes.TrimSpace(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode %q: %w", endpoint, bytes.TrimSpace(body), err)
	}
	return nil
}

// postList is post for endpoints that answer with a JSON array on success
// but a {"stat":"Not_Ok"} object on failure. An empty-book "no data" error
// maps to an empty list.
func (c *Client) postList(ctx context.Context, endpoint string, payload any, out any) error {
	jData, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	form := "jData=" + string(jData) + "&jKey=" + c.token
	if c.token == "" {
		return fmt.Errorf("%s: not logged in", endpoint)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.p.BaseURL+endpoint, strings.NewReader(form))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read body: %w", endpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: http %d: %s", endpoint, resp.StatusCode, bytes.TrimSpace(body))
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var e struct {
			Stat string `json:"stat"`
			EMsg string `json:"emsg"`
		}
		if err := json.Unmarshal(trimmed, &e); err != nil {
			return fmt.Errorf("%s: decode %q: %w", endpoint, trimmed, err)
		}
		if strings.Contains(strings.ToLower(e.EMsg), "no data") {
			return nil
		}
		return fmt.Errorf("%s: %s", endpoint, e.EMsg)
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("%s: decode: %w", endpoint, err)
	}
	return nil
}

type quoteResponse struct {
	Stat         string `json:"stat"`
	EMsg         string `json:"emsg"`
	LP           string `json:"lp"`
	LowerCircuit string `json:"lc"`
	UpperCircuit string `json:"uc"`
	BestSellQty1 string `json:"sq1"`
}

// Quote returns the touchline for one instrument. When the live feed is
// running a fresh websocket tick is preferred over a REST round trip.
func (c *Client) Quote(ctx context.Context, inst types.Instrument) (types.Quote, error) {
	if c.ticker != nil {
		if q, ok := c.ticker.Quote(inst.Exchange, inst.Token); ok {
			return q, nil
		}
		// First miss doubles as the subscription; later ticks land in
		// the cache.
		_ = c.ticker.Subscribe(inst.Exchange, inst.Token)
	}

	var resp quoteResponse
	err := c.post(ctx, "GetQuotes", map[string]string{
		"uid":   c.p.UserID,
		"exch":  inst.Exchange,
		"token": inst.Token,
	}, true, &resp)
	if err != nil {
		return types.Quote{}, err
	}
	if resp.Stat != statOK {
		return types.Quote{}, fmt.Errorf("GetQuotes: %s", resp.EMsg)
	}

	q := types.Quote{}
	if q.LTP, err = parseDec(resp.LP); err != nil {
		return types.Quote{}, fmt.Errorf("GetQuotes: lp: %w", err)
	}
	// Circuit bands are absent for some instrument classes.
	q.LowerCircuit, _ = parseDec(resp.LowerCircuit)
	q.UpperCircuit, _ = parseDec(resp.UpperCircuit)
	if resp.BestSellQty1 != "" {
		q.BestBidSellQty, _ = strconv.ParseInt(resp.BestSellQty1, 10, 64)
	}
	return q, nil
}

type positionEntry struct {
	TSym         string `json:"tsym"`
	NetQty       string `json:"netqty"`
	DayBuyAvgPrc string `json:"daybuyavgprc"`
	LP           string `json:"lp"`
}

func (c *Client) Positions(ctx context.Context) ([]types.Position, error) {
	var entries []positionEntry
	err := c.postList(ctx, "PositionBook", map[string]string{
		"uid":   c.p.UserID,
		"actid": c.p.AccountID,
	}, &entries)
	if err != nil {
		return nil, err
	}

	out := make([]types.Position, 0, len(entries))
	for _, e := range entries {
		qty, err := strconv.Atoi(e.NetQty)
		if err != nil {
			return nil, fmt.Errorf("PositionBook: netqty %q: %w", e.NetQty, err)
		}
		p := types.Position{TradingSymbol: e.TSym, NetQty: qty}
		p.DayBuyAvgPrice, _ = parseDec(e.DayBuyAvgPrc)
		p.LastPrice, _ = parseDec(e.LP)
		out = append(out, p)
	}
	return out, nil
}

type orderEntry struct {
	OrderNo  string `json:"norenordno"`
	TSym     string `json:"tsym"`
	TranType string `json:"trantype"`
	Status   string `json:"status"`
	AvgPrc   string `json:"avgprc"`
	Qty      string `json:"qty"`
}

// OrderBook returns the day's orders, newest first, as the gateway sends
// them.
func (c *Client) OrderBook(ctx context.Context) ([]types.Order, error) {
	var entries []orderEntry
	err := c.postList(ctx, "OrderBook", map[string]string{"uid": c.p.UserID}, &entries)
	if err != nil {
		return nil, err
	}

	out := make([]types.Order, 0, len(entries))
	for _, e := range entries {
		o := types.Order{
			OrderID:       e.OrderNo,
			TradingSymbol: e.TSym,
			Side:          types.Side(e.TranType),
			Status:        mapOrderState(e.Status),
		}
		o.AvgPrice, _ = parseDec(e.AvgPrc)
		o.Qty, _ = strconv.Atoi(e.Qty)
		out = append(out, o)
	}
	return out, nil
}

type placeResponse struct {
	Stat    string `json:"stat"`
	EMsg    string `json:"emsg"`
	OrderNo string `json:"norenordno"`
}

func (c *Client) PlaceOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error) {
	jData := map[string]string{
		"ord_source": "API",
		"uid":        c.p.UserID,
		"actid":      c.p.AccountID,
		"exch":       req.Exchange,
		"tsym":       req.TradingSymbol,
		"qty":        strconv.Itoa(req.Qty),
		"dscqty":     "0",
		"prd":        "I",
		"trantype":   string(req.Side),
		"prctyp":     string(req.PriceType),
		"prc":        req.Price.String(),
		"ret":        "DAY",
		"remarks":    req.Remarks,
	}
	if req.PriceType == types.Market {
		jData["prc"] = "0"
	}

	var resp placeResponse
	if err := c.post(ctx, "PlaceOrder", jData, true, &resp); err != nil {
		return types.OrderResp{}, err
	}
	if resp.Stat != statOK {
		return types.OrderResp{}, fmt.Errorf("PlaceOrder: %s", resp.EMsg)
	}
	return types.OrderResp{OrderID: resp.OrderNo}, nil
}

type orderHistEntry struct {
	Status    string `json:"status"`
	AvgPrc    string `json:"avgprc"`
	RejReason string `json:"rejreason"`
}

// OrderStatus reports the latest state of one order. SingleOrdHist answers
// with the full history, latest entry first.
func (c *Client) OrderStatus(ctx context.Context, orderID string) (types.OrderStatus, error) {
	var hist []orderHistEntry
	err := c.postList(ctx, "SingleOrdHist", map[string]string{
		"uid":        c.p.UserID,
		"norenordno": orderID,
	}, &hist)
	if err != nil {
		return types.OrderStatus{}, err
	}
	if len(hist) == 0 {
		return types.OrderStatus{}, fmt.Errorf("SingleOrdHist: no history for order %s", orderID)
	}

	latest := hist[0]
	st := types.OrderStatus{
		State:  mapOrderState(latest.Status),
		Reason: latest.RejReason,
	}
	st.AvgPrice, _ = parseDec(latest.AvgPrc)
	return st, nil
}

type limitsResponse struct {
	Stat string `json:"stat"`
	EMsg string `json:"emsg"`
	Cash string `json:"cash"`
}

func (c *Client) CashLimits(ctx context.Context) (types.Limits, error) {
	var resp limitsResponse
	err := c.post(ctx, "Limits", map[string]string{
		"uid":   c.p.UserID,
		"actid": c.p.AccountID,
	}, true, &resp)
	if err != nil {
		return types.Limits{}, err
	}
	if resp.Stat != statOK {
		return types.Limits{}, fmt.Errorf("Limits: %s", resp.EMsg)
	}

	cash, err := parseDec(resp.Cash)
	if err != nil {
		return types.Limits{}, fmt.Errorf("Limits: cash %q: %w", resp.Cash, err)
	}
	return types.Limits{Cash: cash}, nil
}

type searchResponse struct {
	Stat   string `json:"stat"`
	EMsg   string `json:"emsg"`
	Values []struct {
		Exch  string `json:"exch"`
		Token string `json:"token"`
		TSym  string `json:"tsym"`
	} `json:"values"`
}

// SearchInstrument resolves a trading symbol to its exchange token. The
// first exact symbol match wins, else the first result.
func (c *Client) SearchInstrument(ctx context.Context, exchange, symbol string) (types.Instrument, error) {
	var resp searchResponse
	err := c.post(ctx, "SearchScrip", map[string]string{
		"uid":   c.p.UserID,
		"exch":  exchange,
		"stext": url.QueryEscape(symbol),
	}, true, &resp)
	if err != nil {
		return types.Instrument{}, err
	}
	if resp.Stat != statOK || len(resp.Values) == 0 {
		return types.Instrument{}, fmt.Errorf("SearchScrip: no match for %s on %s: %s", symbol, exchange, resp.EMsg)
	}

	for _, v := range resp.Values {
		if v.TSym == symbol {
			return types.Instrument{Exchange: v.Exch, TradingSymbol: v.TSym, Token: v.Token}, nil
		}
	}
	v := resp.Values[0]
	return types.Instrument{Exchange: v.Exch, TradingSymbol: v.TSym, Token: v.Token}, nil
}

func mapOrderState(s string) types.OrderState {
	switch strings.ToUpper(s) {
	case "COMPLETE":
		return types.OrderComplete
	case "REJECTED", "CANCELED", "CANCELLED":
		return types.OrderRejected
	default:
		return types.OrderOpen
	}
}

func parseDec(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
