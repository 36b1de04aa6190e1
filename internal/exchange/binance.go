package exchange

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"golang.org/x/time/rate"

	"binance-trade-engine/internal/domain"
	"binance-trade-engine/internal/observability"
)

// callTimeout bounds every REST call to the exchange.
const callTimeout = 5 * time.Second

// BinanceClient implements Client against Binance USDT-margined futures.
type BinanceClient struct {
	client  *futures.Client
	limiter *rate.Limiter
}

// BinanceOptions configures a BinanceClient.
type BinanceOptions struct {
	APIKey    string
	SecretKey string
	Testnet   bool

	// Limiter is shared across all traders so the process stays inside
	// the exchange request weight budget. Nil disables local limiting.
	Limiter *rate.Limiter
}

// NewBinanceClient creates a futures REST client.
func NewBinanceClient(opts BinanceOptions) *BinanceClient {
	futures.UseTestnet = opts.Testnet
	return &BinanceClient{
		client:  binance.NewFuturesClient(opts.APIKey, opts.SecretKey),
		limiter: opts.Limiter,
	}
}

// Compile-time interface check.
var _ Client = (*BinanceClient)(nil)

// GetBars fetches closed one-minute bars for [start, end] inclusive.
func (c *BinanceClient) GetBars(ctx context.Context, symbol string, start, end int64) (bars []*domain.Bar, err error) {
	defer observe("get_bars", time.Now(), &err)
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	klines, err := c.client.NewKlinesService().
		Symbol(symbol).
		Interval("1m").
		StartTime(start).
		EndTime(end).
		Limit(1500).
		Do(ctx)
	if err != nil {
		return nil, classify("get bars", err)
	}

	now := time.Now().UnixMilli()
	for _, k := range klines {
		// The last kline may still be forming; only closed bars count.
		if k.CloseTime >= now {
			continue
		}
		bars = append(bars, &domain.Bar{
			Symbol:   symbol,
			OpenTime: k.OpenTime,
			Open:     parseFloat(k.Open),
			High:     parseFloat(k.High),
			Low:      parseFloat(k.Low),
			Close:    parseFloat(k.Close),
			Volume:   parseFloat(k.Volume),
		})
	}
	return bars, nil
}

// GetPosition returns the exchange's view of the position for symbol.
// A flat account yields Size 0 and side FLAT.
func (c *BinanceClient) GetPosition(ctx context.Context, symbol string) (pos *AccountPosition, err error) {
	defer observe("get_position", time.Now(), &err)
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	risks, err := c.client.NewGetPositionRiskService().Symbol(symbol).Do(ctx)
	if err != nil {
		return nil, classify("get position", err)
	}

	pos = &AccountPosition{Symbol: symbol, Side: domain.PositionFlat}
	for _, p := range risks {
		if p.Symbol != symbol {
			continue
		}
		amt := parseFloat(p.PositionAmt)
		if amt == 0 {
			continue
		}
		pos.Side = domain.PositionLong
		if amt < 0 {
			pos.Side = domain.PositionShort
			amt = -amt
		}
		pos.Size = amt
		pos.EntryPrice = parseFloat(p.EntryPrice)
		pos.UnrealizedPnL = parseFloat(p.UnRealizedProfit)
		break
	}
	return pos, nil
}

// GetBalance returns the available USDT balance.
func (c *BinanceClient) GetBalance(ctx context.Context) (balance float64, err error) {
	defer observe("get_balance", time.Now(), &err)
	if err := c.wait(ctx); err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	balances, err := c.client.NewGetBalanceService().Do(ctx)
	if err != nil {
		return 0, classify("get balance", err)
	}

	for _, b := range balances {
		if b.Asset == "USDT" {
			return parseFloat(b.AvailableBalance), nil
		}
	}
	return 0, nil
}

// PlaceOrder submits a market order carrying the caller's idempotency token
// as the client order ID.
func (c *BinanceClient) PlaceOrder(ctx context.Context, req *OrderRequest) (result *OrderResult, err error) {
	defer observe("place_order", time.Now(), &err)
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	side := futures.SideTypeBuy
	if req.Side == domain.OrderSell {
		side = futures.SideTypeSell
	}

	svc := c.client.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(side).
		Type(futures.OrderTypeMarket).
		Quantity(strconv.FormatFloat(req.Quantity, 'f', -1, 64)).
		NewClientOrderID(req.ClientOrderID).
		NewOrderResponseType(futures.NewOrderRespTypeRESULT)

	if req.ReduceOnly {
		svc.ReduceOnly(true)
	}

	resp, err := svc.Do(ctx)
	if err != nil {
		return nil, classify("place order", err)
	}

	result = &OrderResult{
		ExchangeOrderID: strconv.FormatInt(resp.OrderID, 10),
		ExecutedQty:     parseFloat(resp.ExecutedQuantity),
		AvgPrice:        parseFloat(resp.AvgPrice),
		ExecutedAt:      resp.UpdateTime,
	}
	switch resp.Status {
	case futures.OrderStatusTypeFilled:
		result.Status = OrderStatusFilled
	default:
		result.Status = OrderStatusRejected
	}
	return result, nil
}

// observe reports call latency and errors.
func observe(method string, start time.Time, err *error) {
	observability.RecordExchangeCall(method, time.Since(start).Seconds(), *err)
}

// wait blocks on the shared rate limiter.
func (c *BinanceClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return &TransportError{Op: "rate limit wait", Err: err}
	}
	return nil
}

// classify maps a go-binance error to the package error taxonomy. An API
// error means the exchange received and refused the request; anything else
// is transport-level and the operation's fate is unknown.
func classify(op string, err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return &RejectionError{Code: int(apiErr.Code), Reason: apiErr.Message}
	}
	return &TransportError{Op: op, Err: err}
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
