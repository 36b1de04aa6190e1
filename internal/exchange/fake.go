package exchange

import (
	"context"
	"strconv"
	"sync"

	"binance-trade-engine/internal/domain"
)

// Fake is an in-memory scripted Client for tests. It honors the idempotency
// contract: placing an order with an already-seen ClientOrderID returns the
// original result instead of executing again.
type Fake struct {
	mu sync.Mutex

	bars      map[string][]*domain.Bar
	positions map[string]*AccountPosition
	balance   float64

	// FillPrice is the price at which market orders fill.
	FillPrice float64

	ordersByToken map[string]*OrderResult
	placeFailures []placeFailure
	positionErrs  []error

	placeCalls    int
	getBarsCalls  int
	positionCalls int

	nextOrderID int64
}

type placeFailure struct {
	err      error
	executed bool
}

// NewFake creates an empty fake exchange.
func NewFake() *Fake {
	return &Fake{
		bars:          make(map[string][]*domain.Bar),
		positions:     make(map[string]*AccountPosition),
		ordersByToken: make(map[string]*OrderResult),
	}
}

// Compile-time interface check.
var _ Client = (*Fake)(nil)

// SetBars replaces the bar history for a symbol.
func (f *Fake) SetBars(symbol string, bars []*domain.Bar) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bars[symbol] = append([]*domain.Bar(nil), bars...)
}

// SetPosition sets the exchange-side position for a symbol.
func (f *Fake) SetPosition(symbol string, pos *AccountPosition) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.positions[symbol] = pos
}

// SetBalance sets the available balance.
func (f *Fake) SetBalance(balance float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balance = balance
}

// QueuePlaceFailure makes the next PlaceOrder call return err. When executed
// is true the order still takes effect on the exchange side before the error
// surfaces, modelling a response lost in transit.
func (f *Fake) QueuePlaceFailure(err error, executed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placeFailures = append(f.placeFailures, placeFailure{err: err, executed: executed})
}

// QueuePositionError makes the next GetPosition call return err.
func (f *Fake) QueuePositionError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.positionErrs = append(f.positionErrs, err)
}

// PlaceCalls reports how many times PlaceOrder was invoked.
func (f *Fake) PlaceCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.placeCalls
}

// PositionCalls reports how many times GetPosition was invoked.
func (f *Fake) PositionCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.positionCalls
}

// GetBarsCalls reports how many times GetBars was invoked.
func (f *Fake) GetBarsCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getBarsCalls
}

// GetBars returns scripted bars within [start, end] inclusive.
func (f *Fake) GetBars(_ context.Context, symbol string, start, end int64) ([]*domain.Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.getBarsCalls++

	var out []*domain.Bar
	for _, b := range f.bars[symbol] {
		if b.OpenTime >= start && b.OpenTime <= end {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

// GetPosition returns the scripted position, or a flat one if unset.
func (f *Fake) GetPosition(_ context.Context, symbol string) (*AccountPosition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.positionCalls++

	if len(f.positionErrs) > 0 {
		err := f.positionErrs[0]
		f.positionErrs = f.positionErrs[1:]
		return nil, err
	}

	if pos, ok := f.positions[symbol]; ok && pos != nil {
		cp := *pos
		return &cp, nil
	}
	return &AccountPosition{Symbol: symbol, Side: domain.PositionFlat}, nil
}

// GetBalance returns the scripted balance.
func (f *Fake) GetBalance(_ context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balance, nil
}

// PlaceOrder fills market orders at FillPrice. Duplicate tokens return the
// original result without executing again.
func (f *Fake) PlaceOrder(_ context.Context, req *OrderRequest) (*OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.placeCalls++

	if existing, ok := f.ordersByToken[req.ClientOrderID]; ok {
		cp := *existing
		return &cp, nil
	}

	if len(f.placeFailures) > 0 {
		failure := f.placeFailures[0]
		f.placeFailures = f.placeFailures[1:]
		if failure.executed {
			f.execute(req)
		}
		return nil, failure.err
	}

	result := f.execute(req)
	cp := *result
	return &cp, nil
}

// execute records a fill and adjusts the exchange-side position.
func (f *Fake) execute(req *OrderRequest) *OrderResult {
	f.nextOrderID++
	result := &OrderResult{
		ExchangeOrderID: "fake-" + strconv.FormatInt(f.nextOrderID, 10),
		Status:          OrderStatusFilled,
		ExecutedQty:     req.Quantity,
		AvgPrice:        f.FillPrice,
		ExecutedAt:      f.nextOrderID,
	}
	f.ordersByToken[req.ClientOrderID] = result

	if req.ReduceOnly {
		delete(f.positions, req.Symbol)
	} else {
		side := domain.PositionLong
		if req.Side == domain.OrderSell {
			side = domain.PositionShort
		}
		f.positions[req.Symbol] = &AccountPosition{
			Symbol:     req.Symbol,
			Side:       side,
			Size:       req.Quantity,
			EntryPrice: f.FillPrice,
		}
	}
	return result
}
