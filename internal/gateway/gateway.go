// Package gateway abstracts order entry and order state queries against the
// exchange. The live implementation talks to Binance USDT-M futures; the
// simulator backs dry runs with deterministic immediate fills.
package gateway

import "context"

type OrderStatus string

const (
	StatusNew             OrderStatus = "NEW"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusFilled          OrderStatus = "FILLED"
	StatusCanceled        OrderStatus = "CANCELED"
	StatusRejected        OrderStatus = "REJECTED"
	StatusExpired         OrderStatus = "EXPIRED"
)

// Terminal reports whether the order can no longer fill.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusFilled, StatusCanceled, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// Fill is one execution of an order.
type Fill struct {
	Price    float64
	Quantity float64
}

// Order is the gateway's view of an exchange order. AvgPrice is zero when the
// venue has not reported an average yet; FillPrice resolves the best available
// execution price.
type Order struct {
	OrderID     int64
	Symbol      string
	Side        string
	Status      OrderStatus
	Price       float64
	OrigQty     float64
	ExecutedQty float64
	AvgPrice    float64
	Fills       []Fill
}

// FillPrice returns the execution price to book: the first fill when fills
// are reported, otherwise the average price, otherwise the order price.
func (o Order) FillPrice() float64 {
	if len(o.Fills) > 0 && o.Fills[0].Price > 0 {
		return o.Fills[0].Price
	}
	if o.AvgPrice > 0 {
		return o.AvgPrice
	}
	return o.Price
}

// FilledQuantity returns the executed quantity, falling back to the original
// quantity when the venue omits it on a filled order.
func (o Order) FilledQuantity() float64 {
	if o.ExecutedQty > 0 {
		return o.ExecutedQty
	}
	return o.OrigQty
}

type Ticker struct {
	Symbol string
	Price  float64
}

type Gateway interface {
	PlaceLimitOrder(ctx context.Context, symbol, side string, price, quantity float64) (Order, error)
	PlaceMarketOrder(ctx context.Context, symbol, side string, quantity float64) (Order, error)
	CancelOrder(ctx context.Context, symbol string, orderID int64) error
	GetOrder(ctx context.Context, symbol string, orderID int64) (Order, error)
	GetTicker(ctx context.Context, symbol string) (Ticker, error)
}
