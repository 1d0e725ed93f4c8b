package market

import (
	"encoding/json"
	"fmt"
	"strconv"

	"bn-scalp-bot/internal/strategy"
)

type depthEvent struct {
	Bids [][]string `json:"b"`
	Asks [][]string `json:"a"`
}

type aggTradeEvent struct {
	Price    string `json:"p"`
	Quantity string `json:"q"`
	TradeTS  int64  `json:"T"`
}

type klineEvent struct {
	Kline struct {
		High   string `json:"h"`
		Low    string `json:"l"`
		Close  string `json:"c"`
		Closed bool   `json:"x"`
	} `json:"k"`
}

func parseDepthEvent(data []byte) (strategy.Depth, error) {
	var event depthEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return strategy.Depth{}, err
	}
	depth := strategy.Depth{
		Bids: make([]strategy.Level, 0, len(event.Bids)),
		Asks: make([]strategy.Level, 0, len(event.Asks)),
	}
	for _, raw := range event.Bids {
		level, err := parseLevel(raw)
		if err != nil {
			return strategy.Depth{}, err
		}
		depth.Bids = append(depth.Bids, level)
	}
	for _, raw := range event.Asks {
		level, err := parseLevel(raw)
		if err != nil {
			return strategy.Depth{}, err
		}
		depth.Asks = append(depth.Asks, level)
	}
	return depth, nil
}

func parseLevel(raw []string) (strategy.Level, error) {
	if len(raw) < 2 {
		return strategy.Level{}, fmt.Errorf("level needs price and quantity, got %v", raw)
	}
	price, err := strconv.ParseFloat(raw[0], 64)
	if err != nil {
		return strategy.Level{}, fmt.Errorf("bad level price %q: %w", raw[0], err)
	}
	quantity, err := strconv.ParseFloat(raw[1], 64)
	if err != nil {
		return strategy.Level{}, fmt.Errorf("bad level quantity %q: %w", raw[1], err)
	}
	return strategy.Level{Price: price, Quantity: quantity}, nil
}

func parseAggTrade(data []byte) (price, volume float64, err error) {
	var event aggTradeEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return 0, 0, err
	}
	price, err = strconv.ParseFloat(event.Price, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad trade price %q: %w", event.Price, err)
	}
	volume, err = strconv.ParseFloat(event.Quantity, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad trade quantity %q: %w", event.Quantity, err)
	}
	return price, volume, nil
}

func parseKline(data []byte) (high, low, close float64, closed bool, err error) {
	var event klineEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return 0, 0, 0, false, err
	}
	high, err = strconv.ParseFloat(event.Kline.High, 64)
	if err != nil {
		return 0, 0, 0, false, fmt.Errorf("bad kline high %q: %w", event.Kline.High, err)
	}
	low, err = strconv.ParseFloat(event.Kline.Low, 64)
	if err != nil {
		return 0, 0, 0, false, fmt.Errorf("bad kline low %q: %w", event.Kline.Low, err)
	}
	close, err = strconv.ParseFloat(event.Kline.Close, 64)
	if err != nil {
		return 0, 0, 0, false, fmt.Errorf("bad kline close %q: %w", event.Kline.Close, err)
	}
	return high, low, close, event.Kline.Closed, nil
}
