package oracle

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
)

// wellKnownSymbols maps common Sui coin types to display symbols, used
// when a seed entry does not carry one.
var wellKnownSymbols = map[string]string{
	"0x2::sui::SUI": "SUI",
	"0x5d4b302506645c37ff133b98c4b50a5ae14841659738d6d733d59d0d217a93bf::coin::COIN": "USDC",
	"0xc060006111016b8a020ad5b33834984a437aaa7d3c74c18e09a95d48aceab08c::coin::COIN": "USDT",
	"0xce7ff77a83ea0cb6fd39bd8748e2ec89a3f41e8efdc3f4eb123e0ca37b184db2::buck::BUCK": "BUCK",
	"0xaf8cd5edc19c4512f4259f0bee101a40d41ebed738ade5874359610ef8eeced5::coin::COIN": "WETH",
}

type seedEntry struct {
	Symbol   string          `json:"symbol"`
	Decimals int32           `json:"decimals"`
	Price    decimal.Decimal `json:"price"`
}

// LoadStatic builds a Static source from a JSON seed file mapping token
// addresses to symbol, decimals, and price. Used by replay runs where no
// live price feed is wired in.
func LoadStatic(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read price seed: %w", err)
	}
	var entries map[string]seedEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse price seed: %w", err)
	}

	s := NewStatic()
	for token, entry := range entries {
		symbol := entry.Symbol
		if symbol == "" {
			symbol = wellKnownSymbols[token]
		}
		s.SetTokenInfo(token, TokenInfo{Symbol: symbol, Decimals: entry.Decimals})
		if !entry.Price.IsZero() {
			s.SetPrice(token, entry.Price)
		}
	}
	return s, nil
}
