package oracle

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNoPrice means the source has no quote for the token at that time.
var ErrNoPrice = errors.New("no price available")

// TokenInfo is the metadata a source knows about a token.
type TokenInfo struct {
	Symbol   string
	Decimals int32
}

// Source supplies token prices and metadata. Implementations live outside
// the engine; a missing price is ErrNoPrice, not a zero quote.
type Source interface {
	Price(ctx context.Context, token string, at time.Time) (decimal.Decimal, error)
	TokenInfo(ctx context.Context, token string) (TokenInfo, error)
}

// Static is an in-memory source seeded up front. Used in tests and for
// replay runs where a price feed is not wired in.
type Static struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
	info   map[string]TokenInfo
}

func NewStatic() *Static {
	return &Static{
		prices: make(map[string]decimal.Decimal),
		info:   make(map[string]TokenInfo),
	}
}

func (s *Static) SetPrice(token string, price decimal.Decimal) {
	s.mu.Lock()
	s.prices[token] = price
	s.mu.Unlock()
}

func (s *Static) SetTokenInfo(token string, info TokenInfo) {
	s.mu.Lock()
	s.info[token] = info
	s.mu.Unlock()
}

func (s *Static) Price(ctx context.Context, token string, at time.Time) (decimal.Decimal, error) {
	s.mu.RLock()
	price, ok := s.prices[token]
	s.mu.RUnlock()
	if !ok {
		return decimal.Zero, ErrNoPrice
	}
	return price, nil
}

func (s *Static) TokenInfo(ctx context.Context, token string) (TokenInfo, error) {
	s.mu.RLock()
	info, ok := s.info[token]
	s.mu.RUnlock()
	if !ok {
		return TokenInfo{}, ErrNoPrice
	}
	return info, nil
}
