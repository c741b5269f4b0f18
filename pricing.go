package chaingate

import "sync"

// PriceBook maps endpoint identifiers to per-call USD prices. Endpoints
// without an explicit price use the default. Safe for concurrent use.
type PriceBook struct {
	mu           sync.RWMutex
	prices       map[string]float64
	defaultPrice float64
}

// NewPriceBook creates a price book with the given default per-call price.
func NewPriceBook(defaultPrice float64) *PriceBook {
	return &PriceBook{
		prices:       make(map[string]float64),
		defaultPrice: defaultPrice,
	}
}

// SetPrice sets the per-call price for an endpoint.
func (p *PriceBook) SetPrice(endpoint string, usd float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[endpoint] = usd
}

// Price returns the per-call price for an endpoint.
func (p *PriceBook) Price(endpoint string) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if usd, ok := p.prices[endpoint]; ok {
		return usd
	}
	return p.defaultPrice
}
