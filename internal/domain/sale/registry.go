package sale

import "sync"

// CartRegistry holds the open cart per terminal. A terminal works one
// sale at a time; the registry hands out the same cart until it is
// dropped after commit or cancellation.
type CartRegistry struct {
	mu    sync.Mutex
	carts map[string]*Cart
}

// NewCartRegistry creates an empty registry.
func NewCartRegistry() *CartRegistry {
	return &CartRegistry{carts: make(map[string]*Cart)}
}

// Get returns the terminal's open cart, creating one if needed.
func (r *CartRegistry) Get(terminalID string) *Cart {
	r.mu.Lock()
	defer r.mu.Unlock()
	cart, ok := r.carts[terminalID]
	if !ok {
		cart = NewCart()
		r.carts[terminalID] = cart
	}
	return cart
}

// Drop discards the terminal's open cart.
func (r *CartRegistry) Drop(terminalID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, terminalID)
}
