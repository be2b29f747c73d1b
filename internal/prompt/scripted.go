package prompt

import (
	"context"
	"sync"
)

// Scripted answers prompts from queued responses. When a queue is empty the
// prompt is cancelled, or, with WaitWhenEmpty, blocks until ctx is done.
type Scripted struct {
	WaitWhenEmpty bool

	mu        sync.Mutex
	prices    []Response[PriceQuantity]
	discounts []Response[Discount]
	products  []Response[NewProduct]

	PriceCalls    []PriceQuantity
	DiscountCalls []Discount
	ProductCalls  []string
}

func NewScripted() *Scripted {
	return &Scripted{}
}

func (s *Scripted) QueuePriceQuantity(r Response[PriceQuantity]) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices = append(s.prices, r)
	return s
}

func (s *Scripted) QueueDiscount(r Response[Discount]) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discounts = append(s.discounts, r)
	return s
}

func (s *Scripted) QueueNewProduct(r Response[NewProduct]) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = append(s.products, r)
	return s
}

// Calls returns how many prompts of each kind have been shown
func (s *Scripted) Calls() (prices, discounts, products int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.PriceCalls), len(s.DiscountCalls), len(s.ProductCalls)
}

func (s *Scripted) PromptPriceQuantity(ctx context.Context, initial PriceQuantity) (Response[PriceQuantity], error) {
	s.mu.Lock()
	s.PriceCalls = append(s.PriceCalls, initial)
	s.mu.Unlock()
	r, err := next(ctx, s, &s.prices)
	r.Value = r.Value.Normalize()
	return r, err
}

func (s *Scripted) PromptDiscount(ctx context.Context, current Discount) (Response[Discount], error) {
	s.mu.Lock()
	s.DiscountCalls = append(s.DiscountCalls, current)
	s.mu.Unlock()
	r, err := next(ctx, s, &s.discounts)
	r.Value = r.Value.Normalize()
	return r, err
}

func (s *Scripted) PromptNewProduct(ctx context.Context, code string) (Response[NewProduct], error) {
	s.mu.Lock()
	s.ProductCalls = append(s.ProductCalls, code)
	s.mu.Unlock()
	r, err := next(ctx, s, &s.products)
	r.Value = r.Value.Normalize()
	return r, err
}

func next[T any](ctx context.Context, s *Scripted, queue *[]Response[T]) (Response[T], error) {
	if err := ctx.Err(); err != nil {
		return Cancelled[T](), err
	}

	s.mu.Lock()
	if len(*queue) > 0 {
		r := (*queue)[0]
		*queue = (*queue)[1:]
		s.mu.Unlock()
		return r, nil
	}
	wait := s.WaitWhenEmpty
	s.mu.Unlock()

	if wait {
		<-ctx.Done()
		return Cancelled[T](), ctx.Err()
	}
	return Cancelled[T](), nil
}
