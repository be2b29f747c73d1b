// Package prompt asks the operator for values the register cannot infer.
// Every prompt resolves to either a confirmed value or a cancellation.
package prompt

import (
	"context"
	"strings"

	"github.com/lehigh-university-libraries/scanpos/internal/models"
)

// Response is the outcome of a prompt. Value is meaningful only when Confirmed.
type Response[T any] struct {
	Value     T
	Confirmed bool
}

func Confirm[T any](v T) Response[T] {
	return Response[T]{Value: v, Confirmed: true}
}

func Cancelled[T any]() Response[T] {
	return Response[T]{}
}

// PriceQuantity is the answer to the price/quantity prompt
type PriceQuantity struct {
	Price    int64 `json:"price"`
	Quantity int64 `json:"qty"`
}

// Normalize clamps price to >= 0 and quantity to >= 1
func (pq PriceQuantity) Normalize() PriceQuantity {
	pq.Price = max(0, pq.Price)
	pq.Quantity = max(1, pq.Quantity)
	return pq
}

type Discount struct {
	Kind  models.DiscountKind `json:"kind"`
	Value float64             `json:"value"`
}

func (d Discount) Normalize() Discount {
	d.Kind = models.ParseDiscountKind(string(d.Kind))
	d.Value = models.NonNegative(d.Value)
	if d.Kind == models.DiscountNone {
		d.Value = 0
	}
	return d
}

// NewProduct is the answer to the unknown-code prompt
type NewProduct struct {
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

func (p NewProduct) Normalize() NewProduct {
	p.Name = strings.TrimSpace(p.Name)
	p.Price = max(0, p.Price)
	return p
}

// Prompter is implemented by Terminal, Scripted and Declined.
// A cancelled context resolves as a cancellation with ctx.Err().
type Prompter interface {
	PromptPriceQuantity(ctx context.Context, initial PriceQuantity) (Response[PriceQuantity], error)
	PromptDiscount(ctx context.Context, current Discount) (Response[Discount], error)
	PromptNewProduct(ctx context.Context, code string) (Response[NewProduct], error)
}

// Declined cancels every prompt. It backs non-interactive surfaces such as
// the HTTP API, where missing values must be supplied in the request.
type Declined struct{}

func (Declined) PromptPriceQuantity(ctx context.Context, _ PriceQuantity) (Response[PriceQuantity], error) {
	return Cancelled[PriceQuantity](), ctx.Err()
}

func (Declined) PromptDiscount(ctx context.Context, _ Discount) (Response[Discount], error) {
	return Cancelled[Discount](), ctx.Err()
}

func (Declined) PromptNewProduct(ctx context.Context, _ string) (Response[NewProduct], error) {
	return Cancelled[NewProduct](), ctx.Err()
}
