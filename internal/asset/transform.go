package asset

import (
	"context"
	"fmt"

	"assetgraph/internal/apperrors"
)

// Variadic is the arity of a transform that accepts any number of upstream assets.
const Variadic = -1

// Transform computes a downstream payload from its upstream assets. The assets are
// passed positionally, in the order the downstream asset declares them.
type Transform[T any] interface {
	// Arity is the number of upstream assets the transform expects, or Variadic.
	Arity() int
	Apply(ctx context.Context, upstream []Asset) (T, error)
}

// TransformFunc adapts a plain function into a variadic Transform.
type TransformFunc[T any] func(ctx context.Context, upstream []Asset) (T, error)

func (f TransformFunc[T]) Arity() int { return Variadic }

func (f TransformFunc[T]) Apply(ctx context.Context, upstream []Asset) (T, error) {
	return f(ctx, upstream)
}

type fixedTransform[T any] struct {
	arity int
	apply func(ctx context.Context, upstream []Asset) (T, error)
}

func (t fixedTransform[T]) Arity() int { return t.arity }

func (t fixedTransform[T]) Apply(ctx context.Context, upstream []Asset) (T, error) {
	if len(upstream) != t.arity {
		var zero T
		return zero, apperrors.Configuration("transform.apply",
			fmt.Sprintf("transform expects %d upstream assets, got %d", t.arity, len(upstream)))
	}
	return t.apply(ctx, upstream)
}

// Transform1 adapts a function over one upstream payload.
func Transform1[A, T any](fn func(ctx context.Context, a A) (T, error)) Transform[T] {
	return fixedTransform[T]{arity: 1, apply: func(ctx context.Context, up []Asset) (T, error) {
		a, err := PayloadOf[A](up[0])
		if err != nil {
			var zero T
			return zero, err
		}
		return fn(ctx, a)
	}}
}

// Transform2 adapts a function over two upstream payloads.
func Transform2[A, B, T any](fn func(ctx context.Context, a A, b B) (T, error)) Transform[T] {
	return fixedTransform[T]{arity: 2, apply: func(ctx context.Context, up []Asset) (T, error) {
		var zero T
		a, err := PayloadOf[A](up[0])
		if err != nil {
			return zero, err
		}
		b, err := PayloadOf[B](up[1])
		if err != nil {
			return zero, err
		}
		return fn(ctx, a, b)
	}}
}

// Transform3 adapts a function over three upstream payloads.
func Transform3[A, B, C, T any](fn func(ctx context.Context, a A, b B, c C) (T, error)) Transform[T] {
	return fixedTransform[T]{arity: 3, apply: func(ctx context.Context, up []Asset) (T, error) {
		var zero T
		a, err := PayloadOf[A](up[0])
		if err != nil {
			return zero, err
		}
		b, err := PayloadOf[B](up[1])
		if err != nil {
			return zero, err
		}
		c, err := PayloadOf[C](up[2])
		if err != nil {
			return zero, err
		}
		return fn(ctx, a, b, c)
	}}
}

// PayloadOf returns the asset's payload as P. A type mismatch means the transform
// was declared against the wrong upstream and is a configuration error.
func PayloadOf[P any](a Asset) (P, error) {
	p, ok := a.Payload().(P)
	if !ok {
		var zero P
		return zero, apperrors.Configuration("transform.payload",
			fmt.Sprintf("asset %s holds %T, transform expects %T", a.ID(), a.Payload(), zero))
	}
	return p, nil
}
