package service

import (
	"context"

	"github.com/dtroode/flavourmarket/internal/cache"
	"github.com/dtroode/flavourmarket/internal/client"
)

// authorized wraps a backend call so it runs with the client's fresh access token,
// including when the cache refetches it in the background.
func authorized[T any](cc *client.Context, load func(ctx context.Context) (T, error)) func(ctx context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		ctx, err := cc.Authorize(ctx)
		if err != nil {
			var zero T
			return zero, err
		}
		return load(ctx)
	}
}

// query reads key through the client's query cache.
func query[T any](ctx context.Context, cc *client.Context, key cache.Key, load func(ctx context.Context) (T, error), opts ...cache.FetchOption) (T, error) {
	return cache.Fetch(ctx, cc.Queries, key, authorized(cc, load), opts...)
}

func untyped[T any](load func(ctx context.Context) (T, error)) cache.Loader {
	return func(ctx context.Context) (any, error) {
		return load(ctx)
	}
}
