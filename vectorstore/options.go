package vectorstore

import "context"

type Option func(*Options)

// Options configures a backend constructor. Not every field applies to
// every backend (e.g. ApiKey is qdrant-only, Path is sqlite-only).
type Options struct {
	Location string // qdrant/postgres DSN or base URL
	Path     string // sqlite file path
	ApiKey   string
	PoolSize int
	Context  context.Context
}

func WithLocation(loc string) Option {
	return func(o *Options) { o.Location = loc }
}

func WithPath(path string) Option {
	return func(o *Options) { o.Path = path }
}

func WithApiKey(key string) Option {
	return func(o *Options) { o.ApiKey = key }
}

func WithPoolSize(n int) Option {
	return func(o *Options) { o.PoolSize = n }
}

func NewOptions(opts ...Option) Options {
	options := Options{
		PoolSize: 10,
		Context:  context.Background(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
