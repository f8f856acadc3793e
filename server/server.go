// Package server defines the functional-options shape server/http builds
// its gin.Engine from. The teacher's own server/http/options.go referenced
// a server.Option/server.Options pair that was never actually defined
// anywhere in its module (a stub left over from an external dependency);
// this package supplies the real thing, adapted to gin middleware instead
// of the teacher's bare net/http handler wrapping.
package server

import (
	"context"

	"github.com/gin-gonic/gin"
)

// Options configures the HTTP server: listen address and any extra gin
// middleware layered on top of the base router's own (recovery, otelgin,
// cors).
type Options struct {
	Addr       string
	Middleware []gin.HandlerFunc
	Context    context.Context
}

// Option mutates Options; New* server constructors apply them in order.
type Option func(*Options)

// NewOptions applies opts over a set of defaults.
func NewOptions(opts ...Option) Options {
	options := Options{
		Addr:    ":8080",
		Context: context.Background(),
	}
	for _, o := range opts {
		o(&options)
	}
	return options
}

// WithAddr overrides the listen address.
func WithAddr(addr string) Option {
	return func(o *Options) { o.Addr = addr }
}

// WithMiddleware appends gin middleware run before every route handler.
func WithMiddleware(ms ...gin.HandlerFunc) Option {
	return func(o *Options) { o.Middleware = append(o.Middleware, ms...) }
}
