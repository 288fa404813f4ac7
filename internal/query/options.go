package query

import (
	"github.com/creasty/defaults"
)

// Options configures a Context.
type Options struct {
	// ObjectClassAttribute selects the entries of a mapping.
	ObjectClassAttribute string `default:"objectClass"`
	// DefaultScope applies to entity sets that do not set one.
	DefaultScope Scope `default:"2"`
	// Metrics receives search counters. Nil disables them.
	Metrics *Metrics
}

// Option modifies Options.
type Option func(*Options)

func WithObjectClassAttribute(name string) Option {
	return func(o *Options) { o.ObjectClassAttribute = name }
}

func WithDefaultScope(s Scope) Option {
	return func(o *Options) { o.DefaultScope = s }
}

func WithMetrics(m *Metrics) Option {
	return func(o *Options) { o.Metrics = m }
}

// DefaultOptions returns Options with defaults applied.
func DefaultOptions() Options {
	var o Options
	defaults.MustSet(&o)
	return o
}
