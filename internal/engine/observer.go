package engine

import (
	"reflect"

	"github.com/roach88/shadow/internal/change"
)

// Observer receives batches of change records.
//
// OnChange is called at most once per flush, with the records of that
// flush that pass the observer's filter, in mutation order. The slice
// belongs to the observer. A returned error (or a panic) is reported to
// the error handler and does not affect other observers.
//
// Observers are identified by interface equality, so implementations must
// be comparable; pointer types are the usual choice.
type Observer interface {
	OnChange(records []change.Record) error
}

// funcObserver gives a function a stable identity.
type funcObserver struct {
	fn func([]change.Record) error
}

func (f *funcObserver) OnChange(records []change.Record) error {
	return f.fn(records)
}

// ObserverFunc adapts fn to an Observer. Each call returns a distinct
// observer; keep the result to Unobserve it later.
func ObserverFunc(fn func(records []change.Record) error) Observer {
	return &funcObserver{fn: fn}
}

// ObserveOption configures one observer registration.
type ObserveOption func(*observeConfig)

type observeConfig struct {
	filter    change.Filter
	pathModes int
	err       error
}

func (c *observeConfig) setPath(mode change.PathMode, p change.Path) {
	c.pathModes++
	c.filter.Mode = mode
	c.filter.Path = p
}

// WithPath delivers only records whose path equals p.
func WithPath(p change.Path) ObserveOption {
	return func(c *observeConfig) { c.setPath(change.ExactPath, p) }
}

// WithPathPrefix delivers records at p and anywhere below it.
func WithPathPrefix(p change.Path) ObserveOption {
	return func(c *observeConfig) { c.setPath(change.PrefixPath, p) }
}

// WithPathsOf delivers records addressing direct children of p.
func WithPathsOf(p change.Path) ObserveOption {
	return func(c *observeConfig) { c.setPath(change.ChildPath, p) }
}

// WithFilter delivers only records accepted by pred. Multiple WithFilter
// options must all accept a record.
func WithFilter(pred func(change.Record) bool) ObserveOption {
	return func(c *observeConfig) {
		if pred == nil {
			c.err = invalidArgument("observe", nil, "nil filter predicate")
			return
		}
		if prev := c.filter.Predicate; prev != nil {
			c.filter.Predicate = func(r change.Record) bool { return prev(r) && pred(r) }
			return
		}
		c.filter.Predicate = pred
	}
}

func buildFilter(opts []ObserveOption) (change.Filter, error) {
	var c observeConfig
	for _, opt := range opts {
		opt(&c)
	}
	if c.err != nil {
		return change.Filter{}, c.err
	}
	if c.pathModes > 1 {
		return change.Filter{}, invalidArgument("observe", nil, "WithPath, WithPathPrefix and WithPathsOf are mutually exclusive")
	}
	return c.filter, nil
}

// registration is one observer and its filter.
type registration struct {
	obs    Observer
	filter change.Filter
}

// validateObserver rejects nil, typed-nil and non-comparable observers.
func validateObserver(obs Observer) error {
	if obs == nil {
		return invalidArgument("observe", nil, "nil observer")
	}
	v := reflect.ValueOf(obs)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		if v.IsNil() {
			return invalidArgument("observe", nil, "nil %T observer", obs)
		}
	}
	if !v.Type().Comparable() {
		return invalidArgument("observe", nil, "observer of type %T is not comparable", obs)
	}
	if f, ok := obs.(*funcObserver); ok && f.fn == nil {
		return invalidArgument("observe", nil, "nil observer func")
	}
	return nil
}
