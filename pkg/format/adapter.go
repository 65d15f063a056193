package format

import "context"

// Options carries per-call adapter options. Keys are adapter-specific.
type Options map[string]any

// Payload is the result of an adapter call: the produced data plus
// adapter-specific metadata (source encoding, record counts, warnings...).
type Payload struct {
	Data     any
	Metadata map[string]any
}

// Adapter converts between a named external representation and in-memory
// data. Implementations live outside the core and are looked up by name.
type Adapter interface {
	// Parse decodes input into in-memory data.
	Parse(ctx context.Context, input any, opts Options) (Payload, error)
	// Format encodes in-memory data into the external representation.
	Format(ctx context.Context, data any, opts Options) (Payload, error)
}

// SchemaValidator checks a value against a schema. Parse returns the
// validated data, possibly coerced, or an error when the value is invalid.
// Any structural-validation component exposing this one method is
// interchangeable.
type SchemaValidator interface {
	Parse(ctx context.Context, data any) (any, error)
}

// AdapterFuncs adapts a pair of plain functions into an Adapter.
type AdapterFuncs struct {
	ParseFunc  func(ctx context.Context, input any, opts Options) (Payload, error)
	FormatFunc func(ctx context.Context, data any, opts Options) (Payload, error)
}

func (a AdapterFuncs) Parse(ctx context.Context, input any, opts Options) (Payload, error) {
	return a.ParseFunc(ctx, input, opts)
}

func (a AdapterFuncs) Format(ctx context.Context, data any, opts Options) (Payload, error) {
	return a.FormatFunc(ctx, data, opts)
}

// ValidatorFunc adapts a plain function into a SchemaValidator.
type ValidatorFunc func(ctx context.Context, data any) (any, error)

func (f ValidatorFunc) Parse(ctx context.Context, data any) (any, error) {
	return f(ctx, data)
}
