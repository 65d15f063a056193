package pipeline_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"

	"github.com/convio/conveyor/pkg/format"
)

// testRegistry registers a json adapter used across the execution tests.
// Codec logic here stands in for the external adapters the core delegates
// to.
func testRegistry(t *testing.T) *format.Registry {
	t.Helper()

	registry := format.NewRegistry()

	registry.Register("json", format.AdapterFuncs{
		ParseFunc: func(_ context.Context, input any, _ format.Options) (format.Payload, error) {
			raw, ok := input.(string)
			if !ok {
				return format.Payload{}, errors.Errorf("expected string, got %T", input)
			}

			var data any
			if err := json.Unmarshal([]byte(raw), &data); err != nil {
				return format.Payload{}, errors.Wrap(err, "unable to parse json")
			}

			return format.Payload{Data: data, Metadata: map[string]any{"format": "json"}}, nil
		},
		FormatFunc: func(_ context.Context, data any, _ format.Options) (format.Payload, error) {
			out, err := json.Marshal(data)
			if err != nil {
				return format.Payload{}, errors.Wrap(err, "unable to format json")
			}

			return format.Payload{Data: string(out), Metadata: map[string]any{"format": "json"}}, nil
		},
	})

	return registry
}

// requireFields validates that data is a map holding a numeric "id" and a
// string "value", mirroring an external schema validator.
func requireFields(_ context.Context, data any) (any, error) {
	m, ok := data.(map[string]any)
	if !ok {
		return nil, errors.Errorf("expected object, got %T", data)
	}
	if _, ok := m["id"].(float64); !ok {
		return nil, errors.New("id must be a number")
	}
	if _, ok := m["value"].(string); !ok {
		return nil, errors.New("value must be a string")
	}

	return data, nil
}
