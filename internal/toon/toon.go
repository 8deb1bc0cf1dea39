// Package toon renders capability results in the compact TOON text form
// returned to callers.
//
// Results are normalized before encoding: every map becomes a map with
// string keys, sequences become []any and scalars lose their named types.
// Traceroute hops keyed by int therefore encode like any other object, and
// equal results always produce equal text.
package toon

import (
	"encoding"
	"fmt"
	"reflect"
	"strings"

	"netmcp/internal/domain"

	toonfmt "github.com/toon-format/toon-go"
)

const maxDepth = 64

// Encode renders v. Values holding channels, functions or complex numbers
// fail with domain.ErrEncoding and name the offending path.
func Encode(v any) (string, error) {
	norm, err := normalize(reflect.ValueOf(v), 0)
	if err != nil {
		return "", err
	}
	out, err := toonfmt.Marshal(norm)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrEncoding, err)
	}
	return string(out), nil
}

var textMarshaler = reflect.TypeFor[encoding.TextMarshaler]()

func normalize(v reflect.Value, depth int) (any, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("%w: nesting deeper than %d", domain.ErrEncoding, maxDepth)
	}
	if !v.IsValid() {
		return nil, nil
	}
	for v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, nil
		}
		v = v.Elem()
	}
	if v.Type().Implements(textMarshaler) {
		text, err := v.Interface().(encoding.TextMarshaler).MarshalText()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrEncoding, err)
		}
		return string(text), nil
	}

	switch v.Kind() {
	case reflect.Bool:
		return v.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint(), nil
	case reflect.Float32, reflect.Float64:
		return v.Float(), nil
	case reflect.String:
		return v.String(), nil
	case reflect.Map:
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			key := fmt.Sprint(iter.Key().Interface())
			val, err := normalize(iter.Value(), depth+1)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			out[key] = val
		}
		return out, nil
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8 {
			return string(v.Bytes()), nil
		}
		out := make([]any, v.Len())
		for i := range out {
			val, err := normalize(v.Index(i), depth+1)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = val
		}
		return out, nil
	case reflect.Struct:
		out := make(map[string]any, v.NumField())
		for i := 0; i < v.NumField(); i++ {
			f := v.Type().Field(i)
			if !f.IsExported() {
				continue
			}
			name := fieldName(f)
			if name == "-" {
				continue
			}
			val, err := normalize(v.Field(i), depth+1)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			out[name] = val
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unsupported kind %s", domain.ErrEncoding, v.Kind())
	}
}

func fieldName(f reflect.StructField) string {
	if tag, ok := f.Tag.Lookup("json"); ok {
		if name, _, _ := strings.Cut(tag, ","); name != "" {
			return name
		}
	}
	return f.Name
}
