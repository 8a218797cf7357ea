package client

import (
	"fmt"
	"time"

	"github.com/tablodb/tablo/driver"
	"github.com/tablodb/tablo/schema"
)

// encodeValue checks a caller-supplied value against the field's type
// and converts it to what the backend driver expects. Integers widen to
// int64 and ints promote to float64; nothing else converts implicitly.
func encodeValue(dialect, entity string, f *schema.Field, v any) (any, error) {
	if v == nil {
		if !f.Nullable {
			return nil, &ValidationError{Entity: entity, Field: f.Name, Message: "field is required"}
		}
		return nil, nil
	}
	switch f.Type {
	case schema.TypeInt, schema.TypeBigInt:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case int64:
			return n, nil
		}
	case schema.TypeFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		}
	case schema.TypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case schema.TypeBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case schema.TypeTimestamp:
		if t, ok := v.(time.Time); ok {
			if dialect == driver.SQLite {
				// SQLite timestamps live in TEXT columns. The fraction is
				// written fixed-width so lexicographic comparison stays
				// chronological; RFC3339Nano would trim trailing zeros.
				return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00"), nil
			}
			return t.UTC(), nil
		}
	}
	return nil, &ValidationError{
		Entity:  entity,
		Field:   f.Name,
		Message: fmt.Sprintf("value of type %T does not fit %s", v, f.Type),
	}
}

// decodeValue converts what the backend driver returned into the
// canonical Go value for the field's type: int64, float64, string,
// bool, time.Time, or nil.
func decodeValue(entity string, f *schema.Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch f.Type {
	case schema.TypeInt, schema.TypeBigInt:
		if n, ok := v.(int64); ok {
			return n, nil
		}
	case schema.TypeFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case int64:
			return float64(n), nil
		}
	case schema.TypeString:
		switch s := v.(type) {
		case string:
			return s, nil
		case []byte:
			return string(s), nil
		}
	case schema.TypeBool:
		switch b := v.(type) {
		case bool:
			return b, nil
		case int64:
			return b != 0, nil
		}
	case schema.TypeTimestamp:
		switch t := v.(type) {
		case time.Time:
			return t.UTC(), nil
		case string:
			return parseTimestamp(entity, f, t)
		case []byte:
			return parseTimestamp(entity, f, string(t))
		}
	}
	return nil, fmt.Errorf("%s.%s: store returned unexpected %T for %s", entity, f.Name, v, f.Type)
}

func parseTimestamp(entity string, f *schema.Field, s string) (any, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05.999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return nil, fmt.Errorf("%s.%s: store returned unparseable timestamp %q", entity, f.Name, s)
}
