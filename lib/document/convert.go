package document

import (
	"encoding/json"
	"reflect"
	"slices"

	"github.com/cockroachdb/errors"
)

// ErrUnsupported is returned by From for Go values without a document
// representation
var ErrUnsupported = errors.New("unsupported value")

// From converts a plain Go value into a Value. Supported are nil, Value,
// Document, strings, bools, all integer and float types, json.Number and
// arbitrarily nested slices, arrays and string keyed maps of those. Maps are
// converted with their keys in sorted order. NaN and infinities are rejected.
func From(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case *Value:
		if x == nil {
			return Null(), nil
		}
		return *x, nil
	case Document:
		return Mapping(x), nil
	case string:
		return Text(x), nil
	case bool:
		return Bool(x), nil
	case int:
		return Number(float64(x)), nil
	case int8:
		return Number(float64(x)), nil
	case int16:
		return Number(float64(x)), nil
	case int32:
		return Number(float64(x)), nil
	case int64:
		return Number(float64(x)), nil
	case uint:
		return Number(float64(x)), nil
	case uint8:
		return Number(float64(x)), nil
	case uint16:
		return Number(float64(x)), nil
	case uint32:
		return Number(float64(x)), nil
	case uint64:
		return Number(float64(x)), nil
	case float32:
		return fromFloat(float64(x))
	case float64:
		return fromFloat(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Value{}, errors.Wrapf(ErrUnsupported, "number %q", string(x))
		}
		return fromFloat(f)
	case map[string]any:
		return fromStringMap(len(x), func(yield func(string, any)) {
			for k, e := range x {
				yield(k, e)
			}
		})
	case []any:
		seq := make([]Value, len(x))
		for i, e := range x {
			ev, err := From(e)
			if err != nil {
				return Value{}, errors.Wrapf(err, "index %d", i)
			}
			seq[i] = ev
		}
		return Value{kind: KindSequence, seq: seq}, nil
	}
	return fromReflect(reflect.ValueOf(v))
}

// MustFrom is From that panics on error
func MustFrom(v any) Value {
	val, err := From(v)
	if err != nil {
		panic(err)
	}
	return val
}

func fromFloat(f float64) (Value, error) {
	if !validNumber(f) {
		return Value{}, errors.Wrapf(ErrUnsupported, "number %v", f)
	}
	return Number(f), nil
}

func fromStringMap(size int, each func(yield func(string, any))) (Value, error) {
	keys := make([]string, 0, size)
	vals := make(map[string]any, size)
	each(func(k string, e any) {
		keys = append(keys, k)
		vals[k] = e
	})
	slices.Sort(keys)

	d := Document{fields: make([]Field, 0, len(keys))}
	for _, k := range keys {
		ev, err := From(vals[k])
		if err != nil {
			return Value{}, errors.Wrapf(err, "field %q", k)
		}
		d.fields = append(d.fields, Field{Name: k, Value: ev})
	}
	return Mapping(d), nil
}

func fromReflect(rv reflect.Value) (Value, error) {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Null(), nil
		}
		return From(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return Sequence(), nil
		}
		seq := make([]Value, rv.Len())
		for i := range seq {
			ev, err := From(rv.Index(i).Interface())
			if err != nil {
				return Value{}, errors.Wrapf(err, "index %d", i)
			}
			seq[i] = ev
		}
		return Value{kind: KindSequence, seq: seq}, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		return fromStringMap(rv.Len(), func(yield func(string, any)) {
			iter := rv.MapRange()
			for iter.Next() {
				yield(iter.Key().String(), iter.Value().Interface())
			}
		})
	case reflect.String:
		return Text(rv.String()), nil
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Number(float64(rv.Int())), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Number(float64(rv.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return fromFloat(rv.Float())
	case reflect.Invalid:
		return Null(), nil
	}
	return Value{}, errors.Wrapf(ErrUnsupported, "type %s", rv.Type())
}
