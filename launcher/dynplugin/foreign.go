package dynplugin

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"github.com/liuran001/GameLauncher-Go/launcher"
)

var errNoResult = errors.New("game produced no result")

// ForeignResult is a result object produced by bundle code, read by field
// name rather than by type identity.
type ForeignResult struct {
	Key   string
	Label string
	Value any
}

// Stat converts the foreign result into the launcher's own Stat.
func (r ForeignResult) Stat() launcher.Stat {
	return launcher.Stat{Key: r.Key, Label: r.Label, Value: CoerceValue(r.Value)}
}

// CoerceValue converts a foreign value to an int. Text is parsed as a
// decimal number, anything unparsable is 0.
func CoerceValue(v any) int {
	switch t := v.(type) {
	case nil:
		return 0
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0
		}
		return n
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0
	}
	return n
}

// ReadForeign extracts key, label and value from a foreign struct or map.
func ReadForeign(v any) (ForeignResult, error) {
	rv, err := indirect(reflect.ValueOf(v))
	if err != nil {
		return ForeignResult{}, err
	}

	var lookup func(name string) (reflect.Value, bool)
	switch rv.Kind() {
	case reflect.Struct:
		lookup = func(name string) (reflect.Value, bool) { return structField(rv, name) }
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return ForeignResult{}, fmt.Errorf("unsupported result map key %s", rv.Type().Key())
		}
		lookup = func(name string) (reflect.Value, bool) { return mapEntry(rv, name) }
	default:
		return ForeignResult{}, fmt.Errorf("unsupported result kind %s", rv.Kind())
	}

	var res ForeignResult
	for _, field := range []struct {
		name string
		dst  *string
	}{{"key", &res.Key}, {"label", &res.Label}} {
		fv, ok := lookup(field.name)
		if !ok {
			return ForeignResult{}, fmt.Errorf("result has no %s field", field.name)
		}
		raw, err := primitive(fv)
		if err != nil {
			return ForeignResult{}, fmt.Errorf("read %s: %w", field.name, err)
		}
		s, err := cast.ToStringE(raw)
		if err != nil {
			return ForeignResult{}, fmt.Errorf("read %s: %w", field.name, err)
		}
		*field.dst = s
	}

	fv, ok := lookup("value")
	if !ok {
		return ForeignResult{}, fmt.Errorf("result has no value field")
	}
	raw, err := primitive(fv)
	if err != nil {
		return ForeignResult{}, fmt.Errorf("read value: %w", err)
	}
	res.Value = raw
	return res, nil
}

func indirect(rv reflect.Value) (reflect.Value, error) {
	for rv.IsValid() && (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return reflect.Value{}, errNoResult
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return reflect.Value{}, errNoResult
	}
	return rv, nil
}

// structField matches names case-insensitively. The interpreter exports
// unexported fields with an X prefix, which is accepted too.
func structField(rv reflect.Value, name string) (reflect.Value, bool) {
	fv := rv.FieldByNameFunc(func(field string) bool {
		lower := strings.ToLower(field)
		return lower == name || lower == "x"+name
	})
	return fv, fv.IsValid()
}

func mapEntry(rv reflect.Value, name string) (reflect.Value, bool) {
	iter := rv.MapRange()
	for iter.Next() {
		if strings.EqualFold(iter.Key().String(), name) {
			return iter.Value(), true
		}
	}
	return reflect.Value{}, false
}

// primitive reads a value without Interface so unexported fields work.
func primitive(rv reflect.Value) (any, error) {
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint(), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Invalid:
		return nil, nil
	}
	if rv.CanInterface() {
		return rv.Interface(), nil
	}
	return nil, fmt.Errorf("unreadable %s", rv.Kind())
}
