package postgres

import (
	"reflect"
	"sync"
)

// ExtractDBColumns returns the "db" tag of every exported field of T, in declaration order.
// Fields tagged "-" or untagged are skipped.
func ExtractDBColumns[T any]() []string {
	var zero T
	meta := metadataFor(reflect.TypeOf(zero))
	cols := make([]string, len(meta))
	for i, f := range meta {
		cols[i] = f.column
	}
	return cols
}

type columnField struct {
	index  int
	column string
}

var typeCache sync.Map // map[reflect.Type][]columnField

func metadataFor(t reflect.Type) []columnField {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if cached, ok := typeCache.Load(t); ok {
		return cached.([]columnField)
	}

	var fields []columnField
	if t.Kind() == reflect.Struct {
		for i := 0; i < t.NumField(); i++ {
			tag := t.Field(i).Tag.Get("db")
			if tag == "" || tag == "-" {
				continue
			}
			fields = append(fields, columnField{index: i, column: tag})
		}
	}

	typeCache.Store(t, fields)
	return fields
}

// StructToMap converts a struct to a column map using "db" tags.
func StructToMap(v any) map[string]any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	meta := metadataFor(rv.Type())
	res := make(map[string]any, len(meta))
	for _, f := range meta {
		res[f.column] = rv.Field(f.index).Interface()
	}
	return res
}
