package postgres

import (
	"reflect"
	"strings"
	"sync"
)

// Column tags understood by the row mapper:
//
//	db:"item_number"             column name ("-" or empty skips the field)
//	repo:"immutable"             written on insert, never on update
//
// Embedded structs are flattened.
type columnInfo struct {
	index     []int
	name      string
	immutable bool
}

var columnCache sync.Map // map[reflect.Type][]columnInfo

func columnsOf(t reflect.Type) []columnInfo {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if cached, ok := columnCache.Load(t); ok {
		return cached.([]columnInfo)
	}

	var cols []columnInfo
	if t.Kind() == reflect.Struct {
		cols = collectColumns(t, nil)
	}
	columnCache.Store(t, cols)
	return cols
}

func collectColumns(t reflect.Type, prefix []int) []columnInfo {
	var cols []columnInfo
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		index := append(append([]int{}, prefix...), i)

		if field.Anonymous {
			ft := field.Type
			if ft.Kind() == reflect.Ptr {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				cols = append(cols, collectColumns(ft, index)...)
			}
			continue
		}

		tag := field.Tag.Get("db")
		if tag == "" || tag == "-" || !field.IsExported() {
			continue
		}
		cols = append(cols, columnInfo{
			index:     index,
			name:      tag,
			immutable: strings.Contains(field.Tag.Get("repo"), "immutable"),
		})
	}
	return cols
}

// ExtractDBColumns lists the column names of T in field order.
// Call once at repository construction.
func ExtractDBColumns[T any]() []string {
	var zero T
	infos := columnsOf(reflect.TypeOf(zero))
	names := make([]string, len(infos))
	for i, c := range infos {
		names[i] = c.name
	}
	return names
}

// ImmutableColumns lists the columns of T tagged repo:"immutable".
func ImmutableColumns[T any]() map[string]bool {
	var zero T
	res := make(map[string]bool)
	for _, c := range columnsOf(reflect.TypeOf(zero)) {
		if c.immutable {
			res[c.name] = true
		}
	}
	return res
}

// StructToMap converts a struct (or pointer to struct) to column → value.
func StructToMap(v any) map[string]any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	infos := columnsOf(rv.Type())
	res := make(map[string]any, len(infos))
	for _, c := range infos {
		f, err := rv.FieldByIndexErr(c.index)
		if err != nil {
			// nil embedded pointer
			continue
		}
		res[c.name] = f.Interface()
	}
	return res
}
