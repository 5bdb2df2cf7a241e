package settings

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

var timeType = reflect.TypeOf(time.Time{})

// defaultsToMap converts a struct, struct pointer or map[string]any of default
// values into a nested map keyed by the tagName struct tag.
func defaultsToMap(defaults any, tagName string) (map[string]any, error) {
	if m, ok := defaults.(map[string]any); ok {
		return normalizeValue(cloneMap(m)).(map[string]any), nil
	}

	v := reflect.ValueOf(defaults)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, fmt.Errorf("%w: defaults require a non-nil struct pointer or value", ErrInvalidLayer)
		}
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: defaults require a struct or struct pointer, got %T", ErrInvalidLayer, defaults)
	}

	result := make(map[string]any)
	registerFields(v, tagName, result)
	return result, nil
}

// registerFields walks exported struct fields recursively, writing each
// non-struct field value into dst under its tag name.
func registerFields(v reflect.Value, tagName string, dst map[string]any) {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		fieldValue := v.Field(i)

		if !field.IsExported() {
			continue
		}

		tag := field.Tag.Get(tagName)
		if tag == "-" {
			continue
		}

		key := field.Name
		if name, _, _ := strings.Cut(tag, ","); name != "" {
			key = name
		}

		fieldType := fieldValue.Type()
		isStruct := fieldValue.Kind() == reflect.Struct && fieldType != timeType
		isPtrToStruct := fieldValue.Kind() == reflect.Ptr && fieldType.Elem().Kind() == reflect.Struct && fieldType.Elem() != timeType

		if isStruct || isPtrToStruct {
			nestedValue := fieldValue
			if isPtrToStruct {
				if fieldValue.IsNil() {
					// Nil pointers have no defaults to contribute
					continue
				}
				nestedValue = fieldValue.Elem()
			}

			nested := make(map[string]any)
			registerFields(nestedValue, tagName, nested)
			dst[key] = nested
			continue
		}

		dst[key] = normalizeValue(fieldValue.Interface())
	}
}
