package stepconf

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/bitrise-io/go-utils/colorstring"
)

// Print writes the config to stdout with secrets redacted.
func Print(config interface{}) {
	fmt.Print(toString(config))
}

func toString(config interface{}) string {
	v := reflect.ValueOf(config)
	for v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	t := v.Type()

	str := colorstring.Bluef("%s:\n", title(t.Name()))
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		name := field.Name
		if tag, ok := field.Tag.Lookup("env"); ok {
			name, _ = parseTag(tag)
		}

		value := valueString(v.Field(i))
		if value == "" || v.Field(i).IsZero() {
			value = "<unset>"
		}
		str += fmt.Sprintf("- %s: %s\n", name, value)
	}
	return str
}

// valueString renders v, calling String() when the type has one.
func valueString(v reflect.Value) string {
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return ""
		}
		v = v.Elem()
	}

	if v.CanInterface() {
		if s, ok := v.Interface().(fmt.Stringer); ok {
			return s.String()
		}
	}
	if v.Kind() == reflect.Slice {
		var items []string
		for i := 0; i < v.Len(); i++ {
			items = append(items, valueString(v.Index(i)))
		}
		return strings.Join(items, "|")
	}
	return fmt.Sprintf("%v", v.Interface())
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
