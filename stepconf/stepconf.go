// Package stepconf fills configuration structs from environment variables described by `env` struct tags.
//
// Tag format: `env:"KEY[,option...]"`. Options:
//   - required: the value must not be empty
//   - file, dir: the value must be an existing file or directory
//   - opt[a,b,'c,d']: the value must be one of the listed options
//
// An empty value leaves the field untouched, so values set before parsing act as defaults.
package stepconf

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// ErrNotStructPtr is returned when the parse target is not a pointer to a struct.
var ErrNotStructPtr = errors.New("must be a struct pointer")

// Secret is a string that is never printed.
type Secret string

// String ...
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "*****"
}

// ParseError lists every field that failed to parse.
type ParseError struct {
	Errs map[string]error
	keys []string
}

func (e *ParseError) add(key string, err error) {
	if e.Errs == nil {
		e.Errs = map[string]error{}
	}
	e.Errs[key] = err
	e.keys = append(e.keys, key)
}

func (e *ParseError) Error() string {
	lines := []string{"failed to parse config:"}
	for _, key := range e.keys {
		lines = append(lines, fmt.Sprintf("- %s: %s", key, e.Errs[key]))
	}
	return strings.Join(lines, "\n")
}

func parse(input interface{}, getter EnvGetter) error {
	v := reflect.ValueOf(input)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return ErrNotStructPtr
	}
	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return ErrNotStructPtr
	}

	parseErr := &ParseError{}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag, ok := field.Tag.Lookup("env")
		if !ok || !field.IsExported() {
			continue
		}

		key, constraint := parseTag(tag)
		value := getter.Get(key)

		if err := validate(value, constraint); err != nil {
			parseErr.add(key, err)
			continue
		}
		if value == "" {
			continue
		}
		if err := setField(v.Field(i), value); err != nil {
			parseErr.add(key, err)
		}
	}

	if len(parseErr.keys) > 0 {
		return parseErr
	}
	return nil
}

func parseTag(tag string) (key, constraint string) {
	key, constraint, _ = strings.Cut(tag, ",")
	return strings.TrimSpace(key), strings.TrimSpace(constraint)
}

func validate(value, constraint string) error {
	switch {
	case constraint == "":
		return nil
	case constraint == "required":
		if value == "" {
			return errors.New("required variable is not present")
		}
	case constraint == "file", constraint == "dir":
		if value == "" {
			return nil
		}
		info, err := os.Stat(value)
		if err != nil {
			return fmt.Errorf("check path: %w", err)
		}
		if constraint == "dir" && !info.IsDir() {
			return errors.New("not a directory")
		}
		if constraint == "file" && info.IsDir() {
			return errors.New("not a file")
		}
	case strings.HasPrefix(constraint, "opt[") && strings.HasSuffix(constraint, "]"):
		options := optionList(strings.TrimSuffix(strings.TrimPrefix(constraint, "opt["), "]"))
		for _, o := range options {
			if o == value {
				return nil
			}
		}
		return fmt.Errorf("value %q is not one of %s", value, strings.Join(options, ", "))
	default:
		return fmt.Errorf("unknown constraint %q", constraint)
	}
	return nil
}

// optionList splits on commas outside single quotes.
func optionList(s string) []string {
	var (
		options []string
		current strings.Builder
		quoted  bool
	)
	for _, r := range s {
		switch {
		case r == '\'':
			quoted = !quoted
		case r == ',' && !quoted:
			options = append(options, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	return append(options, strings.TrimSpace(current.String()))
}

var durationType = reflect.TypeOf(time.Duration(0))

func setField(field reflect.Value, value string) error {
	if field.Kind() == reflect.Ptr {
		ptr := reflect.New(field.Type().Elem())
		if err := setField(ptr.Elem(), value); err != nil {
			return err
		}
		field.Set(ptr)
		return nil
	}

	if field.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("parse duration: %w", err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("parse int: %w", err)
		}
		field.SetInt(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("parse float: %w", err)
		}
		field.SetFloat(f)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
		items := strings.Split(value, "|")
		field.Set(reflect.ValueOf(items).Convert(field.Type()))
	default:
		return fmt.Errorf("unsupported type %s", field.Type())
	}
	return nil
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "yes", "y":
		return true, nil
	case "no", "n":
		return false, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("parse bool: %w", err)
	}
	return b, nil
}
