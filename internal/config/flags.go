package config

import (
	"encoding"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// BindFlags registers one flag per field of the struct opts points to that
// carries a help tag. The flag name is derived from the field name, the
// short tag gives a one letter alias and the default tag is parsed like an
// environment value.
//
// Supported field types are string, bool, int, []string, time.Duration and
// any type whose pointer implements encoding.TextUnmarshaler and
// encoding.TextMarshaler.
func BindFlags(flags *pflag.FlagSet, opts any) error {
	v := reflect.ValueOf(opts)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("BindFlags needs a pointer to a struct, got %T", opts)
	}
	v = v.Elem()
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		fieldType := t.Field(i)
		help, ok := fieldType.Tag.Lookup("help")
		if !ok {
			continue
		}
		field := v.Field(i)
		name := fieldNameToFlag(fieldType.Name)
		short := fieldType.Tag.Get("short")

		if def, hasDefault := fieldType.Tag.Lookup("default"); hasDefault {
			if err := setFieldValueFromString(field, def); err != nil {
				return fmt.Errorf("flag --%s: default %q: %w", name, def, err)
			}
		}

		if err := bindField(flags, field, name, short, help); err != nil {
			return err
		}
	}
	return nil
}

func bindField(flags *pflag.FlagSet, field reflect.Value, name, short, help string) error {
	if tv, ok := newTextValue(field); ok {
		flags.VarP(tv, name, short, help)
		return nil
	}

	switch ptr := field.Addr().Interface().(type) {
	case *string:
		flags.StringVarP(ptr, name, short, *ptr, help)
	case *bool:
		flags.BoolVarP(ptr, name, short, *ptr, help)
	case *int:
		flags.IntVarP(ptr, name, short, *ptr, help)
	case *time.Duration:
		flags.DurationVarP(ptr, name, short, *ptr, help)
	case *[]string:
		flags.StringSliceVarP(ptr, name, short, *ptr, help)
	default:
		return fmt.Errorf("flag --%s: unsupported field type %s", name, field.Type())
	}
	return nil
}

// textValue adapts a TextMarshaler/TextUnmarshaler field to pflag.Value.
type textValue struct {
	u        encoding.TextUnmarshaler
	m        encoding.TextMarshaler
	typeName string
}

func newTextValue(field reflect.Value) (*textValue, bool) {
	u, ok := textUnmarshaler(field)
	if !ok {
		return nil, false
	}
	m, ok := field.Addr().Interface().(encoding.TextMarshaler)
	if !ok {
		return nil, false
	}
	return &textValue{u: u, m: m, typeName: strings.ToLower(field.Type().Name())}, true
}

func (v *textValue) String() string {
	text, err := v.m.MarshalText()
	if err != nil {
		return ""
	}
	return string(text)
}

func (v *textValue) Set(s string) error {
	return v.u.UnmarshalText([]byte(s))
}

func (v *textValue) Type() string {
	if v.typeName == "" {
		return "value"
	}
	return v.typeName
}
