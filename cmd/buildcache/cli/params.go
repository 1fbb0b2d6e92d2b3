// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// FlagsFromParams returns a flag set bound to the tagged fields of
// params, which must be a pointer to a struct. A malformed params type
// is a programming error and panics.
//
//	var params statsParams
//	command := &cli.Command{
//	    Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("stats", &params) },
//	    Run:   func(ctx context.Context, args []string) error { ... },
//	}
func FlagsFromParams(name string, params any) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	if err := BindFlags(params, flagSet); err != nil {
		panic(fmt.Sprintf("cli.FlagsFromParams(%q): %v", name, err))
	}
	return flagSet
}

// BindFlags registers one flag per tagged field of params.
//
// The flag tag holds the long name and an optional shorthand
// (flag:"config,c"). desc is the help text. default is parsed with the
// field's type; an absent default means the zero value. Fields without
// a flag tag are ignored and embedded structs are walked.
//
// Supported field types are string, bool, int, [time.Duration] and
// []string.
func BindFlags(params any, flagSet *pflag.FlagSet) error {
	value := reflect.ValueOf(params)
	if value.Kind() != reflect.Pointer || value.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("params must be a pointer to a struct, got %T", params)
	}
	return bindStruct(value.Elem(), flagSet)
}

// flagSpec is the parsed tag set of one field.
type flagSpec struct {
	name        string
	shorthand   string
	description string
	fallback    string
}

func bindStruct(structValue reflect.Value, flagSet *pflag.FlagSet) error {
	for i := range structValue.NumField() {
		field := structValue.Type().Field(i)
		fieldValue := structValue.Field(i)

		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			if err := bindStruct(fieldValue, flagSet); err != nil {
				return fmt.Errorf("embedded %s: %w", field.Name, err)
			}
			continue
		}

		tag, tagged := field.Tag.Lookup("flag")
		if !tagged || tag == "" {
			continue
		}
		if !fieldValue.CanAddr() {
			return fmt.Errorf("field %s: not addressable", field.Name)
		}
		spec := flagSpec{description: field.Tag.Get("desc"), fallback: field.Tag.Get("default")}
		spec.name, spec.shorthand, _ = strings.Cut(tag, ",")

		if err := spec.bind(fieldValue.Addr().Interface(), flagSet); err != nil {
			return fmt.Errorf("field %s: %w", field.Name, err)
		}
	}
	return nil
}

func (spec flagSpec) bind(pointer any, flagSet *pflag.FlagSet) error {
	switch destination := pointer.(type) {
	case *string:
		flagSet.StringVarP(destination, spec.name, spec.shorthand, spec.fallback, spec.description)
	case *bool:
		fallback, err := parseDefault(spec, strconv.ParseBool)
		if err != nil {
			return err
		}
		flagSet.BoolVarP(destination, spec.name, spec.shorthand, fallback, spec.description)
	case *int:
		fallback, err := parseDefault(spec, strconv.Atoi)
		if err != nil {
			return err
		}
		flagSet.IntVarP(destination, spec.name, spec.shorthand, fallback, spec.description)
	case *time.Duration:
		fallback, err := parseDefault(spec, time.ParseDuration)
		if err != nil {
			return err
		}
		flagSet.DurationVarP(destination, spec.name, spec.shorthand, fallback, spec.description)
	case *[]string:
		var fallback []string
		if spec.fallback != "" {
			fallback = strings.Split(spec.fallback, ",")
		}
		flagSet.StringSliceVarP(destination, spec.name, spec.shorthand, fallback, spec.description)
	default:
		return fmt.Errorf("unsupported type %T for flag --%s", pointer, spec.name)
	}
	return nil
}

// parseDefault converts the default tag with parse, yielding the zero
// value when the tag is absent.
func parseDefault[T any](spec flagSpec, parse func(string) (T, error)) (T, error) {
	var zero T
	if spec.fallback == "" {
		return zero, nil
	}
	value, err := parse(spec.fallback)
	if err != nil {
		return zero, fmt.Errorf("default for --%s: %w", spec.name, err)
	}
	return value, nil
}
