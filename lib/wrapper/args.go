// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wrapper

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// arguments is a scanned command line. Only the flags a tool's plan
// needs are understood; every other flag is kept opaque.
type arguments struct {
	values     map[string][]string
	flags      map[string]bool
	positional []string
}

// scanArguments splits args using arity, which maps a flag to the
// number of values following it. "--flag=value" and "-flag=value" forms
// are accepted for flags with arity 1.
func scanArguments(args []string, arity map[string]int) (arguments, error) {
	scanned := arguments{
		values: make(map[string][]string),
		flags:  make(map[string]bool),
	}
	for i := 0; i < len(args); i++ {
		argument := args[i]
		if count, ok := arity[argument]; ok {
			if i+count >= len(args) {
				return arguments{}, fmt.Errorf("flag %s expects %d value(s)", argument, count)
			}
			scanned.values[argument] = append(scanned.values[argument], args[i+1:i+1+count]...)
			i += count
			continue
		}
		if name, value, found := strings.Cut(argument, "="); found && arity[name] == 1 {
			scanned.values[name] = append(scanned.values[name], value)
			continue
		}
		if strings.HasPrefix(argument, "-") {
			scanned.flags[argument] = true
			continue
		}
		scanned.positional = append(scanned.positional, argument)
	}
	return scanned, nil
}

// value returns the last value of flag, or "".
func (a arguments) value(flag string) string {
	values := a.values[flag]
	if len(values) == 0 {
		return ""
	}
	return values[len(values)-1]
}

// withExtension returns the positional arguments whose extension is in
// extensions.
func (a arguments) withExtension(extensions ...string) []string {
	var result []string
	for _, argument := range a.positional {
		for _, extension := range extensions {
			if strings.HasSuffix(argument, extension) {
				result = append(result, argument)
				break
			}
		}
	}
	return result
}

// expandResponseFiles replaces every "@file" argument by the lines of
// file, one argument per line, as Xcode writes its file lists.
func expandResponseFiles(args []string, dir string) ([]string, error) {
	var result []string
	for _, argument := range args {
		if !strings.HasPrefix(argument, "@") || len(argument) == 1 {
			result = append(result, argument)
			continue
		}
		lines, err := readList(absolute(dir, argument[1:]))
		if err != nil {
			return nil, fmt.Errorf("reading response file: %w", err)
		}
		result = append(result, lines...)
	}
	return result, nil
}

// readList reads a file holding one entry per line.
func readList(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

// absolute resolves path against dir.
func absolute(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// absoluteAll resolves every path against dir.
func absoluteAll(dir string, paths []string) []string {
	result := make([]string, len(paths))
	for i, path := range paths {
		result[i] = absolute(dir, path)
	}
	return result
}

// archFromTriple returns the architecture of a target triple
// ("arm64-apple-ios15.0" gives "arm64").
func archFromTriple(triple string) string {
	arch, _, _ := strings.Cut(triple, "-")
	return arch
}
