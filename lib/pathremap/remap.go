// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pathremap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bureau-foundation/buildcache/lib/buildenv"
)

// ErrAmbiguousMapping is returned when a mapping is not injective.
var ErrAmbiguousMapping = errors.New("ambiguous path mapping")

// Remapper converts between generic and local path representations.
type Remapper interface {
	// Local resolves generic paths to local paths.
	Local(generic []string) ([]string, error)

	// Generic converts local paths to their generic form.
	Generic(local []string) ([]string, error)
}

// Pair maps a placeholder token to its local value.
type Pair struct {
	Token string
	Value string
}

// Mapping is an environment-backed Remapper over an ordered list of
// pairs. Earlier pairs take precedence when converting local paths, so
// more specific values (an SDK inside the developer directory) must come
// first.
type Mapping struct {
	pairs []Pair
}

// NewMapping validates pairs and returns a Mapping. Pairs with an empty
// value are skipped (an unset variable maps nothing). Exact duplicates
// are collapsed.
func NewMapping(pairs []Pair) (*Mapping, error) {
	byToken := make(map[string]string)
	byValue := make(map[string]string)
	var kept []Pair
	for _, pair := range pairs {
		if pair.Token == "" {
			return nil, fmt.Errorf("%w: empty token for value %q", ErrAmbiguousMapping, pair.Value)
		}
		if pair.Value == "" {
			continue
		}
		if existing, ok := byToken[pair.Token]; ok {
			if existing != pair.Value {
				return nil, fmt.Errorf("%w: token %s maps to both %q and %q",
					ErrAmbiguousMapping, pair.Token, existing, pair.Value)
			}
			continue
		}
		if existing, ok := byValue[pair.Value]; ok {
			return nil, fmt.Errorf("%w: %q is claimed by both %s and %s",
				ErrAmbiguousMapping, pair.Value, existing, pair.Token)
		}
		byToken[pair.Token] = pair.Value
		byValue[pair.Value] = pair.Token
		kept = append(kept, pair)
	}
	for _, pair := range kept {
		for _, other := range kept {
			if strings.Contains(other.Value, pair.Token) {
				return nil, fmt.Errorf("%w: value %q contains token %s",
					ErrAmbiguousMapping, other.Value, pair.Token)
			}
		}
	}
	return &Mapping{pairs: kept}, nil
}

// Token formats a build-setting name as a placeholder token.
func Token(name string) string {
	return "$(" + name + ")"
}

// FromContext builds the default mapping for a build context followed by
// extra user-configured pairs.
func FromContext(context buildenv.Context, extra []Pair) (*Mapping, error) {
	pairs := []Pair{
		{Token: Token("SDKROOT"), Value: context.SDKRoot},
		{Token: Token("DEVELOPER_DIR"), Value: context.DeveloperDir},
		{Token: Token("BUILD_DIR"), Value: context.BuildDir},
		{Token: Token("SRCROOT"), Value: context.SourceRoot},
	}
	return NewMapping(append(pairs, extra...))
}

// Pairs returns a copy of the active pairs.
func (m *Mapping) Pairs() []Pair {
	return append([]Pair(nil), m.pairs...)
}

// LocalString replaces every token in s with its local value.
func (m *Mapping) LocalString(s string) string {
	for _, pair := range m.pairs {
		s = strings.ReplaceAll(s, pair.Token, pair.Value)
	}
	return s
}

// GenericString replaces every local value in s with its token.
func (m *Mapping) GenericString(s string) string {
	for _, pair := range m.pairs {
		s = strings.ReplaceAll(s, pair.Value, pair.Token)
	}
	return s
}

// Local implements Remapper.
func (m *Mapping) Local(generic []string) ([]string, error) {
	return mapAll(generic, m.LocalString), nil
}

// Generic implements Remapper.
func (m *Mapping) Generic(local []string) ([]string, error) {
	return mapAll(local, m.GenericString), nil
}

func mapAll(paths []string, fn func(string) string) []string {
	result := make([]string, len(paths))
	for i, path := range paths {
		result[i] = fn(path)
	}
	return result
}

// Composite tries each remapper in order and keeps, per path, the first
// result that differs from the input.
type Composite []Remapper

// Local implements Remapper.
func (c Composite) Local(generic []string) ([]string, error) {
	return c.apply(generic, Remapper.Local)
}

// Generic implements Remapper.
func (c Composite) Generic(local []string) ([]string, error) {
	return c.apply(local, Remapper.Generic)
}

func (c Composite) apply(paths []string, direction func(Remapper, []string) ([]string, error)) ([]string, error) {
	result := make([]string, len(paths))
	for i, path := range paths {
		result[i] = path
		for _, remapper := range c {
			mapped, err := direction(remapper, []string{path})
			if err != nil {
				return nil, err
			}
			if len(mapped) == 1 && mapped[0] != path {
				result[i] = mapped[0]
				break
			}
		}
	}
	return result, nil
}

// RemapText applies fn to every line of data. Line structure, including
// empty lines and a trailing newline, is preserved exactly.
func RemapText(data []byte, fn func(string) string) []byte {
	lines := strings.Split(string(data), "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = fn(line)
		}
	}
	return []byte(strings.Join(lines, "\n"))
}
