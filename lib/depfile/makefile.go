// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package depfile

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Rule is one "targets: prerequisites" entry.
type Rule struct {
	Targets       []string
	Prerequisites []string
}

// Parse reads Makefile dependency rules. It handles line continuations,
// backslash-escaped spaces, "$$" and any number of rules per file.
// Comment lines are skipped.
func Parse(data []byte) ([]Rule, error) {
	var rules []Rule
	for number, line := range logicalLines(string(data)) {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		rule, err := parseRule(trimmed)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", number+1, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// ParseFile parses the dependency file at path.
func ParseFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dependency file: %w", err)
	}
	rules, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return rules, nil
}

// Prerequisites returns every prerequisite across rules in first-seen
// order without duplicates.
func Prerequisites(rules []Rule) []string {
	seen := make(map[string]bool)
	var result []string
	for _, rule := range rules {
		for _, prerequisite := range rule.Prerequisites {
			if seen[prerequisite] {
				continue
			}
			seen[prerequisite] = true
			result = append(result, prerequisite)
		}
	}
	return result
}

// logicalLines joins backslash-newline continuations.
func logicalLines(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	var lines []string
	var current strings.Builder
	for _, physical := range strings.Split(content, "\n") {
		if continued, ok := strings.CutSuffix(physical, "\\"); ok && !escapedBackslash(physical) {
			current.WriteString(continued)
			current.WriteByte(' ')
			continue
		}
		current.WriteString(physical)
		lines = append(lines, current.String())
		current.Reset()
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}

// escapedBackslash reports whether the trailing backslash of line is
// itself escaped (an even run of backslashes).
func escapedBackslash(line string) bool {
	count := 0
	for i := len(line) - 1; i >= 0 && line[i] == '\\'; i-- {
		count++
	}
	return count%2 == 0
}

func parseRule(line string) (Rule, error) {
	var rule Rule
	inTargets := true
	for _, token := range tokenize(line) {
		if !inTargets {
			rule.Prerequisites = append(rule.Prerequisites, token.text)
			continue
		}
		if token.text == ":" && !token.escapedColon {
			inTargets = false
			continue
		}
		if name, ok := strings.CutSuffix(token.text, ":"); ok && !token.escapedColon {
			if name != "" {
				rule.Targets = append(rule.Targets, name)
			}
			inTargets = false
			continue
		}
		rule.Targets = append(rule.Targets, token.text)
	}
	if inTargets {
		return Rule{}, fmt.Errorf("missing ':' in %q", line)
	}
	return rule, nil
}

type token struct {
	text string

	// escapedColon is set when the token's final colon was written as
	// "\:" and is part of the name.
	escapedColon bool
}

func tokenize(line string) []token {
	var tokens []token
	var current strings.Builder
	escapedColon := false
	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, token{text: current.String(), escapedColon: escapedColon})
			current.Reset()
		}
		escapedColon = false
	}
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '\\' && i+1 < len(line) && (line[i+1] == ' ' || line[i+1] == '#' || line[i+1] == '\\' || line[i+1] == ':'):
			current.WriteByte(line[i+1])
			escapedColon = line[i+1] == ':'
			i++
		case c == '$' && i+1 < len(line) && line[i+1] == '$':
			current.WriteByte('$')
			escapedColon = false
			i++
		case c == ' ' || c == '\t':
			flush()
		default:
			current.WriteByte(c)
			escapedColon = false
		}
	}
	flush()
	return tokens
}

// Write emits a single rule in the form compilers produce: targets,
// then each prerequisite on its own continuation line.
func Write(w io.Writer, targets, prerequisites []string) error {
	var builder strings.Builder
	for i, target := range targets {
		if i > 0 {
			builder.WriteByte(' ')
		}
		builder.WriteString(escape(target))
	}
	builder.WriteString(":")
	for _, prerequisite := range prerequisites {
		builder.WriteString(" \\\n  ")
		builder.WriteString(escape(prerequisite))
	}
	builder.WriteByte('\n')
	if _, err := io.WriteString(w, builder.String()); err != nil {
		return fmt.Errorf("writing dependency rule: %w", err)
	}
	return nil
}

// WriteFile writes a single rule to path.
func WriteFile(path string, targets, prerequisites []string) error {
	var builder strings.Builder
	if err := Write(&builder, targets, prerequisites); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(builder.String()), 0o644); err != nil {
		return fmt.Errorf("writing dependency file: %w", err)
	}
	return nil
}

func escape(path string) string {
	replacer := strings.NewReplacer(" ", "\\ ", "#", "\\#", "$", "$$")
	return replacer.Replace(path)
}
