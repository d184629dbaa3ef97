// Copyright (c) 2025 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// args.go - Unified argument parsing for parley CLI commands.
package cli

import "strings"

// =============================================================================
// ARG PARSER
// =============================================================================

// ArgParser separates flags from positional arguments. Flag formats:
//
//	--flag value     Long flag with space-separated value
//	--flag=value     Long flag with equals sign
//	--flag           Boolean flag (no value)
type ArgParser struct {
	flags      map[string]string
	boolFlags  map[string]bool
	positional []string
}

// NewArgParser parses raw arguments.
func NewArgParser(raw []string) *ArgParser {
	p := &ArgParser{
		flags:     make(map[string]string),
		boolFlags: make(map[string]bool),
	}

	i := 0
	for i < len(raw) {
		arg := raw[i]
		if !strings.HasPrefix(arg, "-") {
			p.positional = append(p.positional, arg)
			i++
			continue
		}

		name := strings.TrimLeft(arg, "-")
		if eq := strings.IndexByte(name, '='); eq >= 0 {
			p.flags[name[:eq]] = name[eq+1:]
			i++
			continue
		}

		// A flag followed by a non-flag token takes it as a value.
		if i+1 < len(raw) && !strings.HasPrefix(raw[i+1], "-") {
			p.flags[name] = raw[i+1]
			i += 2
			continue
		}

		p.boolFlags[name] = true
		i++
	}

	return p
}

// Subcommand returns the first positional argument, or "".
func (p *ArgParser) Subcommand() string {
	if len(p.positional) == 0 {
		return ""
	}
	return p.positional[0]
}

// Flag returns a string flag value, or "".
func (p *ArgParser) Flag(name string) string {
	return p.flags[name]
}

// BoolFlag reports whether a boolean flag was set.
func (p *ArgParser) BoolFlag(name string) bool {
	if p.boolFlags[name] {
		return true
	}
	// --flag=true also counts.
	return p.flags[name] == "true"
}

// Positional returns all positional arguments.
func (p *ArgParser) Positional() []string {
	return p.positional
}
