// Package config parses pion's service configuration file (spec §6):
// a line-oriented format of `path`, `service`, and `option`
// directives. Grounded on s00inx-goserver's preference for bufio over
// a general-purpose parsing library for simple line formats; no
// example repo in the pack ships a config file of this shape, and a
// bufio.Scanner line loop is the one ambient concern SPEC_FULL.md
// accepts on the standard library alone, since no third-party parser
// in the retrieval pack targets this directive-per-line syntax.
package config

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/avgx/pion/pionerr"
)

// PathDirective is `path <dir>`: append dir to the plugin search path.
type PathDirective struct {
	Dir string
}

// ServiceDirective is `service <resource> <file>`: load a service
// plugin named file at resource.
type ServiceDirective struct {
	Resource string
	File     string
}

// OptionDirective is `option <resource> <name>=<value>`: configure an
// already-registered service.
type OptionDirective struct {
	Resource string
	Name     string
	Value    string
}

// Config is the parsed contents of a service configuration file. Each
// slice keeps its directives in file order; the relative order between
// path, service and option lines is not kept.
type Config struct {
	Paths    []PathDirective
	Services []ServiceDirective
	Options  []OptionDirective
}

// Parse reads a service configuration file from r. Blank lines and
// lines beginning with "#" are ignored (spec §6).
func Parse(r io.Reader) (*Config, error) {
	cfg := &Config{}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		directive := fields[0]
		switch directive {
		case "path":
			if len(fields) != 2 {
				return nil, configErr(lineNo, "path expects <dir>")
			}
			cfg.Paths = append(cfg.Paths, PathDirective{Dir: fields[1]})

		case "service":
			if len(fields) != 3 {
				return nil, configErr(lineNo, "service expects <resource> <file>")
			}
			cfg.Services = append(cfg.Services, ServiceDirective{Resource: fields[1], File: fields[2]})

		case "option":
			if len(fields) != 3 {
				return nil, configErr(lineNo, "option expects <resource> <name>=<value>")
			}
			name, value, ok := strings.Cut(fields[2], "=")
			if !ok {
				return nil, configErr(lineNo, "option value must be name=value")
			}
			cfg.Options = append(cfg.Options, OptionDirective{Resource: fields[1], Name: name, Value: value})

		default:
			return nil, configErr(lineNo, "unknown directive "+directive)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, pionerr.ConfigError("read failed", err)
	}
	return cfg, nil
}

func configErr(line int, msg string) error {
	return pionerr.ConfigError("unparseable value", fmt.Errorf("line %d: %s", line, msg))
}
