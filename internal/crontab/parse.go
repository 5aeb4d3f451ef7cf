// Package crontab loads classic five-field job tables and answers which
// jobs are due at a given wall-clock minute.
//
// Table format, one job per line:
//
//	<minute> <hour> <day-of-month> <month> <day-of-week> <identity> <command...>
//
// Field values may be integers, comma lists, ranges a-b, steps */n, or the
// wildcard *. Lines starting with # are comments, blank lines are ignored,
// and NAME=value lines set the environment for subsequent jobs (SHELL and
// PATH are seeded with defaults). Recurrence parsing and matching are
// delegated to robfig/cron's standard parser so field semantics, including
// the day-of-month/day-of-week OR convention, stay compatible with the cron
// tables this daemon replaces.
package crontab

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/robfig/cron/v3"

	"tabd/internal/constants"
)

// fieldParser accepts exactly the five calendar fields; no seconds, no
// @descriptors.
var fieldParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// LoadFile reads and parses a job table from disk. An unreadable file is a
// ConfigError; malformed lines are returned as ParseErrors alongside the
// successfully parsed remainder.
func LoadFile(path string) (*Table, []ParseError, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, &ConfigError{Path: path, Err: err}
	}
	defer f.Close()

	table, perrs, err := Parse(path, f)
	if err != nil {
		return nil, nil, &ConfigError{Path: path, Err: err}
	}
	return table, perrs, nil
}

// Parse reads a job table from r. name is used in diagnostics only.
func Parse(name string, r io.Reader) (*Table, []ParseError, error) {
	environ := defaultEnviron()

	table := &Table{}
	var perrs []ParseError

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if key, value, ok := splitEnvLine(line); ok {
			environ[key] = value
			continue
		}

		job, err := parseJobLine(line)
		if err != nil {
			perrs = append(perrs, ParseError{File: name, Line: lineNo, Text: line, Err: err})
			continue
		}
		job.File = name
		job.Line = lineNo
		job.Env = copyEnviron(environ)
		table.Jobs = append(table.Jobs, job)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}

	table.Environ = environ
	return table, perrs, nil
}

// parseJobLine splits a job line into its five recurrence fields, the
// identity and the command remainder, preserving the command text verbatim.
func parseJobLine(line string) (JobDefinition, error) {
	rest := line
	fields := make([]string, 0, 6)
	for i := 0; i < 6; i++ {
		rest = strings.TrimLeft(rest, " \t")
		end := strings.IndexAny(rest, " \t")
		if end < 0 {
			return JobDefinition{}, fmt.Errorf("expected 5 recurrence fields, an identity and a command")
		}
		fields = append(fields, rest[:end])
		rest = rest[end:]
	}
	command := strings.TrimSpace(rest)
	if command == "" {
		return JobDefinition{}, fmt.Errorf("missing command")
	}

	spec := strings.Join(fields[:5], " ")
	sched, err := fieldParser.Parse(spec)
	if err != nil {
		return JobDefinition{}, fmt.Errorf("invalid recurrence %q: %w", spec, err)
	}

	return JobDefinition{
		Schedule: spec,
		Identity: fields[5],
		Command:  command,
		sched:    sched,
	}, nil
}

// splitEnvLine recognizes NAME=value lines (whitespace around '=' allowed).
// Variable names cannot start with a digit or '*', so job lines are never
// mistaken for assignments.
func splitEnvLine(line string) (key, value string, ok bool) {
	eq := strings.Index(line, "=")
	if eq <= 0 {
		return "", "", false
	}
	key = strings.TrimSpace(line[:eq])
	if !validVarName(key) {
		return "", "", false
	}
	value = strings.TrimSpace(line[eq+1:])
	value = strings.Trim(value, `"`)
	return key, value, true
}

func validVarName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func defaultEnviron() map[string]string {
	return map[string]string{
		constants.ShellVar: constants.DefaultShell,
		constants.PathVar:  constants.DefaultPath,
	}
}

func copyEnviron(environ map[string]string) map[string]string {
	out := make(map[string]string, len(environ))
	for k, v := range environ {
		out[k] = v
	}
	return out
}
