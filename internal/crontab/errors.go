package crontab

import "fmt"

// ParseError describes a single malformed table line or manifest entry.
// Parse failures are local: the offending entry is skipped and loading
// continues with the remaining lines.
type ParseError struct {
	File string
	Line int    // 1-based line number; 0 for manifest entries
	Text string // offending source text
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ConfigError means the job table (or manifest directory) could not be read
// at all. At startup this is fatal.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("crontab %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
