package dbt

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapmeta/internal/metadata"
	"gopkg.in/yaml.v3"
)

// ErrEmptyDocument is returned for schema files that are empty, null, or whose
// top level is not a mapping. Such files are skipped during a scan.
var ErrEmptyDocument = errors.New("empty or non-mapping schema document")

// ParseError reports a schema file that is not valid YAML or does not match
// the expected declaration shape.
type ParseError struct {
	File    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.File != "" {
		if e.Line > 0 {
			return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
		}
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return e.Message
}

var yamlLinePattern = regexp.MustCompile(`line (\d+)`)

// newParseError converts a yaml.v3 error into a ParseError.
// Type errors carry one message per violation; they are joined.
func newParseError(file string, err error) *ParseError {
	msg := err.Error()
	var typeErr *yaml.TypeError
	if errors.As(err, &typeErr) {
		msg = strings.Join(typeErr.Errors, "; ")
	}
	msg = strings.TrimPrefix(msg, "yaml: ")

	pe := &ParseError{File: file, Message: msg}
	if m := yamlLinePattern.FindStringSubmatch(msg); m != nil {
		pe.Line, _ = strconv.Atoi(m[1])
	}
	return pe
}

// MissingNameError reports a model or source table with neither an
// identifier nor a name.
type MissingNameError struct {
	File      string
	ModelType metadata.ModelType
	Index     int
}

func (e *MissingNameError) Error() string {
	msg := fmt.Sprintf("%s #%d has neither identifier nor name", e.ModelType, e.Index+1)
	if e.File != "" {
		return e.File + ": " + msg
	}
	return msg
}

// RelationshipError reports a relationships test missing its to or field key.
type RelationshipError struct {
	Column  string
	Missing string
}

func (e *RelationshipError) Error() string {
	return fmt.Sprintf("column %q: relationships test is missing %q", e.Column, e.Missing)
}
