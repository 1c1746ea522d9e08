package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// graphNameRegex matches names accepted by the graph stores.
var graphNameRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateGraphName validates the name a graph is stored under.
// Names become file names and document keys, so they must be a single
// path segment of letters, digits, dots, dashes and underscores.
func ValidateGraphName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidName, "graph name cannot be empty")
	}

	if len(name) > 128 {
		return New(ErrCodeInvalidName, "graph name too long (max 128 characters)")
	}

	if strings.Contains(name, "..") {
		return New(ErrCodeInvalidName, "graph name cannot contain ..")
	}

	if !graphNameRegex.MatchString(name) {
		return New(ErrCodeInvalidName, "invalid graph name: %q", name)
	}

	return nil
}

// ValidatePath validates an output path for safety.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	return nil
}

var neo4jSchemes = []string{
	"neo4j://", "neo4j+s://", "neo4j+ssc://",
	"bolt://", "bolt+s://", "bolt+ssc://",
}

// ValidateNeo4jURI checks that uri uses one of the schemes the Neo4j driver accepts.
func ValidateNeo4jURI(uri string) error {
	if uri == "" {
		return New(ErrCodeInvalidInput, "Neo4j URI cannot be empty")
	}
	for _, s := range neo4jSchemes {
		if strings.HasPrefix(uri, s) && len(uri) > len(s) {
			return nil
		}
	}
	return New(ErrCodeInvalidInput, "Neo4j URI must use one of %s", strings.Join(neo4jSchemes, ", "))
}
