package config

import (
	"bufio"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMalformedLine indicates a non-comment line that is not "key = value".
var ErrMalformedLine = errors.New("malformed line")

// keyPattern matches a valid configuration key.
var keyPattern = regexp.MustCompile(`^\w+$`)

// ParseKeyValue parses "key = value" lines. Blank lines and lines whose
// first non-space character is '#' or ';' are ignored. Whitespace around
// keys and values is trimmed; a later duplicate key wins.
func ParseKeyValue(content string) (map[string]string, error) {
	values := make(map[string]string)

	sc := bufio.NewScanner(strings.NewReader(content))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || !keyPattern.MatchString(key) {
			return nil, fmt.Errorf("%w %d: %q", ErrMalformedLine, lineNo, line)
		}
		values[key] = strings.TrimSpace(value)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return values, nil
}
