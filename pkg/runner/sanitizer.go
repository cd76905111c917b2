package runner

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// EnvMaxInputSize overrides DefaultMaxInputSize when set to a positive integer.
const EnvMaxInputSize = "CONCIERGE_MAX_INPUT_SIZE"

// DefaultMaxInputSize bounds a visitor message, in bytes.
var DefaultMaxInputSize = 4096

var (
	ErrInputTooLarge = errors.New("message exceeds the maximum input size")
	ErrInvalidUTF8   = errors.New("message is not valid UTF-8")
)

// SanitizeInput prepares a visitor message before it reaches the engine.
// Oversized messages and invalid UTF-8 are refused, never truncated.
// Control characters other than tab, CR and LF are dropped.
func SanitizeInput(input string) (string, error) {
	if limit := maxInputSize(); len(input) > limit {
		return "", fmt.Errorf("%w: %d bytes, limit %d", ErrInputTooLarge, len(input), limit)
	}
	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}
	if strings.IndexFunc(input, unsafeControl) < 0 {
		return input, nil
	}
	return strings.Map(func(r rune) rune {
		if unsafeControl(r) {
			return -1
		}
		return r
	}, input), nil
}

func unsafeControl(r rune) bool {
	return unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r'
}

func maxInputSize() int {
	if size, err := strconv.Atoi(os.Getenv(EnvMaxInputSize)); err == nil && size > 0 {
		return size
	}
	return DefaultMaxInputSize
}
