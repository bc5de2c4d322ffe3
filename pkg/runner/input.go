package runner

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxInputSize bounds one line of player input, in bytes.
const DefaultMaxInputSize = 4096

// EnvMaxInputSize overrides DefaultMaxInputSize.
const EnvMaxInputSize = "CADENCE_MAX_INPUT_SIZE"

var (
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("input contains invalid UTF-8 sequences")
	// ErrInvalidInput reports input that does not name a choice.
	ErrInvalidInput = errors.New("invalid choice input")
)

// CleanInput prepares one line typed by the player. Oversized input and
// invalid UTF-8 are rejected, never truncated. Control characters other than
// tab are dropped so escape sequences cannot reach logs or the terminal.
func CleanInput(input string) (string, error) {
	if limit := maxInputSize(); len(input) > limit {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(input), limit)
	}
	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r != '\t' && unicode.IsControl(r) {
			return -1
		}
		return r
	}, input)), nil
}

// ParseChoice reads a choice number from a cleaned line: a bare number
// (`1`), a quoted one (`"1"`) or an object (`{"choice": 1}`). The number is
// returned as typed; callers decide whether it counts from zero or one.
func ParseChoice(line string) (int, error) {
	if n, err := strconv.Atoi(line); err == nil {
		return n, nil
	}

	var quoted string
	if err := json.Unmarshal([]byte(line), &quoted); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(quoted)); err == nil {
			return n, nil
		}
	}

	var obj struct {
		Choice *int `json:"choice"`
	}
	if err := json.Unmarshal([]byte(line), &obj); err == nil && obj.Choice != nil {
		return *obj.Choice, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidInput, line)
}

func maxInputSize() int {
	if val := os.Getenv(EnvMaxInputSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxInputSize
}
