// Package validate turns raw user text into typed values or rejection reasons.
// Every function here is pure: no I/O and no reads of the wall clock.
package validate

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/xiaot623/studybuddy/internal/domain"
)

// DefaultMaxTitleLength is used when NormalizeTitle is given a non-positive bound.
const DefaultMaxTitleLength = 200

// MinTitleLength is the shortest accepted title, in runes.
const MinTitleLength = 3

// Failure kinds. Match with errors.Is.
var (
	ErrDateFormat          = errors.New("invalid date format")
	ErrDateNotFuture       = errors.New("date not in the future")
	ErrDateTooFar          = errors.New("date too far in the future")
	ErrTitleEmpty          = errors.New("title empty")
	ErrTitleTooShort       = errors.New("title too short")
	ErrTitleTooLong        = errors.New("title too long")
	ErrKindUnknown         = errors.New("unknown task kind")
	ErrIndexNotNumber      = errors.New("index not a number")
	ErrIndexTooLow         = errors.New("index below range")
	ErrIndexTooHigh        = errors.New("index above range")
	ErrConfirmationUnknown = errors.New("unrecognized confirmation")
)

// Error is a user-correctable validation failure.
type Error struct {
	Kind   error
	Reason string
}

func (e *Error) Error() string { return e.Reason }
func (e *Error) Unwrap() error { return e.Kind }

func fail(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// Reason returns the human-readable reason for a validation error, or the
// error text for anything else.
func Reason(err error) string {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Reason
	}
	return err.Error()
}

// Day-first layouts; single-digit day and month are accepted.
var dateLayouts = []string{
	"2/1/2006",
	"2.1.2006",
	"2-1-2006",
}

// ParseDueDate parses a day-first date and checks it lies strictly after today
// and no more than two years ahead. The result is midnight in today's location.
func ParseDueDate(input string, today time.Time) (time.Time, error) {
	input = strings.TrimSpace(input)
	loc := today.Location()

	var parsed time.Time
	ok := false
	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, input, loc)
		if err == nil {
			parsed, ok = t, true
			break
		}
	}
	if !ok {
		return time.Time{}, fail(ErrDateFormat, "❌ Invalid date format. Please use DD/MM/YYYY (e.g., 25/12/2025)")
	}

	y, m, d := today.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, loc)
	if !parsed.After(day) {
		return time.Time{}, fail(ErrDateNotFuture, "❌ Date must be in the future. Please enter a valid due date.")
	}
	if parsed.After(day.AddDate(2, 0, 0)) {
		return time.Time{}, fail(ErrDateTooFar, "❌ Date is too far in the future (max 2 years). Please check the date.")
	}
	return parsed, nil
}

// NormalizeTitle trims the title, collapses internal whitespace runs to one
// space and enforces the length bounds.
func NormalizeTitle(input string, maxLen int) (string, error) {
	if maxLen <= 0 {
		maxLen = DefaultMaxTitleLength
	}
	title := strings.Join(strings.Fields(input), " ")

	n := utf8.RuneCountInString(title)
	switch {
	case n == 0:
		return "", fail(ErrTitleEmpty, "❌ Task title cannot be empty. Please enter a valid title.")
	case n < MinTitleLength:
		return "", fail(ErrTitleTooShort, "❌ Task title is too short (min %d characters). Please be more descriptive.", MinTitleLength)
	case n > maxLen:
		return "", fail(ErrTitleTooLong, "❌ Task title is too long (max %d characters). Your title has %d characters.", maxLen, n)
	}
	return title, nil
}

var kindTokens = map[string]domain.TaskKind{
	"1":          domain.TaskKindAssignment,
	"assignment": domain.TaskKindAssignment,
	"assign":     domain.TaskKindAssignment,
	"hw":         domain.TaskKindAssignment,
	"homework":   domain.TaskKindAssignment,
	"2":          domain.TaskKindExam,
	"exam":       domain.TaskKindExam,
	"test":       domain.TaskKindExam,
	"quiz":       domain.TaskKindExam,
	"midterm":    domain.TaskKindExam,
	"final":      domain.TaskKindExam,
}

// ParseKind maps a literal token or synonym to a task kind.
func ParseKind(input string) (domain.TaskKind, error) {
	if k, ok := kindTokens[strings.ToLower(strings.TrimSpace(input))]; ok {
		return k, nil
	}
	return "", fail(ErrKindUnknown, "❌ Invalid task type. Please select:\n1️⃣ Assignment\n2️⃣ Exam")
}

// ParseIndex parses a 1-based selection in [1, max].
func ParseIndex(input string, max int) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return 0, fail(ErrIndexNotNumber, "❌ Please enter a valid number.")
	}
	if n < 1 {
		return 0, fail(ErrIndexTooLow, "❌ Task number must be at least 1.")
	}
	if n > max {
		return 0, fail(ErrIndexTooHigh, "❌ Task number must be between 1 and %d.", max)
	}
	return n, nil
}

var (
	affirmative = map[string]bool{"YES": true, "Y": true, "CONFIRM": true, "OK": true, "SURE": true}
	negative    = map[string]bool{"NO": true, "N": true, "CANCEL": true, "NOPE": true}
)

// ParseConfirmation maps yes/no style answers to a boolean.
func ParseConfirmation(input string) (bool, error) {
	token := strings.ToUpper(strings.TrimSpace(input))
	switch {
	case affirmative[token]:
		return true, nil
	case negative[token]:
		return false, nil
	}
	return false, fail(ErrConfirmationUnknown, "❌ Please reply with YES to confirm or NO to cancel.")
}

// SanitizeText drops control characters and normalizes whitespace.
func SanitizeText(input string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		if !unicode.IsPrint(r) {
			return -1
		}
		return r
	}, input)
	return strings.Join(strings.Fields(cleaned), " ")
}
