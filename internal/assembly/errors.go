package assembly

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrLoadFailed is returned when neither the chunked nor the monolithic
	// form of a document could be obtained. It is the only failure a view
	// surfaces to the user.
	ErrLoadFailed = errors.New("document could not be loaded")

	// ErrIncompleteText means at least one text chunk was not fetched.
	ErrIncompleteText = errors.New("incomplete text")

	// ErrMissingPlaceholder means an image chunk's placeholder does not
	// appear in the assembled text.
	ErrMissingPlaceholder = errors.New("missing placeholder")

	// ErrDuplicatePlaceholder means an image chunk's placeholder appears more
	// than once, so hydration could not tell which marker to replace.
	ErrDuplicatePlaceholder = errors.New("duplicate placeholder")
)

// IntegrityError reports why a chunked document failed verification.
// It unwraps to ErrIncompleteText, ErrMissingPlaceholder or
// ErrDuplicatePlaceholder.
type IntegrityError struct {
	Reason error

	// Indices are the text chunk indices that could not be fetched.
	Indices []int

	// PlaceholderIDs are the placeholders that were missing or duplicated.
	PlaceholderIDs []string
}

func (e *IntegrityError) Error() string {
	var b strings.Builder
	b.WriteString("integrity failure: ")
	b.WriteString(e.Reason.Error())
	if len(e.Indices) > 0 {
		idx := make([]string, len(e.Indices))
		for i, n := range e.Indices {
			idx[i] = strconv.Itoa(n)
		}
		fmt.Fprintf(&b, " (chunks %s)", strings.Join(idx, ", "))
	}
	if len(e.PlaceholderIDs) > 0 {
		fmt.Fprintf(&b, " (placeholders %s)", strings.Join(e.PlaceholderIDs, ", "))
	}
	return b.String()
}

func (e *IntegrityError) Unwrap() error {
	return e.Reason
}
