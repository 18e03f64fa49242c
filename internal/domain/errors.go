package domain

import "errors"

// ErrMissingCredential and related errors describe form validation failures.
var (
	ErrMissingCredential = errors.New("missing credential")
	ErrMissingWord       = errors.New("missing word")
	ErrMissingWords      = errors.New("missing words")
	ErrMissingFile       = errors.New("missing file")
	ErrInvalidMode       = errors.New("invalid mode")
)

// ValidationMessage maps one validation error to the text shown in the output region.
func ValidationMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrMissingCredential):
		return "Please provide your API key.", true
	case errors.Is(err, ErrMissingWord):
		return "Please enter a word.", true
	case errors.Is(err, ErrMissingWords):
		return "Please enter one or more words.", true
	case errors.Is(err, ErrMissingFile):
		return "Please upload a .txt file.", true
	default:
		return "", false
	}
}
