package domain

import "strings"

// FormInput holds the raw field values of the analysis form.
type FormInput struct {
	Credential string
	Word       string
	WordsText  string
	FilePath   string
}

// Submission is one validated analysis request for a single mode.
type Submission struct {
	Mode       Mode
	Credential string
	Word       string
	Words      []string
	FilePath   string
}

// NewSubmission validates form input for the requested mode.
// The credential is checked before the mode-specific input.
func NewSubmission(mode Mode, in FormInput) (Submission, error) {
	if !mode.Valid() {
		return Submission{}, ErrInvalidMode
	}
	credential := strings.TrimSpace(in.Credential)
	if credential == "" {
		return Submission{}, ErrMissingCredential
	}
	sub := Submission{Mode: mode, Credential: credential}
	switch mode {
	case ModeSingle:
		sub.Word = strings.TrimSpace(in.Word)
		if sub.Word == "" {
			return Submission{}, ErrMissingWord
		}
	case ModeBatch:
		sub.Words = ParseWords(in.WordsText)
		if len(sub.Words) == 0 {
			return Submission{}, ErrMissingWords
		}
	case ModeFile:
		sub.FilePath = strings.TrimSpace(in.FilePath)
		if sub.FilePath == "" {
			return Submission{}, ErrMissingFile
		}
	}
	return sub, nil
}

// ParseWords splits newline-separated text into trimmed, non-empty words.
func ParseWords(text string) []string {
	lines := strings.Split(text, "\n")
	words := make([]string, 0, len(lines))
	for _, line := range lines {
		word := strings.TrimSpace(line)
		if word == "" {
			continue
		}
		words = append(words, word)
	}
	return words
}

// Summary returns a short description of the submitted input for history listings.
func (s Submission) Summary() string {
	switch s.Mode {
	case ModeSingle:
		return s.Word
	case ModeBatch:
		const maxShown = 3
		if len(s.Words) <= maxShown {
			return strings.Join(s.Words, ", ")
		}
		return strings.Join(s.Words[:maxShown], ", ") + ", ..."
	case ModeFile:
		return s.FilePath
	default:
		return ""
	}
}
