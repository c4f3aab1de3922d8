package requestform

import (
	"regexp"
	"strings"

	"k8s.io/apimachinery/pkg/util/validation"
)

// Tag-level error texts.
const (
	EmailTagError     = "Subjects must be valid email addresses"
	NamespaceTagError = "Namespace must contain only lowercase alphanumeric characters or '-', " +
		"start and end with an alphanumeric character, and be no more than 63 characters long."
)

var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidEmail reports whether s looks like an email address.
func ValidEmail(s string) bool {
	return emailRe.MatchString(s)
}

// ValidNamespace reports whether s is a valid namespace name (an RFC 1123
// DNS label).
func ValidNamespace(s string) bool {
	return len(validation.IsDNS1123Label(s)) == 0
}

// TagInput is a list of validated values entered one token at a time.
type TagInput struct {
	tags     []string
	validate func(string) bool
	errText  string
	err      string
}

func newTagInput(validate func(string) bool, errText string) *TagInput {
	return &TagInput{validate: validate, errText: errText}
}

// Add splits raw on commas and whitespace and adds every valid token.
// Invalid tokens are not added; they set the tag-level error. Duplicates
// are ignored. It reports whether every token was accepted.
func (t *TagInput) Add(raw string) bool {
	ok := true
	for _, tok := range splitTokens(raw) {
		if !t.validate(tok) {
			t.err = t.errText
			ok = false
			continue
		}
		if !t.Contains(tok) {
			t.tags = append(t.tags, tok)
		}
	}
	if ok {
		t.err = ""
	}
	return ok
}

// Remove deletes value if present.
func (t *TagInput) Remove(value string) {
	for i, v := range t.tags {
		if v == value {
			t.tags = append(t.tags[:i], t.tags[i+1:]...)
			return
		}
	}
}

// Contains reports whether value is a tag.
func (t *TagInput) Contains(value string) bool {
	for _, v := range t.tags {
		if v == value {
			return true
		}
	}
	return false
}

// Tags returns a copy of the accepted values.
func (t *TagInput) Tags() []string {
	return append([]string(nil), t.tags...)
}

// Len returns the number of accepted values.
func (t *TagInput) Len() int { return len(t.tags) }

// Error returns the current tag-level error, or "".
func (t *TagInput) Error() string { return t.err }

// Reset clears tags and error.
func (t *TagInput) Reset() {
	t.tags = nil
	t.err = ""
}

func splitTokens(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
}
