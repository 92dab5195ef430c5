package classifier

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrContentBlocked signals that text failed the safety check.
var ErrContentBlocked = errors.New("content failed safety check")

// ContentFilter screens text for disallowed keywords. It runs on both
// inbound bodies and generated replies.
type ContentFilter struct {
	blockedKeywords []string
}

// NewContentFilter returns a filter with the default keyword set.
func NewContentFilter() *ContentFilter {
	return &ContentFilter{
		blockedKeywords: []string{
			"explicit", "adult", "nsfw",
			"harmful", "dangerous", "illegal",
			"ssn", "social security", "credit card", "password",
			"click here", "act now", "limited offer",
		},
	}
}

// IsSafe reports whether the content passes the keyword screen.
// Empty content is safe.
func (f *ContentFilter) IsSafe(content string) bool {
	if content == "" {
		return true
	}

	lower := strings.ToLower(content)
	for _, kw := range f.blockedKeywords {
		if strings.Contains(lower, kw) {
			return false
		}
	}
	return true
}

// Check returns ErrContentBlocked when the content is unsafe.
func (f *ContentFilter) Check(content string) error {
	if !f.IsSafe(content) {
		return ErrContentBlocked
	}
	return nil
}
