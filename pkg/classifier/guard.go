package classifier

import (
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/prasanthmj/email-agent/pkg/analyzer"
)

// Reasons a guard declines to respond.
const (
	ReasonSpam       = "spam"
	ReasonMassEmail  = "mass_email"
	ReasonNotAllowed = "sender_not_allowed"
	ReasonBlocked    = "sender_blocked"
	ReasonQuietHours = "quiet_hours"
	ReasonTooShort   = "too_short"
	ReasonAutoReply  = "auto_generated"
)

var massIndicators = []string{
	"unsubscribe", "newsletter", "promotional", "marketing",
	"bulk", "campaign", "list serve",
}

var autoReplyIndicators = []string{
	"auto-reply", "automatic", "out of office", "vacation", "away",
}

// Guard is the no-response predicate chain. Predicates run in a fixed
// order and the first veto wins; the returned reason names it.
type Guard struct {
	AllowedSenders []string
	BlockedSenders []string

	// Quiet hours as minutes since midnight, boundaries inclusive.
	// A window wrapping midnight (start > end) is supported.
	QuietStart int
	QuietEnd   int

	// now is swappable for tests; defaults to time.Now.
	now func() time.Time
}

// NewGuard builds a guard with the given sender lists and quiet-hours
// window (minutes since midnight).
func NewGuard(allowed, blocked []string, quietStart, quietEnd int) *Guard {
	return &Guard{
		AllowedSenders: allowed,
		BlockedSenders: blocked,
		QuietStart:     quietStart,
		QuietEnd:       quietEnd,
		now:            time.Now,
	}
}

// ShouldRespond runs the veto chain. A false result comes with the
// reason of the first predicate that vetoed.
func (g *Guard) ShouldRespond(category Category, sender, subject, body string, a *analyzer.Analysis) (bool, string) {
	if category == CategorySpam {
		return false, ReasonSpam
	}

	if isMassEmail(sender, body) {
		return false, ReasonMassEmail
	}

	if len(g.AllowedSenders) > 0 && !lo.Contains(g.AllowedSenders, sender) {
		return false, ReasonNotAllowed
	}

	if lo.Contains(g.BlockedSenders, sender) {
		return false, ReasonBlocked
	}

	// High urgency overrides quiet hours
	if g.inQuietHours() && a.Urgency != analyzer.UrgencyHigh {
		return false, ReasonQuietHours
	}

	if a.WordCount < 3 {
		return false, ReasonTooShort
	}

	subjectLower := strings.ToLower(subject)
	for _, indicator := range autoReplyIndicators {
		if strings.Contains(subjectLower, indicator) {
			return false, ReasonAutoReply
		}
	}

	return true, ""
}

// isMassEmail checks sender address and body for bulk-mail markers.
func isMassEmail(sender, body string) bool {
	text := strings.ToLower(sender + " " + body)
	for _, indicator := range massIndicators {
		if strings.Contains(text, indicator) {
			return true
		}
	}
	return false
}

// inQuietHours reports whether the current wall-clock time falls in
// the configured window. Both boundaries are inclusive.
func (g *Guard) inQuietHours() bool {
	if g.QuietStart == g.QuietEnd {
		return false
	}

	nowFn := g.now
	if nowFn == nil {
		nowFn = time.Now
	}
	t := nowFn()
	minutes := t.Hour()*60 + t.Minute()

	if g.QuietStart <= g.QuietEnd {
		return minutes >= g.QuietStart && minutes <= g.QuietEnd
	}
	// Window wraps midnight, e.g. 22:00 to 08:00
	return minutes >= g.QuietStart || minutes <= g.QuietEnd
}
