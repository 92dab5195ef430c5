// Package analyzer derives structural and semantic signals from email
// content: urgency, sentiment, topics, action sentences and basic
// entities. It is deliberately heuristic; no model calls happen here.
package analyzer

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"
)

// Urgency levels, low to high.
const (
	UrgencyLow    = "low"
	UrgencyMedium = "medium"
	UrgencyHigh   = "high"
)

// Sentiment labels.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// Analysis holds the derived signals for one email.
type Analysis struct {
	WordCount     int      `json:"word_count"`
	CharCount     int      `json:"character_count"`
	LineCount     int      `json:"line_count"`
	QuestionCount int      `json:"questions_asked"`
	IsHTML        bool     `json:"is_html"`
	Urgency       string   `json:"urgency_level"`
	Sentiment     string   `json:"sentiment"`
	Topics        []string `json:"topics"`
	Actions       []string `json:"actions_required"`
	IsReply       bool     `json:"is_reply"`
	IsForwarded   bool     `json:"is_forwarded"`
	Entities      Entities `json:"entities"`
}

// Entities are simple pattern-extracted references found in the body.
type Entities struct {
	URLs     []string `json:"urls"`
	Emails   []string `json:"emails"`
	Phones   []string `json:"phone_numbers"`
	Dates    []string `json:"dates"`
	Mentions []string `json:"mentions"`
}

var (
	urlPattern     = regexp.MustCompile(`https?://[^\s<>"]+`)
	emailPattern   = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phonePattern   = regexp.MustCompile(`(\+?1[-.\s]?)?\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}`)
	datePattern    = regexp.MustCompile(`\b(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{1,2},?\s+\d{4}\b`)
	mentionPattern = regexp.MustCompile(`@\w+`)

	tagPattern        = regexp.MustCompile(`<.*?>`)
	scriptPattern     = regexp.MustCompile(`(?is)<script.*?>.*?</script>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	sentenceSplit     = regexp.MustCompile(`[.!?]+`)
)

// sanitizeMaxChars caps content handed to downstream stages.
const sanitizeMaxChars = 10000

// Analyze inspects the subject and body and returns the derived
// signals. It never fails; empty input yields a zero-ish Analysis with
// low urgency and neutral sentiment.
func Analyze(subject, body string) *Analysis {
	fullText := strings.ToLower(subject + " " + body)

	return &Analysis{
		WordCount:     len(strings.Fields(body)),
		CharCount:     len(body),
		LineCount:     lineCount(body),
		QuestionCount: strings.Count(body, "?"),
		IsHTML:        isHTMLContent(body),
		Urgency:       assessUrgency(fullText),
		Sentiment:     analyzeSentiment(fullText),
		Topics:        extractTopics(fullText),
		Actions:       identifyActions(fullText),
		IsReply:       isReply(subject),
		IsForwarded:   isForwarded(subject, body),
		Entities:      ExtractEntities(body),
	}
}

// Sanitize strips HTML, collapses whitespace, removes script content
// and truncates to a processing-safe length.
func Sanitize(content string) string {
	if content == "" {
		return ""
	}

	content = scriptPattern.ReplaceAllString(content, "")
	content = tagPattern.ReplaceAllString(content, "")
	content = html.UnescapeString(content)
	content = whitespacePattern.ReplaceAllString(content, " ")
	content = strings.ReplaceAll(content, "javascript:", "")

	if len(content) > sanitizeMaxChars {
		cut := sanitizeMaxChars
		// Back up to a rune boundary so the cap never splits a
		// multi-byte character.
		for cut > 0 && !utf8.RuneStart(content[cut]) {
			cut--
		}
		content = content[:cut] + "..."
	}

	return strings.TrimSpace(content)
}

// ExtractEntities pulls URLs, addresses, phone numbers, month-name
// dates and @mentions out of the text. Results are deduplicated, first
// occurrence wins.
func ExtractEntities(text string) Entities {
	return Entities{
		URLs:     lo.Uniq(urlPattern.FindAllString(text, -1)),
		Emails:   lo.Uniq(emailPattern.FindAllString(text, -1)),
		Phones:   lo.Uniq(phonePattern.FindAllString(text, -1)),
		Dates:    lo.Uniq(datePattern.FindAllString(text, -1)),
		Mentions: lo.Uniq(mentionPattern.FindAllString(text, -1)),
	}
}

// assessUrgency counts how many distinct urgency keywords appear.
// Three or more mean high, at least one means medium.
func assessUrgency(text string) string {
	score := lo.CountBy(urgencyKeywords, func(kw string) bool {
		return strings.Contains(text, kw)
	})

	switch {
	case score >= 3:
		return UrgencyHigh
	case score >= 1:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

// analyzeSentiment compares positive and negative word counts over
// whitespace-split tokens. Ties are neutral.
func analyzeSentiment(text string) string {
	words := strings.Fields(text)
	positive := lo.CountBy(words, func(w string) bool {
		return lo.Contains(positiveWords, w)
	})
	negative := lo.CountBy(words, func(w string) bool {
		return lo.Contains(negativeWords, w)
	})

	switch {
	case positive > negative:
		return SentimentPositive
	case negative > positive:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

func extractTopics(text string) []string {
	var topics []string
	for _, rule := range topicRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				topics = append(topics, rule.topic)
				break
			}
		}
	}
	return topics
}

// identifyActions returns sentences containing an action keyword.
func identifyActions(text string) []string {
	var actions []string
	for _, raw := range sentenceSplit.Split(text, -1) {
		sentence := strings.TrimSpace(raw)
		if sentence == "" {
			continue
		}
		for _, kw := range actionKeywords {
			if strings.Contains(sentence, kw) {
				actions = append(actions, sentence)
				break
			}
		}
	}
	return actions
}

func isHTMLContent(text string) bool {
	lower := strings.ToLower(text)
	for _, indicator := range htmlIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}

func isReply(subject string) bool {
	return strings.Contains(strings.ToLower(subject), "re:")
}

func isForwarded(subject, body string) bool {
	return strings.Contains(strings.ToLower(subject), "fwd:") ||
		strings.Contains(strings.ToLower(body), "forwarded message")
}

func lineCount(body string) int {
	if body == "" {
		return 0
	}
	return len(strings.Split(strings.TrimRight(body, "\n"), "\n"))
}
