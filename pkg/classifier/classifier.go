// Package classifier assigns incoming email a category and decides
// whether the agent should reply at all. Classification is keyword
// based; the guard chain applies the no-response policy.
package classifier

import "strings"

// Category labels an email for response template selection.
type Category string

const (
	CategoryBusinessInquiry Category = "business_inquiry"
	CategoryPersonalMessage Category = "personal_message"
	CategorySupportRequest  Category = "support_request"
	CategoryMeetingRequest  Category = "meeting_request"
	CategoryJobApplication  Category = "job_application"
	CategorySalesPitch      Category = "sales_pitch"
	CategoryNewsletter      Category = "newsletter"
	CategoryUnclear         Category = "unclear"
	CategorySpam            Category = "spam"
)

// keywordRule maps a category to its trigger keywords. Rules are
// evaluated in order; the first match wins, so spam outranks
// everything else.
type keywordRule struct {
	category Category
	keywords []string
}

var rules = []keywordRule{
	{CategorySpam, []string{
		"unsubscribe", "click here", "limited time", "act now",
		"congratulations", "winner", "free money", "guarantee",
	}},
	{CategoryMeetingRequest, []string{"meeting", "schedule", "appointment", "call", "discuss"}},
	{CategorySupportRequest, []string{"help", "issue", "problem", "support", "broken", "error"}},
	{CategoryJobApplication, []string{"application", "resume", "cv", "position", "hiring", "interview"}},
	{CategoryBusinessInquiry, []string{"inquiry", "proposal", "business", "service", "price", "quote"}},
}

var personalDomains = []string{"gmail.com", "yahoo.com", "outlook.com"}

// Classify determines the email category from sender address, subject
// and body. Keyword rules run first; when none match, a personal
// provider domain classifies the mail as personal, otherwise unclear.
func Classify(sender, subject, body string) Category {
	text := strings.ToLower(subject + " " + body)

	for _, rule := range rules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return rule.category
			}
		}
	}

	senderLower := strings.ToLower(sender)
	for _, domain := range personalDomains {
		if strings.Contains(senderLower, domain) {
			return CategoryPersonalMessage
		}
	}

	return CategoryUnclear
}
