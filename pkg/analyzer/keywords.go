package analyzer

// Keyword tables driving the heuristic analysis. Matching is
// case-insensitive substring over subject plus body.

var urgencyKeywords = []string{
	"urgent", "asap", "immediately", "right away", "as soon as possible",
	"emergency", "critical", "priority", "important", "time sensitive",
	"deadline", "due today", "due tomorrow", "overdue",
}

var actionKeywords = []string{
	"please", "could you", "would you", "can you", "need", "help", "assist",
	"review", "check", "look at", "examine", "consider", "approve", "reject",
	"confirm", "verify", "validate", "schedule", "arrange", "organize",
	"contact", "reach out", "call", "email", "reply", "respond", "send",
}

var positiveWords = []string{
	"good", "great", "excellent", "wonderful", "amazing", "love", "like",
	"happy", "pleased",
}

var negativeWords = []string{
	"bad", "terrible", "awful", "hate", "dislike", "angry", "frustrated",
	"disappointed", "problem",
}

// topicRule pairs a topic label with its trigger keywords. Order is
// significant: reported topics follow this order, not match order.
type topicRule struct {
	topic    string
	keywords []string
}

var topicRules = []topicRule{
	{"meeting", []string{"meeting", "schedule", "appointment", "call", "conference"}},
	{"project", []string{"project", "task", "deadline", "milestone", "deliverable"}},
	{"finance", []string{"payment", "invoice", "budget", "cost", "price", "quote"}},
	{"support", []string{"help", "support", "issue", "problem", "bug", "error"}},
	{"sales", []string{"sale", "order", "purchase", "buy", "customer", "client"}},
	{"hr", []string{"hr", "human resources", "hiring", "interview", "employee", "team"}},
	{"technical", []string{"technical", "development", "programming", "code", "system", "software"}},
}

var htmlIndicators = []string{"<html", "<div", "<p>", "<br>", "<span", "<body"}
