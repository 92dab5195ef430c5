package generator

import (
	"fmt"
	"strings"

	"github.com/prasanthmj/email-agent/pkg/analyzer"
	"github.com/prasanthmj/email-agent/pkg/classifier"
)

// Response styles.
const (
	StyleFormal   = "formal"
	StyleCasual   = "casual"
	StyleBusiness = "business"
)

// promptTemplate pairs a system prompt with the user prompt skeleton
// for one email category.
type promptTemplate struct {
	system      string
	user        string
	constraints []string
}

var templates = map[classifier.Category]promptTemplate{
	classifier.CategoryBusinessInquiry: {
		system: "You are a professional assistant responding to business inquiries. Be helpful, professional, and concise. Provide accurate information or appropriate next steps.",
		user: `Generate a professional response to this business inquiry:

From: %s (%s)
Subject: %s

Email content:
%s

Guidelines:
- Acknowledge their inquiry professionally
- Provide relevant information or next steps
- Keep it concise and business-appropriate
- Include a clear call to action if needed
- Be helpful but avoid making promises you can't keep`,
		constraints: []string{
			"Keep response under 200 words",
			"Maintain professional tone",
			"Don't make commitments without authority",
		},
	},
	classifier.CategoryPersonalMessage: {
		system: "You are an assistant responding to personal messages. Be warm, friendly, and appropriate for personal communication.",
		user: `Generate a friendly response to this personal message:

From: %s (%s)
Subject: %s

Message content:
%s

Guidelines:
- Acknowledge their message warmly
- Respond to any questions or points they made
- Keep the tone friendly and personal
- Be genuine and authentic
- Consider the relationship context`,
		constraints: []string{
			"Keep response under 150 words",
			"Maintain warm, personal tone",
			"Be genuine and authentic",
		},
	},
	classifier.CategorySupportRequest: {
		system: "You are a helpful support assistant. Provide clear, helpful information to resolve their issue or guide them to the right resources.",
		user: `Generate a helpful response to this support request:

From: %s (%s)
Subject: %s

Support request:
%s

Guidelines:
- Acknowledge their issue and show empathy
- Provide clear steps to resolve the problem
- Offer additional help if needed
- Be professional and supportive
- Include relevant contact information for further help`,
		constraints: []string{
			"Focus on practical solutions",
			"Use simple, clear language",
			"Provide specific action steps",
		},
	},
	classifier.CategoryMeetingRequest: {
		system: "You are an assistant managing meeting requests. Be clear, organized, and helpful with scheduling.",
		user: `Generate a response to this meeting request:

From: %s (%s)
Subject: %s

Meeting request:
%s

Guidelines:
- Acknowledge their meeting request
- Address their suggested times or propose alternatives
- Ask for agenda if not provided
- Confirm meeting format (in-person, video call, phone)
- Be clear about availability and next steps`,
		constraints: []string{
			"Be specific about availability",
			"Propose concrete alternatives if needed",
			"Request agenda if unclear",
		},
	},
	classifier.CategoryUnclear: {
		system: "You are an assistant responding to unclear emails. Ask for clarification politely and help guide the conversation.",
		user: `Generate a response asking for clarification about this unclear email:

From: %s (%s)
Subject: %s

Unclear request:
%s

Guidelines:
- Acknowledge their message politely
- Identify what information you need to help them
- Ask specific, clarifying questions
- Be helpful and patient
- Suggest ways they can provide more details`,
		constraints: []string{
			"Ask specific clarifying questions",
			"Be patient and helpful",
			"Don't make assumptions",
		},
	},
}

var defaultTemplate = promptTemplate{
	system: "You are a helpful email assistant. Generate appropriate, polite, and useful responses.",
	user: `Generate an appropriate response to this email:

From: %s (%s)
Subject: %s

Email content:
%s

Guidelines:
- Acknowledge their message
- Respond appropriately to their content
- Be polite and helpful
- Keep the response concise
- Include appropriate next steps if needed`,
	constraints: []string{
		"Keep response under 200 words",
		"Maintain appropriate tone",
		"Be helpful and constructive",
	},
}

var styleGuidelines = map[string]string{
	StyleFormal: `Formal Communication Style:
- Use proper salutations (Dear, Sincerely, Best regards)
- Avoid contractions (use "do not" instead of "don't")
- Use complete sentences and proper grammar
- Be respectful and professional
- Avoid slang or casual expressions
- Keep paragraphs concise and well-structured`,
	StyleCasual: `Casual Communication Style:
- Use friendly greetings (Hi, Hello, Hey)
- Contractions are acceptable
- Can be more conversational
- Still be respectful but less formal
- Appropriate for familiar contacts
- Keep tone warm and approachable`,
	StyleBusiness: `Business Communication Style:
- Professional but not overly formal
- Clear and concise
- Focus on efficiency and results
- Include relevant business context
- Appropriate use of business terminology
- Maintain professional boundaries`,
}

// fallbackTemplates are canned replies keyed by urgency, used when
// generation fails.
var fallbackTemplates = map[string]string{
	analyzer.UrgencyHigh:   "Thank you for your email. I've received your urgent message and will get back to you as soon as possible.",
	analyzer.UrgencyMedium: "Thank you for your email. I've received your message and will respond within 24 hours.",
	analyzer.UrgencyLow:    "Thank you for your email. I've received your message and will respond when able.",
}

// templateFor returns the category's template, falling back to the
// general one for categories without a dedicated prompt.
func templateFor(category classifier.Category) promptTemplate {
	if tpl, ok := templates[category]; ok {
		return tpl
	}
	return defaultTemplate
}

// buildPrompt assembles the system and user prompts for one email.
func buildPrompt(category classifier.Category, senderName, senderEmail, subject, body, style string) (string, string) {
	tpl := templateFor(category)

	if senderName == "" {
		senderName = "Unknown"
	}
	if subject == "" {
		subject = "No subject"
	}
	if body == "" {
		body = "No content"
	}

	system := tpl.system
	if guide, ok := styleGuidelines[style]; ok {
		system += "\n\n" + guide
	} else {
		system += "\n\n" + styleGuidelines[StyleBusiness]
	}

	user := fmt.Sprintf(tpl.user, senderName, senderEmail, subject, body)
	if len(tpl.constraints) > 0 {
		var b strings.Builder
		b.WriteString(user)
		b.WriteString("\n\nAdditional constraints:\n")
		for _, c := range tpl.constraints {
			b.WriteString("- ")
			b.WriteString(c)
			b.WriteString("\n")
		}
		user = strings.TrimRight(b.String(), "\n")
	}

	return system, user
}

// FallbackResponse returns the canned reply for the given urgency.
// Unknown urgency maps to medium.
func FallbackResponse(urgency string) string {
	if resp, ok := fallbackTemplates[urgency]; ok {
		return resp
	}
	return fallbackTemplates[analyzer.UrgencyMedium]
}
