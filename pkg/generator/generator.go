// Package generator turns an analyzed email into a reply, calling the
// completion client with a category-specific prompt and degrading to a
// canned reply when the model is unavailable.
package generator

import (
	"context"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/prasanthmj/email-agent/pkg/ai"
	"github.com/prasanthmj/email-agent/pkg/analyzer"
	"github.com/prasanthmj/email-agent/pkg/classifier"
)

// CompletionClient is the slice of ai.Client the generator needs.
type CompletionClient interface {
	Generate(ctx context.Context, req ai.GenerateRequest) (*ai.GenerateResult, error)
}

// Request carries one email through response generation.
type Request struct {
	Sender     string
	SenderName string
	Subject    string
	Body       string
	Category   classifier.Category
	Analysis   *analyzer.Analysis
	Style      string
}

// Generator produces replies for inbound email.
type Generator struct {
	client CompletionClient
	filter *classifier.ContentFilter
	logger *log.Logger
}

// New builds a Generator on top of a completion client.
func New(client CompletionClient, logger *log.Logger) *Generator {
	return &Generator{
		client: client,
		filter: classifier.NewContentFilter(),
		logger: logger,
	}
}

// Generate returns the reply text for the request. Model failures and
// unsafe model output degrade to an urgency-keyed fallback instead of
// returning an error; the boolean reports whether the fallback was
// used. An empty result means the email should be skipped without a
// reply.
func (g *Generator) Generate(ctx context.Context, req Request) (string, bool) {
	body := cleanBody(req.Body)
	senderName := req.SenderName
	if senderName == "" {
		senderName = nameFromAddress(req.Sender)
	}

	style := req.Style
	if style == "" {
		style = DetermineStyle(req.Analysis)
	}

	system, user := buildPrompt(req.Category, senderName, req.Sender, req.Subject, body, style)

	result, err := g.client.Generate(ctx, ai.GenerateRequest{
		SystemPrompt: system,
		UserPrompt:   user,
	})
	if err != nil {
		g.logger.Warn("generation failed, using fallback",
			"sender", req.Sender, "error", err)
		return FallbackResponse(req.Analysis.Urgency), true
	}

	cleaned := CleanResponse(result.Text)
	if cleaned == "" {
		g.logger.Info("model returned empty response", "sender", req.Sender)
		return "", false
	}

	if !g.filter.IsSafe(cleaned) {
		g.logger.Warn("generated response failed safety check, using fallback",
			"sender", req.Sender)
		return FallbackResponse(req.Analysis.Urgency), true
	}

	return cleaned, false
}

// DetermineStyle picks the response style from the analysis: high
// urgency stays business-direct, personal topics go casual.
func DetermineStyle(a *analyzer.Analysis) string {
	if a == nil {
		return StyleBusiness
	}
	if a.Urgency == analyzer.UrgencyHigh {
		return StyleBusiness
	}
	for _, topic := range a.Topics {
		if topic == "personal" {
			return StyleCasual
		}
	}
	return StyleBusiness
}

var (
	whitespaceRun  = regexp.MustCompile(`\s+`)
	responseMarker = regexp.MustCompile(`(?i)Response:`)
	quoteMarkers   = regexp.MustCompile(`>+`)
)

var signatureMarkers = []string{"--", "sent from", "regards", "sincerely"}

// cleanBody normalizes the inbound body before prompting: collapses
// whitespace, drops quote markers and truncates at the first
// signature-looking line.
func cleanBody(body string) string {
	if body == "" {
		return ""
	}

	body = quoteMarkers.ReplaceAllString(body, "")

	var kept []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		lower := strings.ToLower(line)
		stop := false
		for _, marker := range signatureMarkers {
			if strings.Contains(lower, marker) {
				stop = true
				break
			}
		}
		if stop {
			break
		}
		if line != "" {
			kept = append(kept, line)
		}
	}

	return strings.TrimSpace(whitespaceRun.ReplaceAllString(strings.Join(kept, " "), " "))
}

// CleanResponse normalizes model output: collapses whitespace, strips
// prompt echo and appends a sign-off when the model left none.
func CleanResponse(response string) string {
	if response == "" {
		return ""
	}

	response = whitespaceRun.ReplaceAllString(response, " ")
	response = responseMarker.ReplaceAllString(response, "")
	response = strings.TrimSpace(response)

	if response == "" {
		return ""
	}

	lower := strings.ToLower(response)
	if !strings.Contains(lower, "thanks") &&
		!strings.Contains(lower, "regards") &&
		!strings.Contains(lower, "sincerely") {
		response += "\n\nBest regards"
	}

	return response
}

// nameFromAddress derives a display name from the local part of an
// email address.
func nameFromAddress(addr string) string {
	local, _, found := strings.Cut(addr, "@")
	if !found || local == "" {
		return addr
	}
	return strings.ToUpper(local[:1]) + local[1:]
}
