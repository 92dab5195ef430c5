// Package processor orchestrates one batch of inbound email through
// validation, analysis, classification, response generation, rate
// limiting and delivery.
package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"

	"github.com/prasanthmj/email-agent/pkg/analyzer"
	"github.com/prasanthmj/email-agent/pkg/classifier"
	"github.com/prasanthmj/email-agent/pkg/config"
	"github.com/prasanthmj/email-agent/pkg/email"
	"github.com/prasanthmj/email-agent/pkg/generator"
	"github.com/prasanthmj/email-agent/pkg/ratelimit"
	"github.com/prasanthmj/email-agent/pkg/storage"
)

// Outcome of processing one message.
type Outcome string

const (
	OutcomeResponded Outcome = "responded"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeErrored   Outcome = "errored"
)

// Skip reasons surfaced in results and the audit trail.
const (
	SkipFilteredNoResponse = "filtered_no_response"
	SkipNoAIResponse       = "no_ai_response"
	SkipSecurityError      = "security_error"
	SkipContentFilter      = "content_filter"
	SkipRateLimited        = "rate_limited"
)

// MailReader is the inbox side of the pipeline.
type MailReader interface {
	FetchUnread(limit int, senderFilter string) ([]*email.Message, error)
	MarkRead(msg *email.Message) error
	Delete(msg *email.Message) error
}

// MailSender delivers generated replies.
type MailSender interface {
	SendReply(to, subject, body, inReplyTo string) error
}

// ResponseGenerator produces reply text for an analyzed message.
type ResponseGenerator interface {
	Generate(ctx context.Context, req generator.Request) (string, bool)
}

// MessageResult records what happened to a single email.
type MessageResult struct {
	MessageID      string  `json:"email_id"`
	Sender         string  `json:"sender"`
	Subject        string  `json:"subject"`
	Outcome        Outcome `json:"outcome"`
	Reason         string  `json:"reason,omitempty"`
	Error          string  `json:"error,omitempty"`
	ResponseLength int     `json:"response_length,omitempty"`
	FallbackUsed   bool    `json:"fallback_used,omitempty"`
	DryRun         bool    `json:"dry_run,omitempty"`
}

// BatchResult summarizes one processing pass.
type BatchResult struct {
	Processed      int             `json:"processed"`
	Responded      int             `json:"responded"`
	Skipped        int             `json:"skipped"`
	Errors         int             `json:"errors"`
	ProcessingTime time.Duration   `json:"processing_time"`
	Results        []MessageResult `json:"results"`
}

// BatchOptions control one ProcessBatch call.
type BatchOptions struct {
	Limit        int
	SenderFilter string
	DryRun       bool
}

// Processor wires the pipeline stages together.
type Processor struct {
	cfg     *config.Config
	reader  MailReader
	sender  MailSender
	gen     ResponseGenerator
	guard   *classifier.Guard
	filter  *classifier.ContentFilter
	limiter *ratelimit.Limiter
	audit   *storage.AuditTrail
	logger  *log.Logger
	stats   Stats
}

// New assembles a processor. audit may be nil to disable the trail.
func New(
	cfg *config.Config,
	reader MailReader,
	sender MailSender,
	gen ResponseGenerator,
	guard *classifier.Guard,
	limiter *ratelimit.Limiter,
	audit *storage.AuditTrail,
	logger *log.Logger,
) *Processor {
	return &Processor{
		cfg:     cfg,
		reader:  reader,
		sender:  sender,
		gen:     gen,
		guard:   guard,
		filter:  classifier.NewContentFilter(),
		limiter: limiter,
		audit:   audit,
		logger:  logger,
	}
}

// ProcessBatch fetches unread mail and runs each message through the
// pipeline. The batch keeps going when individual messages fail; only
// a fetch failure aborts it.
func (p *Processor) ProcessBatch(ctx context.Context, opts BatchOptions) (*BatchResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = p.cfg.MaxEmailsPerBatch
	}

	// With auto-reply disabled every pass is a dry run: analysis and
	// generation still happen, nothing is sent or mutated.
	if !p.cfg.AutoReplyEnabled {
		opts.DryRun = true
	}

	p.logger.Info("starting batch", "limit", limit, "dry_run", opts.DryRun)

	messages, err := p.reader.FetchUnread(limit, opts.SenderFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unread emails: %w", err)
	}

	result := &BatchResult{}
	if len(messages) == 0 {
		p.logger.Info("no unread emails to process")
		return result, nil
	}

	start := time.Now()
	for _, msg := range messages {
		if ctx.Err() != nil {
			break
		}

		mr := p.processOne(ctx, msg, opts.DryRun)
		result.Results = append(result.Results, mr)
		result.Processed++

		switch mr.Outcome {
		case OutcomeResponded:
			result.Responded++
			p.stats.recordResponded()
		case OutcomeSkipped:
			result.Skipped++
			p.stats.recordSkipped()
		default:
			result.Errors++
			p.stats.recordErrored()
		}
	}
	result.ProcessingTime = time.Since(start)

	p.logger.Info("batch completed",
		"processed", result.Processed,
		"responded", result.Responded,
		"skipped", result.Skipped,
		"errors", result.Errors,
		"duration", result.ProcessingTime)

	return result, nil
}

// processOne runs a single message through the pipeline. It never
// panics the batch; every failure maps to a skipped or errored result.
func (p *Processor) processOne(ctx context.Context, msg *email.Message, dryRun bool) MessageResult {
	res := MessageResult{
		MessageID: msg.MessageID,
		Sender:    msg.From,
		Subject:   msg.Subject,
		DryRun:    dryRun,
	}

	p.logger.Info("processing email", "sender", msg.From, "subject", msg.Subject)

	if reason, err := p.validate(msg); err != nil {
		p.logger.Warn("email failed validation", "sender", msg.From, "error", err)
		res.Outcome = OutcomeSkipped
		res.Reason = reason
		res.Error = err.Error()
		p.recordAudit(msg, "validation_rejected", res)
		return res
	}

	body := analyzer.Sanitize(msg.Body)
	analysis := analyzer.Analyze(msg.Subject, body)

	p.logger.Debug("email analyzed",
		"sender", msg.From,
		"word_count", analysis.WordCount,
		"urgency", analysis.Urgency)

	category := classifier.Classify(msg.From, msg.Subject, body)

	if ok, reason := p.guard.ShouldRespond(category, msg.From, msg.Subject, body, analysis); !ok {
		p.logger.Info("email flagged for no response",
			"sender", msg.From, "category", category, "reason", reason)
		p.markReadQuietly(msg, dryRun)
		res.Outcome = OutcomeSkipped
		res.Reason = SkipFilteredNoResponse
		p.recordAudit(msg, "marked_read_no_response", res)
		return res
	}

	reply, fellBack := p.gen.Generate(ctx, generator.Request{
		Sender:     msg.From,
		SenderName: msg.FromName,
		Subject:    msg.Subject,
		Body:       body,
		Category:   category,
		Analysis:   analysis,
	})
	if reply == "" {
		p.logger.Info("no response generated", "sender", msg.From)
		p.markReadQuietly(msg, dryRun)
		res.Outcome = OutcomeSkipped
		res.Reason = SkipNoAIResponse
		p.recordAudit(msg, "marked_read_no_response", res)
		return res
	}

	res.ResponseLength = len(reply)
	res.FallbackUsed = fellBack

	if dryRun {
		// Nothing is sent and no state changes in dry-run mode; the
		// limiter stays untouched so a later real run is unaffected.
		res.Outcome = OutcomeResponded
		return res
	}

	if !p.limiter.Allow(msg.From) {
		p.logger.Warn("rate limit reached for recipient", "recipient", msg.From)
		p.markReadQuietly(msg, dryRun)
		res.Outcome = OutcomeSkipped
		res.Reason = SkipRateLimited
		p.recordAudit(msg, "rate_limited", res)
		return res
	}

	if err := p.sender.SendReply(msg.From, msg.Subject, reply, msg.MessageID); err != nil {
		p.logger.Error("failed to send reply", "recipient", msg.From, "error", err)
		res.Outcome = OutcomeErrored
		res.Error = err.Error()
		p.recordAudit(msg, "send_failed", res)
		return res
	}

	p.logger.Info("reply sent", "recipient", msg.From, "length", len(reply))
	p.cleanup(msg)

	res.Outcome = OutcomeResponded
	p.recordAudit(msg, "processed_and_responded", res)
	return res
}

// validate applies the security checks that run before any analysis.
func (p *Processor) validate(msg *email.Message) (string, error) {
	if len(p.cfg.AllowedSenders) > 0 && !lo.Contains(p.cfg.AllowedSenders, msg.From) {
		return SkipSecurityError, fmt.Errorf("sender not in allowed list: %s", msg.From)
	}
	if lo.Contains(p.cfg.BlockedSenders, msg.From) {
		return SkipSecurityError, fmt.Errorf("sender blocked: %s", msg.From)
	}

	if p.cfg.ContentFilterEnabled {
		if len(msg.Subject)+len(msg.Body) > p.cfg.MaxContentChars {
			return SkipSecurityError, fmt.Errorf("email content too large")
		}
		if !p.filter.IsSafe(msg.Body) {
			return SkipContentFilter, classifier.ErrContentBlocked
		}
	}

	if total := msg.TotalAttachmentSize(); total > p.cfg.MaxAttachmentSize {
		return SkipSecurityError, fmt.Errorf("attachments too large: %d bytes", total)
	}

	return "", nil
}

// cleanup marks the message read and deletes it when configured. Both
// operations are best effort.
func (p *Processor) cleanup(msg *email.Message) {
	if err := p.reader.MarkRead(msg); err != nil {
		p.logger.Error("failed to mark email read", "message_id", msg.MessageID, "error", err)
		return
	}
	if p.cfg.DeleteProcessed {
		if err := p.reader.Delete(msg); err != nil {
			p.logger.Error("failed to delete email", "message_id", msg.MessageID, "error", err)
			return
		}
		p.logger.Debug("email deleted after processing", "message_id", msg.MessageID)
	}
}

func (p *Processor) markReadQuietly(msg *email.Message, dryRun bool) {
	if dryRun {
		return
	}
	if err := p.reader.MarkRead(msg); err != nil {
		p.logger.Error("failed to mark email read", "message_id", msg.MessageID, "error", err)
	}
}

// recordAudit appends to the trail when enabled. Audit failures are
// logged, never propagated.
func (p *Processor) recordAudit(msg *email.Message, action string, res MessageResult) {
	if p.audit == nil || res.DryRun {
		return
	}
	rec := storage.AuditRecord{
		Sender:  msg.From,
		Subject: msg.Subject,
		Action:  action,
		Outcome: string(res.Outcome),
		Reason:  res.Reason,
	}
	if err := p.audit.Record(rec); err != nil {
		p.logger.Error("failed to write audit record", "error", err)
	}
}

// Stats returns a snapshot of the lifetime counters. The error return
// lets callers that persist counters elsewhere surface retrieval
// failures; the in-memory implementation never fails.
func (p *Processor) Stats() (StatsSnapshot, error) {
	return p.stats.Snapshot(), nil
}

// ResetStats zeroes the lifetime counters.
func (p *Processor) ResetStats() {
	p.stats.Reset()
	p.logger.Info("processing statistics reset")
}
