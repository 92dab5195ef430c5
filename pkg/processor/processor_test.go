package processor

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prasanthmj/email-agent/pkg/ai"
	"github.com/prasanthmj/email-agent/pkg/classifier"
	"github.com/prasanthmj/email-agent/pkg/config"
	"github.com/prasanthmj/email-agent/pkg/email"
	"github.com/prasanthmj/email-agent/pkg/generator"
	"github.com/prasanthmj/email-agent/pkg/ratelimit"
)

type fakeReader struct {
	messages  []*email.Message
	fetchErr  error
	markedIDs []string
	deleted   []string
}

func (f *fakeReader) FetchUnread(limit int, senderFilter string) ([]*email.Message, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	msgs := f.messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

func (f *fakeReader) MarkRead(msg *email.Message) error {
	f.markedIDs = append(f.markedIDs, msg.MessageID)
	return nil
}

func (f *fakeReader) Delete(msg *email.Message) error {
	f.deleted = append(f.deleted, msg.MessageID)
	return nil
}

type fakeSender struct {
	sent    []sentReply
	sendErr error
}

type sentReply struct {
	to, subject, body, inReplyTo string
}

func (f *fakeSender) SendReply(to, subject, body, inReplyTo string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentReply{to, subject, body, inReplyTo})
	return nil
}

type fakeGenerator struct {
	reply    string
	fellBack bool
}

func (f *fakeGenerator) Generate(_ context.Context, _ generator.Request) (string, bool) {
	return f.reply, f.fellBack
}

func testMessage(id, from, subject, body string) *email.Message {
	return &email.Message{
		MessageID: id,
		UID:       1,
		Folder:    "INBOX",
		From:      from,
		Subject:   subject,
		Body:      body,
		Date:      time.Now(),
	}
}

type fixture struct {
	proc   *Processor
	reader *fakeReader
	sender *fakeSender
	gen    *fakeGenerator
	cfg    *config.Config
}

func newFixture(messages ...*email.Message) *fixture {
	cfg := &config.Config{
		AutoReplyEnabled:     true,
		MaxEmailsPerBatch:    10,
		DeleteProcessed:      true,
		ContentFilterEnabled: true,
		MaxContentChars:      50000,
		MaxAttachmentSize:    5 * 1024 * 1024,
	}

	reader := &fakeReader{messages: messages}
	sender := &fakeSender{}
	gen := &fakeGenerator{reply: "Happy to help. Best regards"}

	// Daytime guard so quiet hours never interfere
	guard := classifier.NewGuard(nil, nil, 0, 0)
	limiter := ratelimit.New(5*time.Minute, 5)
	logger := log.New(io.Discard)

	proc := New(cfg, reader, sender, gen, guard, limiter, nil, logger)
	return &fixture{proc: proc, reader: reader, sender: sender, gen: gen, cfg: cfg}
}

func TestProcessBatchRespondsAndCleansUp(t *testing.T) {
	f := newFixture(testMessage("<m1>", "alice@corp.example", "Sync", "can we schedule a call this week?"))

	result, err := f.proc.ProcessBatch(context.Background(), BatchOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Responded)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 0, result.Errors)

	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "alice@corp.example", f.sender.sent[0].to)
	assert.Equal(t, "<m1>", f.sender.sent[0].inReplyTo)
	assert.Equal(t, []string{"<m1>"}, f.reader.markedIDs)
	assert.Equal(t, []string{"<m1>"}, f.reader.deleted)

	stats, err := f.proc.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalProcessed)
	assert.Equal(t, 1, stats.SuccessfulResponses)
}

func TestProcessBatchEmptyInbox(t *testing.T) {
	f := newFixture()

	result, err := f.proc.ProcessBatch(context.Background(), BatchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Processed)
	assert.Empty(t, result.Results)
}

func TestProcessBatchFetchErrorAborts(t *testing.T) {
	f := newFixture()
	f.reader.fetchErr = errors.New("imap down")

	_, err := f.proc.ProcessBatch(context.Background(), BatchOptions{})
	assert.Error(t, err)
}

func TestSpamIsNeverAnswered(t *testing.T) {
	f := newFixture(testMessage("<m1>", "promo@corp.example", "Congratulations WINNER", "you are a winner of free money, click to claim your prize now"))

	result, err := f.proc.ProcessBatch(context.Background(), BatchOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, SkipFilteredNoResponse, result.Results[0].Reason)
	assert.Empty(t, f.sender.sent)
	// Skipped mail is marked read but never deleted
	assert.Equal(t, []string{"<m1>"}, f.reader.markedIDs)
	assert.Empty(t, f.reader.deleted)
}

func TestBlockedSenderSkipsWithSecurityError(t *testing.T) {
	f := newFixture(testMessage("<m1>", "bad@corp.example", "Hello", "a normal enough message body"))
	f.cfg.BlockedSenders = []string{"bad@corp.example"}

	result, err := f.proc.ProcessBatch(context.Background(), BatchOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, SkipSecurityError, result.Results[0].Reason)
	assert.Empty(t, f.sender.sent)
}

func TestAllowlistExcludesOthers(t *testing.T) {
	f := newFixture(testMessage("<m1>", "stranger@corp.example", "Hello", "a normal enough message body"))
	f.cfg.AllowedSenders = []string{"friend@corp.example"}

	result, err := f.proc.ProcessBatch(context.Background(), BatchOptions{})
	require.NoError(t, err)

	assert.Equal(t, SkipSecurityError, result.Results[0].Reason)
}

func TestOversizeContentRejected(t *testing.T) {
	f := newFixture(testMessage("<m1>", "x@corp.example", "big", string(make([]byte, 60000))))

	result, err := f.proc.ProcessBatch(context.Background(), BatchOptions{})
	require.NoError(t, err)

	assert.Equal(t, SkipSecurityError, result.Results[0].Reason)
}

func TestUnsafeInboundContentSkipped(t *testing.T) {
	f := newFixture(testMessage("<m1>", "x@corp.example", "hello", "please send me your credit card details right away"))

	result, err := f.proc.ProcessBatch(context.Background(), BatchOptions{})
	require.NoError(t, err)

	assert.Equal(t, SkipContentFilter, result.Results[0].Reason)
}

func TestOversizeAttachmentsRejected(t *testing.T) {
	msg := testMessage("<m1>", "x@corp.example", "files", "here are the files you asked about")
	msg.Attachments = []email.Attachment{{Filename: "big.iso", Size: 6 * 1024 * 1024}}
	f := newFixture(msg)

	result, err := f.proc.ProcessBatch(context.Background(), BatchOptions{})
	require.NoError(t, err)

	assert.Equal(t, SkipSecurityError, result.Results[0].Reason)
}

func TestEmptyGenerationSkips(t *testing.T) {
	f := newFixture(testMessage("<m1>", "x@corp.example", "question", "could you explain how this works?"))
	f.gen.reply = ""

	result, err := f.proc.ProcessBatch(context.Background(), BatchOptions{})
	require.NoError(t, err)

	assert.Equal(t, SkipNoAIResponse, result.Results[0].Reason)
	assert.Empty(t, f.sender.sent)
	assert.Equal(t, []string{"<m1>"}, f.reader.markedIDs)
}

func TestFallbackStillCountsAsResponded(t *testing.T) {
	f := newFixture(testMessage("<m1>", "x@corp.example", "question", "could you explain how this works?"))
	f.gen.reply = "Thank you for your email. I've received your message and will respond within 24 hours."
	f.gen.fellBack = true

	result, err := f.proc.ProcessBatch(context.Background(), BatchOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Responded)
	assert.True(t, result.Results[0].FallbackUsed)
	require.Len(t, f.sender.sent, 1)
}

func TestSendFailureIsErrored(t *testing.T) {
	f := newFixture(testMessage("<m1>", "x@corp.example", "question", "could you explain how this works?"))
	f.sender.sendErr = errors.New("smtp refused")

	result, err := f.proc.ProcessBatch(context.Background(), BatchOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Errors)
	assert.Equal(t, OutcomeErrored, result.Results[0].Outcome)
	// Failed sends leave the message unread for the next pass
	assert.Empty(t, f.reader.markedIDs)

	stats, err := f.proc.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FailedResponses)
	assert.Equal(t, 1, stats.Errors)
}

func TestRateLimitSkipsAfterMax(t *testing.T) {
	var messages []*email.Message
	for i := 0; i < 6; i++ {
		messages = append(messages, testMessage("<m>", "chatty@corp.example", "question", "could you explain how this works?"))
	}
	f := newFixture(messages...)

	result, err := f.proc.ProcessBatch(context.Background(), BatchOptions{})
	require.NoError(t, err)

	assert.Equal(t, 5, result.Responded)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, SkipRateLimited, result.Results[5].Reason)
	assert.Len(t, f.sender.sent, 5)
	// The rate-limited message is still marked read so the next pass
	// does not refetch and regenerate it.
	assert.Len(t, f.reader.markedIDs, 6)
}

func TestDryRunSendsNothingAndMutatesNothing(t *testing.T) {
	f := newFixture(testMessage("<m1>", "x@corp.example", "question", "could you explain how this works?"))

	result, err := f.proc.ProcessBatch(context.Background(), BatchOptions{DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Responded)
	assert.True(t, result.Results[0].DryRun)
	assert.Empty(t, f.sender.sent)
	assert.Empty(t, f.reader.markedIDs)
	assert.Empty(t, f.reader.deleted)

	// A dry run leaves the limiter untouched; repeating it many times
	// never trips the limit.
	for i := 0; i < 10; i++ {
		r, err := f.proc.ProcessBatch(context.Background(), BatchOptions{DryRun: true})
		require.NoError(t, err)
		assert.Equal(t, 1, r.Responded)
	}
}

func TestAutoReplyDisabledForcesDryRun(t *testing.T) {
	f := newFixture(testMessage("<m1>", "x@corp.example", "question", "could you explain how this works?"))
	f.cfg.AutoReplyEnabled = false

	result, err := f.proc.ProcessBatch(context.Background(), BatchOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Responded)
	assert.True(t, result.Results[0].DryRun)
	assert.Empty(t, f.sender.sent)
	assert.Empty(t, f.reader.markedIDs)
}

func TestBatchLimitHonored(t *testing.T) {
	var messages []*email.Message
	for i := 0; i < 5; i++ {
		messages = append(messages, testMessage("<m>", "x@corp.example", "question", "could you explain how this works?"))
	}
	f := newFixture(messages...)

	result, err := f.proc.ProcessBatch(context.Background(), BatchOptions{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
}

func TestCancelledContextStopsBatch(t *testing.T) {
	var messages []*email.Message
	for i := 0; i < 5; i++ {
		messages = append(messages, testMessage("<m>", "x@corp.example", "question", "could you explain how this works?"))
	}
	f := newFixture(messages...)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := f.proc.ProcessBatch(ctx, BatchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Processed)
}

func TestResetStats(t *testing.T) {
	f := newFixture(testMessage("<m1>", "x@corp.example", "question", "could you explain how this works?"))

	_, err := f.proc.ProcessBatch(context.Background(), BatchOptions{})
	require.NoError(t, err)
	before, err := f.proc.Stats()
	require.NoError(t, err)
	assert.NotZero(t, before.TotalProcessed)

	f.proc.ResetStats()
	after, err := f.proc.Stats()
	require.NoError(t, err)
	assert.Zero(t, after.TotalProcessed)
}

// stubCompletion stands in for the OpenAI-backed ai.Client in the
// end-to-end tests below, which run a message through the real
// generator instead of fakeGenerator.
type stubCompletion struct {
	calls   int
	lastReq ai.GenerateRequest
	text    string
	err     error
}

func (s *stubCompletion) Generate(_ context.Context, req ai.GenerateRequest) (*ai.GenerateResult, error) {
	s.calls++
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &ai.GenerateResult{Text: s.text, Model: "test-model", TokenCount: 42}, nil
}

func newEndToEndProcessor(client *stubCompletion, messages ...*email.Message) (*Processor, *fakeReader, *fakeSender) {
	cfg := &config.Config{
		AutoReplyEnabled:     true,
		MaxEmailsPerBatch:    10,
		ContentFilterEnabled: true,
		MaxContentChars:      50000,
		MaxAttachmentSize:    5 * 1024 * 1024,
	}

	reader := &fakeReader{messages: messages}
	sender := &fakeSender{}
	logger := log.New(io.Discard)
	gen := generator.New(client, logger)
	guard := classifier.NewGuard(nil, nil, 0, 0)
	limiter := ratelimit.New(5*time.Minute, 5)

	return New(cfg, reader, sender, gen, guard, limiter, nil, logger), reader, sender
}

func TestEndToEndMeetingRequest(t *testing.T) {
	client := &stubCompletion{text: "Tuesday at 3pm works for me, thanks"}
	proc, _, sender := newEndToEndProcessor(client,
		testMessage("<mtg>", "alice@corp.example", "Meeting request: sync next week", "Could you meet Tuesday at 3pm?"))

	result, err := proc.ProcessBatch(context.Background(), BatchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Responded)

	assert.Equal(t, 1, client.calls)
	assert.Contains(t, client.lastReq.SystemPrompt, "managing meeting requests")
	assert.Contains(t, client.lastReq.UserPrompt, "Could you meet Tuesday at 3pm?")

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Tuesday at 3pm works for me, thanks", sender.sent[0].body)
	assert.Equal(t, "<mtg>", sender.sent[0].inReplyTo)
}

func TestEndToEndSpamNeverReachesModel(t *testing.T) {
	client := &stubCompletion{text: "should never be asked for this"}
	proc, reader, sender := newEndToEndProcessor(client,
		testMessage("<spam>", "promo@lotto.example", "You won!", "Congratulations, you are our lottery winner"))

	result, err := proc.ProcessBatch(context.Background(), BatchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.Results, 1)
	assert.Equal(t, SkipFilteredNoResponse, result.Results[0].Reason)

	assert.Zero(t, client.calls)
	assert.Empty(t, sender.sent)
	// Filtered spam is marked read so it is not fetched again
	assert.Equal(t, []string{"<spam>"}, reader.markedIDs)
}

func TestEndToEndUnavailableModelFallsBack(t *testing.T) {
	client := &stubCompletion{err: ai.ErrUnavailable}
	proc, _, sender := newEndToEndProcessor(client,
		testMessage("<down>", "ops@corp.example", "urgent: production issue",
			"this is critical, please respond asap and fix it immediately"))

	result, err := proc.ProcessBatch(context.Background(), BatchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Responded)
	require.Len(t, result.Results, 1)
	assert.True(t, result.Results[0].FallbackUsed)

	require.Len(t, sender.sent, 1)
	assert.Equal(t,
		"Thank you for your email. I've received your urgent message and will get back to you as soon as possible.",
		sender.sent[0].body)

	stats, err := proc.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SuccessfulResponses)
	assert.Zero(t, stats.FailedResponses)
}
