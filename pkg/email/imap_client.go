package email

import (
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"github.com/prasanthmj/email-agent/pkg/config"
)

// Reader handles inbox-side IMAP operations. Each call opens its own
// connection and logs out when done, so a Reader is safe to share.
type Reader struct {
	config *config.Config
}

// NewReader creates a new IMAP reader
func NewReader(cfg *config.Config) *Reader {
	return &Reader{
		config: cfg,
	}
}

// connect establishes a connection to the IMAP server
func (r *Reader) connect() (*client.Client, error) {
	addr := fmt.Sprintf("%s:%d", r.config.IMAPServer, r.config.IMAPPort)

	c, err := client.DialTLS(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to email server: %w", err)
	}

	// Set timeout
	c.Timeout = r.config.Timeout

	// Login
	if err := c.Login(r.config.EmailAddress, r.config.EmailPassword); err != nil {
		c.Logout()
		return nil, fmt.Errorf("authentication failed")
	}

	return c, nil
}

// ConnectionStatus probes the IMAP server and reports reachability.
func (r *Reader) ConnectionStatus() ConnectionStatus {
	c, err := r.connect()
	if err != nil {
		status := ConnectionStatus{Error: err.Error()}
		// connect failures after dial mean auth failed, not unreachable
		if strings.Contains(err.Error(), "authentication") {
			status.Connected = true
		}
		return status
	}
	defer c.Logout()
	return ConnectionStatus{Connected: true, Authenticated: true}
}

// FetchUnread returns up to limit unread messages from INBOX, oldest
// first. senderFilter, when non-empty, narrows the search to a single
// From address server-side.
func (r *Reader) FetchUnread(limit int, senderFilter string) ([]*Message, error) {
	c, err := r.connect()
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	mbox, err := c.Select("INBOX", false)
	if err != nil {
		return nil, fmt.Errorf("failed to select inbox: %w", err)
	}

	if mbox.Messages == 0 {
		return []*Message{}, nil
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	if senderFilter != "" {
		criteria.Header.Set("From", senderFilter)
	}

	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	if len(uids) == 0 {
		return []*Message{}, nil
	}

	// Oldest first so replies arrive in order
	if limit > 0 && len(uids) > limit {
		uids = uids[:limit]
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	// Peek keeps the server from setting \Seen during the fetch;
	// messages stay unread until the processor decides.
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchFlags, imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqSet, items, messages)
	}()

	var result []*Message
	for msg := range messages {
		if msg.Envelope == nil {
			continue
		}
		m := r.parseMessage(msg, section)
		m.Folder = "INBOX"
		result = append(result, m)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}

	return result, nil
}

// MarkRead sets the \Seen flag on a message by UID.
func (r *Reader) MarkRead(msg *Message) error {
	c, err := r.connect()
	if err != nil {
		return err
	}
	defer c.Logout()

	if _, err := c.Select(msg.Folder, false); err != nil {
		return fmt.Errorf("failed to select folder %s: %w", msg.Folder, err)
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(msg.UID)

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	flags := []interface{}{imap.SeenFlag}
	if err := c.UidStore(seqSet, item, flags, nil); err != nil {
		return fmt.Errorf("failed to mark read: %w", err)
	}
	return nil
}

// Delete flags a message \Deleted and expunges the folder.
func (r *Reader) Delete(msg *Message) error {
	c, err := r.connect()
	if err != nil {
		return err
	}
	defer c.Logout()

	if _, err := c.Select(msg.Folder, false); err != nil {
		return fmt.Errorf("failed to select folder %s: %w", msg.Folder, err)
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(msg.UID)

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	flags := []interface{}{imap.DeletedFlag}
	if err := c.UidStore(seqSet, item, flags, nil); err != nil {
		return fmt.Errorf("failed to flag deleted: %w", err)
	}

	if err := c.Expunge(nil); err != nil {
		return fmt.Errorf("failed to expunge: %w", err)
	}
	return nil
}

// parseMessage converts a raw IMAP message into a Message, extracting
// text and HTML bodies and attachment metadata from the MIME tree.
func (r *Reader) parseMessage(msg *imap.Message, section *imap.BodySectionName) *Message {
	m := &Message{
		MessageID: msg.Envelope.MessageId,
		UID:       msg.Uid,
		From:      addressSpec(msg.Envelope.From),
		FromName:  addressName(msg.Envelope.From),
		To:        formatAddresses(msg.Envelope.To),
		Subject:   msg.Envelope.Subject,
		Date:      msg.Envelope.Date,
		Flags:     msg.Flags,
	}

	body := msg.GetBody(section)
	if body == nil {
		return m
	}

	mr, err := mail.CreateReader(body)
	if err != nil {
		return m
	}

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		switch h := p.Header.(type) {
		case *mail.InlineHeader:
			b, _ := io.ReadAll(p.Body)
			ct, _, _ := h.ContentType()
			if strings.Contains(ct, "text/html") {
				m.HTMLBody = string(b)
			} else if strings.Contains(ct, "text/plain") {
				m.Body = string(b)
			}
		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()
			b, _ := io.ReadAll(p.Body)
			m.Attachments = append(m.Attachments, Attachment{
				Filename:    filename,
				Size:        int64(len(b)),
				ContentType: contentType,
			})
		}
	}

	// Fall back to converted HTML when there is no plain part
	if m.Body == "" && m.HTMLBody != "" {
		m.Body = ConvertHTMLToText(m.HTMLBody)
	}

	return m
}

// Helper functions

func addressSpec(addrs []*imap.Address) string {
	if len(addrs) == 0 {
		return ""
	}
	return fmt.Sprintf("%s@%s", addrs[0].MailboxName, addrs[0].HostName)
}

func addressName(addrs []*imap.Address) string {
	if len(addrs) == 0 {
		return ""
	}
	return addrs[0].PersonalName
}

func formatAddresses(addrs []*imap.Address) []string {
	var result []string
	for _, addr := range addrs {
		if addr.PersonalName != "" {
			result = append(result, fmt.Sprintf("%s <%s@%s>", addr.PersonalName, addr.MailboxName, addr.HostName))
		} else {
			result = append(result, fmt.Sprintf("%s@%s", addr.MailboxName, addr.HostName))
		}
	}
	return result
}
