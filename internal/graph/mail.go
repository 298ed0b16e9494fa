package graph

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/joescharf/nsreview/internal/models"
)

type emailAddress struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

type recipient struct {
	EmailAddress emailAddress `json:"emailAddress"`
}

func recipients(addrs []string) []recipient {
	out := make([]recipient, 0, len(addrs))
	for _, a := range addrs {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, recipient{EmailAddress: emailAddress{Address: a}})
		}
	}
	return out
}

// SendMail sends m from the sender mailbox and saves it to Sent Items, so the
// thread can be found again by SearchMail.
func (c *Client) SendMail(ctx context.Context, m models.Mail) error {
	if len(m.To) == 0 {
		return fmt.Errorf("send mail %q: no recipients", m.Subject)
	}
	if c.dryRun("Would send mail %q to %s", m.Subject, strings.Join(m.To, ", ")) {
		return nil
	}

	req := map[string]any{
		"message": map[string]any{
			"subject":      m.Subject,
			"body":         itemBody{ContentType: "HTML", Content: m.Body},
			"toRecipients": recipients(m.To),
			"ccRecipients": recipients(m.CC),
		},
		"saveToSentItems": true,
	}
	if err := c.do(ctx, "POST", c.userPath()+"/sendMail", req, nil, nil); err != nil {
		return fmt.Errorf("send mail %q: %w", m.Subject, err)
	}
	return nil
}

type messageRaw struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversationId"`
	Subject        string `json:"subject"`
	From           struct {
		EmailAddress emailAddress `json:"emailAddress"`
	} `json:"from"`
	UniqueBody   itemBody  `json:"uniqueBody"`
	SentDateTime time.Time `json:"sentDateTime"`
}

func (r messageRaw) toModel() models.MailMessage {
	return models.MailMessage{
		ID:             r.ID,
		ConversationID: r.ConversationID,
		Subject:        r.Subject,
		From:           r.From.EmailAddress.Address,
		FromName:       r.From.EmailAddress.Name,
		Body:           strings.TrimSpace(r.UniqueBody.Content),
		SentAt:         r.SentDateTime,
	}
}

// SearchMail returns messages in the sender mailbox matching subject, oldest
// first. Message bodies are the text of each message without quoted history.
func (c *Client) SearchMail(ctx context.Context, subject string) ([]models.MailMessage, error) {
	q := url.Values{}
	q.Set("$search", `"`+strings.ReplaceAll(subject, `"`, "")+`"`)
	q.Set("$select", "id,conversationId,subject,from,uniqueBody,sentDateTime")
	q.Set("$top", "50")

	var resp struct {
		Value []messageRaw `json:"value"`
	}
	headers := map[string]string{"Prefer": `outlook.body-content-type="text"`}
	if err := c.do(ctx, "GET", c.userPath()+"/messages?"+q.Encode(), nil, &resp, headers); err != nil {
		return nil, fmt.Errorf("search mail %q: %w", subject, err)
	}

	msgs := make([]models.MailMessage, 0, len(resp.Value))
	for _, r := range resp.Value {
		msgs = append(msgs, r.toModel())
	}
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].SentAt.Before(msgs[j].SentAt) })
	return msgs, nil
}

// Reply answers messageID on its thread, addressed to all of its recipients.
func (c *Client) Reply(ctx context.Context, messageID, text string) error {
	if c.dryRun("Would reply to message %s (%d chars)", messageID, len(text)) {
		return nil
	}
	req := map[string]any{"comment": text}
	if err := c.do(ctx, "POST", c.userPath()+"/messages/"+url.PathEscape(messageID)+"/replyAll", req, nil, nil); err != nil {
		return fmt.Errorf("reply to message: %w", err)
	}
	return nil
}
