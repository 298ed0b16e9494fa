package models

import "time"

// Mail is an outgoing notification email.
type Mail struct {
	Subject string
	Body    string // HTML
	To      []string
	CC      []string
}

// MailMessage is a message found in the sender's mailbox.
type MailMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Subject        string    `json:"subject"`
	From           string    `json:"from"`
	FromName       string    `json:"fromName"`
	Body           string    `json:"body"`
	SentAt         time.Time `json:"sentAt"`
}
