package workflow

import (
	"strings"

	"github.com/joescharf/nsreview/internal/models"
)

// DetectPhase maps live signals to a phase. The checks run in a fixed order
// and the first match wins. It is a pure function of its inputs.
func DetectPhase(s models.Signals, watchStatus string) models.Phase {
	if watchStatus == "" {
		watchStatus = DefaultWatchStatus
	}
	switch {
	case !s.ReviewerAssigned:
		return models.PhaseInitialReview
	case !s.Approved:
		return models.PhaseAwaitingApproval
	case !strings.EqualFold(strings.TrimSpace(s.BoardStatus), watchStatus):
		return models.PhaseReadyForArchitectReview
	case s.ReviewPeriodPassed && !s.HasObjections:
		return models.PhaseReadyToClose
	default:
		return models.PhaseWatching
	}
}

// approvedByComment reports whether reviewer left a comment that starts with
// one of phrases (case-insensitive).
func approvedByComment(comments []models.Comment, reviewer string, phrases []string) bool {
	for _, c := range comments {
		if !strings.EqualFold(c.Author, reviewer) {
			continue
		}
		text := strings.ToLower(strings.TrimLeft(strings.TrimSpace(c.Body), "*_#> "))
		for _, p := range phrases {
			p = strings.ToLower(strings.TrimSpace(p))
			if p != "" && strings.HasPrefix(text, p) {
				return true
			}
		}
	}
	return false
}

// normalizeSubject strips reply and forward prefixes from a mail subject.
func normalizeSubject(s string) string {
	s = strings.TrimSpace(s)
	for {
		lower := strings.ToLower(s)
		trimmed := false
		for _, p := range []string{"re:", "fw:", "fwd:"} {
			if strings.HasPrefix(lower, p) {
				s = strings.TrimSpace(s[len(p):])
				trimmed = true
				break
			}
		}
		if !trimmed {
			return s
		}
	}
}

// findThread returns the earliest message sent by sender with exactly the
// tracked subject. msgs must be sorted oldest first.
func findThread(msgs []models.MailMessage, subject, sender string) *models.MailMessage {
	for i := range msgs {
		m := &msgs[i]
		if strings.EqualFold(strings.TrimSpace(m.Subject), subject) && strings.EqualFold(m.From, sender) {
			return m
		}
	}
	return nil
}

// findObjections returns the replies on thread that were sent after it by
// anyone other than sender.
func findObjections(msgs []models.MailMessage, thread *models.MailMessage, sender string) []models.MailMessage {
	var out []models.MailMessage
	for _, m := range msgs {
		if m.ID == thread.ID || strings.EqualFold(m.From, sender) {
			continue
		}
		if !m.SentAt.After(thread.SentAt) {
			continue
		}
		if thread.ConversationID != "" {
			if m.ConversationID != thread.ConversationID {
				continue
			}
		} else if !strings.EqualFold(normalizeSubject(m.Subject), normalizeSubject(thread.Subject)) {
			continue
		}
		out = append(out, m)
	}
	return out
}
