package workflow

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/joescharf/nsreview/internal/bizdays"
	"github.com/joescharf/nsreview/internal/llm"
	"github.com/joescharf/nsreview/internal/models"
	"github.com/joescharf/nsreview/internal/namespace"
)

const markerPrefix = "<!-- nsreview:"

func objectionMarker(messageID string) string {
	return markerPrefix + "objection:" + messageID + " -->"
}

// validationMarker identifies a validation comment by its content, so the
// same findings are not posted twice while the author has not edited the body.
func validationMarker(comment string) string {
	sum := sha256.Sum256([]byte(comment))
	return markerPrefix + "validation:" + hex.EncodeToString(sum[:6]) + " -->"
}

func hasMarker(comments []models.Comment, marker string) bool {
	for _, c := range comments {
		if strings.Contains(c.Body, marker) {
			return true
		}
	}
	return false
}

func namespaceTable(res *namespace.Result) string {
	var b strings.Builder
	b.WriteString("| Language | Namespace |\n")
	b.WriteString("|----------|-----------|\n")
	m := res.NamespaceMap()
	for _, lang := range namespace.Languages {
		fmt.Fprintf(&b, "| %s | `%s` |\n", lang, m[lang])
	}
	return b.String()
}

func namespaceHTMLTable(res *namespace.Result) string {
	var b strings.Builder
	b.WriteString("<table>\n<tr><th>Language</th><th>Namespace</th></tr>\n")
	m := res.NamespaceMap()
	for _, lang := range namespace.Languages {
		fmt.Fprintf(&b, "<tr><td>%s</td><td><code>%s</code></td></tr>\n", html.EscapeString(string(lang)), html.EscapeString(m[lang]))
	}
	b.WriteString("</table>\n")
	return b.String()
}

func directMessage(issue *models.Issue) string {
	return fmt.Sprintf("A new namespace review is assigned to you: <a href=\"%s\">%s</a> (%s)",
		html.EscapeString(issue.URL), html.EscapeString(issue.Title), html.EscapeString(issue.Ref()))
}

func reviewWindowComment(res *namespace.Result, deadline time.Time, days int) string {
	var b strings.Builder
	b.WriteString("### Architect review started\n\n")
	b.WriteString("The proposed namespaces have been sent to the architects for review.\n\n")
	fmt.Fprintf(&b, "Review deadline: **%s** (%d business days).\n\n", bizdays.FormatDeadline(deadline), days)
	b.WriteString(namespaceTable(res))
	b.WriteString("\nObjections raised on the review thread will be posted here. ")
	b.WriteString("If none arrive by the deadline, the names are approved and this issue is closed.")
	return b.String()
}

func reviewRequestMail(cfg Config, issue *models.Issue, res *namespace.Result, deadline time.Time) models.Mail {
	var b strings.Builder
	fmt.Fprintf(&b, "<p>Please review the proposed management-plane SDK namespaces for <b>%s</b> (<a href=\"%s\">%s</a>).</p>\n",
		html.EscapeString(res.CanonicalName()), html.EscapeString(issue.URL), html.EscapeString(issue.Ref()))
	b.WriteString(namespaceHTMLTable(res))
	fmt.Fprintf(&b, "<p>Reply to this email with any objections by <b>%s</b>. If there are none, the names will be approved.</p>\n",
		html.EscapeString(bizdays.FormatDeadline(deadline)))
	return models.Mail{
		Subject: cfg.Subject(res.CanonicalName()),
		Body:    b.String(),
		To:      cfg.MailTo,
		CC:      cfg.MailCC,
	}
}

func quote(text string) string {
	lines := strings.Split(strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n")), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight("> "+l, " ")
	}
	return strings.Join(lines, "\n")
}

func objectionComment(m models.MailMessage, digest *llm.Digest) string {
	who := m.From
	if m.FromName != "" {
		who = fmt.Sprintf("%s (%s)", m.FromName, m.From)
	}
	var b strings.Builder
	b.WriteString(objectionMarker(m.ID) + "\n")
	fmt.Fprintf(&b, "**Objection from %s** on the review thread, %s:\n\n", who, m.SentAt.UTC().Format("January 2, 2006 15:04 MST"))
	body := m.Body
	if strings.TrimSpace(body) == "" {
		body = "(no text)"
	}
	b.WriteString(quote(body))
	if digest != nil {
		fmt.Fprintf(&b, "\n\n_Summary (%s): %s_", digest.Severity, digest.Summary)
	}
	return b.String()
}

func closingReply(issue *models.Issue, res *namespace.Result) string {
	return fmt.Sprintf("<p>The review period for <b>%s</b> has ended with no objections. The namespaces are approved and <a href=\"%s\">%s</a> has been closed.</p>",
		html.EscapeString(res.CanonicalName()), html.EscapeString(issue.URL), html.EscapeString(issue.Ref()))
}

func approvalComment(res *namespace.Result, deadline time.Time) string {
	var b strings.Builder
	b.WriteString("### Namespaces approved\n\n")
	fmt.Fprintf(&b, "The architect review period ended on %s with no objections. The following namespaces are approved:\n\n", bizdays.FormatDeadline(deadline))
	b.WriteString(namespaceTable(res))
	return b.String()
}
