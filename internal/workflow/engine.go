// Package workflow drives namespace review issues through their phases. The
// phase of each issue is recomputed from live signals on every run.
package workflow

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"time"

	"github.com/joescharf/nsreview/internal/bizdays"
	"github.com/joescharf/nsreview/internal/llm"
	"github.com/joescharf/nsreview/internal/models"
	"github.com/joescharf/nsreview/internal/namespace"
	"github.com/joescharf/nsreview/internal/output"
)

// timeNow is a package-level variable for testability.
var timeNow = time.Now

// Engine runs the review workflow over the open review issues.
type Engine struct {
	cfg       Config
	tracker   IssueTracker
	board     Board
	validator *namespace.Validator
	calendar  bizdays.Calendar
	ui        *output.UI

	// Notifier is nil when no mail or chat channel is configured.
	Notifier Notifier
	// Summarizer is nil when objection digests are disabled.
	Summarizer Summarizer
}

// NewEngine creates an Engine. The default business calendar is used.
func NewEngine(cfg Config, tracker IssueTracker, board Board, validator *namespace.Validator, ui *output.UI) *Engine {
	if validator == nil {
		validator = namespace.NewValidator("")
	}
	return &Engine{
		cfg:       cfg.withDefaults(),
		tracker:   tracker,
		board:     board,
		validator: validator,
		calendar:  bizdays.Default(),
		ui:        ui,
	}
}

// SetCalendar replaces the business-day calendar.
func (e *Engine) SetCalendar(c bizdays.Calendar) { e.calendar = c }

// issueState is everything learned about one issue during a run.
type issueState struct {
	issue      models.Issue
	phase      models.Phase
	signals    models.Signals
	validation *namespace.Result
	comments   []models.Comment
	fetched    bool
	thread     *models.MailMessage
	objections []models.MailMessage
	deadline   *time.Time
}

func (st *issueState) enriched() models.EnrichedIssue {
	valid := st.validation.IsValid
	ei := models.EnrichedIssue{
		Issue:         st.issue,
		Phase:         st.phase,
		Signals:       st.signals,
		Valid:         &valid,
		Namespaces:    st.validation.StringMap(),
		CanonicalName: st.validation.CanonicalName(),
		Deadline:      st.deadline,
	}
	if st.thread != nil {
		sent := st.thread.SentAt
		ei.ThreadSentAt = &sent
	}
	return ei
}

// Run lists the open review issues and processes them in order.
func (e *Engine) Run(ctx context.Context) (*models.RunReport, error) {
	e.ui.VerboseLog("Listing open issues in %s labeled %q", e.cfg.Repo, e.cfg.Label)
	issues, err := e.tracker.ListOpenIssues(ctx, e.cfg.Repo, e.cfg.Label, e.cfg.IssueLimit)
	if err != nil {
		return nil, fmt.Errorf("list review issues: %w", err)
	}
	return e.RunIssues(ctx, issues), nil
}

// RunIssues processes the given issues strictly in sequence. A failure on
// one issue is recorded and never stops the others.
func (e *Engine) RunIssues(ctx context.Context, issues []models.Issue) *models.RunReport {
	sort.SliceStable(issues, func(i, j int) bool { return issues[i].Number < issues[j].Number })

	report := &models.RunReport{
		StartedAt:   timeNow().UTC(),
		DryRun:      e.cfg.DryRun,
		TotalIssues: len(issues),
		PhaseCounts: map[models.Phase]int{},
	}

	for _, issue := range issues {
		if issue.Repo == "" {
			issue.Repo = e.cfg.Repo
		}
		st := &issueState{issue: issue}
		actions, err := e.processIssue(ctx, st)
		report.Actions = append(report.Actions, actions...)

		if st.phase != "" {
			report.PhaseCounts[st.phase]++
		}
		if st.validation != nil {
			report.Issues = append(report.Issues, st.enriched())
		}

		switch {
		case err != nil:
			e.ui.Error("%s: %v", issue.Ref(), err)
			report.Errors = append(report.Errors, models.ProcessingError{
				IssueNumber: issue.Number,
				Repo:        issue.Repo,
				Phase:       st.phase,
				Message:     err.Error(),
				Timestamp:   timeNow().UTC(),
			})
		case len(actions) == 0:
			report.Skipped++
		default:
			report.Processed++
		}
	}

	report.FinishedAt = timeNow().UTC()
	return report
}

// processIssue classifies and handles one issue. Panics are recovered and
// returned as errors so the run continues.
func (e *Engine) processIssue(ctx context.Context, st *issueState) (actions []models.IssueAction, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.ui.VerboseLog("panic processing %s: %v\n%s", st.issue.Ref(), r, debug.Stack())
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if err := e.classify(ctx, st); err != nil {
		return nil, err
	}
	e.ui.Info("%s %s: %s", st.issue.Ref(), output.PhaseColor(st.phase), st.issue.Title)

	switch st.phase {
	case models.PhaseInitialReview:
		return e.handleInitialReview(ctx, st)
	case models.PhaseAwaitingApproval:
		e.ui.VerboseLog("%s is waiting for approval; no action", st.issue.Ref())
		return nil, nil
	case models.PhaseReadyForArchitectReview:
		return e.handleReadyForArchitectReview(ctx, st)
	case models.PhaseWatching:
		return e.handleWatching(ctx, st)
	case models.PhaseReadyToClose:
		return e.handleReadyToClose(ctx, st)
	default:
		return nil, fmt.Errorf("unknown phase %q", st.phase)
	}
}

// classify gathers signals in detection order, stopping as soon as the
// phase is decided so later signals are never fetched needlessly.
func (e *Engine) classify(ctx context.Context, st *issueState) error {
	st.validation = e.validator.Validate(st.issue.Body)
	s := &st.signals

	s.ReviewerAssigned = st.issue.HasAssignee(e.cfg.Reviewer)
	if !s.ReviewerAssigned {
		st.phase = DetectPhase(*s, e.cfg.WatchStatus)
		return nil
	}

	s.Approved = st.issue.HasLabel(e.cfg.ApprovedLabel)
	if !s.Approved {
		comments, err := e.comments(ctx, st)
		if err != nil {
			return err
		}
		s.Approved = approvedByComment(comments, e.cfg.Reviewer, e.cfg.ApprovalPhrases)
	}
	if !s.Approved {
		st.phase = DetectPhase(*s, e.cfg.WatchStatus)
		return nil
	}

	status, err := e.board.Status(ctx, st.issue.URL)
	if err != nil {
		return err
	}
	s.BoardStatus = status
	st.phase = DetectPhase(*s, e.cfg.WatchStatus)
	if st.phase != models.PhaseWatching {
		return nil
	}

	if err := e.locateThread(ctx, st); err != nil {
		return err
	}
	if st.thread != nil {
		deadline := e.calendar.ReviewDeadline(st.thread.SentAt, e.cfg.ReviewDays)
		st.deadline = &deadline
		s.ReviewPeriodPassed = e.calendar.HasReviewPeriodPassed(st.thread.SentAt, timeNow(), e.cfg.ReviewDays)
		s.HasObjections = len(st.objections) > 0
	}
	st.phase = DetectPhase(*s, e.cfg.WatchStatus)
	return nil
}

// locateThread finds the review mail thread and its objections. A missing
// notifier or thread leaves st.thread nil.
func (e *Engine) locateThread(ctx context.Context, st *issueState) error {
	if e.Notifier == nil {
		return nil
	}
	name := st.validation.CanonicalName()
	if name == "" {
		return nil
	}
	subject := e.cfg.Subject(name)
	msgs, err := e.Notifier.SearchMail(ctx, subject)
	if err != nil {
		return err
	}
	st.thread = findThread(msgs, subject, e.Notifier.Sender())
	if st.thread != nil {
		st.objections = findObjections(msgs, st.thread, e.Notifier.Sender())
	}
	return nil
}

func (e *Engine) comments(ctx context.Context, st *issueState) ([]models.Comment, error) {
	if st.fetched {
		return st.comments, nil
	}
	comments, err := e.tracker.Comments(ctx, st.issue.Repo, st.issue.Number)
	if err != nil {
		return nil, err
	}
	st.comments = comments
	st.fetched = true
	return comments, nil
}

// record turns the outcome of one step into an action. Failures are logged
// and recorded; the caller moves on to the next step.
func (e *Engine) record(st *issueState, name string, err error) models.IssueAction {
	a := models.IssueAction{
		IssueNumber: st.issue.Number,
		Repo:        st.issue.Repo,
		Phase:       st.phase,
		Action:      name,
		Success:     err == nil,
		Timestamp:   timeNow().UTC(),
		DryRun:      e.cfg.DryRun,
	}
	if err != nil {
		a.Error = err.Error()
		e.ui.Warning("%s: %s failed: %v", st.issue.Ref(), name, err)
	} else if !e.cfg.DryRun {
		e.ui.Success("%s: %s", st.issue.Ref(), name)
	}
	return a
}

func (e *Engine) handleInitialReview(ctx context.Context, st *issueState) ([]models.IssueAction, error) {
	issue := &st.issue
	if !st.validation.IsValid {
		body := st.validation.ErrorComment(issue.Author)
		marker := validationMarker(body)
		comments, err := e.comments(ctx, st)
		if err != nil {
			return nil, err
		}
		if hasMarker(comments, marker) {
			e.ui.VerboseLog("%s: validation findings already posted", issue.Ref())
			return nil, nil
		}
		err = e.tracker.AddComment(ctx, issue.Repo, issue.Number, marker+"\n"+body)
		return []models.IssueAction{e.record(st, "post validation comment", err)}, nil
	}

	var actions []models.IssueAction
	err := e.tracker.AddAssignee(ctx, issue.Repo, issue.Number, e.cfg.Reviewer)
	actions = append(actions, e.record(st, "assign reviewer @"+e.cfg.Reviewer, err))

	err = e.board.SetStatus(ctx, issue.URL, e.cfg.InProgressStatus)
	actions = append(actions, e.record(st, fmt.Sprintf("set project status %q", e.cfg.InProgressStatus), err))

	switch {
	case e.Notifier == nil:
		e.ui.Warning("%s: notifier not configured; skipping reviewer notification", issue.Ref())
	case e.cfg.NotifyUPN == "":
		e.ui.Warning("%s: graph.notify not set; skipping reviewer notification", issue.Ref())
	default:
		err = e.Notifier.SendDirect(ctx, e.cfg.NotifyUPN, directMessage(issue))
		actions = append(actions, e.record(st, "notify "+e.cfg.NotifyUPN, err))
	}
	return actions, nil
}

func (e *Engine) handleReadyForArchitectReview(ctx context.Context, st *issueState) ([]models.IssueAction, error) {
	issue := &st.issue
	if st.validation.CanonicalName() == "" {
		return nil, fmt.Errorf("no namespaces found in issue body; cannot start review")
	}
	deadline := e.calendar.ReviewDeadline(timeNow(), e.cfg.ReviewDays)
	st.deadline = &deadline

	var actions []models.IssueAction
	err := e.tracker.AddComment(ctx, issue.Repo, issue.Number, reviewWindowComment(st.validation, deadline, e.cfg.ReviewDays))
	actions = append(actions, e.record(st, "post review window comment", err))

	switch {
	case e.Notifier == nil:
		e.ui.Warning("%s: notifier not configured; skipping review request mail", issue.Ref())
	case len(e.cfg.MailTo) == 0:
		e.ui.Warning("%s: graph.to not set; skipping review request mail", issue.Ref())
	default:
		err = e.Notifier.SendMail(ctx, reviewRequestMail(e.cfg, issue, st.validation, deadline))
		actions = append(actions, e.record(st, "send review request mail", err))
	}

	err = e.board.SetStatus(ctx, issue.URL, e.cfg.WatchStatus)
	actions = append(actions, e.record(st, fmt.Sprintf("set project status %q", e.cfg.WatchStatus), err))
	return actions, nil
}

func (e *Engine) handleWatching(ctx context.Context, st *issueState) ([]models.IssueAction, error) {
	issue := &st.issue
	if e.Notifier == nil {
		e.ui.Warning("%s: notifier not configured; cannot check the review thread", issue.Ref())
		return nil, nil
	}
	if st.thread == nil {
		e.ui.Warning("%s: review thread %q not found; taking no action", issue.Ref(), e.cfg.Subject(st.validation.CanonicalName()))
		return nil, nil
	}
	if len(st.objections) == 0 {
		e.ui.VerboseLog("%s: review window open until %s", issue.Ref(), bizdays.FormatDeadline(*st.deadline))
		return nil, nil
	}

	comments, err := e.comments(ctx, st)
	if err != nil {
		return nil, err
	}

	var actions []models.IssueAction
	for _, m := range st.objections {
		if hasMarker(comments, objectionMarker(m.ID)) {
			continue
		}
		var digest *llm.Digest
		if e.Summarizer != nil {
			d, err := e.Summarizer.Summarize(ctx, st.validation.CanonicalName(), m.From, m.Body)
			if err != nil {
				e.ui.Warning("%s: objection digest failed: %v", issue.Ref(), err)
			} else {
				digest = d
			}
		}
		err := e.tracker.AddComment(ctx, issue.Repo, issue.Number, objectionComment(m, digest))
		actions = append(actions, e.record(st, "relay objection from "+m.From, err))
	}
	if len(actions) == 0 {
		e.ui.VerboseLog("%s: all %d objection(s) already relayed", issue.Ref(), len(st.objections))
	}
	return actions, nil
}

func (e *Engine) handleReadyToClose(ctx context.Context, st *issueState) ([]models.IssueAction, error) {
	issue := &st.issue
	var actions []models.IssueAction

	err := e.Notifier.Reply(ctx, st.thread.ID, closingReply(issue, st.validation))
	actions = append(actions, e.record(st, "reply to review thread", err))

	err = e.tracker.AddComment(ctx, issue.Repo, issue.Number, approvalComment(st.validation, *st.deadline))
	actions = append(actions, e.record(st, "post approval comment", err))

	err = e.tracker.CloseIssue(ctx, issue.Repo, issue.Number)
	actions = append(actions, e.record(st, "close issue", err))
	return actions, nil
}
