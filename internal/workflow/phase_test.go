package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/nsreview/internal/models"
)

func TestDetectPhase(t *testing.T) {
	tests := []struct {
		name string
		s    models.Signals
		want models.Phase
	}{
		{"nothing yet", models.Signals{}, models.PhaseInitialReview},
		{"approved but unassigned", models.Signals{Approved: true, BoardStatus: "Watch", ReviewPeriodPassed: true}, models.PhaseInitialReview},
		{"assigned", models.Signals{ReviewerAssigned: true}, models.PhaseAwaitingApproval},
		{"approved", models.Signals{ReviewerAssigned: true, Approved: true, BoardStatus: "In Progress"}, models.PhaseReadyForArchitectReview},
		{"approved no board", models.Signals{ReviewerAssigned: true, Approved: true}, models.PhaseReadyForArchitectReview},
		{"watch", models.Signals{ReviewerAssigned: true, Approved: true, BoardStatus: "Watch"}, models.PhaseWatching},
		{"watch case-insensitive", models.Signals{ReviewerAssigned: true, Approved: true, BoardStatus: " watch "}, models.PhaseWatching},
		{"watch with objections", models.Signals{ReviewerAssigned: true, Approved: true, BoardStatus: "Watch", ReviewPeriodPassed: true, HasObjections: true}, models.PhaseWatching},
		{"watch period passed", models.Signals{ReviewerAssigned: true, Approved: true, BoardStatus: "Watch", ReviewPeriodPassed: true}, models.PhaseReadyToClose},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectPhase(tt.s, "Watch"))
			// Pure: same inputs, same answer.
			assert.Equal(t, DetectPhase(tt.s, "Watch"), DetectPhase(tt.s, "Watch"))
		})
	}
}

func TestDetectPhase_CustomWatchStatus(t *testing.T) {
	s := models.Signals{ReviewerAssigned: true, Approved: true, BoardStatus: "Architect Review"}
	assert.Equal(t, models.PhaseWatching, DetectPhase(s, "Architect Review"))
	assert.Equal(t, models.PhaseReadyForArchitectReview, DetectPhase(s, ""))
}

func TestApprovedByComment(t *testing.T) {
	phrases := []string{"approved", "LGTM"}
	tests := []struct {
		name     string
		comments []models.Comment
		want     bool
	}{
		{"none", nil, false},
		{"reviewer lgtm", []models.Comment{{Author: "Arch", Body: "lgtm, thanks"}}, true},
		{"reviewer bold approved", []models.Comment{{Author: "arch", Body: "**Approved** for review"}}, true},
		{"other user", []models.Comment{{Author: "alice", Body: "Approved"}}, false},
		{"not at start", []models.Comment{{Author: "arch", Body: "This is not approved yet"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, approvedByComment(tt.comments, "arch", phrases))
		})
	}
}

func TestNormalizeSubject(t *testing.T) {
	assert.Equal(t, "[Namespace Review] Widgets", normalizeSubject("RE: Fwd: re: [Namespace Review] Widgets"))
	assert.Equal(t, "Widgets", normalizeSubject("  Widgets "))
}

func TestFindThreadAndObjections(t *testing.T) {
	sent := time.Date(2026, time.October, 14, 10, 0, 0, 0, time.UTC)
	msgs := []models.MailMessage{
		{ID: "fwd", ConversationID: "c0", Subject: "[Namespace Review] Widgets", From: "someone@contoso.com", SentAt: sent.Add(-time.Hour)},
		{ID: "m1", ConversationID: "c1", Subject: "[Namespace Review] Widgets", From: "Reviews@contoso.com", SentAt: sent},
		{ID: "m2", ConversationID: "c1", Subject: "RE: [Namespace Review] Widgets", From: "arch@contoso.com", SentAt: sent.Add(time.Hour)},
		{ID: "m3", ConversationID: "c1", Subject: "RE: [Namespace Review] Widgets", From: "reviews@contoso.com", SentAt: sent.Add(2 * time.Hour)},
		{ID: "m4", ConversationID: "c9", Subject: "RE: [Namespace Review] Widgets", From: "other@contoso.com", SentAt: sent.Add(3 * time.Hour)},
		{ID: "m5", ConversationID: "c1", Subject: "[Namespace Review] Widgets v2", From: "reviews@contoso.com", SentAt: sent.Add(4 * time.Hour)},
	}

	thread := findThread(msgs, "[namespace review] widgets", "reviews@contoso.com")
	require.NotNil(t, thread)
	assert.Equal(t, "m1", thread.ID)

	objections := findObjections(msgs, thread, "reviews@contoso.com")
	require.Len(t, objections, 1)
	assert.Equal(t, "m2", objections[0].ID)

	assert.Nil(t, findThread(msgs, "[Namespace Review] Gadgets", "reviews@contoso.com"))
}

func TestFindObjections_SubjectFallback(t *testing.T) {
	sent := time.Date(2026, time.October, 14, 10, 0, 0, 0, time.UTC)
	thread := &models.MailMessage{ID: "m1", Subject: "[Namespace Review] Widgets", From: "reviews@contoso.com", SentAt: sent}
	msgs := []models.MailMessage{
		*thread,
		{ID: "m2", Subject: "Re: [Namespace Review] Widgets", From: "arch@contoso.com", SentAt: sent.Add(time.Minute)},
		{ID: "m3", Subject: "Re: something else", From: "arch@contoso.com", SentAt: sent.Add(time.Minute)},
		{ID: "m0", Subject: "Re: [Namespace Review] Widgets", From: "arch@contoso.com", SentAt: sent.Add(-time.Minute)},
	}

	objections := findObjections(msgs, thread, "reviews@contoso.com")
	require.Len(t, objections, 1)
	assert.Equal(t, "m2", objections[0].ID)
}

func TestConfigSubjectAndValidate(t *testing.T) {
	assert.Equal(t, "[Namespace Review] Widgets", Config{}.Subject("Widgets"))
	assert.Equal(t, "[NS] Widgets", Config{SubjectPrefix: "[NS]"}.Subject("Widgets"))

	err := Config{}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "github.repo")
	assert.Contains(t, err.Error(), "github.reviewer")
	assert.NoError(t, Config{Repo: "acme/reviews", Reviewer: "arch"}.Validate())

	err = Config{Repo: "acme/reviews", Reviewer: "arch", ReviewDays: 1_000_000}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "review.days")
}
