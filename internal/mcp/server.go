package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/nsreview/internal/bizdays"
	"github.com/joescharf/nsreview/internal/models"
	"github.com/joescharf/nsreview/internal/namespace"
	"github.com/joescharf/nsreview/internal/store"
	"github.com/joescharf/nsreview/internal/workflow"
)

// Server exposes namespace validation, the review calendar and run history
// as MCP tools.
type Server struct {
	store       store.Store
	validator   *namespace.Validator
	calendar    bizdays.Calendar
	reviewDays  int
	watchStatus string
	version     string
}

// NewServer creates the MCP server wrapper. s may be nil, in which case the
// history tool reports an error.
func NewServer(s store.Store, v *namespace.Validator, cal bizdays.Calendar, reviewDays int, watchStatus, version string) *Server {
	if v == nil {
		v = namespace.NewValidator("")
	}
	if reviewDays <= 0 {
		reviewDays = bizdays.DefaultReviewDays
	}
	if watchStatus == "" {
		watchStatus = workflow.DefaultWatchStatus
	}
	if version == "" {
		version = "dev"
	}
	return &Server{
		store:       s,
		validator:   v,
		calendar:    cal,
		reviewDays:  reviewDays,
		watchStatus: watchStatus,
		version:     version,
	}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("nsreview", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.validateTool())
	srv.AddTool(s.businessDaysTool())
	srv.AddTool(s.holidaysTool())
	srv.AddTool(s.detectPhaseTool())
	srv.AddTool(s.listRunsTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// nsreview_validate
func (s *Server) validateTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("nsreview_validate",
		mcp.WithDescription("Validate a namespace review issue body. Returns JSON with isValid, per-language namespaces, missing languages, errors, and the canonical resource provider name."),
		mcp.WithString("body", mcp.Required(), mcp.Description("Issue body text containing the proposed namespaces")),
	)
	return tool, s.handleValidate
}

func (s *Server) handleValidate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	body, err := request.RequireString("body")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: body"), nil
	}

	res := s.validator.Validate(body)
	out := struct {
		*namespace.Result
		CanonicalName string            `json:"canonicalName"`
		Table         map[string]string `json:"table"`
	}{
		Result:        res,
		CanonicalName: res.CanonicalName(),
		Table:         res.StringMap(),
	}
	return jsonResult(out)
}

// nsreview_business_days
func (s *Server) businessDaysTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("nsreview_business_days",
		mcp.WithDescription("Business-day arithmetic on the review calendar. With 'days', returns the date that many business days after 'start'. With 'end', returns the number of business days after 'start' up to and including 'end'. Dates are YYYY-MM-DD."),
		mcp.WithString("start", mcp.Required(), mcp.Description("Start date (YYYY-MM-DD)")),
		mcp.WithNumber("days", mcp.Description("Business days to add")),
		mcp.WithString("end", mcp.Description("End date (YYYY-MM-DD) to count up to")),
	)
	return tool, s.handleBusinessDays
}

func (s *Server) handleBusinessDays(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	startStr, err := request.RequireString("start")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: start"), nil
	}
	start, err := parseDate(startStr)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if endStr := request.GetString("end", ""); endStr != "" {
		end, err := parseDate(endStr)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := bizdays.CheckSpan(start, end); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]any{
			"start":        bizdays.DateKey(start),
			"end":          bizdays.DateKey(end),
			"businessDays": s.calendar.CountBusinessDays(start, end),
		})
	}

	days := request.GetInt("days", s.reviewDays)
	if err := bizdays.CheckDays(days); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	date := s.calendar.AddBusinessDays(start, days)
	return jsonResult(map[string]any{
		"start":     bizdays.DateKey(start),
		"days":      days,
		"date":      bizdays.DateKey(date),
		"formatted": bizdays.FormatDeadline(date),
	})
}

// nsreview_holidays
func (s *Server) holidaysTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("nsreview_holidays",
		mcp.WithDescription("List the non-working days (observed federal holidays and company closures) for a year, sorted by date."),
		mcp.WithNumber("year", mcp.Required(), mcp.Description("Calendar year, e.g. 2026")),
	)
	return tool, s.handleHolidays
}

func (s *Server) handleHolidays(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	year, err := request.RequireInt("year")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: year"), nil
	}
	if year < 1900 || year > 9999 {
		return mcp.NewToolResultError(fmt.Sprintf("year out of range: %d", year)), nil
	}

	type holidayOut struct {
		Date    string `json:"date"`
		Weekday string `json:"weekday"`
		Name    string `json:"name"`
	}

	var out []holidayOut
	for key, name := range s.calendar.HolidaysForYear(year) {
		d, _ := time.Parse(bizdays.DateKeyLayout, key)
		out = append(out, holidayOut{Date: key, Weekday: d.Weekday().String(), Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return jsonResult(out)
}

// nsreview_detect_phase
func (s *Server) detectPhaseTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("nsreview_detect_phase",
		mcp.WithDescription("Compute the review phase from workflow signals. Returns the phase and its label."),
		mcp.WithBoolean("reviewer_assigned", mcp.Description("The designated reviewer is assigned")),
		mcp.WithBoolean("approved", mcp.Description("The reviewer approved the proposal")),
		mcp.WithString("board_status", mcp.Description("Current project board status")),
		mcp.WithBoolean("review_period_passed", mcp.Description("The architect review window has elapsed")),
		mcp.WithBoolean("has_objections", mcp.Description("Objections were raised on the review thread")),
		mcp.WithString("watch_status", mcp.Description("Board status that marks the watch column (default from config)")),
	)
	return tool, s.handleDetectPhase
}

func (s *Server) handleDetectPhase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sig := models.Signals{
		ReviewerAssigned:   request.GetBool("reviewer_assigned", false),
		Approved:           request.GetBool("approved", false),
		BoardStatus:        request.GetString("board_status", ""),
		ReviewPeriodPassed: request.GetBool("review_period_passed", false),
		HasObjections:      request.GetBool("has_objections", false),
	}
	watch := request.GetString("watch_status", s.watchStatus)
	phase := workflow.DetectPhase(sig, watch)
	return jsonResult(map[string]any{
		"phase":   phase,
		"label":   phase.Label(),
		"signals": sig,
	})
}

// nsreview_list_runs
func (s *Server) listRunsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("nsreview_list_runs",
		mcp.WithDescription("List recent workflow runs from history, newest first, with issue and action totals."),
		mcp.WithNumber("limit", mcp.Description("Maximum runs to return (default 20)")),
	)
	return tool, s.handleListRuns
}

func (s *Server) handleListRuns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.store == nil {
		return mcp.NewToolResultError("run history is not available"), nil
	}
	limit := request.GetInt("limit", 20)
	runs, err := s.store.ListRuns(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list runs: %v", err)), nil
	}

	type runOut struct {
		ID            string    `json:"id"`
		StartedAt     time.Time `json:"startedAt"`
		DurationMS    int64     `json:"durationMs"`
		DryRun        bool      `json:"dryRun"`
		TotalIssues   int       `json:"totalIssues"`
		Processed     int       `json:"processed"`
		Skipped       int       `json:"skipped"`
		Actions       int       `json:"actions"`
		FailedActions int       `json:"failedActions"`
		Errors        int       `json:"errors"`
		ArtifactsDir  string    `json:"artifactsDir,omitempty"`
	}

	out := make([]runOut, len(runs))
	for i, r := range runs {
		out[i] = runOut{
			ID:            r.ID,
			StartedAt:     r.StartedAt,
			DurationMS:    r.Duration().Milliseconds(),
			DryRun:        r.DryRun,
			TotalIssues:   r.TotalIssues,
			Processed:     r.Processed,
			Skipped:       r.Skipped,
			Actions:       r.Actions,
			FailedActions: r.FailedActions,
			Errors:        r.Errors,
			ArtifactsDir:  r.ArtifactsDir,
		}
	}
	return jsonResult(out)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(bizdays.DateKeyLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}
