package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/nsreview/internal/bizdays"
	"github.com/joescharf/nsreview/internal/output"
)

// timeNow is a package-level variable for testability.
var timeNow = time.Now

var (
	deadlineFrom string
	deadlineDays int
)

var holidaysCmd = &cobra.Command{
	Use:   "holidays [year]",
	Short: "List the non-working days for a year",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		year := timeNow().Year()
		if len(args) == 1 {
			y, err := strconv.Atoi(args[0])
			if err != nil || y < 1900 || y > 9999 {
				return fmt.Errorf("invalid year: %s", args[0])
			}
			year = y
		}
		return holidaysRun(year)
	},
}

var deadlineCmd = &cobra.Command{
	Use:   "deadline",
	Short: "Show the review deadline for a review starting on a date",
	RunE: func(cmd *cobra.Command, args []string) error {
		from := timeNow()
		if deadlineFrom != "" {
			t, err := parseDate(deadlineFrom)
			if err != nil {
				return err
			}
			from = t
		}
		days := deadlineDays
		if days <= 0 {
			days = viper.GetInt("review.days")
		}
		if err := bizdays.CheckDays(days); err != nil {
			return err
		}
		return deadlineRun(from, days)
	},
}

var bizdaysCmd = &cobra.Command{
	Use:   "bizdays FROM TO",
	Short: "Count business days after FROM up to and including TO",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := parseDate(args[0])
		if err != nil {
			return err
		}
		to, err := parseDate(args[1])
		if err != nil {
			return err
		}
		if err := bizdays.CheckSpan(from, to); err != nil {
			return err
		}
		fmt.Fprintln(ui.Out, bizdays.Default().CountBusinessDays(from, to))
		return nil
	},
}

func init() {
	deadlineCmd.Flags().StringVar(&deadlineFrom, "from", "", "Review start date (YYYY-MM-DD, default today)")
	deadlineCmd.Flags().IntVar(&deadlineDays, "days", 0, "Review window in business days (default review.days)")
	rootCmd.AddCommand(holidaysCmd)
	rootCmd.AddCommand(deadlineCmd)
	rootCmd.AddCommand(bizdaysCmd)
}

func parseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(bizdays.DateKeyLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}

func holidaysRun(year int) error {
	days := bizdays.Default().HolidaysForYear(year)
	keys := make([]string, 0, len(days))
	for k := range days {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	table := ui.Table([]string{"Date", "Day", "Holiday"})
	for _, k := range keys {
		d, _ := time.Parse(bizdays.DateKeyLayout, k)
		_ = table.Append([]string{k, d.Weekday().String()[:3], days[k]})
	}
	_ = table.Render()
	ui.Info("%d non-working day(s) in %d", len(keys), year)
	return nil
}

func deadlineRun(from time.Time, days int) error {
	cal := bizdays.Default()
	deadline := cal.ReviewDeadline(from, days)
	ui.Info("Review started %s", bizdays.FormatDeadline(from))
	ui.Success("Deadline after %d business day(s): %s", days, output.Cyan(bizdays.FormatDeadline(deadline)))

	now := timeNow()
	if cal.HasReviewPeriodPassed(from, now, days) {
		ui.Info("The review period has passed")
	} else {
		ui.Info("%d business day(s) remaining", cal.CountBusinessDays(now, deadline))
	}
	return nil
}
