package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/rustyeddy/signalbot/clock"
	"github.com/rustyeddy/signalbot/journal"
	"github.com/spf13/cobra"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the SQLite trade journal",
	Long: `Query and display journal records from a SQLite database.

Subcommands:
  recent - List the most recently closed legs
  today  - Report on today's legs and signals
  day    - Report on a specific day

Examples:
  signalbot journal recent -n 20
  signalbot journal today
  signalbot journal day 2025-01-15`,
}

var journalRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List the most recently closed legs",
	Args:  cobra.NoArgs,
	RunE:  runJournalRecent,
}

var journalTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "Report on today's legs and signals",
	Args:  cobra.NoArgs,
	RunE:  runJournalToday,
}

var journalDayCmd = &cobra.Command{
	Use:   "day <YYYY-MM-DD>",
	Short: "Report on a specific day",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalDay,
}

var (
	journalDBPath string
	journalSymbol string
	journalZone   string
	journalLimit  int
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalRecentCmd)
	journalCmd.AddCommand(journalTodayCmd)
	journalCmd.AddCommand(journalDayCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "./signalbot.sqlite", "path to SQLite journal DB")
	journalCmd.PersistentFlags().StringVar(&journalSymbol, "symbol", "", "symbol shown in the report heading")
	journalCmd.PersistentFlags().StringVar(&journalZone, "tz", clock.DefaultZone, "time zone that defines a trading day")
	journalRecentCmd.Flags().IntVarP(&journalLimit, "limit", "n", 20, "number of legs to list")
}

func runJournalRecent(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	legs, err := j.RecentLegs(journalLimit)
	if err != nil {
		return fmt.Errorf("query legs: %w", err)
	}
	for _, l := range legs {
		fmt.Printf("%s  %-16s %-5s %6.2f  %10.2f -> %10.2f  %9.2f  %s\n",
			l.CloseTime.Format("2006-01-02 15:04:05"), l.Label, l.Direction, l.Volume,
			l.EntryPrice, l.ClosePrice, l.NetProfit, l.Reason)
	}
	return nil
}

func runJournalToday(cmd *cobra.Command, args []string) error {
	loc := clock.LoadLocation(journalZone)
	return reportDay(time.Now().In(loc).Format("2006-01-02"), loc)
}

func runJournalDay(cmd *cobra.Command, args []string) error {
	return reportDay(args[0], clock.LoadLocation(journalZone))
}

func reportDay(day string, loc *time.Location) error {
	start, end, err := dayBounds(loc, day)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}

	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	legs, err := j.ListLegsClosedBetween(start, end)
	if err != nil {
		return fmt.Errorf("query legs: %w", err)
	}
	signals, err := j.ListSignalsBetween(start, end)
	if err != nil {
		return fmt.Errorf("query signals: %w", err)
	}

	r := journal.Summarize(start, journalSymbol, legs, signals)
	if snap, ok, err := j.LastEquity(start); err == nil && ok {
		r.StartBalance = snap.Balance
	}
	if snap, ok, err := j.LastEquity(end); err == nil && ok {
		r.EndBalance = snap.Balance
	}
	return r.WriteOrg(os.Stdout)
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return start, end, nil
}
