package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"potrosnja/internal/core"
)

var (
	submitYear      int
	submitMonth     int
	submitHousehold string
	submitCar       string
	submitBojler    string
	submitHouseOver string
	submitCarOver   string
	listYear        int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored records in chronological order",
	RunE:  runList,
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Record meter states for a month",
	Long: `Submits readings for one month. When the month already exists the given
values are merged into it and omitted values keep what is stored; otherwise
a new record is created with omitted values taken as zero.

Consumption is derived from the previous month's states unless an override
is given.`,
	Example: `  potrosnjactl submit --year 2024 --month 3 --household 1520.5 --car 410
  potrosnjactl submit --year 2024 --month 3 --bojler 12`,
	RunE: runSubmit,
}

var updateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Replace the values of a record, possibly moving it to another month",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpdate,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a record",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	listCmd.Flags().IntVar(&listYear, "year", 0, "only show this year")

	for _, c := range []*cobra.Command{submitCmd, updateCmd} {
		c.Flags().IntVar(&submitYear, "year", 0, "year (required)")
		c.Flags().IntVar(&submitMonth, "month", 0, "month 1-12 (required)")
		c.Flags().StringVar(&submitHousehold, "household", "", "household meter state")
		c.Flags().StringVar(&submitCar, "car", "", "car meter state")
		c.Flags().StringVar(&submitBojler, "bojler", "", "boiler consumption")
		c.Flags().StringVar(&submitHouseOver, "household-consumption", "", "household consumption override")
		c.Flags().StringVar(&submitCarOver, "car-consumption", "", "car consumption override")
		_ = c.MarkFlagRequired("year")
		_ = c.MarkFlagRequired("month")
	}

	rootCmd.AddCommand(listCmd, submitCmd, updateCmd, deleteCmd)
}

func submissionFromFlags() core.Submission {
	return core.Submission{
		Year:              submitYear,
		Month:             submitMonth,
		HouseholdState:    core.ParseReading(submitHousehold),
		CarState:          core.ParseReading(submitCar),
		BojlerConsumption: core.ParseConsumption(submitBojler),
		HouseholdOverride: core.ParseReading(submitHouseOver),
		CarOverride:       core.ParseReading(submitCarOver),
	}
}

func runList(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	s, err := openSession(cmd.Context(), out)
	if err != nil {
		return err
	}
	defer s.Close()

	var records []core.Record
	for _, r := range s.svc.Chronological() {
		if listYear == 0 || r.Year == listYear {
			records = append(records, r)
		}
	}
	if len(records) == 0 {
		fmt.Fprintln(out, "No records found")
		return nil
	}
	printRecords(out, records)
	return nil
}

func runSubmit(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	s, err := openSession(cmd.Context(), out)
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := s.svc.Submit(cmd.Context(), submissionFromFlags())
	if err != nil {
		return err
	}
	verb := "Created"
	if res.Merged {
		verb = "Updated"
	}
	fmt.Fprintf(out, "%s %s (id %s)\n", verb, res.Record.Period(), res.Record.ID)
	printRecords(out, []core.Record{res.Record})
	reportStatus(out, res.Status)
	return nil
}

func runUpdate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	s, err := openSession(cmd.Context(), out)
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := s.svc.Update(cmd.Context(), args[0], submissionFromFlags())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Updated %s\n", res.Record.ID)
	printRecords(out, []core.Record{res.Record})
	reportStatus(out, res.Status)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	s, err := openSession(cmd.Context(), out)
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := s.svc.Delete(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Deleted %s (%s)\n", res.Record.ID, res.Record.Period())
	reportStatus(out, res.Status)
	return nil
}

func printRecords(out io.Writer, records []core.Record) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Period\tHousehold\tUsed\tCar\tUsed\tBojler\tTotal\tID\t")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%s\t\n",
			r.Period(), r.HouseholdState, r.HouseholdConsumption,
			r.CarState, r.CarConsumption, r.BojlerConsumption, r.TotalConsumption, r.ID)
	}
	_ = tw.Flush()
}
