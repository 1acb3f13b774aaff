package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"potrosnja/internal/core"
)

var compareField string

var totalsCmd = &cobra.Command{
	Use:   "totals",
	Short: "Show consumption totals per year",
	RunE:  runTotals,
}

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare one field month by month across the two most recent years",
	RunE:  runCompare,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show where records were loaded from and the latest period",
	RunE:  runStatus,
}

func init() {
	compareCmd.Flags().StringVar(&compareField, "field", string(core.FieldTotalConsumption),
		"field to compare: "+fieldNames())
	rootCmd.AddCommand(totalsCmd, compareCmd, statusCmd)
}

func fieldNames() string {
	names := make([]string, len(core.Fields))
	for i, f := range core.Fields {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

func runTotals(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	s, err := openSession(cmd.Context(), out)
	if err != nil {
		return err
	}
	defer s.Close()

	totals := s.svc.AnnualTotals()
	if len(totals) == 0 {
		fmt.Fprintln(out, "No records found")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Year\tMonths\tHousehold\tCar\tBojler\tTotal\t")
	for _, t := range totals {
		fmt.Fprintf(tw, "%d\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t\n",
			t.Year, t.Months, t.HouseholdConsumption, t.CarConsumption, t.BojlerConsumption, t.TotalConsumption)
	}
	return tw.Flush()
}

func runCompare(cmd *cobra.Command, args []string) error {
	field, err := core.ParseField(compareField)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	s, err := openSession(cmd.Context(), out)
	if err != nil {
		return err
	}
	defer s.Close()

	cmp := s.svc.MonthlyComparison(field)
	if len(cmp.Years) == 0 {
		fmt.Fprintln(out, "No records found")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	header := []string{"Month"}
	for _, y := range cmp.Years {
		header = append(header, fmt.Sprint(y))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t")+"\t")
	for _, row := range cmp.Rows {
		cells := []string{row.Label}
		for _, v := range row.Values {
			if f, ok := v.Get(); ok {
				cells = append(cells, fmt.Sprintf("%.2f", f))
			} else {
				cells = append(cells, "-")
			}
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t")+"\t")
	}
	return tw.Flush()
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	s, err := openSession(cmd.Context(), out)
	if err != nil {
		return err
	}
	defer s.Close()

	st := s.svc.Status()
	fmt.Fprintf(out, "State:   %s\n", st.State)
	fmt.Fprintf(out, "Source:  %s\n", st.Source)
	fmt.Fprintf(out, "Records: %d\n", len(s.svc.Records()))
	if latest, ok := s.svc.Latest(); ok {
		fmt.Fprintf(out, "Latest:  %s\n", latest.Period())
	}
	years := s.svc.Years()
	fmt.Fprintf(out, "Years:   %d-%d\n", years.Min, years.Max)
	if st.LastError != "" {
		fmt.Fprintf(out, "Error:   %s\n", st.LastError)
	}
	return nil
}
