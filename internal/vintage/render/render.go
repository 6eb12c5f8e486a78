package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/farxc/vintage-cohorts/internal/vintage/aggregate"
)

// WriteMatrix prints the vintage triangle as a fixed-width grid with one row per cohort
// and one column per age. Ratios are shown as percentages, cells with data but nothing
// delinquent as 0.00% and cells without data as "-".
func WriteMatrix(w io.Writer, report *aggregate.Report) error {
	if report == nil || report.Matrix.IsEmpty() {
		_, err := fmt.Fprintln(w, "no results for the selected filters")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)

	fmt.Fprintf(tw, "over %d days (%s / %s)\t\n", report.ThresholdDays, report.Numerator, report.Denominator)

	header := make([]string, 0, len(report.Matrix.Ages)+1)
	header = append(header, "cohort")
	for _, age := range report.Matrix.Ages {
		header = append(header, "M"+strconv.Itoa(age))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t")+"\t")

	for i, cohort := range report.Matrix.Cohorts {
		row := make([]string, 0, len(report.Matrix.Ages)+1)
		row = append(row, cohort.String())
		for _, cell := range report.Matrix.Cells[i] {
			row = append(row, FormatCell(cell))
		}
		fmt.Fprintln(tw, strings.Join(row, "\t")+"\t")
	}

	return tw.Flush()
}

func FormatCell(c aggregate.Cell) string {
	v, ok := c.Value()
	if !ok {
		return "-"
	}
	return strconv.FormatFloat(v*100, 'f', 2, 64) + "%"
}

// WriteTotals prints one line per cohort with its loan count, rows and sums.
func WriteTotals(w io.Writer, report *aggregate.Report) error {
	if report == nil || len(report.Totals) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "cohort\tloans\trows\tdelinquent\tdisbursed\tdelinquent amount\tmax age\t")
	for _, t := range report.Totals {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%.2f\t%.2f\t%d\t\n",
			t.Cohort, t.Loans, t.Rows, t.DelinquentRows, t.SumDisbursed, t.SumDelinquent, t.MaxAge)
	}
	return tw.Flush()
}
