// Package reporter renders recipe trees for humans.
package reporter

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/craftcalc/business/crafting/app"
	"github.com/fd1az/craftcalc/business/crafting/domain"
)

const (
	rule = "================================================================================"
	thin = "--------------------------------------------------------------------------------"
)

// ConsoleReporter implements app.Reporter for CLI output.
type ConsoleReporter struct {
	out io.Writer
	now func() time.Time
}

var _ app.Reporter = (*ConsoleReporter)(nil)

// NewConsoleReporter writes to out, or stdout when out is nil.
func NewConsoleReporter(out io.Writer) *ConsoleReporter {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleReporter{out: out, now: time.Now}
}

// Report prints the visible breakdown, the summary and, when given, the
// expand-all outcome.
func (r *ConsoleReporter) Report(_ context.Context, tree *domain.RecipeTree, s domain.Summary, report *app.ExpandReport) error {
	w := &errWriter{w: r.out}

	w.println("")
	w.println(rule)
	w.printf("%s (recipe %s)\n", strings.ToUpper(tree.ResultName), tree.RecipeID)
	w.println(rule)
	if tree.Server != "" {
		w.printf("Server:         %s\n", tree.Server)
	}
	if tree.Variant == domain.VariantStock {
		w.printf("Profile:        %s\n", tree.ProfileID)
	}
	w.printf("Generated:      %s\n", r.now().Format(time.RFC3339))
	w.println(thin)

	w.println("INGREDIENTS")
	for _, row := range domain.Rows(tree) {
		r.row(w, row)
	}
	w.println(thin)

	w.println("SUMMARY")
	w.printf("  Sell price:     %s (%s)\n", s.SellPrice, s.SellPriceFreshness)
	w.printf("  Craft cost:     %s%s\n", money(s.TotalCost), incomplete(s.IsComplete))
	if s.Variant == domain.VariantStock {
		w.printf("  Owned value:    %s\n", money(s.OwnedValue))
		w.printf("  To complete:    %s\n", money(s.CostToComplete))
		if s.SellPriceKnown {
			w.printf("  Margin (buy):   %s (%s%% ROI)\n", money(s.MarginToComplete), s.ROIToComplete.StringFixed(2))
		}
	}
	if s.SellPriceKnown {
		w.printf("  Margin:         %s (%s%% ROI)\n", money(s.Margin), s.ROI.StringFixed(2))
	} else {
		w.println("  Margin:         n/a (no sell price)")
	}
	w.printf("  Quick estimate: %s\n", s.QuickEstimate)
	w.printf("  Prices known:   %d/%d, ingredients %s\n", s.KnownPriceCount, s.TotalIngredientCount, s.IngredientFreshness)

	if report != nil {
		w.println(thin)
		w.println("EXPANSION")
		w.printf("  Levels: %d  Fetched: %d  Reused: %d  Expanded: %d\n",
			report.Levels, report.Fetched, report.Reused, report.Expanded)
		if report.Canceled {
			w.println("  Canceled before completion")
		}
		for _, f := range report.Failures {
			w.printf("  ! %s (%s): %v\n", f.Path, f.SubRecipeRef, f.Err)
		}
	}
	w.println(rule)
	return w.err
}

func (r *ConsoleReporter) row(w *errWriter, row domain.Row) {
	n := row.Node
	marker := " "
	switch {
	case n.State == domain.Expanded:
		marker = "-"
	case n.State == domain.Loading:
		marker = "~"
	case n.IsExpandable():
		marker = "+"
	}

	label := fmt.Sprintf("%s%s %dx %s", strings.Repeat("  ", row.Depth), marker, n.RequiredQuantity, n.Name)
	w.printf("  %-44s %12s%s %6s%%", label, money(row.Cost), incomplete(row.IsComplete), row.Share.StringFixed(1))
	if row.Stock != nil {
		w.printf("  own %d, need %d", row.Stock.OwnedQuantity, row.Stock.MissingQuantity)
	}
	w.println("")
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func incomplete(complete bool) string {
	if complete {
		return " "
	}
	return "*"
}

// errWriter keeps the first write error.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err == nil {
		_, e.err = fmt.Fprintf(e.w, format, args...)
	}
}

func (e *errWriter) println(s string) {
	if e.err == nil {
		_, e.err = fmt.Fprintln(e.w, s)
	}
}
