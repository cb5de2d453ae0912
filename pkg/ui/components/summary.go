package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// SummaryView is the opportunity data shown under the tree. Values come
// pre-computed; the component only formats them.
type SummaryView struct {
	SellPrice     string
	QuickEstimate string
	TotalCost     decimal.Decimal
	Margin        decimal.Decimal
	ROI           decimal.Decimal
	SellKnown     bool
	Complete      bool

	Stock            bool
	OwnedValue       decimal.Decimal
	CostToComplete   decimal.Decimal
	MarginToComplete decimal.Decimal
	ROIToComplete    decimal.Decimal

	KnownPrices      int
	TotalIngredients int
	SellFreshness    string
	PriceFreshness   string
}

// SummaryComponent renders the opportunity summary.
type SummaryComponent struct {
	view *SummaryView
}

// NewSummaryComponent creates an empty summary.
func NewSummaryComponent() *SummaryComponent {
	return &SummaryComponent{}
}

// Set replaces the summary data.
func (s *SummaryComponent) Set(v SummaryView) {
	s.view = &v
}

// View renders the summary block.
func (s *SummaryComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	positiveStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	negativeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	if s.view == nil {
		return dimStyle.Render("Waiting for recipe...")
	}
	v := s.view

	signed := func(d decimal.Decimal, format func(decimal.Decimal) string) string {
		if !v.SellKnown {
			return dimStyle.Render("n/a")
		}
		if d.IsNegative() {
			return negativeStyle.Render(format(d))
		}
		return positiveStyle.Render("+" + format(d))
	}
	kamas := func(d decimal.Decimal) string { return d.StringFixed(0) }
	percent := func(d decimal.Decimal) string { return d.StringFixed(1) + "%" }

	var sb strings.Builder
	title := "SUMMARY"
	if !v.Complete {
		title += " (incomplete)"
	}
	sb.WriteString(headerStyle.Render(title))
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "  Sell price:  %s %s\n", v.SellPrice, dimStyle.Render("["+v.SellFreshness+"]"))
	fmt.Fprintf(&sb, "  Total cost:  %s %s\n", kamas(v.TotalCost), dimStyle.Render("["+v.PriceFreshness+"]"))
	fmt.Fprintf(&sb, "  Margin:      %s   ROI: %s\n", signed(v.Margin, kamas), signed(v.ROI, percent))

	if v.Stock {
		fmt.Fprintf(&sb, "  Owned value: %s   To complete: %s\n", kamas(v.OwnedValue), kamas(v.CostToComplete))
		fmt.Fprintf(&sb, "  Margin (to complete): %s   ROI: %s\n", signed(v.MarginToComplete, kamas), signed(v.ROIToComplete, percent))
	}

	fmt.Fprintf(&sb, "  %s\n", dimStyle.Render(fmt.Sprintf("Prices known: %d/%d   Quick estimate: %s",
		v.KnownPrices, v.TotalIngredients, v.QuickEstimate)))
	return sb.String()
}
