// Package ui provides the Bubble Tea recipe tree browser.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fd1az/craftcalc/business/crafting/app"
	"github.com/fd1az/craftcalc/business/crafting/domain"
	"github.com/fd1az/craftcalc/pkg/ui/components"
)

// Phase represents the current UI phase.
type Phase string

const (
	PhaseWelcome Phase = "welcome"
	PhaseOpening Phase = "opening"
	PhaseBrowse  Phase = "browse"
)

// WelcomeDuration is how long the welcome screen shows before auto-advancing.
const WelcomeDuration = 2 * time.Second

const (
	maxErrors = 3
	// Lines taken by everything around the tree box.
	chromeHeight = 18
)

// ErrorEntry represents an error with timestamp.
type ErrorEntry struct {
	Message   string
	Timestamp time.Time
}

// Opener loads the tree the browser starts from. It runs off the UI loop.
type Opener func(ctx context.Context) (*domain.RecipeTree, error)

// Options configures the browser.
type Options struct {
	Controller *app.Controller
	Open       Opener
	Freshness  domain.FreshnessPolicy
	// Feeds lists upstream names shown as disconnected until a
	// FeedStatusMsg says otherwise.
	Feeds       []string
	SkipWelcome bool
	Context     context.Context
}

// Model is the main Bubble Tea model for the browser.
type Model struct {
	ctrl   *app.Controller
	open   Opener
	policy domain.FreshnessPolicy
	ctx    context.Context
	now    func() time.Time

	keys    KeyMap
	help    help.Model
	spinner spinner.Model
	tree    *components.TreeComponent
	summary *components.SummaryComponent
	status  *components.StatusComponent

	phase    Phase
	quitting bool
	width    int
	height   int

	recipe   *domain.RecipeTree
	rows     []domain.Row
	cursor   domain.Path
	pending  int
	expandCh <-chan tea.Msg
	report   *app.ExpandReport

	// ticks seen while expand all runs, replayed onto the trees it sends back
	heldTicks []domain.PriceTick

	errors     []ErrorEntry
	lastUpdate time.Time
}

// New creates the browser model.
func New(opts Options) Model {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Freshness == (domain.FreshnessPolicy{}) {
		opts.Freshness = domain.DefaultFreshnessPolicy()
	}

	sp := spinner.New(spinner.WithSpinner(spinner.MiniDot))

	m := Model{
		ctrl:         opts.Controller,
		open:         opts.Open,
		policy:       opts.Freshness,
		ctx:          opts.Context,
		now:          time.Now,
		keys:         DefaultKeyMap(),
		help:         help.New(),
		spinner:      sp,
		tree:         components.NewTreeComponent(20),
		summary:      components.NewSummaryComponent(),
		status:       components.NewStatusComponent(),
		phase:        PhaseWelcome,
		errors:       make([]ErrorEntry, 0, maxErrors),
	}
	if opts.SkipWelcome {
		m.phase = PhaseOpening
	}
	for _, name := range opts.Feeds {
		m.status.Update(components.ConnectionStatus{Name: name})
	}
	return m
}

// Init starts the spinner, the welcome timer and the initial open.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, m.openCmd()}
	if m.phase == PhaseWelcome {
		cmds = append(cmds, tea.Tick(WelcomeDuration, func(time.Time) tea.Msg {
			return WelcomeDoneMsg{}
		}))
	}
	return tea.Batch(cmds...)
}

func (m Model) openCmd() tea.Cmd {
	if m.open == nil {
		return nil
	}
	open, ctx := m.open, m.ctx
	return func() tea.Msg {
		tree, err := open(ctx)
		return TreeOpenedMsg{Tree: tree, Err: err}
	}
}

func loadCmd(ctx context.Context, ctrl *app.Controller, req app.LoadRequest) tea.Cmd {
	return func() tea.Msg {
		return LoadedMsg{Result: ctrl.Load(ctx, req)}
	}
}

func waitExpand(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.tree.SetHeight(msg.Height - chromeHeight)
		return m, nil

	case WelcomeDoneMsg:
		if m.phase == PhaseWelcome {
			m.leaveWelcome()
		}
		return m, nil

	case TreeOpenedMsg:
		if msg.Err != nil {
			m.addError(msg.Err)
			return m, nil
		}
		m.report = nil
		m.setTree(msg.Tree)
		if m.phase == PhaseOpening {
			m.phase = PhaseBrowse
		}
		return m, nil

	case LoadedMsg:
		m.pending = max(m.pending-1, 0)
		if m.recipe == nil {
			return m, nil
		}
		next, err := m.ctrl.Apply(m.recipe, msg.Result)
		if err != nil && !msg.Result.Canceled() {
			m.addError(err)
		}
		m.setTree(next)
		return m, nil

	case ExpandProgressMsg:
		m.setTree(m.replayTicks(msg.Tree))
		return m, waitExpand(m.expandCh)

	case ExpandDoneMsg:
		m.expandCh = nil
		m.report = msg.Report
		m.setTree(m.replayTicks(msg.Tree))
		m.heldTicks = nil
		if msg.Report != nil {
			for _, f := range msg.Report.Failures {
				m.addError(fmt.Errorf("%s at %s: %w", f.SubRecipeRef, f.Path, f.Err))
			}
		}
		return m, nil

	case PriceTickMsg:
		if m.recipe == nil {
			return m, nil
		}
		if m.expandCh != nil {
			m.heldTicks = append(m.heldTicks, msg.Tick)
		}
		if next := domain.Reprice(m.recipe, msg.Tick); next != m.recipe {
			m.setTree(next)
			m.lastUpdate = m.now()
		}
		return m, nil

	case FeedStatusMsg:
		m.status.Update(components.ConnectionStatus{
			Name:      msg.Name,
			Connected: msg.Connected,
			Detail:    msg.Detail,
			Since:     m.now(),
		})
		return m, nil

	case ErrorMsg:
		m.addError(msg.Err)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.quitting = true
		return m, tea.Quit
	}
	// Any other key skips the welcome screen.
	if m.phase == PhaseWelcome {
		m.leaveWelcome()
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)
	case key.Matches(msg, m.keys.Toggle):
		return m.toggle()
	case key.Matches(msg, m.keys.ExpandAll):
		return m.expandAll()
	case key.Matches(msg, m.keys.CollapseAll):
		if m.recipe != nil && m.expandCh == nil {
			m.setTree(app.CollapseAll(m.recipe))
		}
	case key.Matches(msg, m.keys.Reload):
		if m.expandCh == nil {
			return m, m.openCmd()
		}
	case key.Matches(msg, m.keys.ClearErrors):
		m.errors = m.errors[:0]
	}
	return m, nil
}

func (m *Model) leaveWelcome() {
	m.phase = PhaseOpening
	if m.recipe != nil {
		m.phase = PhaseBrowse
	}
}

func (m Model) toggle() (tea.Model, tea.Cmd) {
	if m.recipe == nil || m.expandCh != nil || m.cursor == nil {
		return m, nil
	}

	next, req, err := m.ctrl.Toggle(m.recipe, m.cursor)
	if err != nil {
		m.addError(err)
	}
	m.setTree(next)
	if req == nil {
		return m, nil
	}
	m.pending++
	return m, loadCmd(m.ctx, m.ctrl, *req)
}

// expandAll runs the batch expansion off the UI loop and streams its
// intermediate trees back as messages. Single toggles are refused until it
// finishes and it is refused while single loads are in flight.
func (m Model) expandAll() (tea.Model, tea.Cmd) {
	if m.recipe == nil || m.expandCh != nil || m.pending > 0 || !app.CanExpandAll(m.recipe) {
		return m, nil
	}

	ch := make(chan tea.Msg, 16)
	ctrl, ctx, tree := m.ctrl, m.ctx, m.recipe
	go func() {
		defer close(ch)
		final, report := ctrl.ExpandAll(ctx, tree, func(t *domain.RecipeTree) {
			select {
			case ch <- ExpandProgressMsg{Tree: t}:
			default:
			}
		})
		ch <- ExpandDoneMsg{Tree: final, Report: report}
	}()

	m.expandCh = ch
	m.report = nil
	m.heldTicks = nil
	return m, waitExpand(ch)
}

// replayTicks reprices a tree built by expand all with the ticks that
// arrived after it started.
func (m Model) replayTicks(tree *domain.RecipeTree) *domain.RecipeTree {
	for _, tick := range m.heldTicks {
		tree = domain.Reprice(tree, tick)
	}
	return tree
}

func (m *Model) moveCursor(delta int) {
	if len(m.rows) == 0 {
		return
	}
	i := min(max(m.rowIndex()+delta, 0), len(m.rows)-1)
	m.cursor = m.rows[i].Path
	m.tree.SetCursor(i)
}

// rowIndex finds the cursor row, falling back to its closest visible
// ancestor when a collapse hid it.
func (m *Model) rowIndex() int {
	for n := len(m.cursor); n > 0; n-- {
		for i, r := range m.rows {
			if r.Path.Equal(m.cursor[:n]) {
				return i
			}
		}
	}
	return 0
}

func (m *Model) setTree(tree *domain.RecipeTree) {
	if tree == nil {
		return
	}
	now := m.now()
	m.recipe = tree
	m.rows = domain.Rows(tree)

	view := make([]components.TreeRow, len(m.rows))
	for i, r := range m.rows {
		view[i] = treeRow(r, now, m.policy)
	}
	m.tree.SetRows(view)

	if len(m.rows) == 0 {
		m.cursor = nil
	} else {
		i := m.rowIndex()
		m.cursor = m.rows[i].Path
		m.tree.SetCursor(i)
	}

	m.summary.Set(summaryView(domain.Summarize(tree, now, m.policy)))
}

func (m *Model) addError(err error) {
	m.errors = append(m.errors, ErrorEntry{Message: err.Error(), Timestamp: m.now()})
	if len(m.errors) > maxErrors {
		m.errors = m.errors[len(m.errors)-maxErrors:]
	}
}

func treeRow(r domain.Row, now time.Time, policy domain.FreshnessPolicy) components.TreeRow {
	n := r.Node
	row := components.TreeRow{
		Depth:     r.Depth,
		Name:      n.Name,
		Quantity:  n.RequiredQuantity,
		UnitPrice: n.UnitPrice.String(),
		Cost:      r.Cost,
		Complete:  r.IsComplete,
		Share:     r.Share,
		Stale:     n.UnitPrice.Known && policy.Classify(n.PriceUpdatedAt, now) == domain.FreshnessStale,
	}
	switch {
	case n.State == domain.Loading:
		row.State = components.NodeLoading
	case n.State == domain.Expanded:
		row.State = components.NodeExpanded
	case n.IsExpandable():
		row.State = components.NodeCollapsed
	}
	if r.Stock != nil {
		row.HasStock = true
		row.Owned = r.Stock.OwnedQuantity
		row.Missing = r.Stock.MissingQuantity
	}
	return row
}

func summaryView(s domain.Summary) components.SummaryView {
	return components.SummaryView{
		SellPrice:        s.SellPrice.String(),
		QuickEstimate:    s.QuickEstimate.String(),
		TotalCost:        s.TotalCost,
		Margin:           s.Margin,
		ROI:              s.ROI,
		SellKnown:        s.SellPriceKnown,
		Complete:         s.IsComplete,
		Stock:            s.Variant == domain.VariantStock,
		OwnedValue:       s.OwnedValue,
		CostToComplete:   s.CostToComplete,
		MarginToComplete: s.MarginToComplete,
		ROIToComplete:    s.ROIToComplete,
		KnownPrices:      s.KnownPriceCount,
		TotalIngredients: s.TotalIngredientCount,
		SellFreshness:    s.SellPriceFreshness.String(),
		PriceFreshness:   s.IngredientFreshness.String(),
	}
}

// View renders the UI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	switch {
	case m.phase == PhaseWelcome:
		return m.renderWelcome()
	case m.recipe == nil:
		return m.renderOpening()
	default:
		return m.renderBrowser()
	}
}

func (m Model) renderWelcome() string {
	logo := lipgloss.JoinVertical(lipgloss.Center,
		TitleStyle.Render(" CRAFTCALC "),
		"",
		HeaderStyle.Render("recipe cost and margin explorer"),
		"",
		MutedValue.Render("press any key to continue"),
	)
	if m.width == 0 {
		return BoxStyle.Render(logo)
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, BoxStyle.Render(logo))
}

func (m Model) renderOpening() string {
	var sb strings.Builder
	sb.WriteString(TitleStyle.Render(" CRAFTCALC "))
	sb.WriteString("\n\n")
	if len(m.errors) > 0 {
		sb.WriteString(NegativeValue.Render("  Could not open recipe"))
		sb.WriteString("\n\n")
		sb.WriteString(m.renderErrors())
		sb.WriteString("\n")
		sb.WriteString(HelpStyle.Render("r reload • q quit"))
		return sb.String()
	}
	sb.WriteString("  " + SpinnerStyle.Render(m.spinner.View()) + " Opening recipe...")
	sb.WriteString("\n")
	return sb.String()
}

func (m Model) renderBrowser() string {
	var sb strings.Builder

	title := TitleStyle.Render(" CRAFTCALC ") + " " + HeaderStyle.Render(m.recipe.ResultName) +
		MutedValue.Render(" "+m.recipe.RecipeID)
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(m.renderStatusBar())
	sb.WriteString("\n")

	box := BoxStyle
	if m.width > 4 {
		box = box.Width(m.width - 2)
	}
	sb.WriteString(box.Render(m.tree.View(m.spinner.View())))
	sb.WriteString("\n")
	sb.WriteString(box.Render(m.summary.View()))
	sb.WriteString("\n")

	if m.report != nil {
		sb.WriteString(m.renderReport())
		sb.WriteString("\n")
	}
	if len(m.errors) > 0 {
		sb.WriteString(m.renderErrors())
		sb.WriteString("\n")
	}
	sb.WriteString(HelpStyle.Render(m.help.View(m.keys)))
	return sb.String()
}

func (m Model) renderStatusBar() string {
	parts := []string{"Server: " + orDash(m.recipe.Server), "View: " + m.recipe.Variant.String()}
	if m.recipe.ProfileID != "" {
		parts = append(parts, "Profile: "+m.recipe.ProfileID)
	}

	switch {
	case m.expandCh != nil:
		parts = append(parts, StatusBusy.Render(m.spinner.View()+" Expanding"))
	case m.pending > 0:
		parts = append(parts, StatusBusy.Render(fmt.Sprintf("%s Loading %d", m.spinner.View(), m.pending)))
	}

	if feeds := m.status.View(); feeds != "" {
		parts = append(parts, feeds)
	}
	if !m.lastUpdate.IsZero() {
		ago := m.now().Sub(m.lastUpdate).Round(time.Second)
		parts = append(parts, MutedValue.Render(fmt.Sprintf("Repriced %s ago", ago)))
	}
	return strings.Join(parts, "  │  ")
}

func (m Model) renderReport() string {
	r := m.report
	line := fmt.Sprintf("Expand all: %d levels, %d fetched, %d reused, %d expanded",
		r.Levels, r.Fetched, r.Reused, r.Expanded)
	switch {
	case r.Canceled:
		return StatusBusy.Render(line + ", canceled")
	case len(r.Failures) > 0:
		return NegativeValue.Render(fmt.Sprintf("%s, %d failed", line, len(r.Failures)))
	default:
		return PositiveValue.Render(line)
	}
}

func (m Model) renderErrors() string {
	lines := make([]string, 0, len(m.errors))
	for _, e := range m.errors {
		lines = append(lines, MutedValue.Render(e.Timestamp.Format("15:04:05"))+" "+NegativeValue.Render(e.Message))
	}
	return ErrorPanelStyle.Render(strings.Join(lines, "\n"))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// Program holds the Bubble Tea program instance for external access.
var Program *tea.Program

// NewProgram creates the browser program and stores it in Program so Send
// can reach it. The program stops when opts.Context ends.
func NewProgram(opts Options) *tea.Program {
	progOpts := []tea.ProgramOption{tea.WithAltScreen()}
	if opts.Context != nil {
		progOpts = append(progOpts, tea.WithContext(opts.Context))
	}
	Program = tea.NewProgram(New(opts), progOpts...)
	return Program
}

// Run starts the browser and blocks until it quits.
func Run(opts Options) error {
	_, err := NewProgram(opts).Run()
	return err
}

// Send sends a message to the running program.
func Send(msg tea.Msg) {
	if Program != nil {
		Program.Send(msg)
	}
}

// ForwardPrices sends every tick to the running program until ticks closes
// or ctx ends.
func ForwardPrices(ctx context.Context, ticks <-chan domain.PriceTick) {
	for {
		select {
		case <-ctx.Done():
			return
		case tick, ok := <-ticks:
			if !ok {
				return
			}
			Send(PriceTickMsg{Tick: tick})
		}
	}
}
