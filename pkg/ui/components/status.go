package components

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// ConnectionStatus is the state of one upstream the browser depends on.
type ConnectionStatus struct {
	Name      string
	Connected bool
	Detail    string
	Since     time.Time
}

// StatusComponent renders upstream connection badges in a single line.
type StatusComponent struct {
	connections []ConnectionStatus
}

// NewStatusComponent creates an empty status component.
func NewStatusComponent() *StatusComponent {
	return &StatusComponent{connections: make([]ConnectionStatus, 0, 2)}
}

// Update replaces the entry with the same name or appends a new one.
func (s *StatusComponent) Update(status ConnectionStatus) {
	for i, conn := range s.connections {
		if conn.Name == status.Name {
			s.connections[i] = status
			return
		}
	}
	s.connections = append(s.connections, status)
}

// Get returns the entry for name.
func (s *StatusComponent) Get(name string) (ConnectionStatus, bool) {
	for _, conn := range s.connections {
		if conn.Name == name {
			return conn, true
		}
	}
	return ConnectionStatus{}, false
}

// View renders the badges separated by spaces. Empty when nothing is tracked.
func (s *StatusComponent) View() string {
	up := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	down := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)

	parts := make([]string, 0, len(s.connections))
	for _, conn := range s.connections {
		label := conn.Name
		if conn.Detail != "" {
			label += " (" + conn.Detail + ")"
		}
		if conn.Connected {
			parts = append(parts, up.Render("● "+label))
		} else {
			parts = append(parts, down.Render("○ "+label))
		}
	}
	return strings.Join(parts, "  ")
}
