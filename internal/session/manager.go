// Package session keeps short per-session conversation history for prompt
// construction.
package session

import (
	"strings"
	"sync"
)

type exchange struct {
	user      string
	assistant string
}

// Manager stores recent exchanges per session, bounded by maxHistory.
type Manager struct {
	mu         sync.RWMutex
	maxHistory int
	sessions   map[string][]exchange
}

// NewManager creates a Manager keeping up to maxHistory exchanges per session.
func NewManager(maxHistory int) *Manager {
	if maxHistory < 0 {
		maxHistory = 0
	}
	return &Manager{
		maxHistory: maxHistory,
		sessions:   make(map[string][]exchange),
	}
}

// AddExchange records one user/assistant pair, evicting the oldest exchange
// once the session exceeds the history window.
func (m *Manager) AddExchange(sessionID, userMessage, assistantMessage string) {
	if sessionID == "" || m.maxHistory == 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	history := append(m.sessions[sessionID], exchange{user: userMessage, assistant: assistantMessage})
	if len(history) > m.maxHistory {
		history = history[len(history)-m.maxHistory:]
	}
	m.sessions[sessionID] = history
}

// FormatHistory renders the session's exchanges for inclusion in a system
// prompt. Returns "" for unknown or empty sessions.
func (m *Manager) FormatHistory(sessionID string) string {
	if sessionID == "" {
		return ""
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	history := m.sessions[sessionID]
	if len(history) == 0 {
		return ""
	}

	lines := make([]string, 0, len(history)*2)
	for _, ex := range history {
		lines = append(lines, "User: "+ex.user, "Assistant: "+ex.assistant)
	}
	return strings.Join(lines, "\n")
}

// Clear removes all history for a session.
func (m *Manager) Clear(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}
