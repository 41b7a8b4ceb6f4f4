package speech

import (
	"sync"

	"github.com/gorilla/websocket"
)

// ConnectionManager tracks live speech websocket connections so shutdown can
// close them.
type ConnectionManager struct {
	mu    sync.RWMutex
	conns map[string]*websocket.Conn
}

func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{conns: make(map[string]*websocket.Conn)}
}

// Add registers conn under id, closing any connection already there.
func (m *ConnectionManager) Add(id string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.conns[id]; ok && old != conn {
		_ = old.Close()
	}
	m.conns[id] = conn
}

// Remove forgets id without closing its connection.
func (m *ConnectionManager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conns, id)
}

func (m *ConnectionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// CloseAll closes and forgets every connection.
func (m *ConnectionManager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, conn := range m.conns {
		_ = conn.Close()
		delete(m.conns, id)
	}
}
