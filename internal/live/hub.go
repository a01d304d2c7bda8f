// Package live pushes session changes to open browser tabs over websocket.
package live

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// Hub tracks the live connections of every device, one per tab.
type Hub struct {
	mu     sync.RWMutex
	active map[string]map[string]*websocket.Conn
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		active: make(map[string]map[string]*websocket.Conn),
	}
}

// Count returns the number of open tabs of a device.
func (h *Hub) Count(deviceID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.active[deviceID])
}

// Register adds conn for a device tab, closing any connection it replaces.
func (h *Hub) Register(deviceID, tabID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.active[deviceID]; !exists {
		h.active[deviceID] = make(map[string]*websocket.Conn)
	}

	if existing, exists := h.active[deviceID][tabID]; exists && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "tab replaced")
	}

	h.active[deviceID][tabID] = conn
	slog.Debug("Live connection registered", "device_id", deviceID, "tab_id", tabID)
}

// Unregister removes conn if it is still the registered connection of the tab.
func (h *Hub) Unregister(deviceID, tabID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if tabs, ok := h.active[deviceID]; ok {
		if current, exists := tabs[tabID]; exists && current == conn {
			delete(tabs, tabID)
			if len(tabs) == 0 {
				delete(h.active, deviceID)
			}
			slog.Debug("Live connection unregistered", "device_id", deviceID, "tab_id", tabID)
		}
	}
}

// CloseAll closes every connection, used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for deviceID, tabs := range h.active {
		for _, conn := range tabs {
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		}
		delete(h.active, deviceID)
	}
}
