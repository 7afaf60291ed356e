package dashboard

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"stockpilot/internal/engine"
)

// Handler turns engine and connectivity events into dashboard broadcasts.
// It satisfies engine.Notifier; wire OnConnectivityChanged to the
// connectivity monitor's subscription.
type Handler struct {
	server *Server
	logger *zap.Logger
}

// NewHandler creates an event handler connected to a dashboard server
func NewHandler(server *Server, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.L()
	}
	return &Handler{
		server: server,
		logger: logger,
	}
}

// SyncCycleFinished broadcasts the result of a finished sync cycle.
func (h *Handler) SyncCycleFinished(result engine.CycleResult) {
	data, err := json.Marshal(result)
	if err != nil {
		h.logger.Error("failed to marshal cycle result", zap.Error(err))
		return
	}
	h.server.Broadcast(Message{
		Type:      MessageTypeSyncCycle,
		Timestamp: time.Now(),
		Data:      data,
	})
}

// OnConnectivityChanged broadcasts an online/offline transition.
func (h *Handler) OnConnectivityChanged(online bool) {
	data, err := json.Marshal(ConnectivityData{Online: online})
	if err != nil {
		h.logger.Error("failed to marshal connectivity data", zap.Error(err))
		return
	}
	h.server.Broadcast(Message{
		Type:      MessageTypeConnectivity,
		Timestamp: time.Now(),
		Data:      data,
	})
}
