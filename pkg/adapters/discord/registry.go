package discord

import (
	"strings"
	"sync"
)

// Registry remembers, per visitor, the channel to answer in, the funnel
// the visitor last entered and the node last shown in each funnel.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]string
	funnels  map[string]string
	nodes    map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[string]string),
		funnels:  make(map[string]string),
		nodes:    make(map[string]string),
	}
}

func (r *Registry) Register(visitorID, channelID string) {
	visitorID = strings.TrimSpace(visitorID)
	channelID = strings.TrimSpace(channelID)
	if visitorID == "" || channelID == "" {
		return
	}
	r.mu.Lock()
	r.channels[visitorID] = channelID
	r.mu.Unlock()
}

func (r *Registry) Channel(visitorID string) (string, bool) {
	r.mu.RLock()
	channelID, ok := r.channels[strings.TrimSpace(visitorID)]
	r.mu.RUnlock()
	return channelID, ok
}

func (r *Registry) SetFunnel(visitorID, funnelID string) {
	if visitorID == "" || funnelID == "" {
		return
	}
	r.mu.Lock()
	r.funnels[visitorID] = funnelID
	r.mu.Unlock()
}

func (r *Registry) Funnel(visitorID string) (string, bool) {
	r.mu.RLock()
	funnelID, ok := r.funnels[visitorID]
	r.mu.RUnlock()
	return funnelID, ok
}

// SetNode records the node the visitor was last shown in funnelID. An empty
// nodeID forgets it.
func (r *Registry) SetNode(visitorID, funnelID, nodeID string) {
	if visitorID == "" || funnelID == "" {
		return
	}
	key := visitorID + "|" + funnelID
	r.mu.Lock()
	if nodeID == "" {
		delete(r.nodes, key)
	} else {
		r.nodes[key] = nodeID
	}
	r.mu.Unlock()
}

func (r *Registry) Node(visitorID, funnelID string) (string, bool) {
	r.mu.RLock()
	nodeID, ok := r.nodes[visitorID+"|"+funnelID]
	r.mu.RUnlock()
	return nodeID, ok
}
