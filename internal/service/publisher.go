// Package service holds the application services sitting between the HTTP API
// handlers and the bus and storage layers.
package service

import "github.com/shaharia-lab/claudeflow/internal/eventbus"

// Publisher is the interface for publishing application events. Components
// use it to emit events without depending on the concrete bus.
type Publisher interface {
	Publish(evt eventbus.Event) error
}
