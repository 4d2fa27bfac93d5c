package netflow

import (
	"sync"

	"github.com/icsnexus/otcollector/models"
)

// templateCache stores NetFlow v9 templates scoped per (exporterAddr,
// templateID), resolving the architecture spec's Open Question in favor of
// per-exporter scoping rather than a single global keying — two exporters
// reusing the same templateID would otherwise corrupt each other's decode.
type templateCache struct {
	mu         sync.RWMutex
	byExporter map[string]map[uint16]models.NetFlowTemplate
}

func newTemplateCache() *templateCache {
	return &templateCache{byExporter: make(map[string]map[uint16]models.NetFlowTemplate)}
}

func (c *templateCache) put(exporter string, tmpl models.NetFlowTemplate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.byExporter[exporter]
	if !ok {
		m = make(map[uint16]models.NetFlowTemplate)
		c.byExporter[exporter] = m
	}
	m[tmpl.TemplateID] = tmpl
}

func (c *templateCache) get(exporter string, id uint16) (models.NetFlowTemplate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.byExporter[exporter]
	if !ok {
		return models.NetFlowTemplate{}, false
	}
	tmpl, ok := m[id]
	return tmpl, ok
}
