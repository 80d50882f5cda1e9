package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Benny93/fanout-go/internal/graph"
	"github.com/Benny93/fanout-go/internal/report"
)

// MemoryBackend is an in-memory implementation of StorageBackend for
// tests and one-shot runs.
//
// Records are copied on save and on load, so callers never share state
// with the store.
type MemoryBackend struct {
	mu       sync.RWMutex
	readOnly bool

	info     *SnapshotInfo
	content  map[string]graph.ContentNode
	taxonomy map[string]graph.TaxonomyNode
	edges    []graph.Edge
	report   []byte
	index    map[string]postings
}

// NewMemoryBackend creates a new in-memory storage backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// Initialize implements StorageBackend. The path is ignored.
func (m *MemoryBackend) Initialize(path string, readOnly bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readOnly = readOnly
	return nil
}

// Close implements StorageBackend.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.info = nil
	m.content = nil
	m.taxonomy = nil
	m.edges = nil
	m.report = nil
	m.index = nil
	return nil
}

// SaveSnapshot implements StorageBackend.
func (m *MemoryBackend) SaveSnapshot(ctx context.Context, snap *Snapshot) error {
	if err := validateSnapshot(snap); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.readOnly {
		return ErrReadOnly
	}

	var rep []byte
	if snap.Report != nil {
		data, err := json.Marshal(snap.Report)
		if err != nil {
			return fmt.Errorf("marshaling report: %w", err)
		}
		rep = data
	}

	g := snap.Graph
	m.content = make(map[string]graph.ContentNode)
	m.taxonomy = make(map[string]graph.TaxonomyNode)
	m.index = make(map[string]postings)
	for _, node := range g.ContentNodes() {
		m.content[node.ID] = *node
		for token, freq := range termFrequencies(node) {
			if m.index[token] == nil {
				m.index[token] = make(postings)
			}
			m.index[token][node.ID] = freq
		}
	}
	for _, kind := range []graph.NodeKind{graph.KindCategory, graph.KindTag} {
		for _, node := range g.TaxonomyNodes(kind) {
			m.taxonomy[node.ID] = *node
		}
	}
	m.edges = g.Edges()
	m.report = rep
	m.info = describe(snap)
	return nil
}

// Info implements StorageBackend.
func (m *MemoryBackend) Info(ctx context.Context) (*SnapshotInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.info == nil {
		return nil, ErrNoSnapshot
	}
	info := *m.info
	info.Order = append([]string(nil), m.info.Order...)
	return &info, nil
}

// LoadGraph implements StorageBackend.
func (m *MemoryBackend) LoadGraph(ctx context.Context) (*graph.ContentGraph, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.info == nil {
		return nil, ErrNoSnapshot
	}

	g := graph.NewContentGraph()
	for _, id := range m.info.Order {
		if node, ok := m.content[id]; ok {
			g.AddContent(&node)
			continue
		}
		if node, ok := m.taxonomy[id]; ok {
			g.AddTaxonomy(&node)
		}
	}
	for _, edge := range m.edges {
		g.AddEdge(edge)
	}
	return g, nil
}

// LoadReport implements StorageBackend.
func (m *MemoryBackend) LoadReport(ctx context.Context) (*report.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.report == nil {
		return nil, ErrNoSnapshot
	}
	var rep report.Report
	if err := json.Unmarshal(m.report, &rep); err != nil {
		return nil, fmt.Errorf("unmarshaling report: %w", err)
	}
	return &rep, nil
}

// GetNode implements StorageBackend.
func (m *MemoryBackend) GetNode(ctx context.Context, nodeID string) (*graph.ContentNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	node, ok := m.content[nodeID]
	if !ok {
		return nil, nil
	}
	return &node, nil
}

// GetLinks implements StorageBackend.
func (m *MemoryBackend) GetLinks(ctx context.Context, nodeID string) (*LinkSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	links := &LinkSet{Outgoing: []graph.Edge{}, Incoming: []graph.Edge{}}
	for _, edge := range m.edges {
		if edge.Source == nodeID {
			links.Outgoing = append(links.Outgoing, edge)
		}
		if edge.Target == nodeID {
			links.Incoming = append(links.Incoming, edge)
		}
	}
	return links, nil
}

// Search implements StorageBackend.
func (m *MemoryBackend) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	terms := queryTerms(query)
	if len(terms) == 0 {
		return []SearchResult{}, nil
	}

	ranked := rank(terms, func(term string) postings {
		return m.index[term]
	}, len(m.content), limit)

	for i := range ranked {
		node := m.content[ranked[i].NodeID]
		hit := resultFor(&node)
		hit.Score = ranked[i].Score
		ranked[i] = hit
	}
	return ranked, nil
}
