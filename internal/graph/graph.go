// Package graph provides the in-memory content graph for fanout.
//
// It provides a lightweight, map-backed directed graph holding content
// and taxonomy nodes with O(1) lookups by ID. Outgoing and incoming
// adjacency maps give constant-time degree queries, and an insertion
// order list keeps every iteration deterministic.
package graph

import (
	"sort"
	"strings"
	"sync"
	"unicode/utf8"
)

// ContentGraph is an in-memory directed graph of site content and
// taxonomy. It is a simple graph: at most one edge exists per
// (source, target, kind) triple.
//
// Content and taxonomy nodes share one ID namespace. Iteration follows
// insertion order; replacing a node keeps its original position.
type ContentGraph struct {
	mu       sync.RWMutex
	content  map[string]*ContentNode
	taxonomy map[string]*TaxonomyNode
	order    []string
	position map[string]int

	edges     map[string]Edge
	edgeOrder []string

	// Secondary indexes, kept in sync by the add helpers.
	outgoing map[string]map[string]Edge
	incoming map[string]map[string]Edge
	byURL    map[string][]string
}

// NewContentGraph creates a new empty content graph.
func NewContentGraph() *ContentGraph {
	return &ContentGraph{
		content:  make(map[string]*ContentNode),
		taxonomy: make(map[string]*TaxonomyNode),
		position: make(map[string]int),
		edges:    make(map[string]Edge),
		outgoing: make(map[string]map[string]Edge),
		incoming: make(map[string]map[string]Edge),
		byURL:    make(map[string][]string),
	}
}

// NodeCount returns the number of nodes of all kinds.
func (g *ContentGraph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.order)
}

// EdgeCount returns the number of edges of all kinds.
func (g *ContentGraph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}

// CountByKind returns the number of nodes of the given kind.
func (g *ContentGraph) CountByKind(kind NodeKind) int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	count := 0
	if kind.IsContent() {
		for _, n := range g.content {
			if n.Kind == kind {
				count++
			}
		}
		return count
	}
	for _, n := range g.taxonomy {
		if n.Kind == kind {
			count++
		}
	}
	return count
}

// AddContent adds a content node, replacing any node with the same ID.
func (g *ContentGraph) AddContent(node *ContentNode) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if old, ok := g.content[node.ID]; ok {
		g.unindexURL(old)
	}
	delete(g.taxonomy, node.ID)
	g.track(node.ID)

	g.content[node.ID] = node
	g.indexURL(node)
}

// AddTaxonomy adds a taxonomy node, replacing any node with the same ID.
func (g *ContentGraph) AddTaxonomy(node *TaxonomyNode) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if old, ok := g.content[node.ID]; ok {
		g.unindexURL(old)
		delete(g.content, node.ID)
	}
	g.track(node.ID)
	g.taxonomy[node.ID] = node
}

// HasNode reports whether a node of any kind exists with the given ID.
func (g *ContentGraph) HasNode(nodeID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.position[nodeID]
	return ok
}

// Content returns the content node with the given ID, or nil.
func (g *ContentGraph) Content(nodeID string) *ContentNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.content[nodeID]
}

// Taxonomy returns the taxonomy node with the given ID, or nil.
func (g *ContentGraph) Taxonomy(nodeID string) *TaxonomyNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.taxonomy[nodeID]
}

// NodeIDs returns all node IDs in insertion order.
func (g *ContentGraph) NodeIDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.order...)
}

// ContentNodes returns all posts and pages in insertion order.
func (g *ContentGraph) ContentNodes() []*ContentNode {
	g.mu.RLock()
	defer g.mu.RUnlock()

	result := make([]*ContentNode, 0, len(g.content))
	for _, id := range g.order {
		if n, ok := g.content[id]; ok {
			result = append(result, n)
		}
	}
	return result
}

// TaxonomyNodes returns taxonomy nodes of the given kind in insertion order.
func (g *ContentGraph) TaxonomyNodes(kind NodeKind) []*TaxonomyNode {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var result []*TaxonomyNode
	for _, id := range g.order {
		if n, ok := g.taxonomy[id]; ok && n.Kind == kind {
			result = append(result, n)
		}
	}
	return result
}

// FindContentByURL returns the first content node, in insertion order,
// whose URL equals url exactly.
func (g *ContentGraph) FindContentByURL(url string) (*ContentNode, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := g.byURL[url]
	if len(ids) == 0 {
		return nil, false
	}
	return g.content[ids[0]], true
}

// FindTaxonomyByName returns the first taxonomy node of the given kind
// whose name matches case-insensitively.
func (g *ContentGraph) FindTaxonomyByName(kind NodeKind, name string) (*TaxonomyNode, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, id := range g.order {
		n, ok := g.taxonomy[id]
		if ok && n.Kind == kind && strings.EqualFold(n.Name, name) {
			return n, true
		}
	}
	return nil, false
}

// AddEdge adds a directed edge. It returns false, leaving the graph
// unchanged, when either endpoint does not exist or the edge is already
// present.
func (g *ContentGraph) AddEdge(edge Edge) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.position[edge.Source]; !ok {
		return false
	}
	if _, ok := g.position[edge.Target]; !ok {
		return false
	}

	key := edge.Key()
	if _, exists := g.edges[key]; exists {
		return false
	}

	g.edges[key] = edge
	g.edgeOrder = append(g.edgeOrder, key)

	if g.outgoing[edge.Source] == nil {
		g.outgoing[edge.Source] = make(map[string]Edge)
	}
	g.outgoing[edge.Source][key] = edge

	if g.incoming[edge.Target] == nil {
		g.incoming[edge.Target] = make(map[string]Edge)
	}
	g.incoming[edge.Target][key] = edge

	return true
}

// HasEdge reports whether the given edge exists.
func (g *ContentGraph) HasEdge(source, target string, kind EdgeKind) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.edges[Edge{Source: source, Target: target, Kind: kind}.Key()]
	return ok
}

// Edges returns all edges in insertion order.
func (g *ContentGraph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	result := make([]Edge, 0, len(g.edgeOrder))
	for _, key := range g.edgeOrder {
		result = append(result, g.edges[key])
	}
	return result
}

// OutDegree returns the number of edges leaving the node.
func (g *ContentGraph) OutDegree(nodeID string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.outgoing[nodeID])
}

// InDegree returns the number of edges entering the node.
func (g *ContentGraph) InDegree(nodeID string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.incoming[nodeID])
}

// GetOutgoing returns edges originating from the given node ID.
// If kind is provided, only edges of that kind are returned.
func (g *ContentGraph) GetOutgoing(nodeID string, kind ...EdgeKind) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.filterEdges(g.outgoing[nodeID], kind)
}

// GetIncoming returns edges targeting the given node ID.
// If kind is provided, only edges of that kind are returned.
func (g *ContentGraph) GetIncoming(nodeID string, kind ...EdgeKind) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.filterEdges(g.incoming[nodeID], kind)
}

// Sample returns up to limit posts and pages, in insertion order, in the
// compact form consumed by query-pattern analyzers.
func (g *ContentGraph) Sample(limit int) []SampleItem {
	g.mu.RLock()
	defer g.mu.RUnlock()

	sample := make([]SampleItem, 0, limit)
	for _, id := range g.order {
		if len(sample) >= limit {
			break
		}
		n, ok := g.content[id]
		if !ok {
			continue
		}
		sample = append(sample, SampleItem{
			Title:   n.Title,
			Type:    string(n.Kind),
			Excerpt: truncateRunes(n.ExcerptText, SampleExcerptLimit),
			URL:     n.URL,
		})
	}
	return sample
}

// Stats returns a summary of graph size.
func (g *ContentGraph) Stats() map[string]int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return map[string]int{
		"nodes":    len(g.order),
		"content":  len(g.content),
		"taxonomy": len(g.taxonomy),
		"edges":    len(g.edges),
	}
}

// track records first-insertion position. Must be called with the write lock held.
func (g *ContentGraph) track(nodeID string) {
	if _, ok := g.position[nodeID]; ok {
		return
	}
	g.position[nodeID] = len(g.order)
	g.order = append(g.order, nodeID)
}

// indexURL must be called with the write lock held.
func (g *ContentGraph) indexURL(node *ContentNode) {
	if node.URL == "" {
		return
	}
	ids := append(g.byURL[node.URL], node.ID)
	sort.SliceStable(ids, func(i, j int) bool {
		return g.position[ids[i]] < g.position[ids[j]]
	})
	g.byURL[node.URL] = ids
}

// unindexURL must be called with the write lock held.
func (g *ContentGraph) unindexURL(node *ContentNode) {
	ids := g.byURL[node.URL]
	for i, id := range ids {
		if id == node.ID {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(g.byURL, node.URL)
		return
	}
	g.byURL[node.URL] = ids
}

// filterEdges returns edges sorted by key for deterministic output.
// Must be called with the read lock held.
func (g *ContentGraph) filterEdges(edges map[string]Edge, kind []EdgeKind) []Edge {
	if len(edges) == 0 {
		return nil
	}

	result := make([]Edge, 0, len(edges))
	for _, e := range edges {
		if len(kind) > 0 && kind[0] != "" && e.Kind != kind[0] {
			continue
		}
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Key() < result[j].Key()
	})
	return result
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
