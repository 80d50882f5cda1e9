// Package storage provides the snapshot store for fanout.
//
// A snapshot is the content graph of one analysis run together with the
// report generated from it. Stores also keep a full-text index over the
// content nodes so later commands can search without rebuilding.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/Benny93/fanout-go/internal/graph"
	"github.com/Benny93/fanout-go/internal/report"
)

var (
	// ErrNoSnapshot is returned when nothing has been saved yet.
	ErrNoSnapshot = errors.New("no snapshot stored")

	// ErrReadOnly is returned by writes to a store opened read-only.
	ErrReadOnly = errors.New("store is read-only")

	// ErrNotInitialized is returned when the store has not been opened.
	ErrNotInitialized = errors.New("store not initialized")
)

// SearchResult represents a search hit over stored content.
type SearchResult struct {
	// NodeID is the ID of the matching content node.
	NodeID string `json:"id"`

	// Score is the relevance score (higher is better).
	Score float64 `json:"score"`

	Title string         `json:"title"`
	URL   string         `json:"url"`
	Kind  graph.NodeKind `json:"kind"`

	// Snippet is the head of the excerpt, or of the body when the
	// excerpt is empty.
	Snippet string `json:"snippet,omitempty"`
}

// Snapshot is what a pipeline run persists.
type Snapshot struct {
	SiteURL   string
	CreatedAt time.Time
	Graph     *graph.ContentGraph

	// Report is optional.
	Report *report.Report
}

// SnapshotInfo describes the stored snapshot.
type SnapshotInfo struct {
	SiteURL    string    `json:"site_url"`
	CreatedAt  time.Time `json:"created_at"`
	Nodes      int       `json:"nodes"`
	Edges      int       `json:"edges"`
	Posts      int       `json:"posts"`
	Pages      int       `json:"pages"`
	Categories int       `json:"categories"`
	Tags       int       `json:"tags"`
	HasReport  bool      `json:"has_report"`

	// Order lists node IDs in graph insertion order.
	Order []string `json:"order,omitempty"`
}

// LinkSet holds the edges touching one node.
type LinkSet struct {
	Outgoing []graph.Edge `json:"outgoing"`
	Incoming []graph.Edge `json:"incoming"`
}

// StorageBackend defines the interface for snapshot stores.
//
// Implementations must be thread-safe and support concurrent access.
type StorageBackend interface {
	// Initialize opens or creates the store at the given path.
	// If readOnly is true, SaveSnapshot fails with ErrReadOnly.
	Initialize(path string, readOnly bool) error

	// Close releases all resources held by the store.
	Close() error

	// SaveSnapshot replaces the stored snapshot.
	SaveSnapshot(ctx context.Context, snap *Snapshot) error

	// Info describes the stored snapshot.
	Info(ctx context.Context) (*SnapshotInfo, error)

	// LoadGraph rebuilds the stored content graph, preserving node and
	// edge order.
	LoadGraph(ctx context.Context) (*graph.ContentGraph, error)

	// LoadReport returns the stored report.
	LoadReport(ctx context.Context) (*report.Report, error)

	// GetNode returns a single content node by ID, or nil if not found.
	GetNode(ctx context.Context, nodeID string) (*graph.ContentNode, error)

	// GetLinks returns the edges leaving and entering a node.
	GetLinks(ctx context.Context, nodeID string) (*LinkSet, error)

	// Search performs full-text search over content nodes.
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
}

// describe builds the info record for a snapshot.
func describe(snap *Snapshot) *SnapshotInfo {
	g := snap.Graph
	created := snap.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return &SnapshotInfo{
		SiteURL:    snap.SiteURL,
		CreatedAt:  created.UTC(),
		Nodes:      g.NodeCount(),
		Edges:      g.EdgeCount(),
		Posts:      g.CountByKind(graph.KindPost),
		Pages:      g.CountByKind(graph.KindPage),
		Categories: g.CountByKind(graph.KindCategory),
		Tags:       g.CountByKind(graph.KindTag),
		HasReport:  snap.Report != nil,
		Order:      g.NodeIDs(),
	}
}

func validateSnapshot(snap *Snapshot) error {
	if snap == nil || snap.Graph == nil {
		return errors.New("saving snapshot: graph is required")
	}
	return nil
}
