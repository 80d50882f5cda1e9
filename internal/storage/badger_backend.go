package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/Benny93/fanout-go/internal/graph"
	"github.com/Benny93/fanout-go/internal/report"
)

// Key prefixes for different data types
const (
	prefixContent  = "n:"     // content node data
	prefixTaxonomy = "t:"     // taxonomy node data
	prefixEdge     = "e:"     // edge data, keyed by insertion sequence
	prefixIncoming = "i:in:"  // incoming edge index
	prefixOutgoing = "i:out:" // outgoing edge index

	keyInfo   = "m:snapshot"
	keyReport = "r:report"
)

// BadgerBackend is a BadgerDB-backed snapshot store.
type BadgerBackend struct {
	db          *badger.DB
	fts         *FTSIndex
	initialized bool
	readOnly    bool
	mu          sync.RWMutex
}

// NewBadgerBackend creates a new BadgerDB backend.
func NewBadgerBackend() *BadgerBackend {
	return &BadgerBackend{}
}

// Initialize opens or creates the BadgerDB database at the given path.
func (b *BadgerBackend) Initialize(path string, readOnly bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	opts := badger.DefaultOptions(path).
		WithNumCompactors(2).
		WithNumMemtables(5).
		WithLoggingLevel(badger.ERROR) // Suppress INFO/WARNING logs

	if readOnly {
		opts = opts.WithReadOnly(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("opening badger DB: %w", err)
	}

	b.db = db
	b.fts = NewFTSIndex(db)
	b.readOnly = readOnly
	b.initialized = true
	return nil
}

// Close releases all resources held by the backend.
func (b *BadgerBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return nil
	}

	err := b.db.Close()
	b.db = nil
	b.fts = nil
	b.initialized = false
	return err
}

// SaveSnapshot drops the previous snapshot and bulk-loads the new one.
func (b *BadgerBackend) SaveSnapshot(ctx context.Context, snap *Snapshot) error {
	if err := validateSnapshot(snap); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return ErrNotInitialized
	}
	if b.readOnly {
		return ErrReadOnly
	}
	if err := b.db.DropAll(); err != nil {
		return fmt.Errorf("clearing previous snapshot: %w", err)
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()

	g := snap.Graph
	for _, node := range g.ContentNodes() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := setJSON(wb, prefixContent+node.ID, node); err != nil {
			return fmt.Errorf("setting content node: %w", err)
		}
		if err := b.fts.IndexNode(wb, node); err != nil {
			return err
		}
	}

	for _, kind := range []graph.NodeKind{graph.KindCategory, graph.KindTag} {
		for _, node := range g.TaxonomyNodes(kind) {
			if err := setJSON(wb, prefixTaxonomy+node.ID, node); err != nil {
				return fmt.Errorf("setting taxonomy node: %w", err)
			}
		}
	}

	for seq, edge := range g.Edges() {
		if err := b.indexEdgeWB(wb, seq, edge); err != nil {
			return err
		}
	}

	if snap.Report != nil {
		if err := setJSON(wb, keyReport, snap.Report); err != nil {
			return fmt.Errorf("setting report: %w", err)
		}
	}
	if err := setJSON(wb, keyInfo, describe(snap)); err != nil {
		return fmt.Errorf("setting snapshot info: %w", err)
	}

	return wb.Flush()
}

// indexEdgeWB stores an edge and its adjacency list indexes in a write batch.
func (b *BadgerBackend) indexEdgeWB(wb *badger.WriteBatch, seq int, edge graph.Edge) error {
	key := edgeKey(seq)
	if err := setJSON(wb, key, edge); err != nil {
		return fmt.Errorf("setting edge: %w", err)
	}

	// Outgoing: source -> kind -> target (unique key per edge)
	outKey := fmt.Sprintf("%s%s:%s:%s", prefixOutgoing, edge.Source, edge.Kind, edge.Target)
	if err := wb.Set([]byte(outKey), []byte(key)); err != nil {
		return fmt.Errorf("setting outgoing index: %w", err)
	}

	// Incoming: target -> kind -> source (unique key per edge)
	inKey := fmt.Sprintf("%s%s:%s:%s", prefixIncoming, edge.Target, edge.Kind, edge.Source)
	if err := wb.Set([]byte(inKey), []byte(key)); err != nil {
		return fmt.Errorf("setting incoming index: %w", err)
	}

	return nil
}

// Info implements StorageBackend.
func (b *BadgerBackend) Info(ctx context.Context) (*SnapshotInfo, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.initialized {
		return nil, ErrNotInitialized
	}

	var info SnapshotInfo
	err := b.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, keyInfo, &info)
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// LoadGraph implements StorageBackend.
func (b *BadgerBackend) LoadGraph(ctx context.Context) (*graph.ContentGraph, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.initialized {
		return nil, ErrNotInitialized
	}

	g := graph.NewContentGraph()
	err := b.db.View(func(txn *badger.Txn) error {
		var info SnapshotInfo
		if err := getJSON(txn, keyInfo, &info); err != nil {
			return err
		}

		for _, id := range info.Order {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := loadNode(txn, g, id); err != nil {
				return err
			}
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixEdge)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var edge graph.Edge
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &edge)
			}); err != nil {
				return fmt.Errorf("unmarshaling edge: %w", err)
			}
			g.AddEdge(edge)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

func loadNode(txn *badger.Txn, g *graph.ContentGraph, id string) error {
	var content graph.ContentNode
	err := getJSON(txn, prefixContent+id, &content)
	if err == nil {
		g.AddContent(&content)
		return nil
	}
	if !errors.Is(err, ErrNoSnapshot) {
		return err
	}

	var taxonomy graph.TaxonomyNode
	if err := getJSON(txn, prefixTaxonomy+id, &taxonomy); err != nil {
		return fmt.Errorf("loading node %s: %w", id, err)
	}
	g.AddTaxonomy(&taxonomy)
	return nil
}

// LoadReport implements StorageBackend.
func (b *BadgerBackend) LoadReport(ctx context.Context) (*report.Report, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.initialized {
		return nil, ErrNotInitialized
	}

	var rep report.Report
	err := b.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, keyReport, &rep)
	})
	if err != nil {
		return nil, err
	}
	return &rep, nil
}

// GetNode returns a single content node by ID, or nil if not found.
func (b *BadgerBackend) GetNode(ctx context.Context, nodeID string) (*graph.ContentNode, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.initialized {
		return nil, ErrNotInitialized
	}

	var node graph.ContentNode
	err := b.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, prefixContent+nodeID, &node)
	})
	if errors.Is(err, ErrNoSnapshot) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting node: %w", err)
	}
	return &node, nil
}

// GetLinks implements StorageBackend using the adjacency indexes.
func (b *BadgerBackend) GetLinks(ctx context.Context, nodeID string) (*LinkSet, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.initialized {
		return nil, ErrNotInitialized
	}

	links := &LinkSet{Outgoing: []graph.Edge{}, Incoming: []graph.Edge{}}
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		if links.Outgoing, err = b.collectEdges(txn, prefixOutgoing+nodeID+":"); err != nil {
			return err
		}
		links.Incoming, err = b.collectEdges(txn, prefixIncoming+nodeID+":")
		return err
	})
	if err != nil {
		return nil, err
	}
	return links, nil
}

// collectEdges resolves the edges referenced from an index prefix.
func (b *BadgerBackend) collectEdges(txn *badger.Txn, prefix string) ([]graph.Edge, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	edges := []graph.Edge{}
	for it.Rewind(); it.Valid(); it.Next() {
		var key string
		if err := it.Item().Value(func(val []byte) error {
			key = string(val)
			return nil
		}); err != nil {
			return nil, err
		}
		var edge graph.Edge
		if err := getJSON(txn, key, &edge); err != nil {
			return nil, fmt.Errorf("resolving edge %s: %w", key, err)
		}
		edges = append(edges, edge)
	}
	return edges, nil
}

// Search implements StorageBackend using the persisted FTS index.
func (b *BadgerBackend) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.initialized {
		return nil, ErrNotInitialized
	}
	return b.fts.Search(query, limit)
}

// IndexSize returns the number of FTS postings.
func (b *BadgerBackend) IndexSize() (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.fts == nil {
		return 0, ErrNotInitialized
	}
	return b.fts.IndexSize()
}

func edgeKey(seq int) string {
	return fmt.Sprintf("%s%010d", prefixEdge, seq)
}

func setJSON(wb *badger.WriteBatch, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return wb.Set([]byte(key), data)
}

// getJSON decodes the value at key. A missing key is ErrNoSnapshot.
func getJSON(txn *badger.Txn, key string, v any) error {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("key %q: %w", key, ErrNoSnapshot)
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}
