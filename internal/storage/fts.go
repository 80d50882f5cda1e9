package storage

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/Benny93/fanout-go/internal/embeddings"
	"github.com/Benny93/fanout-go/internal/graph"
)

// Key prefixes for FTS
const (
	prefixFTSToken = "fts:t:" // fts:t:token:nodeID -> frequency
	prefixFTSMeta  = "fts:m:" // fts:m:nodeID -> serialized metadata
)

// snippetLimit is the rune length of result snippets.
const snippetLimit = 160

// postings maps node IDs to the frequency of one term.
type postings map[string]int

// termFrequencies tokenizes the searchable text of a content node.
func termFrequencies(node *graph.ContentNode) map[string]int {
	freq := make(map[string]int)
	for _, token := range embeddings.Tokenize(embeddings.SearchText(node)) {
		freq[token]++
	}
	return freq
}

// queryTerms returns the distinct terms of a query in first-seen order.
func queryTerms(query string) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, token := range embeddings.Tokenize(query) {
		if !seen[token] {
			seen[token] = true
			terms = append(terms, token)
		}
	}
	return terms
}

// rank scores documents with tf * ln(1 + N/df) summed over query terms.
// Ties are broken by node ID so results are deterministic.
func rank(terms []string, lookup func(term string) postings, docCount, limit int) []SearchResult {
	scores := make(map[string]float64)
	for _, term := range terms {
		p := lookup(term)
		if len(p) == 0 {
			continue
		}
		idf := math.Log(1 + float64(docCount)/float64(len(p)))
		for nodeID, tf := range p {
			scores[nodeID] += float64(tf) * idf
		}
	}

	results := make([]SearchResult, 0, len(scores))
	for nodeID, score := range scores {
		if score <= 0 {
			continue
		}
		results = append(results, SearchResult{NodeID: nodeID, Score: score})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].NodeID < results[j].NodeID
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// resultFor fills the display fields of a hit from its node.
func resultFor(node *graph.ContentNode) SearchResult {
	snippet := node.ExcerptText
	if snippet == "" {
		snippet = node.BodyText
	}
	if r := []rune(snippet); len(r) > snippetLimit {
		snippet = string(r[:snippetLimit])
	}
	return SearchResult{
		NodeID:  node.ID,
		Title:   node.Title,
		URL:     node.URL,
		Kind:    node.Kind,
		Snippet: snippet,
	}
}

// FTSIndex is an inverted index for full-text search persisted in the
// same BadgerDB instance as the snapshot.
type FTSIndex struct {
	db *badger.DB
}

// NewFTSIndex creates a new FTS index using the given BadgerDB instance.
func NewFTSIndex(db *badger.DB) *FTSIndex {
	return &FTSIndex{db: db}
}

// IndexNode writes the postings and metadata of a node into wb.
func (f *FTSIndex) IndexNode(wb *badger.WriteBatch, node *graph.ContentNode) error {
	for token, freq := range termFrequencies(node) {
		key := fmt.Sprintf("%s%s:%s", prefixFTSToken, token, node.ID)
		if err := wb.Set([]byte(key), []byte(strconv.Itoa(freq))); err != nil {
			return fmt.Errorf("setting token index: %w", err)
		}
	}

	meta, err := json.Marshal(resultFor(node))
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	if err := wb.Set([]byte(prefixFTSMeta+node.ID), meta); err != nil {
		return fmt.Errorf("setting metadata: %w", err)
	}
	return nil
}

// Search performs full-text search over the indexed nodes.
func (f *FTSIndex) Search(query string, limit int) ([]SearchResult, error) {
	if f.db == nil {
		return []SearchResult{}, nil
	}

	terms := queryTerms(query)
	if len(terms) == 0 {
		return []SearchResult{}, nil
	}

	txn := f.db.NewTransaction(false)
	defer txn.Discard()

	docCount := f.documentCount(txn)

	var lookupErr error
	ranked := rank(terms, func(term string) postings {
		p, err := f.postings(txn, term)
		if err != nil && lookupErr == nil {
			lookupErr = err
		}
		return p
	}, docCount, limit)
	if lookupErr != nil {
		return nil, lookupErr
	}

	for i := range ranked {
		item, err := txn.Get([]byte(prefixFTSMeta + ranked[i].NodeID))
		if err != nil {
			continue // metadata not found
		}
		var meta SearchResult
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		}); err != nil {
			return nil, fmt.Errorf("unmarshaling metadata: %w", err)
		}
		meta.Score = ranked[i].Score
		ranked[i] = meta
	}

	return ranked, nil
}

func (f *FTSIndex) postings(txn *badger.Txn, term string) (postings, error) {
	prefix := prefixFTSToken + term + ":"
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	p := make(postings)
	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		nodeID := strings.TrimPrefix(string(item.Key()), prefix)
		if err := item.Value(func(val []byte) error {
			freq, err := strconv.Atoi(string(val))
			if err != nil {
				return err
			}
			p[nodeID] = freq
			return nil
		}); err != nil {
			return nil, fmt.Errorf("reading posting: %w", err)
		}
	}
	return p, nil
}

func (f *FTSIndex) documentCount(txn *badger.Txn) int {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefixFTSMeta)
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	count := 0
	for it.Rewind(); it.Valid(); it.Next() {
		count++
	}
	return count
}

// IndexSize returns the number of indexed postings.
func (f *FTSIndex) IndexSize() (int, error) {
	if f.db == nil {
		return 0, nil
	}

	count := 0
	err := f.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixFTSToken)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}
