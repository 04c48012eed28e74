package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/Benny93/argflow-go/internal/document"
	"github.com/Benny93/argflow-go/internal/logging"
)

// Key prefixes for different data types
const (
	prefixExplanation = "x:"     // x:ref -> explanation summary
	prefixFTSToken    = "fts:t:" // fts:t:token\0ref\0node -> frequency
	prefixFTSMeta     = "fts:m:" // fts:m:ref\0node -> indexed node
	prefixFTSReverse  = "fts:r:" // fts:r:ref\0node -> tokens of the node
)

const keySep = "\x00"

// explanationSummary is the value stored under an explanation key.
type explanationSummary struct {
	Model   string `json:"model"`
	Name    string `json:"name"`
	DocName string `json:"doc_name"`
	Nodes   int    `json:"nodes"`
}

// BadgerBackend is a BadgerDB-backed SearchIndex.
type BadgerBackend struct {
	db               *badger.DB
	initialized      bool
	mu               sync.RWMutex
	explanationCount int
	logger           *slog.Logger
}

// NewBadgerBackend creates a new BadgerDB index.
func NewBadgerBackend() *BadgerBackend {
	return &BadgerBackend{logger: logging.New("index")}
}

// Initialize opens or creates the BadgerDB database at the given path.
// An empty path opens an in-memory database.
func (b *BadgerBackend) Initialize(path string, readOnly bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	opts := badger.DefaultOptions(path).
		WithNumCompactors(2).
		WithNumMemtables(5).
		WithLoggingLevel(badger.ERROR) // Suppress INFO/WARNING logs

	if path == "" {
		opts = opts.WithInMemory(true)
	}
	if readOnly {
		opts = opts.WithReadOnly(true)
	}

	var err error
	b.db, err = badger.Open(opts)
	if err != nil {
		return fmt.Errorf("opening badger DB: %w", err)
	}
	b.initialized = true

	count, err := b.countExplanations()
	if err != nil {
		return err
	}
	b.explanationCount = count
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
	b.initialized = false
	return err
}

// ExplanationCount returns the number of indexed explanations.
func (b *BadgerBackend) ExplanationCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.explanationCount
}

func (b *BadgerBackend) ready() error {
	if !b.initialized || b.db == nil {
		return errors.New("badger index is not initialized")
	}
	return nil
}

// BulkLoad replaces the entire index with the given explanations.
func (b *BadgerBackend) BulkLoad(ctx context.Context, docs map[Ref]*document.Document) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ready(); err != nil {
		return err
	}
	if err := b.db.DropAll(); err != nil {
		return fmt.Errorf("dropping index: %w", err)
	}
	b.explanationCount = 0

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()

	refs := make([]Ref, 0, len(docs))
	for ref := range docs {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].String() < refs[j].String() })

	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writeExplanation(wb, ref, docs[ref]); err != nil {
			return err
		}
		b.explanationCount++
	}

	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flushing index: %w", err)
	}

	b.logger.Info("indexed explanations", slog.Int("count", b.explanationCount))
	return nil
}

// IndexExplanation adds or replaces one explanation.
func (b *BadgerBackend) IndexExplanation(ctx context.Context, ref Ref, doc *document.Document) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ready(); err != nil {
		return err
	}
	existed, err := b.removeExplanation(ctx, ref)
	if err != nil {
		return err
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	if err := writeExplanation(wb, ref, doc); err != nil {
		return err
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flushing index: %w", err)
	}
	if !existed {
		b.explanationCount++
	}
	b.logger.Debug("indexed explanation", slog.String("ref", ref.String()), slog.Int("nodes", len(doc.Nodes)))
	return nil
}

// RemoveExplanation drops one explanation from the index. Removing an
// explanation that is not indexed is not an error.
func (b *BadgerBackend) RemoveExplanation(ctx context.Context, ref Ref) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ready(); err != nil {
		return err
	}
	existed, err := b.removeExplanation(ctx, ref)
	if err != nil {
		return err
	}
	if existed {
		b.explanationCount--
	}
	return nil
}

// removeExplanation deletes every key of ref and reports whether the
// explanation was indexed. Callers hold the write lock.
func (b *BadgerBackend) removeExplanation(ctx context.Context, ref Ref) (bool, error) {
	refKey := ref.String()
	var keys [][]byte
	existed := false

	err := b.db.View(func(txn *badger.Txn) error {
		if _, err := txn.Get(explanationKey(refKey)); err == nil {
			existed = true
			keys = append(keys, explanationKey(refKey))
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixFTSReverse + refKey + keySep)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			nodeID := strings.TrimPrefix(string(item.Key()), string(opts.Prefix))

			var tokens []string
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &tokens)
			}); err != nil {
				return fmt.Errorf("decoding tokens of %s#%s: %w", refKey, nodeID, err)
			}
			for _, tok := range tokens {
				keys = append(keys, tokenKey(tok, refKey, nodeID))
			}
			keys = append(keys, item.KeyCopy(nil), metaKey(refKey, nodeID))
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("scanning index of %s: %w", ref, err)
	}
	if len(keys) == 0 {
		return false, nil
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return false, fmt.Errorf("deleting index key: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return false, fmt.Errorf("flushing index: %w", err)
	}
	return existed, nil
}

// Refs lists the indexed explanations in model/name order.
func (b *BadgerBackend) Refs(ctx context.Context) ([]Ref, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.ready(); err != nil {
		return nil, err
	}

	refs := []Ref{}
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixExplanation)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var summary explanationSummary
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &summary)
			}); err != nil {
				return err
			}
			refs = append(refs, Ref{Model: summary.Model, Name: summary.Name})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing indexed explanations: %w", err)
	}
	return refs, nil
}

// Search performs full-text search with simple TF scoring. Ties are broken
// by explanation and node id.
func (b *BadgerBackend) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.ready(); err != nil {
		return nil, err
	}

	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return []SearchResult{}, nil
	}

	type hit struct{ ref, node string }
	scores := make(map[hit]float64)
	results := []SearchResult{}

	err := b.db.View(func(txn *badger.Txn) error {
		for _, token := range queryTokens {
			prefix := prefixFTSToken + token + keySep
			opts := badger.DefaultIteratorOptions
			opts.Prefix = []byte(prefix)
			it := txn.NewIterator(opts)

			for it.Rewind(); it.Valid(); it.Next() {
				if err := ctx.Err(); err != nil {
					it.Close()
					return err
				}
				item := it.Item()
				refKey, nodeID, ok := strings.Cut(strings.TrimPrefix(string(item.Key()), prefix), keySep)
				if !ok {
					continue
				}
				var freq int
				err := item.Value(func(val []byte) error {
					var err error
					freq, err = strconv.Atoi(string(val))
					return err
				})
				if err != nil {
					it.Close()
					return fmt.Errorf("reading frequency of %q in %s node %s: %w", token, refKey, nodeID, err)
				}
				scores[hit{refKey, nodeID}] += float64(freq)
			}
			it.Close()
		}

		for h, score := range scores {
			if score <= 0 {
				continue
			}
			ref, err := ParseRef(h.ref)
			if err != nil {
				continue
			}
			item, err := txn.Get(metaKey(h.ref, h.node))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("loading %s node %s: %w", h.ref, h.node, err)
			}
			var meta indexedNode
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &meta)
			}); err != nil {
				return fmt.Errorf("decoding %s node %s: %w", h.ref, h.node, err)
			}
			results = append(results, SearchResult{
				Ref:      ref,
				NodeID:   h.node,
				NodeType: meta.NodeType,
				Snippet:  meta.Snippet,
				Score:    score,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if ri, rj := results[i].Ref.String(), results[j].Ref.String(); ri != rj {
			return ri < rj
		}
		return results[i].NodeID < results[j].NodeID
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (b *BadgerBackend) countExplanations() (int, error) {
	count := 0
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixExplanation)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("counting indexed explanations: %w", err)
	}
	return count, nil
}

// writeExplanation stages every key of one explanation.
func writeExplanation(wb *badger.WriteBatch, ref Ref, doc *document.Document) error {
	refKey := ref.String()

	summary, err := json.Marshal(explanationSummary{
		Model: ref.Model, Name: ref.Name, DocName: doc.Name, Nodes: len(doc.Nodes),
	})
	if err != nil {
		return fmt.Errorf("marshaling explanation summary: %w", err)
	}
	if err := wb.Set(explanationKey(refKey), summary); err != nil {
		return fmt.Errorf("setting explanation: %w", err)
	}

	for _, n := range indexNodes(doc) {
		tokens := make([]string, 0, len(n.tokens))
		for tok, freq := range n.tokens {
			if err := wb.Set(tokenKey(tok, refKey, n.ID), []byte(strconv.Itoa(freq))); err != nil {
				return fmt.Errorf("setting token index: %w", err)
			}
			tokens = append(tokens, tok)
		}
		sort.Strings(tokens)

		reverse, err := json.Marshal(tokens)
		if err != nil {
			return fmt.Errorf("marshaling node tokens: %w", err)
		}
		if err := wb.Set(reverseKey(refKey, n.ID), reverse); err != nil {
			return fmt.Errorf("setting node tokens: %w", err)
		}

		meta, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("marshaling metadata: %w", err)
		}
		if err := wb.Set(metaKey(refKey, n.ID), meta); err != nil {
			return fmt.Errorf("setting metadata: %w", err)
		}
	}
	return nil
}

func explanationKey(refKey string) []byte {
	return []byte(prefixExplanation + refKey)
}

func tokenKey(token, refKey, nodeID string) []byte {
	return []byte(prefixFTSToken + token + keySep + refKey + keySep + nodeID)
}

func metaKey(refKey, nodeID string) []byte {
	return []byte(prefixFTSMeta + refKey + keySep + nodeID)
}

func reverseKey(refKey, nodeID string) []byte {
	return []byte(prefixFTSReverse + refKey + keySep + nodeID)
}
