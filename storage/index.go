package storage

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/goretrieve/embedder"
	"github.com/dshills/goretrieve/types"
)

// Indexing defaults.
const (
	// DefaultIndexWorkers bounds concurrent embedding batches
	DefaultIndexWorkers = 4
	// DefaultIndexBatchSize is the number of documents embedded per API call
	DefaultIndexBatchSize = 50
)

// IndexStats reports the outcome of an IndexDocuments run.
type IndexStats struct {
	Indexed  int
	Embedded int
}

// IndexDocuments builds the hybrid index for a set of documents:
// content and FTS rows are upserted, then embeddings are generated in
// concurrent batches and stored. Embedding batches run under an
// errgroup, so the first failure cancels the remaining work.
func (s *Store) IndexDocuments(ctx context.Context, docs []types.Document, emb embedder.Embedder) (*IndexStats, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	for i := range docs {
		if err := docs[i].Validate(); err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
	}

	// Content first: keyword search works even if embedding fails later
	for _, doc := range docs {
		if err := s.UpsertDocument(ctx, doc); err != nil {
			return nil, err
		}
	}
	stats := &IndexStats{Indexed: len(docs)}
	if emb == nil {
		return stats, nil
	}

	batchSize := DefaultIndexBatchSize
	if batchSize > embedder.MaxBatchSize {
		batchSize = embedder.MaxBatchSize
	}

	var embedded int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(DefaultIndexWorkers)

	for start := 0; start < len(docs); start += batchSize {
		end := start + batchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[start:end]

		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, doc := range batch {
				texts[i] = doc.Content
			}

			vectors, err := emb.EmbedBatch(gctx, texts)
			if err != nil {
				return fmt.Errorf("%w: %v", types.ErrEmbedding, err)
			}

			for i, doc := range batch {
				if err := s.UpsertEmbedding(gctx, doc.Ref.ID, vectors[i], emb.Provider()); err != nil {
					return err
				}
			}
			atomic.AddInt32(&embedded, int32(len(batch)))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats.Embedded = int(atomic.LoadInt32(&embedded))
	s.logger.Info("indexed documents",
		zap.Int("indexed", stats.Indexed),
		zap.Int("embedded", stats.Embedded),
		zap.String("provider", emb.Provider()))
	return stats, nil
}
