package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fwojciec/ragchat"
	"go.uber.org/zap"
)

// Compile-time interface verification.
var _ ragchat.VectorStore = (*VectorStore)(nil)

// Key layout:
//
//	c/<collection>                     collection marker
//	s/<collection>                     id sequence
//	m/<metadata>/<id>                  document metadata (JSON)
//	e/<embeddings>/<meta_id>/<pk>      fragment (JSON)
//
// Ids are zero-padded so keys sort numerically.
const (
	seqBandwidth = 100
	idWidth      = 20
)

// VectorStore implements ragchat.VectorStore on BadgerDB. Fragments are
// keyed under their document so a document's fragments can be read and
// deleted with a single prefix scan.
type VectorStore struct {
	path   string
	db     *badger.DB
	logger *zap.Logger

	embeddingName string
	metadataName  string

	metaSeq *badger.Sequence
	embSeq  *badger.Sequence

	now func() time.Time
}

// Option configures a VectorStore.
type Option func(*VectorStore)

// WithCollections sets the embedding and metadata collection names.
func WithCollections(embedding, metadata string) Option {
	return func(s *VectorStore) {
		s.embeddingName = embedding
		s.metadataName = metadata
	}
}

// WithLogger sets the logger for discarded search results and for
// BadgerDB's own messages.
func WithLogger(l *zap.Logger) Option {
	return func(s *VectorStore) {
		s.logger = l
	}
}

// NewVectorStore creates a VectorStore persisted in the directory at path.
// An empty path keeps the data in memory.
func NewVectorStore(path string, opts ...Option) *VectorStore {
	s := &VectorStore{
		path:          path,
		logger:        zap.NewNop(),
		embeddingName: ragchat.DefaultEmbeddingCollection,
		metadataName:  ragchat.DefaultMetadataCollection,
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Connect opens the database if needed and registers both collections.
func (s *VectorStore) Connect(ctx context.Context) error {
	for _, name := range []string{s.embeddingName, s.metadataName} {
		if !identifier.MatchString(name) {
			return ragchat.Errorf(ragchat.EINVALID, "invalid collection name %q", name)
		}
	}
	if s.embeddingName == s.metadataName {
		return ragchat.Errorf(ragchat.EINVALID, "embedding and metadata collections must differ")
	}

	if s.db == nil {
		opts := badger.DefaultOptions(s.path).WithLogger(logger{s.logger.Sugar()})
		if s.path == "" {
			opts = opts.WithInMemory(true)
		}
		db, err := badger.Open(opts)
		if err != nil {
			return fmt.Errorf("failed to open badger: %w", err)
		}
		s.db = db
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		for _, name := range []string{s.embeddingName, s.metadataName} {
			key := []byte("c/" + name)
			if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
				if err := txn.Set(key, []byte(s.now().Format(time.RFC3339))); err != nil {
					return err
				}
			} else if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create collections: %w", err)
	}

	if s.metaSeq == nil {
		if s.metaSeq, err = s.db.GetSequence([]byte("s/"+s.metadataName), seqBandwidth); err != nil {
			return err
		}
	}
	if s.embSeq == nil {
		if s.embSeq, err = s.db.GetSequence([]byte("s/"+s.embeddingName), seqBandwidth); err != nil {
			return err
		}
	}
	return nil
}

func (s *VectorStore) connected() error {
	if s.db == nil || s.metaSeq == nil || s.embSeq == nil {
		return ragchat.Errorf(ragchat.EUNAVAILABLE, "vector store not connected")
	}
	return nil
}

func padID(id uint64) string {
	return fmt.Sprintf("%0*d", idWidth, id)
}

func (s *VectorStore) metaKey(id uint64) []byte {
	return []byte("m/" + s.metadataName + "/" + padID(id))
}

func (s *VectorStore) metaPrefix() []byte {
	return []byte("m/" + s.metadataName + "/")
}

func (s *VectorStore) fragmentPrefix(metaID uint64) []byte {
	return []byte("e/" + s.embeddingName + "/" + padID(metaID) + "/")
}

// storedFragment is the value of a fragment key.
type storedFragment struct {
	PK     uint64 `json:"pk"`
	MetaID string `json:"meta_id"`
	Text   string `json:"text"`
	Vector []byte `json:"vector"`
}

// StoreEmbeddings writes the metadata and fragments in one batch.
// The metadata and fragments receive their assigned ids.
func (s *VectorStore) StoreEmbeddings(ctx context.Context, meta *ragchat.DocumentMetadata, fragments []*ragchat.Fragment) (string, error) {
	if err := s.connected(); err != nil {
		return "", err
	}
	if meta == nil {
		return "", ragchat.Errorf(ragchat.EINVALID, "document metadata required")
	}
	if len(fragments) == 0 {
		return "", ragchat.Errorf(ragchat.EINVALID, "no fragments to store")
	}
	dim := len(fragments[0].Embedding)
	for _, f := range fragments {
		if len(f.Embedding) == 0 || len(f.Embedding) != dim {
			return "", ragchat.Errorf(ragchat.EINVALID, "fragments must have embeddings of equal dimension")
		}
	}

	next, err := s.metaSeq.Next()
	if err != nil {
		return "", err
	}
	id := next + 1
	metaID := strconv.FormatUint(id, 10)

	record := *meta
	record.ID = metaID
	record.IsDeleted = false
	record.CreatedAt = s.now()
	value, err := json.Marshal(&record)
	if err != nil {
		return "", err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	if err := wb.Set(s.metaKey(id), value); err != nil {
		return "", err
	}
	pks := make([]string, len(fragments))
	for i, f := range fragments {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		pk, err := s.embSeq.Next()
		if err != nil {
			return "", err
		}
		pk++
		value, err := json.Marshal(&storedFragment{
			PK:     pk,
			MetaID: metaID,
			Text:   f.Content,
			Vector: ragchat.EncodeVector(f.Embedding),
		})
		if err != nil {
			return "", err
		}
		key := append(s.fragmentPrefix(id), padID(pk)...)
		if err := wb.Set(key, value); err != nil {
			return "", err
		}
		pks[i] = strconv.FormatUint(pk, 10)
	}
	if err := wb.Flush(); err != nil {
		return "", fmt.Errorf("failed to write document: %w", err)
	}

	meta.ID = metaID
	meta.CreatedAt = record.CreatedAt
	for i, f := range fragments {
		f.ID = pks[i]
		f.MetaID = metaID
	}
	return metaID, nil
}

// SimilaritySearch ranks the fragments of non-deleted documents by L2
// distance to vector.
func (s *VectorStore) SimilaritySearch(ctx context.Context, vector []float32, k int) ([]*ragchat.SearchResult, error) {
	if err := s.connected(); err != nil {
		return nil, err
	}
	if len(vector) == 0 {
		return nil, ragchat.Errorf(ragchat.EINVALID, "query vector required")
	}

	metas, err := s.GetAllDocuments(ctx)
	if err != nil {
		return nil, err
	}
	if len(metas) == 0 {
		return nil, nil
	}

	var fragments []*ragchat.Fragment
	err = s.db.View(func(txn *badger.Txn) error {
		for _, m := range metas {
			id, err := strconv.ParseUint(m.ID, 10, 64)
			if err != nil {
				return err
			}
			err = scanPrefix(txn, s.fragmentPrefix(id), func(val []byte) error {
				var sf storedFragment
				if err := json.Unmarshal(val, &sf); err != nil {
					return err
				}
				embedding, err := ragchat.DecodeVector(sf.Vector)
				if err != nil {
					return err
				}
				fragments = append(fragments, &ragchat.Fragment{
					ID:        strconv.FormatUint(sf.PK, 10),
					MetaID:    sf.MetaID,
					Content:   sf.Text,
					Embedding: embedding,
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	nearest, err := ragchat.Nearest(vector, fragments, k)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*ragchat.DocumentMetadata, len(metas))
	for _, m := range metas {
		byID[m.ID] = m
	}
	joined := make([]*ragchat.SearchResult, 0, len(nearest))
	for _, r := range nearest {
		meta, ok := byID[r.Fragment.MetaID]
		if !ok {
			s.logger.Warn("discarding fragment without metadata",
				zap.String("fragment_id", r.Fragment.ID),
				zap.String("meta_id", r.Fragment.MetaID),
			)
			continue
		}
		r.Metadata = meta
		joined = append(joined, r)
	}
	return joined, nil
}

// scanPrefix calls fn with the value of every key under prefix, in key order.
func scanPrefix(txn *badger.Txn, prefix []byte, fn func(val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		if err := it.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}

// RemoveDocument deletes the metadata and every fragment under it.
func (s *VectorStore) RemoveDocument(ctx context.Context, id string) (bool, error) {
	if err := s.connected(); err != nil {
		return false, err
	}
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return false, nil
	}

	var keys [][]byte
	err = s.db.View(func(txn *badger.Txn) error {
		if _, err := txn.Get(s.metaKey(n)); err != nil {
			return err
		}
		opts := badger.DefaultIteratorOptions
		opts.Prefix = s.fragmentPrefix(n)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	} else if err != nil {
		return false, err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	if err := wb.Delete(s.metaKey(n)); err != nil {
		return false, err
	}
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return false, err
		}
	}
	if err := wb.Flush(); err != nil {
		return false, err
	}
	return true, nil
}

// GetAllDocuments returns the metadata of all non-deleted documents in
// insertion order.
func (s *VectorStore) GetAllDocuments(ctx context.Context) ([]*ragchat.DocumentMetadata, error) {
	if err := s.connected(); err != nil {
		return nil, err
	}
	var metas []*ragchat.DocumentMetadata
	err := s.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, s.metaPrefix(), func(val []byte) error {
			var m ragchat.DocumentMetadata
			if err := json.Unmarshal(val, &m); err != nil {
				return err
			}
			if !m.IsDeleted {
				metas = append(metas, &m)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return metas, nil
}

// Close releases the id sequences and closes the database.
func (s *VectorStore) Close() error {
	var errs []error
	for _, seq := range []*badger.Sequence{s.metaSeq, s.embSeq} {
		if seq != nil {
			errs = append(errs, seq.Release())
		}
	}
	s.metaSeq, s.embSeq = nil, nil
	if s.db != nil {
		errs = append(errs, s.db.Close())
		s.db = nil
	}
	return errors.Join(errs...)
}
