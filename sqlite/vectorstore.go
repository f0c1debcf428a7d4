package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/fwojciec/ragchat"
	"go.uber.org/zap"
)

// Compile-time interface verification.
var _ ragchat.VectorStore = (*VectorStore)(nil)

// VectorStore implements ragchat.VectorStore on two SQLite tables: one
// holding document metadata and one holding embedded fragments that
// reference it by meta_id. Nearest neighbours are found by scanning the
// fragments of non-deleted documents.
type VectorStore struct {
	db     *DB
	logger *zap.Logger

	embeddingName string
	metadataName  string

	// embeddings and metadata are the quoted table names, set by Connect.
	embeddings string
	metadata   string

	now func() time.Time
}

// Option configures a VectorStore.
type Option func(*VectorStore)

// WithCollections sets the embedding and metadata table names.
func WithCollections(embedding, metadata string) Option {
	return func(s *VectorStore) {
		s.embeddingName = embedding
		s.metadataName = metadata
	}
}

// WithLogger sets the logger used to report discarded search results.
func WithLogger(logger *zap.Logger) Option {
	return func(s *VectorStore) {
		s.logger = logger
	}
}

// NewVectorStore creates a VectorStore on db. Call Connect before use.
func NewVectorStore(db *DB, opts ...Option) *VectorStore {
	s := &VectorStore{
		db:            db,
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

// Connect opens the database if needed and creates both tables unless they
// already exist.
func (s *VectorStore) Connect(ctx context.Context) error {
	embeddings, err := quoteIdent(s.embeddingName)
	if err != nil {
		return err
	}
	metadata, err := quoteIdent(s.metadataName)
	if err != nil {
		return err
	}
	if s.embeddingName == s.metadataName {
		return ragchat.Errorf(ragchat.EINVALID, "embedding and metadata collections must differ")
	}

	if !s.db.IsOpen() {
		if err := s.db.Open(); err != nil {
			return err
		}
	}

	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			author TEXT NOT NULL,
			title TEXT NOT NULL,
			format TEXT NOT NULL,
			subject TEXT NOT NULL,
			creator TEXT NOT NULL,
			producer TEXT NOT NULL,
			creation_date TEXT NOT NULL,
			mod_date TEXT NOT NULL,
			source TEXT NOT NULL,
			content_hash TEXT NOT NULL DEFAULT '',
			is_deleted INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS %[2]s (
			pk INTEGER PRIMARY KEY AUTOINCREMENT,
			meta_id TEXT NOT NULL,
			text TEXT NOT NULL,
			vector BLOB NOT NULL
		);

		CREATE INDEX IF NOT EXISTS "idx_%[3]s_meta_id" ON %[2]s(meta_id);
	`, metadata, embeddings, s.embeddingName)

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create collections: %w", err)
	}

	s.embeddings = embeddings
	s.metadata = metadata
	return nil
}

func (s *VectorStore) connected() error {
	if s.embeddings == "" || !s.db.IsOpen() {
		return ragchat.Errorf(ragchat.EUNAVAILABLE, "vector store not connected")
	}
	return nil
}

// StoreEmbeddings inserts the metadata and fragments in one transaction.
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

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	createdAt := s.now()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO `+s.metadata+` (name, author, title, format, subject, creator, producer,
			creation_date, mod_date, source, content_hash, is_deleted, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
	`, meta.Name, meta.Author, meta.Title, meta.Format, meta.Subject, meta.Creator, meta.Producer,
		meta.CreationDate, meta.ModDate, meta.Source, meta.ContentHash, createdAt.Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("failed to insert metadata: %w", err)
	}
	rowID, err := res.LastInsertId()
	if err != nil {
		return "", err
	}
	metaID := strconv.FormatInt(rowID, 10)

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO `+s.embeddings+` (meta_id, text, vector) VALUES (?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer stmt.Close()

	pks := make([]string, len(fragments))
	for i, f := range fragments {
		res, err := stmt.ExecContext(ctx, metaID, f.Content, ragchat.EncodeVector(f.Embedding))
		if err != nil {
			return "", fmt.Errorf("failed to insert fragment: %w", err)
		}
		pk, err := res.LastInsertId()
		if err != nil {
			return "", err
		}
		pks[i] = strconv.FormatInt(pk, 10)
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}

	meta.ID = metaID
	meta.CreatedAt = createdAt
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
	byID := make(map[string]*ragchat.DocumentMetadata, len(metas))
	for _, m := range metas {
		byID[m.ID] = m
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT pk, meta_id, text, vector FROM `+s.embeddings+`
		WHERE meta_id NOT IN (SELECT CAST(id AS TEXT) FROM `+s.metadata+` WHERE is_deleted = 1)
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fragments []*ragchat.Fragment
	for rows.Next() {
		var (
			pk   int64
			f    ragchat.Fragment
			blob []byte
		)
		if err := rows.Scan(&pk, &f.MetaID, &f.Content, &blob); err != nil {
			return nil, err
		}
		f.ID = strconv.FormatInt(pk, 10)
		if f.Embedding, err = ragchat.DecodeVector(blob); err != nil {
			return nil, err
		}
		fragments = append(fragments, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	nearest, err := ragchat.Nearest(vector, fragments, k)
	if err != nil {
		return nil, err
	}
	return joinMetadata(s.logger, nearest, byID), nil
}

// joinMetadata attaches document metadata to each result. Results whose
// document is missing are logged and dropped.
func joinMetadata(logger *zap.Logger, results []*ragchat.SearchResult, byID map[string]*ragchat.DocumentMetadata) []*ragchat.SearchResult {
	joined := make([]*ragchat.SearchResult, 0, len(results))
	for _, r := range results {
		meta, ok := byID[r.Fragment.MetaID]
		if !ok {
			logger.Warn("discarding fragment without metadata",
				zap.String("fragment_id", r.Fragment.ID),
				zap.String("meta_id", r.Fragment.MetaID),
			)
			continue
		}
		r.Metadata = meta
		joined = append(joined, r)
	}
	return joined
}

// RemoveDocument deletes the metadata row and every fragment referencing it.
func (s *VectorStore) RemoveDocument(ctx context.Context, id string) (bool, error) {
	if err := s.connected(); err != nil {
		return false, err
	}
	rowID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return false, nil
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM `+s.metadata+` WHERE id = ?`, rowID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM `+s.embeddings+` WHERE meta_id = ?`, strconv.FormatInt(rowID, 10)); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
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
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, author, title, format, subject, creator, producer,
			creation_date, mod_date, source, content_hash, is_deleted, created_at
		FROM `+s.metadata+`
		WHERE is_deleted = 0
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var metas []*ragchat.DocumentMetadata
	for rows.Next() {
		m, err := scanMetadata(rows)
		if err != nil {
			return nil, err
		}
		metas = append(metas, m)
	}
	return metas, rows.Err()
}

func scanMetadata(rows *sql.Rows) (*ragchat.DocumentMetadata, error) {
	var (
		m         ragchat.DocumentMetadata
		id        int64
		createdAt string
	)
	if err := rows.Scan(&id, &m.Name, &m.Author, &m.Title, &m.Format, &m.Subject, &m.Creator,
		&m.Producer, &m.CreationDate, &m.ModDate, &m.Source, &m.ContentHash, &m.IsDeleted, &createdAt); err != nil {
		return nil, err
	}
	m.ID = strconv.FormatInt(id, 10)
	var err error
	if m.CreatedAt, err = parseRFC3339(createdAt, "created_at"); err != nil {
		return nil, err
	}
	return &m, nil
}

// Close closes the underlying database.
func (s *VectorStore) Close() error {
	return s.db.Close()
}
