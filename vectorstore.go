package ragchat

import (
	"context"
	"encoding/binary"
	"math"
	"sort"
)

// Default collection names of a VectorStore.
const (
	DefaultEmbeddingCollection = "DocumentEmbeddings"
	DefaultMetadataCollection  = "DocumentMetadata"
)

// Fragment is a piece of a document: the unit that is embedded, stored,
// and retrieved.
type Fragment struct {
	ID        string    `json:"id"`
	MetaID    string    `json:"metaId"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// SearchResult is a fragment matched by a similarity search, joined with
// the metadata of the document it belongs to.
type SearchResult struct {
	Fragment *Fragment         `json:"fragment"`
	Metadata *DocumentMetadata `json:"metadata"`
	Distance float32           `json:"distance"`
}

// VectorStore persists document metadata and embedded fragments and
// answers nearest-neighbour queries over them.
type VectorStore interface {
	// Connect creates or loads the store's collections.
	Connect(ctx context.Context) error

	// StoreEmbeddings inserts the document metadata once and the fragments
	// referencing it. Returns the assigned document id.
	StoreEmbeddings(ctx context.Context, meta *DocumentMetadata, fragments []*Fragment) (string, error)

	// SimilaritySearch returns at most k fragments of non-deleted documents,
	// closest to vector by L2 distance first.
	SimilaritySearch(ctx context.Context, vector []float32, k int) ([]*SearchResult, error)

	// RemoveDocument deletes the document metadata and its fragments.
	// Returns false if no such document exists.
	RemoveDocument(ctx context.Context, id string) (bool, error)

	// GetAllDocuments returns the metadata of all non-deleted documents.
	GetAllDocuments(ctx context.Context) ([]*DocumentMetadata, error)

	Close() error
}

// L2Distance returns the squared Euclidean distance between a and b.
// Vectors of different dimensions are an EINVALID error.
func L2Distance(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, Errorf(EINVALID, "vector dimension mismatch: %d != %d", len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(sum), nil
}

// Nearest ranks fragments by L2 distance to query and returns the k closest.
// Results carry no metadata; the caller joins it.
func Nearest(query []float32, fragments []*Fragment, k int) ([]*SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}
	results := make([]*SearchResult, 0, len(fragments))
	for _, f := range fragments {
		d, err := L2Distance(query, f.Embedding)
		if err != nil {
			return nil, err
		}
		results = append(results, &SearchResult{Fragment: f, Distance: d})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// EncodeVector serializes a vector as little-endian float32 values.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector is the inverse of EncodeVector.
func DecodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, Errorf(EINTERNAL, "corrupt vector: %d bytes", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
