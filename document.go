package ragchat

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"
)

// Metadata field names. Documents carry free-form metadata; these are the
// fields a VectorStore persists for every stored document.
const (
	MetaID           = "id"
	MetaName         = "name"
	MetaAuthor       = "author"
	MetaTitle        = "title"
	MetaFormat       = "format"
	MetaSubject      = "subject"
	MetaCreator      = "creator"
	MetaProducer     = "producer"
	MetaCreationDate = "creationDate"
	MetaModDate      = "modDate"
	MetaSource       = "source"
)

// MetadataFields lists the persisted metadata fields in storage order.
var MetadataFields = []string{
	MetaID,
	MetaName,
	MetaAuthor,
	MetaTitle,
	MetaFormat,
	MetaSubject,
	MetaCreator,
	MetaProducer,
	MetaCreationDate,
	MetaModDate,
	MetaSource,
}

// UnknownMetadata is stored for metadata fields a document does not provide.
const UnknownMetadata = "unknown"

// metadataLimits caps the stored length (in characters) of each field.
var metadataLimits = map[string]int{
	MetaName:         255,
	MetaAuthor:       255,
	MetaTitle:        1000,
	MetaFormat:       255,
	MetaSubject:      255,
	MetaCreator:      255,
	MetaProducer:     255,
	MetaCreationDate: 64,
	MetaModDate:      64,
	MetaSource:       1000,
}

// Document is the text of a source file together with its metadata.
type Document struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

// Validate returns an error if the document contains invalid fields.
func (d *Document) Validate() error {
	if strings.TrimSpace(d.Content) == "" {
		return Errorf(EINVALID, "document content required")
	}
	return nil
}

// DocumentMetadata is the metadata record a VectorStore keeps for each
// stored document.
type DocumentMetadata struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Author       string    `json:"author"`
	Title        string    `json:"title"`
	Format       string    `json:"format"`
	Subject      string    `json:"subject"`
	Creator      string    `json:"creator"`
	Producer     string    `json:"producer"`
	CreationDate string    `json:"creationDate"`
	ModDate      string    `json:"modDate"`
	Source       string    `json:"source"`
	ContentHash  string    `json:"contentHash,omitempty"`
	IsDeleted    bool      `json:"isDeleted"`
	CreatedAt    time.Time `json:"createdAt"`
}

// AlignMetadata builds a metadata record from free-form document metadata.
// Fields that are missing or empty become "unknown" and overlong values are
// truncated. The id is left for the store to assign.
func AlignMetadata(meta map[string]string) *DocumentMetadata {
	get := func(field string) string {
		v := strings.TrimSpace(meta[field])
		if v == "" {
			return UnknownMetadata
		}
		return truncate(v, metadataLimits[field])
	}
	return &DocumentMetadata{
		Name:         get(MetaName),
		Author:       get(MetaAuthor),
		Title:        get(MetaTitle),
		Format:       get(MetaFormat),
		Subject:      get(MetaSubject),
		Creator:      get(MetaCreator),
		Producer:     get(MetaProducer),
		CreationDate: get(MetaCreationDate),
		ModDate:      get(MetaModDate),
		Source:       get(MetaSource),
	}
}

// Map returns the metadata as a field map keyed by MetadataFields.
func (m *DocumentMetadata) Map() map[string]string {
	return map[string]string{
		MetaID:           m.ID,
		MetaName:         m.Name,
		MetaAuthor:       m.Author,
		MetaTitle:        m.Title,
		MetaFormat:       m.Format,
		MetaSubject:      m.Subject,
		MetaCreator:      m.Creator,
		MetaProducer:     m.Producer,
		MetaCreationDate: m.CreationDate,
		MetaModDate:      m.ModDate,
		MetaSource:       m.Source,
	}
}

// DisplayName returns the most descriptive known name of the document.
func (m *DocumentMetadata) DisplayName() string {
	for _, v := range []string{m.Title, m.Name, m.Source} {
		if v != "" && v != UnknownMetadata {
			return v
		}
	}
	return m.ID
}

func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// DocumentService manages the documents available for retrieval.
type DocumentService interface {
	SearchService

	// SaveDocument splits, embeds, and stores the given documents as a
	// single stored document. Returns the document id.
	SaveDocument(ctx context.Context, docs []*Document) (string, error)

	// GetAllDocuments returns the metadata of all non-deleted documents.
	GetAllDocuments(ctx context.Context) ([]*DocumentMetadata, error)

	// RemoveDocument deletes a document and all of its fragments.
	// Returns false if no such document exists.
	RemoveDocument(ctx context.Context, id string) (bool, error)
}

// SearchService provides semantic search over stored fragments.
type SearchService interface {
	// SimilaritySearch returns the k fragments closest to the query.
	// A non-positive k means the service default.
	SimilaritySearch(ctx context.Context, query string, k int) ([]*SearchResult, error)
}
