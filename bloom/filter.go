// Package bloom provides fragment deduplication using Bloom filters.
package bloom

import (
	"slices"

	"github.com/bits-and-blooms/bloom/v3"
)

// Filter wraps a Bloom filter for fast membership tests on text keys.
type Filter struct {
	f *bloom.BloomFilter
}

// NewFilter creates a new Bloom filter sized for n expected items
// with the given false positive rate.
func NewFilter(n uint, fpRate float64) *Filter {
	return &Filter{
		f: bloom.NewWithEstimates(n, fpRate),
	}
}

// Add adds a key to the filter.
func (f *Filter) Add(key string) {
	f.f.AddString(key)
}

// Test returns true if the key might be in the filter.
// False positives are possible; false negatives are not.
func (f *Filter) Test(key string) bool {
	return f.f.TestString(key)
}

// Dedup reports exact duplicates among a stream of texts. A Bloom filter
// miss proves a text new; only hits are confirmed by comparing against the
// texts recorded so far.
type Dedup struct {
	filter *Filter
	texts  []string
}

// NewDedup creates a Dedup sized for n expected texts.
func NewDedup(n uint) *Dedup {
	if n == 0 {
		n = 1
	}
	return &Dedup{
		filter: NewFilter(n, 0.01),
		texts:  make([]string, 0, n),
	}
}

// Seen records text and reports whether it was recorded before.
func (d *Dedup) Seen(text string) bool {
	if d.filter.Test(text) && slices.Contains(d.texts, text) {
		return true
	}
	d.filter.Add(text)
	d.texts = append(d.texts, text)
	return false
}
