// Package corpus holds the immutable set of searchable file records.
package corpus

import (
	"strings"
	"time"
)

// DefaultTrimPrefix is stripped from record paths to form entry ids.
const DefaultTrimPrefix = "合集系列/"

// FileRecord is one stored file as listed in a bucket snapshot.
type FileRecord struct {
	Path       string `json:"file_path"`
	Size       int64  `json:"file_size"`
	UploadedAt int64  `json:"upload_timestamp"`
}

// Entry is the searchable projection of a FileRecord. ID is the only field
// the matcher looks at.
type Entry struct {
	ID     string     `json:"id"`
	Record FileRecord `json:"info"`
}

// Stats summarises a corpus.
type Stats struct {
	Entries      int       `json:"entries"`
	DuplicateIDs int       `json:"duplicate_ids"`
	TotalBytes   int64     `json:"total_bytes"`
	BuiltAt      time.Time `json:"built_at"`
}

// Corpus is an ordered, read-only list of entries. It is safe for
// concurrent use because nothing mutates it after Build.
type Corpus struct {
	entries []Entry
	stats   Stats
}

// Build flattens batches in order into a corpus. Each id is the record path
// with prefix removed when present, otherwise the path unchanged.
func Build(prefix string, batches ...[]FileRecord) *Corpus {
	n := 0
	for _, b := range batches {
		n += len(b)
	}

	entries := make([]Entry, 0, n)
	seen := make(map[string]struct{}, n)
	stats := Stats{BuiltAt: time.Now()}

	for _, batch := range batches {
		for _, rec := range batch {
			id := rec.Path
			if prefix != "" {
				id = strings.TrimPrefix(id, prefix)
			}
			if _, dup := seen[id]; dup {
				stats.DuplicateIDs++
			} else {
				seen[id] = struct{}{}
			}
			stats.TotalBytes += rec.Size
			entries = append(entries, Entry{ID: id, Record: rec})
		}
	}

	stats.Entries = len(entries)
	return &Corpus{entries: entries, stats: stats}
}

// Len returns the number of entries. A nil corpus is empty.
func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// At returns the i-th entry.
func (c *Corpus) At(i int) Entry {
	return c.entries[i]
}

// Entries returns the backing slice. Callers must not modify it.
func (c *Corpus) Entries() []Entry {
	if c == nil {
		return nil
	}
	return c.entries
}

// Stats returns summary statistics computed at build time.
func (c *Corpus) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	return c.stats
}

// FilterPrefix returns the records whose path starts with prefix. An empty
// prefix returns records unchanged.
func FilterPrefix(records []FileRecord, prefix string) []FileRecord {
	if prefix == "" {
		return records
	}
	out := make([]FileRecord, 0, len(records))
	for _, r := range records {
		if strings.HasPrefix(r.Path, prefix) {
			out = append(out, r)
		}
	}
	return out
}
