package strategy

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	engineerrors "github.com/ducminhle1904/dna-evolution/internal/errors"
	"github.com/ducminhle1904/dna-evolution/pkg/types"
)

// ErrNotFound is returned when a partition has no stored document
var ErrNotFound = stderrors.New("strategy document not found")

// Store persists strategy documents
type Store interface {
	Save(ctx context.Context, doc *Document) error
	Latest(ctx context.Context, partition string) (*Document, error)
	Partitions(ctx context.Context) ([]string, error)
}

// FileStore keeps every document as <dir>/<partition>/strategy_<unix>.json plus a latest.json copy
type FileStore struct {
	dir string
}

// NewFileStore creates a file store rooted at dir
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Save writes the document and repoints latest.json at it
func (s *FileStore) Save(ctx context.Context, doc *Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	partDir := filepath.Join(s.dir, types.SafeName(doc.Partition))
	if err := os.MkdirAll(partDir, 0755); err != nil {
		return engineerrors.NewStorageError("strategy", "save", fmt.Errorf("failed to create directory: %w", err))
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return engineerrors.NewStorageError("strategy", "save", fmt.Errorf("failed to marshal document: %w", err))
	}

	name := fmt.Sprintf("strategy_%d.json", doc.CreatedAt.UnixNano())
	for _, target := range []string{name, "latest.json"} {
		path := filepath.Join(partDir, target)
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, data, 0644); err != nil {
			return engineerrors.NewStorageError("strategy", "save", err)
		}
		if err := os.Rename(tmp, path); err != nil {
			return engineerrors.NewStorageError("strategy", "save", err)
		}
	}
	return nil
}

// Latest reads a partition's latest.json
func (s *FileStore) Latest(ctx context.Context, partition string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return readDocument(filepath.Join(s.dir, types.SafeName(partition), "latest.json"))
}

// Partitions lists every partition with a latest document, sorted
func (s *FileStore) Partitions(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, engineerrors.NewStorageError("strategy", "partitions", err)
	}

	var out []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		doc, err := readDocument(filepath.Join(s.dir, e.Name(), "latest.json"))
		if err != nil {
			continue
		}
		out = append(out, doc.Partition)
	}
	sort.Strings(out)
	return out, nil
}

// History returns every stored document of a partition, oldest first
func (s *FileStore) History(partition string) ([]*Document, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, types.SafeName(partition), "strategy_*.json"))
	if err != nil {
		return nil, err
	}
	var docs []*Document
	for _, m := range matches {
		doc, err := readDocument(m)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].CreatedAt.Before(docs[j].CreatedAt) })
	return docs, nil
}

func readDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, engineerrors.NewStorageError("strategy", "read", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, engineerrors.NewStorageError("strategy", "read", fmt.Errorf("failed to parse %s: %w", path, err))
	}
	return &doc, nil
}
