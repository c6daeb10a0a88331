// Package hashdb persists the cross-semester image hash archive: for each
// hash namespace, a mapping from hash value to the archive files that
// produced it. The file is YAML so it stays human-diffable and shared with
// the other grading tooling.
package hashdb

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

// Kind selects a hash namespace in the archive document.
type Kind string

const (
	Exact      Kind = "md5"
	Perceptual Kind = "phash"
)

var kinds = []Kind{Exact, Perceptual}

// LoadError marks an unreadable or malformed archive. Callers must not
// fall back to an empty archive silently: that turns every cross-semester
// duplicate into a false negative.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load hash archive %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// SaveError marks a failed persistence attempt. The on-disk file is left
// untouched on failure.
type SaveError struct {
	Path string
	Err  error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("save hash archive %s: %v", e.Path, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }

// DB is the in-memory hash archive. It is the source of truth during a run
// and only ever grows; Save merges it back to disk. Not safe for concurrent
// mutation.
type DB struct {
	path   string
	hashes map[Kind]map[string][]string
	extra  []*yaml.Node // preserved unknown top-level key/value node pairs
}

// Open returns an empty DB bound to path. No I/O happens until Load or Save.
func Open(path string) *DB {
	db := &DB{
		path:   path,
		hashes: make(map[Kind]map[string][]string, len(kinds)),
	}
	for _, k := range kinds {
		db.hashes[k] = make(map[string][]string)
	}
	return db
}

func (db *DB) Path() string { return db.path }

// Load reads the archive file into memory, replacing current contents.
// A missing file yields a *LoadError wrapping fs.ErrNotExist so callers
// can distinguish first-run initialization from corruption.
func (db *DB) Load() error {
	raw, err := os.ReadFile(db.path)
	if err != nil {
		return &LoadError{Path: db.path, Err: err}
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return &LoadError{Path: db.path, Err: err}
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		// Empty document: a freshly initialized archive.
		return nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return &LoadError{Path: db.path, Err: errors.New("top level is not a mapping")}
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		switch Kind(key.Value) {
		case Exact, Perceptual:
			if err := db.loadKind(Kind(key.Value), value); err != nil {
				return &LoadError{Path: db.path, Err: err}
			}
		default:
			// Unknown keys belong to other tooling; keep them verbatim.
			db.extra = append(db.extra, key, value)
		}
	}
	return nil
}

// loadKind reads one namespace mapping. Legacy archives stored a single
// file per hash as a scalar; both forms are accepted.
func (db *DB) loadKind(kind Kind, node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Value == "" {
		return nil // null namespace
	}
	if node.Kind != yaml.MappingNode {
		return errors.Errorf("%s namespace is not a mapping", kind)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		hash, value := node.Content[i].Value, node.Content[i+1]
		switch value.Kind {
		case yaml.ScalarNode:
			db.Record(kind, hash, value.Value)
		case yaml.SequenceNode:
			for _, item := range value.Content {
				db.Record(kind, hash, item.Value)
			}
		default:
			return errors.Errorf("%s[%s]: unexpected node kind %d", kind, hash, value.Kind)
		}
	}
	return nil
}

// Lookup returns the archive files recorded for a hash, nil when absent.
func (db *DB) Lookup(kind Kind, hash string) []string {
	return db.hashes[kind][hash]
}

// Entries exposes a namespace for full scans (similarity detection).
// Callers must not mutate the returned map.
func (db *DB) Entries(kind Kind) map[string][]string {
	return db.hashes[kind]
}

// Record adds a (hash, file) pair to a namespace. Adding the same pair
// twice has no effect; the file list stays sorted.
func (db *DB) Record(kind Kind, hash, file string) {
	if hash == "" || file == "" {
		return
	}
	files := db.hashes[kind][hash]
	if slices.Contains(files, file) {
		return
	}
	files = append(files, file)
	slices.Sort(files)
	db.hashes[kind][hash] = files
}

// Len returns the total number of distinct hashes across namespaces.
func (db *DB) Len() int {
	n := 0
	for _, k := range kinds {
		n += len(db.hashes[k])
	}
	return n
}

// Save persists the archive atomically: a temp file in the destination
// directory, then rename. Preserved unknown keys are written back after
// the hash namespaces.
func (db *DB) Save() error {
	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range kinds {
		root.Content = append(root.Content, scalarNode(string(k)), db.kindNode(k))
	}
	root.Content = append(root.Content, db.extra...)

	out, err := yaml.Marshal(root)
	if err != nil {
		return &SaveError{Path: db.path, Err: err}
	}

	dir := filepath.Dir(db.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &SaveError{Path: db.path, Err: err}
	}
	tmp, err := os.CreateTemp(dir, ".image_hashes-*.yml")
	if err != nil {
		return &SaveError{Path: db.path, Err: err}
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		return &SaveError{Path: db.path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &SaveError{Path: db.path, Err: err}
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return &SaveError{Path: db.path, Err: err}
	}
	if err := os.Rename(tmp.Name(), db.path); err != nil {
		return &SaveError{Path: db.path, Err: err}
	}
	return nil
}

// kindNode builds the mapping node for one namespace with sorted keys.
func (db *DB) kindNode(kind Kind) *yaml.Node {
	node := &yaml.Node{Kind: yaml.MappingNode}
	hashes := maps.Keys(db.hashes[kind])
	slices.Sort(hashes)
	for _, hash := range hashes {
		seq := &yaml.Node{Kind: yaml.SequenceNode}
		for _, file := range db.hashes[kind][hash] {
			seq.Content = append(seq.Content, scalarNode(file))
		}
		node.Content = append(node.Content, scalarNode(hash), seq)
	}
	return node
}

func scalarNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

// IsNotExist reports whether err is a LoadError for a missing archive file.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
