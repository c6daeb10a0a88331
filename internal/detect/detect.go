// Package detect classifies a submission batch against itself and against
// the cross-semester hash archive: exact duplicates within the batch, exact
// duplicates of archived images, and perceptually similar pairs. Matches
// between files of the same student are legitimate resubmissions and are
// suppressed by the identity filter.
package detect

import (
	"github.com/biochem-tools/imagedup/internal/hashdb"
	"github.com/biochem-tools/imagedup/internal/submission"
)

// DefaultThreshold is the maximum Hamming distance at which two 256-bit
// perceptual hashes are still reported as similar.
const DefaultThreshold = 38

// Kind classifies a finding.
type Kind int

const (
	ExactLocal Kind = iota
	ExactGlobal
	SimilarLocal
	SimilarGlobal
)

func (k Kind) String() string {
	switch k {
	case ExactLocal:
		return "exact-local"
	case ExactGlobal:
		return "exact-global"
	case SimilarLocal:
		return "similar-local"
	case SimilarGlobal:
		return "similar-global"
	}
	return "unknown"
}

// Exact reports whether the finding kind means byte-identical content.
func (k Kind) Exact() bool {
	return k == ExactLocal || k == ExactGlobal
}

// Finding is one detected duplicate or similarity. Subject is always a
// current-batch image; Match is another batch image (local kinds) or an
// archive file identifier (global kinds). Distance is the Hamming distance
// for similar kinds and zero for exact kinds.
type Finding struct {
	Subject  string
	Match    string
	Kind     Kind
	Distance int
}

// Detector runs the three checks against one loaded hash database.
// Detectors never mutate the database; only RecordBatch does, and the
// driver calls it strictly after all comparisons so a batch is never
// flagged against its own premature entries.
type Detector struct {
	DB        *hashdb.DB
	Threshold int
}

func New(db *hashdb.DB, threshold int) *Detector {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Detector{DB: db, Threshold: threshold}
}

// RecordBatch merges every scorable image's hashes into the database so
// this batch becomes part of the archive for future runs.
func (d *Detector) RecordBatch(batch []*submission.Image) {
	for _, img := range batch {
		if !img.Scorable() {
			continue
		}
		d.DB.Record(hashdb.Exact, img.Fingerprint.Exact, img.Name)
		d.DB.Record(hashdb.Perceptual, img.Fingerprint.Perceptual, img.Name)
	}
}

// FlaggedNames returns every batch image name involved in a finding.
// Match names count for local kinds only: a global finding's match is an
// archive file, not a batch member.
func FlaggedNames(findings []Finding) map[string]struct{} {
	flagged := make(map[string]struct{}, len(findings))
	for _, f := range findings {
		flagged[f.Subject] = struct{}{}
		if f.Kind == ExactLocal || f.Kind == SimilarLocal {
			flagged[f.Match] = struct{}{}
		}
	}
	return flagged
}

func scorable(batch []*submission.Image) []*submission.Image {
	out := make([]*submission.Image, 0, len(batch))
	for _, img := range batch {
		if img.Scorable() {
			out = append(out, img)
		}
	}
	return out
}
