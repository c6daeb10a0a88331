package detect

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/biochem-tools/imagedup/internal/fingerprint"
	"github.com/biochem-tools/imagedup/internal/hashdb"
	"github.com/biochem-tools/imagedup/internal/identity"
	"github.com/biochem-tools/imagedup/internal/logger"
	"github.com/biochem-tools/imagedup/internal/submission"
)

// Similar finds perceptually close pairs, both within the batch and
// against the archive. Every pair in scope is compared; at tens of images
// per batch the full O(n^2) scan is cheaper than any indexing.
//
// Archive entries whose hash width differs from the current 256-bit format
// are skipped with a warning; old 64-bit entries are not comparable but
// must not abort the run.
func (d *Detector) Similar(ctx context.Context, batch []*submission.Image) ([]Finding, error) {
	log := logger.Entry(ctx)
	imgs := scorable(batch)

	var findings []Finding
	comparisons := 0

	archive := d.DB.Entries(hashdb.Perceptual)
	archiveHashes := maps.Keys(archive)
	slices.Sort(archiveHashes)

	for _, img := range imgs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, hash := range archiveHashes {
			dist, err := fingerprint.Hamming(img.Fingerprint.Perceptual, hash)
			if err != nil {
				log.WithError(err).Warnf("skipping archive phash %.8s", hash)
				continue
			}
			comparisons++
			if dist > d.Threshold {
				continue
			}
			for _, file := range archive[hash] {
				if identity.SameStudent(img.Name, file) {
					continue
				}
				log.WithFields(logrus.Fields{
					"subject":  img.Name,
					"match":    file,
					"distance": dist,
				}).Debug("similar to archived image")
				findings = append(findings, Finding{
					Subject:  img.Name,
					Match:    file,
					Kind:     SimilarGlobal,
					Distance: dist,
				})
			}
		}
	}

	for i := 0; i < len(imgs); i++ {
		for j := i + 1; j < len(imgs); j++ {
			a, b := imgs[i], imgs[j]
			dist, err := fingerprint.Hamming(a.Fingerprint.Perceptual, b.Fingerprint.Perceptual)
			if err != nil {
				// Both hashes come from this run's calculator; a mismatch
				// here is a programming error.
				return nil, err
			}
			comparisons++
			if dist > d.Threshold || identity.SameStudent(a.Name, b.Name) {
				continue
			}
			log.WithFields(logrus.Fields{
				"subject":  a.Name,
				"match":    b.Name,
				"distance": dist,
			}).Debug("similar images in batch")
			findings = append(findings, Finding{
				Subject:  a.Name,
				Match:    b.Name,
				Kind:     SimilarLocal,
				Distance: dist,
			})
		}
	}

	log.Tracef("made %d phash comparisons", comparisons)
	return findings, nil
}
