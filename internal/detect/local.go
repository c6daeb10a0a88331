package detect

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/biochem-tools/imagedup/internal/identity"
	"github.com/biochem-tools/imagedup/internal/logger"
	"github.com/biochem-tools/imagedup/internal/submission"
)

// ExactLocal finds byte-identical submissions within the current batch.
// Images are grouped by exact hash; each cross-student pair in a group
// yields one finding.
func (d *Detector) ExactLocal(ctx context.Context, batch []*submission.Image) []Finding {
	log := logger.Entry(ctx)

	groups := make(map[string][]*submission.Image)
	for _, img := range scorable(batch) {
		hash := img.Fingerprint.Exact
		groups[hash] = append(groups[hash], img)
	}

	var findings []Finding
	hashes := maps.Keys(groups)
	slices.Sort(hashes)
	for _, hash := range hashes {
		group := groups[hash]
		if len(group) < 2 {
			continue
		}
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				a, b := group[i], group[j]
				if identity.SameStudent(a.Name, b.Name) {
					continue
				}
				log.WithFields(logrus.Fields{
					"subject": a.Name,
					"match":   b.Name,
					"md5":     hash,
				}).Debug("exact duplicate in batch")
				findings = append(findings, Finding{
					Subject: a.Name,
					Match:   b.Name,
					Kind:    ExactLocal,
				})
			}
		}
	}
	return findings
}
