package detect

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/biochem-tools/imagedup/internal/hashdb"
	"github.com/biochem-tools/imagedup/internal/identity"
	"github.com/biochem-tools/imagedup/internal/logger"
	"github.com/biochem-tools/imagedup/internal/submission"
)

// ExactGlobal finds current submissions whose exact hash already exists in
// the archive under another student's name. An archive entry without an
// extractable RUID is still compared: a missing prefix is not evidence
// that the submitter archived it.
func (d *Detector) ExactGlobal(ctx context.Context, batch []*submission.Image) []Finding {
	log := logger.Entry(ctx)

	var findings []Finding
	for _, img := range scorable(batch) {
		for _, file := range d.DB.Lookup(hashdb.Exact, img.Fingerprint.Exact) {
			if identity.SameStudent(img.Name, file) {
				continue
			}
			log.WithFields(logrus.Fields{
				"subject": img.Name,
				"match":   file,
				"md5":     img.Fingerprint.Exact,
			}).Debug("exact duplicate of archived image")
			findings = append(findings, Finding{
				Subject: img.Name,
				Match:   file,
				Kind:    ExactGlobal,
			})
		}
	}
	return findings
}
