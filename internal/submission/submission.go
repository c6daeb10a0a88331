// Package submission loads a batch of submitted images and fingerprints
// them. One Image per file; a file that fails to decode stays in the batch
// as unscorable so the failure is reported, never silently dropped.
package submission

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"

	"github.com/biochem-tools/imagedup/internal/fingerprint"
	"github.com/biochem-tools/imagedup/internal/logger"
)

// Image is one submitted image. Name is the archive identifier: a basename
// starting with the student's 9-digit RUID for roster-matched submissions.
type Image struct {
	Name        string
	Path        string
	Data        []byte
	Decoded     image.Image
	Fingerprint fingerprint.Fingerprint
	Background  string
	Err         error // decode or hash failure; image is unscorable
}

// Scorable reports whether the image produced usable fingerprints.
func (img *Image) Scorable() bool {
	return img.Err == nil
}

var imageExts = []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp"}

func isImageFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return slices.Contains(imageExts, ext)
}

// LoadDir reads every image file directly under dir, sorted by name.
func LoadDir(dir string) ([]*Image, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "os.ReadDir")
	}

	var batch []*Image
	for _, entry := range entries {
		if entry.IsDir() || !isImageFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "os.ReadFile %s", path)
		}
		batch = append(batch, &Image{
			Name: entry.Name(),
			Path: path,
			Data: data,
		})
	}
	slices.SortFunc(batch, func(a, b *Image) bool { return a.Name < b.Name })
	return batch, nil
}

// FingerprintAll computes fingerprints for the whole batch in parallel.
// Per-image failures are recorded on the Image and warned; only context
// cancellation aborts the batch.
func FingerprintAll(ctx context.Context, batch []*Image) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, img := range batch {
		img := img
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fp, decoded, err := fingerprint.Compute(img.Data)
			if err != nil {
				img.Err = err
				logger.Entry(ctx).WithError(err).Warnf("unscorable image: %s", img.Name)
				return nil
			}
			img.Fingerprint = fp
			img.Decoded = decoded
			img.Background = fingerprint.Consensus(fingerprint.Corners(decoded))
			logger.Entry(ctx).WithFields(logrus.Fields{
				"image": img.Name,
				"md5":   fp.Exact,
				"phash": fp.Perceptual[:8],
			}).Trace("fingerprinted")
			return nil
		})
	}
	return g.Wait()
}

// Unscorable returns the images whose fingerprints could not be computed.
func Unscorable(batch []*Image) []*Image {
	var bad []*Image
	for _, img := range batch {
		if !img.Scorable() {
			bad = append(bad, img)
		}
	}
	return bad
}
