// Package fingerprint derives the two content hashes used for duplicate
// detection: an exact md5 digest of the trimmed pixel data and a 16x16
// perceptual hash robust to re-encoding.
package fingerprint

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/corona10/goimagehash"
	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// phashDim is the perceptual hash dimension per side; 16x16 gives a
// 256-bit hash, the width the archive's distance threshold is tuned for.
const phashDim = 16

// Fingerprint holds both content hashes of one image as hex strings.
type Fingerprint struct {
	Exact      string // md5 of trimmed 8-bit RGB pixel rows
	Perceptual string // 64 hex chars, 16x16 perception hash
}

// DecodeError marks image bytes that could not be decoded. The submission
// stays in the batch as unscorable so the failure is visible to the caller.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode image: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode decodes raw image bytes (png, jpeg, gif, webp, bmp).
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return img, nil
}

// FromImage computes both hashes of an already-decoded image. The
// background border is trimmed and the orientation normalized first so a
// re-encode, padded export, or rotation does not change the exact hash
// spuriously.
func FromImage(img image.Image) (Fingerprint, error) {
	trimmed := Trim(img)

	hash, err := goimagehash.ExtPerceptionHash(trimmed, phashDim, phashDim)
	if err != nil {
		return Fingerprint{}, errors.Wrap(err, "goimagehash.ExtPerceptionHash")
	}

	return Fingerprint{
		Exact:      exactHash(trimmed),
		Perceptual: encodeWords(hash.GetHash()),
	}, nil
}

// Compute decodes and fingerprints raw image bytes, returning the decoded
// image as well for rendering and inspection.
func Compute(data []byte) (Fingerprint, image.Image, error) {
	img, err := Decode(data)
	if err != nil {
		return Fingerprint{}, nil, err
	}
	fp, err := FromImage(img)
	if err != nil {
		return Fingerprint{}, nil, err
	}
	return fp, img, nil
}

// exactHash digests the 8-bit RGB pixel rows, ignoring any metadata the
// container format carried.
func exactHash(img image.Image) string {
	h := md5.New()
	bounds := img.Bounds()
	row := make([]byte, bounds.Dx()*3)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		i := 0
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			row[i] = byte(r >> 8)
			row[i+1] = byte(g >> 8)
			row[i+2] = byte(b >> 8)
			i += 3
		}
		h.Write(row)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func encodeWords(words []uint64) string {
	var buf bytes.Buffer
	for _, w := range words {
		fmt.Fprintf(&buf, "%016x", w)
	}
	return buf.String()
}
