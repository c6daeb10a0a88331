package detect

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/biochem-tools/imagedup/internal/fingerprint"
	"github.com/biochem-tools/imagedup/internal/hashdb"
	"github.com/biochem-tools/imagedup/internal/submission"
)

func img(name, md5, phash string) *submission.Image {
	return &submission.Image{
		Name: name,
		Fingerprint: fingerprint.Fingerprint{
			Exact:      md5,
			Perceptual: phash,
		},
	}
}

// phashAtDistance builds a 64-hex-char hash at an exact Hamming distance
// from the all-zero hash. Only multiples of four plus an optional 2-bit
// remainder are needed by these tests.
func phashAtDistance(dist int) string {
	full := dist / 4
	hash := strings.Repeat("f", full)
	if dist%4 == 2 {
		hash += "c"
	}
	return hash + strings.Repeat("0", 64-len(hash))
}

var zeroPhash = strings.Repeat("0", 64)

func TestExactLocalSameStudentSuppressed(t *testing.T) {
	d := New(hashdb.Open("unused.yml"), 0)
	batch := []*submission.Image{
		img("123456789_a.png", "aabb", zeroPhash),
		img("123456789_b.png", "aabb", zeroPhash),
	}
	if findings := d.ExactLocal(context.Background(), batch); len(findings) != 0 {
		t.Fatalf("ExactLocal = %v, want none for same student", findings)
	}
}

func TestExactLocalCrossStudent(t *testing.T) {
	d := New(hashdb.Open("unused.yml"), 0)
	batch := []*submission.Image{
		img("123456789_a.png", "aabb", zeroPhash),
		img("987654321_b.png", "aabb", zeroPhash),
	}
	findings := d.ExactLocal(context.Background(), batch)
	if len(findings) != 1 {
		t.Fatalf("ExactLocal = %v, want one finding", findings)
	}
	f := findings[0]
	if f.Kind != ExactLocal || !f.Kind.Exact() {
		t.Fatalf("finding kind = %v", f.Kind)
	}
	if f.Subject != "123456789_a.png" || f.Match != "987654321_b.png" {
		t.Fatalf("finding pair = %s vs %s", f.Subject, f.Match)
	}
}

func TestExactLocalGroupPairs(t *testing.T) {
	d := New(hashdb.Open("unused.yml"), 0)
	batch := []*submission.Image{
		img("111111111_a.png", "aabb", zeroPhash),
		img("111111111_b.png", "aabb", zeroPhash),
		img("222222222_c.png", "aabb", zeroPhash),
	}
	findings := d.ExactLocal(context.Background(), batch)
	// Both of student 111111111's copies pair with 222222222's image;
	// the within-student pair is suppressed.
	if len(findings) != 2 {
		t.Fatalf("ExactLocal = %v, want two findings", findings)
	}
}

func TestExactLocalSkipsUnscorable(t *testing.T) {
	d := New(hashdb.Open("unused.yml"), 0)
	broken := img("999999999_x.png", "", "")
	broken.Err = &fingerprint.DecodeError{}
	batch := []*submission.Image{
		broken,
		img("123456789_a.png", "aabb", zeroPhash),
	}
	if findings := d.ExactLocal(context.Background(), batch); len(findings) != 0 {
		t.Fatalf("ExactLocal = %v, want none", findings)
	}
}

func TestExactGlobalPrefixlessArchiveEntry(t *testing.T) {
	db := hashdb.Open("unused.yml")
	db.Record(hashdb.Exact, "aabb", "legacy_upload.png")
	d := New(db, 0)

	batch := []*submission.Image{img("123456789_a.png", "aabb", zeroPhash)}
	findings := d.ExactGlobal(context.Background(), batch)
	if len(findings) != 1 {
		t.Fatalf("ExactGlobal = %v, want one finding", findings)
	}
	if findings[0].Kind != ExactGlobal || findings[0].Match != "legacy_upload.png" {
		t.Fatalf("finding = %+v", findings[0])
	}
}

func TestExactGlobalSameStudentSuppressed(t *testing.T) {
	db := hashdb.Open("unused.yml")
	db.Record(hashdb.Exact, "aabb", "hw01/123456789_last_term.png")
	db.Record(hashdb.Exact, "aabb", "hw01/555555555_other.png")
	d := New(db, 0)

	batch := []*submission.Image{img("123456789_a.png", "aabb", zeroPhash)}
	findings := d.ExactGlobal(context.Background(), batch)
	if len(findings) != 1 {
		t.Fatalf("ExactGlobal = %v, want only the cross-student finding", findings)
	}
	if findings[0].Match != "hw01/555555555_other.png" {
		t.Fatalf("finding = %+v", findings[0])
	}
}

func TestRecordAfterComparison(t *testing.T) {
	db := hashdb.Open("unused.yml")
	d := New(db, 0)
	ctx := context.Background()

	batch := []*submission.Image{
		img("123456789_a.png", "aabb", zeroPhash),
		img("987654321_b.png", "aabb", phashAtDistance(2)),
	}

	// The archive is empty, so the global pass sees nothing even though
	// both images carry hash aabb: recording happens after comparison.
	if findings := d.ExactGlobal(ctx, batch); len(findings) != 0 {
		t.Fatalf("ExactGlobal on empty archive = %v", findings)
	}
	if findings := d.ExactLocal(ctx, batch); len(findings) != 1 {
		t.Fatalf("ExactLocal = %v, want one finding", findings)
	}

	d.RecordBatch(batch)
	got := db.Lookup(hashdb.Exact, "aabb")
	want := []string{"123456789_a.png", "987654321_b.png"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Lookup after RecordBatch = %v, want %v", got, want)
	}
}

func TestSimilarThreshold(t *testing.T) {
	ctx := context.Background()

	db := hashdb.Open("unused.yml")
	db.Record(hashdb.Perceptual, phashAtDistance(40), "111111111_old.png")
	d := New(db, 0)

	batch := []*submission.Image{img("987654321_new.png", "ccdd", zeroPhash)}
	findings, err := d.Similar(ctx, batch)
	if err != nil {
		t.Fatalf("Similar: %v", err)
	}
	if len(findings) != 0 {
		t.Fatalf("Similar at distance 40 = %v, want none", findings)
	}

	db = hashdb.Open("unused.yml")
	db.Record(hashdb.Perceptual, phashAtDistance(30), "111111111_old.png")
	d = New(db, 0)
	findings, err = d.Similar(ctx, batch)
	if err != nil {
		t.Fatalf("Similar: %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("Similar at distance 30 = %v, want one finding", findings)
	}
	f := findings[0]
	if f.Kind != SimilarGlobal || f.Distance != 30 || f.Match != "111111111_old.png" {
		t.Fatalf("finding = %+v", f)
	}
}

func TestSimilarThresholdInclusive(t *testing.T) {
	db := hashdb.Open("unused.yml")
	db.Record(hashdb.Perceptual, phashAtDistance(38), "111111111_old.png")
	d := New(db, 0)

	batch := []*submission.Image{img("987654321_new.png", "ccdd", zeroPhash)}
	findings, err := d.Similar(context.Background(), batch)
	if err != nil {
		t.Fatalf("Similar: %v", err)
	}
	if len(findings) != 1 || findings[0].Distance != 38 {
		t.Fatalf("Similar at distance 38 = %v, want one finding", findings)
	}
}

func TestSimilarSameStudentSuppressed(t *testing.T) {
	db := hashdb.Open("unused.yml")
	db.Record(hashdb.Perceptual, phashAtDistance(30), "123456789_old.png")
	d := New(db, 0)

	batch := []*submission.Image{img("123456789_resubmit.png", "ccdd", zeroPhash)}
	findings, err := d.Similar(context.Background(), batch)
	if err != nil {
		t.Fatalf("Similar: %v", err)
	}
	if len(findings) != 0 {
		t.Fatalf("Similar = %v, want resubmission suppressed", findings)
	}
}

func TestSimilarLocalPair(t *testing.T) {
	d := New(hashdb.Open("unused.yml"), 0)
	batch := []*submission.Image{
		img("123456789_a.png", "aa01", zeroPhash),
		img("987654321_b.png", "bb02", phashAtDistance(12)),
	}
	findings, err := d.Similar(context.Background(), batch)
	if err != nil {
		t.Fatalf("Similar: %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("Similar = %v, want one finding", findings)
	}
	f := findings[0]
	if f.Kind != SimilarLocal || f.Distance != 12 {
		t.Fatalf("finding = %+v", f)
	}
}

func TestSimilarSkipsLegacyWidth(t *testing.T) {
	db := hashdb.Open("unused.yml")
	db.Record(hashdb.Perceptual, "ffff0000ffff0000", "111111111_tiny_hash.png")
	d := New(db, 0)

	batch := []*submission.Image{img("987654321_new.png", "ccdd", zeroPhash)}
	findings, err := d.Similar(context.Background(), batch)
	if err != nil {
		t.Fatalf("Similar: %v", err)
	}
	if len(findings) != 0 {
		t.Fatalf("Similar = %v, want legacy-width entry skipped", findings)
	}
}

func TestMergeGroups(t *testing.T) {
	findings := []Finding{
		{Subject: "a.png", Match: "b.png", Kind: ExactLocal},
		{Subject: "b.png", Match: "c.png", Kind: SimilarLocal, Distance: 5},
		{Subject: "x.png", Match: "y.png", Kind: SimilarGlobal, Distance: 20},
	}
	groups := MergeGroups(findings)
	want := [][]string{
		{"a.png", "b.png", "c.png"},
		{"x.png", "y.png"},
	}
	if !reflect.DeepEqual(groups, want) {
		t.Fatalf("MergeGroups = %v, want %v", groups, want)
	}
}

func TestFlaggedNames(t *testing.T) {
	findings := []Finding{
		{Subject: "111111111_a.png", Match: "222222222_b.png", Kind: ExactLocal},
		{Subject: "333333333_c.png", Match: "444444444_old.png", Kind: ExactGlobal},
		{Subject: "555555555_d.png", Match: "666666666_e.png", Kind: SimilarLocal, Distance: 7},
	}
	flagged := FlaggedNames(findings)
	for _, name := range []string{
		"111111111_a.png", "222222222_b.png",
		"333333333_c.png",
		"555555555_d.png", "666666666_e.png",
	} {
		if _, ok := flagged[name]; !ok {
			t.Fatalf("FlaggedNames missing %s", name)
		}
	}
	if _, ok := flagged["444444444_old.png"]; ok {
		t.Fatal("FlaggedNames includes archive-side match")
	}
	if len(flagged) != 5 {
		t.Fatalf("FlaggedNames = %d names, want 5", len(flagged))
	}
}
