// Command imagedup runs the duplicate/cheat-detection pass over one batch
// of submitted protein images: fingerprint everything, compare against the
// batch and the cross-semester hash archive, report findings, then fold the
// batch into the archive.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/biochem-tools/imagedup/internal/detect"
	"github.com/biochem-tools/imagedup/internal/hashdb"
	"github.com/biochem-tools/imagedup/internal/identity"
	"github.com/biochem-tools/imagedup/internal/logger"
	"github.com/biochem-tools/imagedup/internal/review"
	"github.com/biochem-tools/imagedup/internal/submission"
)

var log = logrus.New()

type flags struct {
	Images      string
	Hashes      string
	Threshold   int
	LocalOnly   bool
	InitArchive bool
	Review      bool
	DryRun      bool
	Trace       bool
}

func getFlags() *flags {
	f := flags{}
	flag.StringVar(&f.Images, "images", envDefault("IMAGEDUP_IMAGES", ""), "directory of submitted images (required)")
	flag.StringVar(&f.Hashes, "hashes", envDefault("IMAGEDUP_HASHES", "archive/image_hashes.yml"), "hash archive file")
	flag.IntVar(&f.Threshold, "threshold", envIntDefault("IMAGEDUP_THRESHOLD", detect.DefaultThreshold), "max phash distance reported as similar")
	flag.BoolVar(&f.LocalOnly, "local-only", false, "skip archive checks, compare within the batch only")
	flag.BoolVar(&f.InitArchive, "init-archive", false, "start a new archive when the file is missing")
	flag.BoolVar(&f.Review, "review", false, "review flagged groups interactively")
	flag.BoolVar(&f.DryRun, "dry-run", false, "do not record the batch or save the archive")
	flag.BoolVar(&f.Trace, "trace", false, "trace-level logging")
	return &f
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func main() {
	godotenv.Load() // optional .env next to the roster files

	f := getFlags()
	flag.Parse()
	if f.Images == "" {
		flag.Usage()
		os.Exit(2)
	}
	if f.Trace {
		log.SetLevel(logrus.TraceLevel)
	} else {
		log.SetLevel(logrus.DebugLevel)
	}

	ctx, ctxCancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, os.Interrupt,
	)
	defer ctxCancel()
	ctx = logger.WithLogEntry(ctx, logrus.NewEntry(log))

	if err := run(ctx, f); err != nil {
		log.WithError(err).Fatal("run failed")
	}
}

func run(ctx context.Context, f *flags) error {
	batch, err := submission.LoadDir(f.Images)
	if err != nil {
		return err
	}
	log.Infof("loaded %d images from %s", len(batch), f.Images)

	if err := submission.FingerprintAll(ctx, batch); err != nil {
		return err
	}
	for _, img := range submission.Unscorable(batch) {
		log.Warnf("UNSCORABLE: %s could not be decoded and was not checked for duplicates", img.Name)
	}

	db := hashdb.Open(f.Hashes)
	archiveChecks := !f.LocalOnly
	if archiveChecks {
		switch err := db.Load(); {
		case err == nil:
			log.Infof("loaded %d hashes from %s", db.Len(), db.Path())
		case hashdb.IsNotExist(err) && f.InitArchive:
			log.Warnf("hash archive %s missing, starting a new one", db.Path())
		default:
			return err
		}
	} else {
		log.Warn("local-only mode: cross-semester duplicates will NOT be detected")
	}

	d := detect.New(db, f.Threshold)

	findings := d.ExactLocal(ctx, batch)
	if archiveChecks {
		findings = append(findings, d.ExactGlobal(ctx, batch)...)
		similar, err := d.Similar(ctx, batch)
		if err != nil {
			return err
		}
		findings = append(findings, similar...)
	}
	report(batch, findings)

	if f.Review && len(findings) > 0 {
		if err := reviewFindings(ctx, batch, findings); err != nil {
			return err
		}
	}

	if f.DryRun {
		log.Info("dry run: archive not updated")
		return nil
	}
	if archiveChecks {
		d.RecordBatch(batch)
		if err := db.Save(); err != nil {
			return err
		}
		log.Infof("saved %d hashes to %s", db.Len(), db.Path())
	}
	return nil
}

func report(batch []*submission.Image, findings []detect.Finding) {
	for _, img := range batch {
		if !img.Scorable() {
			continue
		}
		entry := log.WithFields(logrus.Fields{
			"image":      img.Name,
			"background": img.Background,
		})
		if img.Background == "" {
			// The four corners disagree: usually a cropped or composited
			// submission rather than a straight viewer export.
			entry.Warn("no consensus background color")
		} else {
			entry.Debug("submission")
		}
	}

	for _, finding := range findings {
		entry := log.WithFields(logrus.Fields{
			"subject": finding.Subject,
			"match":   finding.Match,
			"kind":    finding.Kind.String(),
		})
		if finding.Kind.Exact() {
			entry.Warn("duplicate image")
		} else {
			entry.WithField("distance", finding.Distance).Warn("similar image")
		}
	}

	flagged := detect.FlaggedNames(findings)
	clean := 0
	for _, img := range batch {
		if _, ok := flagged[img.Name]; img.Scorable() && !ok {
			clean++
		}
	}
	log.Infof("%d findings, %d of %d submissions unique", len(findings), clean, len(batch))
}

func reviewFindings(ctx context.Context, batch []*submission.Image, findings []detect.Finding) error {
	images := make(map[string]image.Image)
	for _, img := range batch {
		if img.Decoded != nil {
			images[img.Name] = img.Decoded
		}
	}
	// One file per student per group; a group that collapses to a single
	// file is all resubmissions and needs no review.
	var groups [][]string
	for _, group := range detect.MergeGroups(findings) {
		if group = identity.FilterGroup(group); len(group) > 1 {
			groups = append(groups, group)
		}
	}

	decisions, err := review.Groups(ctx, groups, images)
	if err != nil {
		return err
	}
	for _, dec := range decisions {
		fmt.Printf("%s: %v\n", dec.Verdict, dec.Files)
	}
	return nil
}
