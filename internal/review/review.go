// Package review walks the instructor through each flagged duplicate group
// on the terminal: every image in the group is rendered as ANSI art, then a
// short ladder of y/n questions decides the verdict. It replaces opening
// the files in an external viewer so a review works over ssh.
package review

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/eliukblau/pixterm/pkg/ansimage"
	"github.com/mattn/go-tty"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/biochem-tools/imagedup/internal/logger"
)

// Verdict is the instructor's decision for one group.
type Verdict int

const (
	Clear Verdict = iota
	Duplicate
	DefaultImage
	Warn
)

func (v Verdict) String() string {
	switch v {
	case Clear:
		return "clear"
	case Duplicate:
		return "duplicate"
	case DefaultImage:
		return "default-image"
	case Warn:
		return "warn"
	}
	return "unknown"
}

// Decision records the verdict for one duplicate group.
type Decision struct {
	Files   []string
	Verdict Verdict
}

// questions are asked in order; the first "y" fixes the verdict.
var questions = []struct {
	prompt  string
	verdict Verdict
}{
	{"Are these images exactly the same?", Duplicate},
	{"Are these images just the default render?", DefaultImage},
	{"Are these images similar enough to warrant a warning?", Warn},
}

// Groups reviews each group interactively and returns one decision per
// group. Images missing from the map are listed by name only (archive
// matches whose pixels are not on this machine).
func Groups(ctx context.Context, groups [][]string, images map[string]image.Image) ([]Decision, error) {
	t, err := tty.Open()
	if err != nil {
		return nil, errors.Wrap(err, "tty.Open")
	}
	defer t.Close()

	decisions := make([]Decision, 0, len(groups))
	for n, group := range groups {
		if err := ctx.Err(); err != nil {
			return decisions, err
		}
		fmt.Printf("\ngroup %d of %d:\n", n+1, len(groups))
		for _, name := range group {
			fmt.Printf("  %s\n", name)
			img, ok := images[name]
			if !ok {
				continue
			}
			if err := draw(img); err != nil {
				logger.Entry(ctx).WithError(err).Warnf("render %s", name)
			}
		}

		verdict := Clear
		for _, q := range questions {
			yes, err := ask(t, q.prompt)
			if err != nil {
				return decisions, err
			}
			if yes {
				verdict = q.verdict
				break
			}
		}
		decisions = append(decisions, Decision{Files: group, Verdict: verdict})
	}
	return decisions, nil
}

func ask(t *tty.TTY, prompt string) (bool, error) {
	fmt.Printf("%s [y/n] ", prompt)
	for {
		r, err := t.ReadRune()
		if err != nil {
			return false, errors.Wrap(err, "tty.ReadRune")
		}
		switch r {
		case 'y', 'Y':
			fmt.Println("y")
			return true, nil
		case 'n', 'N':
			fmt.Println("n")
			return false, nil
		}
	}
}

func draw(img image.Image) error {
	ws, err := unix.IoctlGetWinsize(int(os.Stdout.Fd()), unix.TIOCGWINSZ)
	if err != nil {
		return errors.Wrap(err, "unix.IoctlGetWinsize")
	}
	ansi, err := ansimage.NewScaledFromImage(img, 2*int(ws.Row), int(ws.Col),
		color.Black, ansimage.ScaleModeFit, ansimage.NoDithering)
	if err != nil {
		return errors.Wrap(err, "ansimage.NewScaledFromImage")
	}
	ansi.Draw()
	return nil
}
