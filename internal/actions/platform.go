package actions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"

	"github.com/pkg/browser"
)

func init() {
	// xdg-open and friends are chatty on stdout.
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
}

type browserOpener struct{}

func (browserOpener) OpenURL(u string) error  { return browser.OpenURL(u) }
func (browserOpener) OpenFile(p string) error { return browser.OpenFile(p) }

// commandPlayer runs an external audio player with the file as last argument.
type commandPlayer struct {
	argv []string
}

var errNoPlayer = errors.New("no audio player found")

func newCommandPlayer(argv []string) *commandPlayer {
	return &commandPlayer{argv: append([]string(nil), argv...)}
}

func (p *commandPlayer) Play(ctx context.Context, file string) error {
	argv := p.argv
	if len(argv) == 0 {
		argv = defaultPlayer()
	}
	if len(argv) == 0 {
		return errNoPlayer
	}

	args := append(append([]string(nil), argv[1:]...), file)
	out, err := exec.CommandContext(ctx, argv[0], args...).CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("%s: %w: %s", argv[0], err, msg)
		}
		return fmt.Errorf("%s: %w", argv[0], err)
	}
	return nil
}

// defaultPlayer picks the first player available on this OS.
func defaultPlayer() []string {
	var candidates [][]string
	switch runtime.GOOS {
	case "darwin":
		candidates = [][]string{{"afplay"}}
	case "windows":
		return []string{"powershell", "-NoProfile", "-Command", "$p=New-Object Media.SoundPlayer $args[0]; $p.PlaySync()"}
	default:
		candidates = [][]string{
			{"paplay"},
			{"aplay", "-q"},
			{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet"},
		}
	}
	for _, c := range candidates {
		if _, err := exec.LookPath(c[0]); err == nil {
			return c
		}
	}
	return nil
}
