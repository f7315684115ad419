package replica

import (
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/jgivc/pkgfetch/internal/util"
	"github.com/spf13/afero"
)

// Group copies freshly fetched files into secondary caches in the background.
// Every copy is best-effort: failures are logged and dropped.
type Group struct {
	fs  afero.Fs
	wg  sync.WaitGroup
	log *slog.Logger
}

func NewGroup(fs afero.Fs, log *slog.Logger) *Group {
	return &Group{
		fs:  fs,
		log: log.With(slog.String("item", "Replicator")),
	}
}

// Go starts one job copying src into each of dirs.
func (g *Group) Go(src string, dirs []string) {
	if len(dirs) == 0 {
		return
	}

	targets := append([]string(nil), dirs...)

	g.wg.Add(1)
	go g.run(src, targets)
}

// Wait blocks until every job started with Go has finished.
func (g *Group) Wait() {
	g.wg.Wait()
}

func (g *Group) run(src string, dirs []string) {
	defer g.wg.Done()

	name := filepath.Base(src)
	srcDir := filepath.Clean(filepath.Dir(src))
	log := g.log.With(slog.String("src", src))

	for _, dir := range dirs {
		if filepath.Clean(dir) == srcDir {
			continue
		}

		dst := filepath.Join(dir, name)
		if err := util.CopyFile(g.fs, src, dst); err != nil {
			log.Debug("Cannot copy to secondary cache", slog.String("dst", dst), slog.Any("error", err))

			continue
		}

		log.Debug("Copied to secondary cache", slog.String("dst", dst))
	}
}
