package pack

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/auziqni/learn-shimeji-sub000/internal/altfmt"
	"github.com/auziqni/learn-shimeji-sub000/internal/logging"
	"github.com/auziqni/learn-shimeji-sub000/internal/observe"
)

// Loader validates and loads every pack under an assets directory.
type Loader struct {
	log     *logrus.Entry
	metrics *observe.Metrics

	// WriteDerived controls whether a conf/data.json snapshot is written
	// for packs that validated clean and have none yet. Hand-edited
	// files are never overwritten.
	WriteDerived bool
}

// NewLoader builds a loader. log and metrics may be nil.
func NewLoader(log *logrus.Entry, metrics *observe.Metrics) *Loader {
	if log == nil {
		log = logging.Discard()
	}
	return &Loader{log: log, metrics: metrics}
}

// Discover lists the pack directories directly under assetsDir, sorted by
// name. Hidden directories and plain files are skipped.
func Discover(assetsDir string) ([]string, error) {
	entries, err := os.ReadDir(assetsDir)
	if err != nil {
		return nil, fmt.Errorf("reading assets directory: %w", err)
	}
	var dirs []string
	for _, e := range entries {
		if !e.IsDir() || e.Name()[0] == '.' {
			continue
		}
		dirs = append(dirs, filepath.Join(assetsDir, e.Name()))
	}
	sort.Strings(dirs)
	return dirs, nil
}

// LoadAll validates every pack under assetsDir concurrently. One broken
// pack never blocks the rest; its Validation carries the failure. Results
// come back sorted by pack name.
func (l *Loader) LoadAll(ctx context.Context, assetsDir string) ([]*Validation, error) {
	dirs, err := Discover(assetsDir)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	results := make([]*Validation, 0, len(dirs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, dir := range dirs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			v := l.loadOne(ctx, dir)
			mu.Lock()
			results = append(results, v)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return results, nil
}

func (l *Loader) loadOne(ctx context.Context, dir string) *Validation {
	v := Validate(dir)
	log := l.log.WithFields(logrus.Fields{"pack": v.Name, "status": v.Status})

	switch v.Status {
	case StatusBroken:
		log.WithField("errors", v.Errors).Warn("pack unusable")
	case StatusPartial:
		log.WithFields(logrus.Fields{
			"warnings": len(v.Warnings),
			"missing":  v.MissingTotal,
		}).Info("pack loaded with issues")
	default:
		log.WithFields(logrus.Fields{
			"actions":   len(v.Set.Actions),
			"behaviors": len(v.Set.Behaviors),
		}).Info("pack loaded")
	}
	l.metrics.AddPackLoaded(ctx, string(v.Status))

	if l.WriteDerived && v.Set != nil {
		derived := filepath.Join(dir, "conf", "data.json")
		wrote, err := altfmt.WriteFile(derived, v.Set)
		if err != nil {
			log.WithError(err).Warn("could not write derived descriptor")
		} else if wrote {
			log.WithField("file", derived).Debug("wrote derived descriptor")
		}
	}
	return v
}

// FindAssetsDir resolves the assets directory: an explicit path wins,
// otherwise the search walks up from startDir looking for an "assets"
// folder, the same way project-local state is usually found.
func FindAssetsDir(explicit, startDir string) (string, error) {
	if explicit != "" {
		info, err := os.Stat(explicit)
		if err != nil || !info.IsDir() {
			return "", fmt.Errorf("assets directory not found: %s", explicit)
		}
		return explicit, nil
	}

	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, "assets")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("no assets directory found above %s", startDir)
}
