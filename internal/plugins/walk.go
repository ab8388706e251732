// Package plugins discovers CMS site roots under a directory tree, lists
// their plugin installations and reads installed plugin versions.
package plugins

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ethanolivertroy/plugin-vuln-checker/internal/models"
)

// PluginsSubdir is the path, relative to a site root, of its plugins directory.
const PluginsSubdir = "wp-content/plugins"

// Site is one discovered site root.
type Site struct {
	Name       string // Slash-separated path relative to the scan root
	Dir        string // fs.FS path of the site root
	PluginsDir string // fs.FS path of the plugins directory
}

// Walker finds sites and plugin installations in FS.
type Walker struct {
	FS fs.FS

	// Base is the OS path FS is rooted at. It is joined with fs.FS paths
	// to build PluginInstallation.Path and names the site when the root
	// itself is a site.
	Base string
}

// NewWalker returns a Walker over the OS directory root.
func NewWalker(root string) Walker {
	return Walker{FS: os.DirFS(root), Base: root}
}

// Sites walks the whole tree and yields every site root found, at any
// depth. A site's plugins directory is never searched for further sites.
// Directories that cannot be read yield an error and the walk continues.
// Symbolic links to directories are not followed. The order of sites is
// unspecified.
func (w Walker) Sites(ctx context.Context) iter.Seq2[Site, error] {
	return func(yield func(Site, error) bool) {
		stack := []string{"."}
		skip := make(map[string]bool)

		for len(stack) > 0 {
			if err := ctx.Err(); err != nil {
				yield(Site{}, err)
				return
			}

			dir := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			site, isSite, err := w.siteAt(dir)
			if err != nil {
				if !yield(Site{}, err) {
					return
				}
			}
			if isSite {
				skip[site.PluginsDir] = true
				if !yield(site, nil) {
					return
				}
			}

			entries, err := fs.ReadDir(w.FS, dir)
			if err != nil {
				if !yield(Site{}, fmt.Errorf("read dir %s: %w", w.osPath(dir), err)) {
					return
				}
				continue
			}

			// push in reverse so directories pop in lexical order
			for i := len(entries) - 1; i >= 0; i-- {
				e := entries[i]
				if !e.IsDir() {
					continue
				}
				child := path.Join(dir, e.Name())
				if skip[child] {
					continue
				}
				stack = append(stack, child)
			}
		}
	}
}

func (w Walker) siteAt(dir string) (Site, bool, error) {
	plugins := path.Join(dir, PluginsSubdir)
	info, err := fs.Stat(w.FS, plugins)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
			return Site{}, false, nil
		}
		return Site{}, false, fmt.Errorf("stat %s: %w", w.osPath(plugins), err)
	}
	if !info.IsDir() {
		return Site{}, false, nil
	}
	return Site{Name: w.siteName(dir), Dir: dir, PluginsDir: plugins}, true, nil
}

func (w Walker) siteName(dir string) string {
	if dir != "." {
		return dir
	}
	if w.Base == "" {
		return "."
	}
	if abs, err := filepath.Abs(w.Base); err == nil {
		return filepath.Base(abs)
	}
	return filepath.Base(w.Base)
}

// Installation is a plugin installation together with its fs.FS path.
type Installation struct {
	models.PluginInstallation
	Dir string
}

// Installations lists every immediate subdirectory of the site's plugins
// directory. Versions are left empty for the caller to extract.
func (w Walker) Installations(site Site) ([]Installation, error) {
	entries, err := fs.ReadDir(w.FS, site.PluginsDir)
	if err != nil {
		return nil, fmt.Errorf("read plugins dir %s: %w", w.osPath(site.PluginsDir), err)
	}

	var installs []Installation
	for _, e := range entries {
		p := path.Join(site.PluginsDir, e.Name())
		if !e.IsDir() {
			if e.Type()&fs.ModeSymlink == 0 {
				continue
			}
			// a linked plugin counts when its target is a directory
			info, err := fs.Stat(w.FS, p)
			if err != nil || !info.IsDir() {
				continue
			}
		}
		installs = append(installs, Installation{
			PluginInstallation: models.PluginInstallation{
				Path:     w.osPath(p),
				SiteName: site.Name,
				Slug:     Slug(e.Name()),
			},
			Dir: p,
		})
	}
	return installs, nil
}

func (w Walker) osPath(p string) string {
	if w.Base == "" {
		return p
	}
	return filepath.Join(w.Base, filepath.FromSlash(p))
}

// Slug case-folds a plugin directory or threat slug for matching.
func Slug(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
