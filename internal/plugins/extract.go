package plugins

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/ethanolivertroy/plugin-vuln-checker/internal/models"
)

// VersionMarker precedes the version in a plugin's descriptor header.
const VersionMarker = "Version:"

// DefaultDescriptorExt is the extension of a plugin's main source file.
const DefaultDescriptorExt = ".php"

const maxLineSize = 1 << 20

// DescriptorPath returns the descriptor file for the plugin in dir: the
// directory's base name plus ext.
func DescriptorPath(dir, ext string) string {
	if ext == "" {
		ext = DefaultDescriptorExt
	}
	return path.Join(dir, path.Base(dir)+ext)
}

// ExtractVersion reads the declared version of the plugin installed in dir.
// It returns the trimmed text after the first "Version:" marker in the
// descriptor. A missing descriptor, marker or value yields models.UnknownVersion
// and no error; read failures yield models.UnknownVersion and the error.
func ExtractVersion(fsys fs.FS, dir, ext string) (string, error) {
	descriptor := DescriptorPath(dir, ext)

	f, err := fsys.Open(descriptor)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.UnknownVersion, nil
		}
		return models.UnknownVersion, fmt.Errorf("open descriptor: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return models.UnknownVersion, fmt.Errorf("stat descriptor %s: %w", descriptor, err)
	}
	if info.IsDir() {
		return models.UnknownVersion, nil
	}

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		line := sc.Text()
		if _, after, found := strings.Cut(line, VersionMarker); found {
			if v := strings.TrimSpace(after); v != "" {
				return v, nil
			}
			return models.UnknownVersion, nil
		}
	}
	if err := sc.Err(); err != nil {
		return models.UnknownVersion, fmt.Errorf("read descriptor %s: %w", descriptor, err)
	}

	return models.UnknownVersion, nil
}
