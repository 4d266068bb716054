package tools

import (
	"path/filepath"
	"slices"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

const (
	DefaultMaxFilesPerBatch = 5

	// AnyExtension in AllowedExtensions disables extension filtering.
	AnyExtension = "*"
)

var DefaultAllowedExtensions = []string{".md"}

// Options configures the file tools. The zero value lists and reads relative
// to the working directory with the default extension filter and batch cap.
type Options struct {
	RootDirectory     string
	AllowedExtensions []string
	MaxFilesPerBatch  int
	IgnorePatterns    []string
}

func (o Options) withDefaults() Options {
	if o.RootDirectory == "" {
		o.RootDirectory = "."
	}
	if o.AllowedExtensions == nil {
		o.AllowedExtensions = DefaultAllowedExtensions
	}
	if o.MaxFilesPerBatch <= 0 {
		o.MaxFilesPerBatch = DefaultMaxFilesPerBatch
	}
	return o
}

// resolve maps a tool-supplied path onto base. Empty means base itself and
// absolute paths are used as given.
func resolve(base, p string) string {
	if p == "" {
		return base
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// entryFilter decides which directory entries list_directory reports.
type entryFilter struct {
	extensions []string
	ignore     *ignore.GitIgnore
}

func newEntryFilter(o Options) entryFilter {
	f := entryFilter{}
	if !slices.Contains(o.AllowedExtensions, AnyExtension) {
		for _, ext := range o.AllowedExtensions {
			ext = strings.ToLower(strings.TrimSpace(ext))
			if ext == "" {
				continue
			}
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			f.extensions = append(f.extensions, ext)
		}
	}
	if len(o.IgnorePatterns) > 0 {
		f.ignore = ignore.CompileIgnoreLines(o.IgnorePatterns...)
	}
	return f
}

func (f entryFilter) keep(name string) bool {
	if f.ignore != nil && f.ignore.MatchesPath(name) {
		return false
	}
	if len(f.extensions) == 0 {
		return true
	}
	return slices.Contains(f.extensions, strings.ToLower(filepath.Ext(name)))
}
