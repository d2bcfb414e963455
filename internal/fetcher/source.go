package fetcher

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prg-convert/internal/prgerr"
)

// Source is a re-openable input document: a plain file or one entry of a ZIP archive.
type Source struct {
	Path  string // file on disk
	Entry string // entry name inside the archive at Path; empty for plain files
	Size  int64  // uncompressed size in bytes
}

// Open returns a fresh reader positioned at the start of the document.
// It may be called any number of times.
func (s Source) Open() (io.ReadCloser, error) {
	if s.Entry != "" {
		return OpenZIPEntry(s.Path, s.Entry)
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "source: open %s", s.Path)
	}
	return f, nil
}

func (s Source) String() string {
	if s.Entry != "" {
		return s.Path + "!" + s.Entry
	}
	return s.Path
}

// Resolution is the outcome of ResolveInputs. Skipped lists archive entries
// whose extension did not match.
type Resolution struct {
	Sources []Source
	Skipped []Source
}

// Bytes returns the total uncompressed size of the selected sources.
func (r Resolution) Bytes() int64 {
	var n int64
	for _, s := range r.Sources {
		n += s.Size
	}
	return n
}

// ResolveInputs expands glob patterns into sources. Plain files must end in
// .xml or .gml; ZIP archives contribute every entry whose extension equals
// entryExt. Patterns are processed in order and matches are kept in the order
// the glob returns them.
func ResolveInputs(patterns []string, entryExt string) (Resolution, error) {
	var res Resolution
	if len(patterns) == 0 {
		return res, prgerr.Unsupported("source: no input paths given")
	}

	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return res, prgerr.Unsupported("source: bad glob pattern %q: %v", pattern, err)
		}
		if len(matches) == 0 {
			return res, prgerr.Unsupported("source: no files match %q", pattern)
		}

		for _, p := range matches {
			info, err := os.Stat(p)
			if err != nil {
				return res, eris.Wrapf(err, "source: stat %s", p)
			}
			if info.IsDir() {
				return res, prgerr.Unsupported("source: input path %q is a directory, expected a file", p)
			}

			switch ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(p)), "."); ext {
			case "xml", "gml":
				res.Sources = append(res.Sources, Source{Path: p, Size: info.Size()})
			case "zip":
				entries, err := ListZIP(p)
				if err != nil {
					return res, prgerr.New(prgerr.MalformedInput, err)
				}
				for _, e := range entries {
					src := Source{Path: p, Entry: e.Name, Size: e.Size}
					if e.Ext() == entryExt {
						res.Sources = append(res.Sources, src)
					} else {
						res.Skipped = append(res.Skipped, src)
					}
				}
			default:
				return res, prgerr.Unsupported("source: file extension of %q not one of: zip, xml, gml", p)
			}
		}
	}

	if len(res.Sources) == 0 {
		return res, prgerr.Unsupported("source: no .%s documents found in inputs", entryExt)
	}
	return res, nil
}
