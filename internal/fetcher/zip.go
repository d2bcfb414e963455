package fetcher

import (
	"archive/zip"
	"io"
	"path"
	"strings"

	"github.com/rotisserie/eris"
)

// ZIPEntry describes one regular file inside an archive.
type ZIPEntry struct {
	Name string
	Size int64
}

// Ext returns the lowercase extension of the entry without the dot.
func (e ZIPEntry) Ext() string {
	return strings.TrimPrefix(strings.ToLower(path.Ext(e.Name)), ".")
}

// ListZIP returns the regular files of an archive in directory order.
func ListZIP(zipPath string) ([]ZIPEntry, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrapf(err, "zip: open archive %s", zipPath)
	}
	defer r.Close() //nolint:errcheck

	var entries []ZIPEntry
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if err := checkEntryName(f.Name); err != nil {
			return nil, err
		}
		entries = append(entries, ZIPEntry{Name: f.Name, Size: int64(f.UncompressedSize64)})
	}
	return entries, nil
}

// SingleZIPEntry returns the only entry with the given extension.
func SingleZIPEntry(zipPath, ext string) (ZIPEntry, error) {
	entries, err := ListZIP(zipPath)
	if err != nil {
		return ZIPEntry{}, err
	}

	var matched []ZIPEntry
	for _, e := range entries {
		if e.Ext() == ext {
			matched = append(matched, e)
		}
	}
	if len(matched) != 1 {
		return ZIPEntry{}, eris.Errorf("zip: expected exactly 1 .%s file in %s, got %d", ext, zipPath, len(matched))
	}
	return matched[0], nil
}

// OpenZIPEntry streams one entry without extracting it. Closing the returned
// reader closes the archive.
func OpenZIPEntry(zipPath, name string) (io.ReadCloser, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrapf(err, "zip: open archive %s", zipPath)
	}

	for _, f := range r.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			_ = r.Close()
			return nil, eris.Wrapf(err, "zip: open entry %s", name)
		}
		return &zipEntryReader{ReadCloser: rc, archive: r}, nil
	}

	_ = r.Close()
	return nil, eris.Errorf("zip: file %q not found in archive", name)
}

type zipEntryReader struct {
	io.ReadCloser
	archive *zip.ReadCloser
}

func (z *zipEntryReader) Close() error {
	entryErr := z.ReadCloser.Close()
	archiveErr := z.archive.Close()
	if entryErr != nil {
		return eris.Wrap(entryErr, "zip: close entry")
	}
	if archiveErr != nil {
		return eris.Wrap(archiveErr, "zip: close archive")
	}
	return nil
}

// checkEntryName rejects absolute and parent-relative entry names.
func checkEntryName(name string) error {
	clean := path.Clean(strings.ReplaceAll(name, "\\", "/"))
	if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return eris.Errorf("zip: illegal path %q (zip slip attempt)", name)
	}
	return nil
}
