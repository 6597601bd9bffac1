package fetcher

import (
	"archive/zip"
	"bytes"
	"io"
	"path"

	"github.com/rotisserie/eris"
)

// UnzipMember returns the name and contents of the first file in the
// archive whose base name matches pattern (path.Match syntax). An empty
// pattern requires the archive to hold exactly one file.
func UnzipMember(data []byte, pattern string) (string, []byte, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", nil, eris.Wrap(err, "zip: open archive")
	}

	var files []*zip.File
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if pattern == "" {
			files = append(files, f)
			continue
		}
		ok, err := path.Match(pattern, path.Base(f.Name))
		if err != nil {
			return "", nil, eris.Wrapf(err, "zip: bad pattern %q", pattern)
		}
		if ok {
			files = append(files, f)
			break
		}
	}

	switch {
	case len(files) == 0 && pattern != "":
		return "", nil, eris.Errorf("zip: no member matches %q", pattern)
	case pattern == "" && len(files) != 1:
		return "", nil, eris.Errorf("zip: expected exactly 1 file, got %d", len(files))
	}

	rc, err := files[0].Open()
	if err != nil {
		return "", nil, eris.Wrap(err, "zip: open entry")
	}
	defer rc.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(rc, DefaultMaxBody))
	if err != nil {
		return "", nil, eris.Wrap(err, "zip: read entry")
	}
	return files[0].Name, body, nil
}
