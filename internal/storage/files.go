package storage

import (
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"

	"github.com/schollz/pyroshow/internal/types"
)

// Save writes the show to path. Paths ending in .gz are gzip-compressed.
// The file is replaced atomically.
func Save(path string, show *types.Show) error {
	data, err := Encode(show)
	if err != nil {
		return err
	}
	if strings.HasSuffix(path, ".gz") {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		if _, err := gz.Write(data); err != nil {
			return fault.Wrap(err, fmsg.With("compress show"))
		}
		if err := gz.Close(); err != nil {
			return fault.Wrap(err, fmsg.With("compress show"))
		}
		data = buf.Bytes()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fault.Wrap(err, fmsg.With("create show folder"))
	}
	tmp, err := os.CreateTemp(dir, ".pyroshow-*")
	if err != nil {
		return fault.Wrap(err, fmsg.With("create temp show file"))
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fault.Wrap(err, fmsg.With("write show file"))
	}
	if err := tmp.Close(); err != nil {
		return fault.Wrap(err, fmsg.With("write show file"))
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fault.Wrap(err, fmsg.With("replace show file"))
	}
	return nil
}

// ReadFile returns the raw document bytes, decompressing .gz files.
func ReadFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("open show file"))
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fault.Wrap(err, fmsg.With("decompress show file"))
		}
		defer gz.Close()
		r = gz
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("read show file"))
	}
	return data, nil
}

// Load reads and decodes a show file without validating it.
func Load(path string) (*types.Show, error) {
	data, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

var audioExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".flac": true,
	".ogg":  true,
}

// IsAudioFile reports whether name has a decodable extension.
func IsAudioFile(name string) bool {
	return audioExtensions[strings.ToLower(filepath.Ext(name))]
}

// AudioFiles lists decodable files in dir, sorted by name. A missing
// directory yields an empty list.
func AudioFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return []string{}
	}
	files := []string{}
	for _, e := range entries {
		if !e.IsDir() && IsAudioFile(e.Name()) {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files
}
