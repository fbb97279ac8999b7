package crawler

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Archive enumerates and reads members of a fetched zip archive without
// extracting it to disk. Some chains publish archives with entries the
// standard library rejects; reads for those fall back to the external
// unzip tool transparently, so callers see one interface either way.
type Archive struct {
	data        []byte
	reader      *zip.Reader
	fallbackCmd string
}

// OpenArchive opens a zip archive held in memory.
func OpenArchive(data []byte) (*Archive, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open zip archive: %w", err)
	}
	return &Archive{data: data, reader: reader, fallbackCmd: "unzip"}, nil
}

// Members lists member names ending with suffix, in archive order.
func (a *Archive) Members(suffix string) []string {
	var names []string
	for _, f := range a.reader.File {
		if strings.HasSuffix(strings.ToLower(f.Name), strings.ToLower(suffix)) {
			names = append(names, f.Name)
		}
	}
	return names
}

// Read streams one member's content. On a standard-library extraction
// failure the external fallback path is tried before giving up.
func (a *Archive) Read(name string) ([]byte, error) {
	for _, f := range a.reader.File {
		if f.Name != name {
			continue
		}
		content, err := readMember(f)
		if err == nil {
			return content, nil
		}
		fallback, fbErr := a.fallbackRead(name)
		if fbErr != nil {
			return nil, fmt.Errorf("failed to extract %s: %w", name, err)
		}
		return fallback, nil
	}
	return nil, fmt.Errorf("no such archive member: %s", name)
}

func readMember(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// fallbackRead writes the archive to a temporary file and pipes one member
// through the external unzip tool.
func (a *Archive) fallbackRead(name string) ([]byte, error) {
	tmp, err := os.CreateTemp("", "crawler-*.zip")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := tmp.Write(a.data); err != nil {
		return nil, err
	}

	out, err := exec.Command(a.fallbackCmd, "-x", "-p", tmp.Name(), name).Output()
	if err != nil && len(out) == 0 {
		return nil, fmt.Errorf("fallback extraction failed: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("fallback extraction produced no output")
	}
	return out, nil
}
