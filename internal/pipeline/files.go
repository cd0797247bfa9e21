package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"prozorro/internal"
)

// ReadTenderFile loads one raw tender record from a JSON file.
func ReadTenderFile(path string) (internal.Raw, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tender map[string]any
	if err := json.Unmarshal(blob, &tender); err != nil {
		return nil, err
	}
	return internal.Raw(tender), nil
}

// DirSource feeds tender records from the *.json files of a directory, one
// file per record, in name order. Files are read lazily on Next.
type DirSource struct {
	paths []string
}

func NewDirSource(dir string) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)
	return &DirSource{paths: paths}, nil
}

func (s *DirSource) Next() (internal.Raw, bool, error) {
	if len(s.paths) == 0 {
		return nil, false, nil
	}
	path := s.paths[0]
	s.paths = s.paths[1:]
	tender, err := ReadTenderFile(path)
	if err != nil {
		return nil, false, err
	}
	return tender, true, nil
}

// SliceSource serves pre-loaded records, for retries and tests.
type SliceSource struct {
	tenders []internal.Raw
}

func NewSliceSource(tenders ...internal.Raw) *SliceSource {
	return &SliceSource{tenders: tenders}
}

func (s *SliceSource) Next() (internal.Raw, bool, error) {
	if len(s.tenders) == 0 {
		return nil, false, nil
	}
	tender := s.tenders[0]
	s.tenders = s.tenders[1:]
	return tender, true, nil
}
