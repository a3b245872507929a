package storage

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
)

// Filter narrows the DDL files picked from a directory listing.
type Filter struct {
	Prefix string
	Suffix string
	Tables []string
}

// Match reports whether a file name passes the filter. With a table list,
// only <prefix><table><suffix> names match.
func (f Filter) Match(name string) bool {
	if !strings.HasPrefix(name, f.Prefix) || !strings.HasSuffix(name, f.Suffix) {
		return false
	}
	if len(f.Tables) == 0 {
		return true
	}
	for _, t := range f.Tables {
		if strings.EqualFold(name, f.Prefix+t+f.Suffix) {
			return true
		}
	}
	return false
}

// Service reads DDL files and metadata documents and writes results through afs,
// so local paths, mem:// and s3:// URLs are handled alike.
type Service struct {
	fs afs.Service
}

func New(fs afs.Service) *Service {
	if fs == nil {
		fs = afs.New()
	}
	return &Service{fs: fs}
}

func (s *Service) Download(ctx context.Context, URL string) ([]byte, error) {
	data, err := s.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", URL, err)
	}
	return data, nil
}

func (s *Service) Upload(ctx context.Context, URL string, data []byte) error {
	if err := s.fs.Upload(ctx, URL, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to upload %s: %w", URL, err)
	}
	return nil
}

func (s *Service) Exists(ctx context.Context, URL string) (bool, error) {
	return s.fs.Exists(ctx, URL)
}

// ListDDL expands paths into the sorted list of DDL file URLs to process.
// File paths are taken as they are; directories are listed and filtered.
func (s *Service) ListDDL(ctx context.Context, paths []string, filter Filter) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, p := range paths {
		object, err := s.fs.Object(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", p, err)
		}
		if !object.IsDir() {
			if !seen[object.URL()] {
				seen[object.URL()] = true
				files = append(files, object.URL())
			}
			continue
		}
		objects, err := s.fs.List(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", p, err)
		}
		for _, o := range objects {
			if o.IsDir() || !filter.Match(o.Name()) || seen[o.URL()] {
				continue
			}
			seen[o.URL()] = true
			files = append(files, o.URL())
		}
	}
	sort.Strings(files)
	return files, nil
}

// BaseName returns the file name part of a URL.
func BaseName(URL string) string {
	_, name := url.Split(URL, file.Scheme)
	return name
}
