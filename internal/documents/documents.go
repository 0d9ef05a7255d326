// Package documents selects the CV and cover letter for an application and
// copies them out of the store for upload.
package documents

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/spigell/job-autopilot/internal/storage"
)

type Type string

const (
	TypeCV          Type = "cv"
	TypeCoverLetter Type = "cover_letter"
)

type Document struct {
	ID          string    `json:"id"`
	Type        Type      `json:"type"`
	JobID       string    `json:"jobId,omitempty"`
	StorageKey  string    `json:"storageKey"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Index struct {
	Documents []Document `json:"documents"`
}

// Selection is the pair of documents chosen for one job. Either may be nil.
type Selection struct {
	CV          *Document
	CoverLetter *Document
}

// Files are local copies of a Selection.
type Files struct {
	CV          string
	CoverLetter string
}

// Paths lists the non-empty file paths.
func (f Files) Paths() []string {
	var out []string
	for _, p := range []string{f.CV, f.CoverLetter} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

type Service struct {
	store storage.Store
	local afero.Fs
	now   func() time.Time
}

// New returns a service that materializes into local.
func New(store storage.Store, local afero.Fs) *Service {
	if local == nil {
		local = afero.NewOsFs()
	}
	return &Service{store: store, local: local, now: time.Now}
}

func (s *Service) List(ctx context.Context, userID string) ([]Document, error) {
	idx, err := storage.LoadOr(ctx, s.store, storage.DocumentIndexKey(userID), Index{})
	if err != nil {
		return nil, fmt.Errorf("load document index: %w", err)
	}
	return idx.Documents, nil
}

// Add uploads data and records it in the index. An empty jobID makes it a
// general document.
func (s *Service) Add(ctx context.Context, userID string, typ Type, jobID, fileName, contentType string, data []byte) (Document, error) {
	doc := Document{
		ID:          uuid.NewString(),
		Type:        typ,
		JobID:       jobID,
		FileName:    path.Base(fileName),
		ContentType: contentType,
		CreatedAt:   s.now().UTC(),
	}
	doc.StorageKey = path.Join(storage.UsersPrefix+userID, "documents", doc.ID+path.Ext(doc.FileName))

	if err := s.store.UploadFile(ctx, doc.StorageKey, data, contentType); err != nil {
		return Document{}, fmt.Errorf("upload %s: %w", doc.FileName, err)
	}
	err := storage.Update(ctx, s.store, storage.DocumentIndexKey(userID), func(idx *Index) error {
		idx.Documents = append(idx.Documents, doc)
		return nil
	})
	if err != nil {
		return Document{}, fmt.Errorf("update document index: %w", err)
	}
	return doc, nil
}

// Select picks the job-specific CV, falling back to the newest general CV,
// and the job-specific cover letter if any.
func (s *Service) Select(ctx context.Context, userID, jobID string) (Selection, error) {
	docs, err := s.List(ctx, userID)
	if err != nil {
		return Selection{}, err
	}
	return choose(docs, jobID), nil
}

func choose(docs []Document, jobID string) Selection {
	sorted := append([]Document(nil), docs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt.After(sorted[j].CreatedAt) })

	var sel Selection
	var general *Document
	for i := range sorted {
		d := &sorted[i]
		switch {
		case d.Type == TypeCV && jobID != "" && d.JobID == jobID && sel.CV == nil:
			sel.CV = d
		case d.Type == TypeCV && d.JobID == "" && general == nil:
			general = d
		case d.Type == TypeCoverLetter && jobID != "" && d.JobID == jobID && sel.CoverLetter == nil:
			sel.CoverLetter = d
		}
	}
	if sel.CV == nil {
		sel.CV = general
	}
	return sel
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Materialize downloads the selection into dir.
func (s *Service) Materialize(ctx context.Context, sel Selection, dir string) (Files, error) {
	var files Files
	var err error

	if sel.CV != nil {
		if files.CV, err = s.download(ctx, *sel.CV, dir, "cv"); err != nil {
			return files, err
		}
	}
	if sel.CoverLetter != nil {
		if files.CoverLetter, err = s.download(ctx, *sel.CoverLetter, dir, "cover-letter"); err != nil {
			return files, err
		}
	}
	return files, nil
}

func (s *Service) download(ctx context.Context, d Document, dir, fallback string) (string, error) {
	data, err := s.store.DownloadFile(ctx, d.StorageKey)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", d.StorageKey, err)
	}

	name := strings.Trim(unsafeName.ReplaceAllString(d.FileName, "_"), "_.")
	if name == "" {
		name = fallback + path.Ext(d.StorageKey)
	}
	dst := filepath.Join(dir, name)
	if err := afero.WriteFile(s.local, dst, data, 0o600); err != nil {
		return "", fmt.Errorf("write %s: %w", dst, err)
	}
	return dst, nil
}
