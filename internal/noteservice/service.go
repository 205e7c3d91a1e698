package noteservice

import (
	"context"
	"log/slog"
	gopath "path"
	"strings"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/storage"
)

// NoteDetail is the full representation of a note.
type NoteDetail struct {
	Path     string        `json:"path"`
	Title    string        `json:"title"`
	Content  string        `json:"content"`
	Checksum string        `json:"checksum"`
	Tags     []string      `json:"tags"`
	Signal   models.Signal `json:"signal"`
}

// SearchPage is one page of ranked search results. Stale reports that the
// results were served from an index that could not be refreshed first, for
// example because the notes directory was temporarily unreachable.
type SearchPage struct {
	Results  []index.Hit `json:"results"`
	Total    int         `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	Stale    bool        `json:"stale,omitempty"`
}

// TagPage is one page of tag counts.
type TagPage struct {
	Tags  []index.TagCount `json:"tags"`
	Stale bool             `json:"stale,omitempty"`
}

// Service coordinates the note store, the index, and the syncer. Every read
// query pulls the index up to date first, so callers always see the current
// state of the directory without any background process.
type Service struct {
	store  storage.Provider
	db     *index.DB
	syncer *index.Syncer
	logger *slog.Logger
}

// NewService creates a new note service.
func NewService(store storage.Provider, db *index.DB, syncer *index.Syncer, logger *slog.Logger) *Service {
	return &Service{store: store, db: db, syncer: syncer, logger: logger}
}

// refresh runs a sync pass before a query. A failed pass degrades the query
// to the last indexed state instead of failing it.
func (s *Service) refresh(ctx context.Context) (stale bool) {
	if err := s.syncer.Run(ctx); err != nil {
		s.logger.Warn("serving stale index", slog.String("error", err.Error()))
		return true
	}
	return false
}

func pageToOffset(page, pageSize int) (limit, offset, p, ps int) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if page <= 0 {
		page = 1
	}
	return pageSize, (page - 1) * pageSize, page, pageSize
}

// Search syncs the index and runs a ranked full-text query over it.
func (s *Service) Search(ctx context.Context, query string, tags []string, page, pageSize int) (*SearchPage, error) {
	stale := s.refresh(ctx)
	limit, offset, p, ps := pageToOffset(page, pageSize)
	hits, total, err := s.db.Search(index.Query{Text: query, Tags: tags, Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &SearchPage{
		Results:  nonNilSlice(hits),
		Total:    total,
		Page:     p,
		PageSize: ps,
		Stale:    stale,
	}, nil
}

// ListTags syncs the index and returns every tag with its note count.
func (s *Service) ListTags(ctx context.Context) (*TagPage, error) {
	stale := s.refresh(ctx)
	tags, err := s.db.ListTags()
	if err != nil {
		return nil, err
	}
	return &TagPage{Tags: nonNilSlice(tags), Stale: stale}, nil
}

// NotesByTag syncs the index and lists notes carrying the tag, most
// recently modified first.
func (s *Service) NotesByTag(ctx context.Context, tag string, page, pageSize int) (*SearchPage, error) {
	stale := s.refresh(ctx)
	limit, offset, p, ps := pageToOffset(page, pageSize)
	hits, total, err := s.db.ListByTag(tag, limit, offset)
	if err != nil {
		return nil, err
	}
	return &SearchPage{
		Results:  nonNilSlice(hits),
		Total:    total,
		Page:     p,
		PageSize: ps,
		Stale:    stale,
	}, nil
}

// ListNotes syncs the index and returns all notes, most recently modified
// first. An empty query with no tag filter is exactly this listing.
func (s *Service) ListNotes(ctx context.Context, page, pageSize int) (*SearchPage, error) {
	return s.Search(ctx, "", nil, page, pageSize)
}

// GetNote reads a note from storage and parses it.
func (s *Service) GetNote(_ context.Context, path string) (*NoteDetail, error) {
	data, err := s.store.Read(path)
	if err != nil {
		return nil, err
	}
	return s.buildNoteDetail(path, data)
}

// CreateNote writes a new note and indexes it.
func (s *Service) CreateNote(_ context.Context, path string, content []byte) (*NoteDetail, error) {
	if _, err := s.store.Stat(path); err == nil {
		return nil, apperr.ErrAlreadyExists
	}
	if err := s.store.Write(path, content); err != nil {
		return nil, err
	}
	if err := s.syncer.NotifyChanged(path); err != nil {
		return nil, err
	}
	return s.buildNoteDetail(path, content)
}

// UpdateNote writes updated content. A non-empty ifMatch checksum must
// match the current content on disk, otherwise the update is rejected with
// apperr.ErrConflict and nothing is written.
func (s *Service) UpdateNote(_ context.Context, path string, content []byte, ifMatch string) (*NoteDetail, error) {
	existing, err := s.store.Read(path)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && ifMatch != checksum.Sum(existing) {
		return nil, apperr.ErrConflict
	}
	if err := s.store.Write(path, content); err != nil {
		return nil, err
	}
	if err := s.syncer.NotifyChanged(path); err != nil {
		return nil, err
	}
	return s.buildNoteDetail(path, content)
}

// DeleteNote removes a note from storage and the index.
func (s *Service) DeleteNote(_ context.Context, path string) error {
	if err := s.store.Delete(path); err != nil {
		return err
	}
	return s.syncer.NotifyDeleted(path)
}

// Sync runs one reconciliation pass on demand.
func (s *Service) Sync(ctx context.Context) error {
	return s.syncer.Run(ctx)
}

func (s *Service) buildNoteDetail(path string, data []byte) (*NoteDetail, error) {
	res, err := parser.Parse(data, stemOf(path))
	if err != nil {
		return nil, err
	}
	detail := &NoteDetail{
		Path:     path,
		Title:    res.Title,
		Content:  string(data),
		Checksum: checksum.Sum(data),
		Tags:     nonNilSlice(res.Tags),
	}
	if meta, err := s.store.Stat(path); err == nil {
		detail.Signal = meta.Signal
	}
	return detail, nil
}

// stemOf is the filename without directory or extension, the fallback title
// for notes with no heading.
func stemOf(path string) string {
	base := gopath.Base(path)
	return strings.TrimSuffix(base, gopath.Ext(base))
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
