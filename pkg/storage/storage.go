// Package storage persists crawl results on disk: per-book chapter files
// and the catalog structure. Chapters are stored as individually
// inspectable title/content file pairs so incremental downloads can skip
// what already exists.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/epubforge/novelcrawl/pkg/catalog"
	"github.com/epubforge/novelcrawl/pkg/logging"
)

// Store manages the on-disk layout for one book:
//
//	<baseDir>/chapters/<bookID>/<n>_title.txt
//	<baseDir>/chapters/<bookID>/<n>_content.md
//	<baseDir>/books/<bookID>_structure.json
//	<baseDir>/books/<bookID>_catalog.html
type Store struct {
	bookID      string
	chaptersDir string
	booksDir    string
	logger      zerolog.Logger
}

// NewStore creates the storage directories for a book.
func NewStore(baseDir, bookID string) (*Store, error) {
	if bookID == "" {
		return nil, fmt.Errorf("book id is required")
	}

	chaptersDir := filepath.Join(baseDir, "chapters", bookID)
	booksDir := filepath.Join(baseDir, "books")
	for _, dir := range []string{chaptersDir, booksDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	return &Store{
		bookID:      bookID,
		chaptersDir: chaptersDir,
		booksDir:    booksDir,
		logger:      logging.NewLogger("storage"),
	}, nil
}

// SaveChapter writes a chapter's title and content files.
func (s *Store) SaveChapter(index int, title, content string) error {
	if err := os.WriteFile(s.titlePath(index), []byte(title), 0o644); err != nil {
		return fmt.Errorf("write chapter title: %w", err)
	}
	if err := os.WriteFile(s.contentPath(index), []byte(content), 0o644); err != nil {
		return fmt.Errorf("write chapter content: %w", err)
	}
	s.logger.Debug().
		Str("book_id", s.bookID).
		Int("index", index).
		Msg("Saved chapter")
	return nil
}

// LoadChapter reads a stored chapter back. The error satisfies
// errors.Is(err, os.ErrNotExist) when the chapter has not been saved.
func (s *Store) LoadChapter(index int) (string, string, error) {
	title, err := os.ReadFile(s.titlePath(index))
	if err != nil {
		return "", "", fmt.Errorf("read chapter title: %w", err)
	}
	content, err := os.ReadFile(s.contentPath(index))
	if err != nil {
		return "", "", fmt.Errorf("read chapter content: %w", err)
	}
	return string(title), string(content), nil
}

// HasChapter reports whether both chapter files exist, enabling incremental
// downloads.
func (s *Store) HasChapter(index int) bool {
	for _, path := range []string{s.titlePath(index), s.contentPath(index)} {
		if _, err := os.Stat(path); err != nil {
			return false
		}
	}
	return true
}

// SaveStructure persists the catalog structure as JSON.
func (s *Store) SaveStructure(book *catalog.Book) error {
	data, err := json.MarshalIndent(book, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal book structure: %w", err)
	}
	if err := os.WriteFile(s.structurePath(), data, 0o644); err != nil {
		return fmt.Errorf("write book structure: %w", err)
	}
	s.logger.Info().
		Str("book_id", s.bookID).
		Int("chapters", book.ChapterCount()).
		Int("unresolved", book.UnresolvedCount()).
		Msg("Saved book structure")
	return nil
}

// LoadStructure reads a previously saved catalog structure.
func (s *Store) LoadStructure() (*catalog.Book, error) {
	data, err := os.ReadFile(s.structurePath())
	if err != nil {
		return nil, fmt.Errorf("read book structure: %w", err)
	}
	var book catalog.Book
	if err := json.Unmarshal(data, &book); err != nil {
		return nil, fmt.Errorf("unmarshal book structure: %w", err)
	}
	return &book, nil
}

// SaveCatalogHTML keeps a raw copy of the catalog page for later debugging
// and structure comparison.
func (s *Store) SaveCatalogHTML(htmlContent string) error {
	path := filepath.Join(s.booksDir, s.bookID+"_catalog.html")
	if err := os.WriteFile(path, []byte(htmlContent), 0o644); err != nil {
		return fmt.Errorf("write catalog copy: %w", err)
	}
	return nil
}

func (s *Store) titlePath(index int) string {
	return filepath.Join(s.chaptersDir, fmt.Sprintf("%d_title.txt", index))
}

func (s *Store) contentPath(index int) string {
	return filepath.Join(s.chaptersDir, fmt.Sprintf("%d_content.md", index))
}

func (s *Store) structurePath() string {
	return filepath.Join(s.booksDir, s.bookID+"_structure.json")
}
