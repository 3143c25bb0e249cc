package capture

import (
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/dispensing-api/internal/model"
)

// Source tells how an artifact entered the store.
type Source string

const (
	SourceCamera Source = "camera"
	SourceUpload Source = "upload"
)

// Artifact is one captured or uploaded document. Data is the raw file, Preview
// a data URL of it.
type Artifact struct {
	ID          string
	Category    model.Category
	Source      Source
	FileName    string
	ContentType string
	Width       int
	Height      int
	Data        []byte
	Preview     string
	CreatedAt   time.Time
}

// Store keeps the artifacts of one capture session by category. MSD keeps an
// ordered list, every other category at most one artifact. Not safe for
// concurrent use.
type Store struct {
	items map[model.Category][]*Artifact
}

func NewStore() *Store {
	return &Store{items: make(map[model.Category][]*Artifact)}
}

// Put stores a, appending for MSD and replacing otherwise.
func (s *Store) Put(a *Artifact) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Category.Multiple() {
		s.items[a.Category] = append(s.items[a.Category], a)
		return
	}
	s.items[a.Category] = []*Artifact{a}
}

// Get returns the artifacts of a category in insertion order.
func (s *Store) Get(c model.Category) []*Artifact {
	return s.items[c]
}

func (s *Store) Count(c model.Category) int {
	return len(s.items[c])
}

// Remove drops every artifact of a category.
func (s *Store) Remove(c model.Category) {
	delete(s.items, c)
}

// RemoveAt drops one artifact of a category keeping the others in order.
func (s *Store) RemoveAt(c model.Category, index int) error {
	list := s.items[c]
	if index < 0 || index >= len(list) {
		return ErrArtifactNotFound
	}

	rest := make([]*Artifact, 0, len(list)-1)
	rest = append(rest, list[:index]...)
	rest = append(rest, list[index+1:]...)
	if len(rest) == 0 {
		delete(s.items, c)
		return nil
	}
	s.items[c] = rest
	return nil
}

// Missing returns the mandatory categories that hold nothing.
func (s *Store) Missing() []model.Category {
	var missing []model.Category
	for _, c := range model.MandatoryCategories {
		if len(s.items[c]) == 0 {
			missing = append(missing, c)
		}
	}
	return missing
}

// Len is the total number of artifacts.
func (s *Store) Len() int {
	n := 0
	for _, list := range s.items {
		n += len(list)
	}
	return n
}

func (s *Store) Clear() {
	s.items = make(map[model.Category][]*Artifact)
}

// Files flattens the store in category display order.
func (s *Store) Files() []model.SubmissionFile {
	var files []model.SubmissionFile
	for _, c := range model.Categories {
		for i, a := range s.items[c] {
			data := make([]byte, len(a.Data))
			copy(data, a.Data)
			files = append(files, model.SubmissionFile{
				Category:    c,
				Position:    i,
				FileName:    a.FileName,
				ContentType: a.ContentType,
				Width:       a.Width,
				Height:      a.Height,
				Data:        data,
			})
		}
	}
	return files
}
