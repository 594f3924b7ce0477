package project

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

// Store keeps projects as JSON files in a directory.
type Store struct {
	dir string
	now func() time.Time
}

func NewStore(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

func (s *Store) Dir() string { return s.dir }

// Save writes doc to a new file named project_<unix millis>.json and returns
// the file name.
func (s *Store) Save(doc Document) (string, error) {
	data, err := Marshal(doc)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", s.wrap(err, "create project dir")
	}
	base := fmt.Sprintf("project_%d", s.now().UnixMilli())
	name := base + ".json"
	for i := 1; ; i++ {
		f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			name = fmt.Sprintf("%s_%d.json", base, i)
			continue
		}
		if err != nil {
			return "", s.wrap(err, "create project file")
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", s.wrap(err, "write project file")
		}
		if err := f.Close(); err != nil {
			return "", s.wrap(err, "close project file")
		}
		return name, nil
	}
}

// List returns the saved project file names, sorted. A missing directory
// is an empty list.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, s.wrap(err, "list projects")
	}
	out := []string{}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// Load reads a project by file name. Names containing path separators are
// rejected.
func (s *Store) Load(name string) (Document, error) {
	if name == "" || filepath.Base(name) != name || name == "." || name == ".." {
		return Document{}, fault.New("invalid project name", ftag.With(KindPersistence),
			fmsg.WithDesc("invalid name", "Invalid project name."))
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return Document{}, s.wrap(err, "read project file")
	}
	return Unmarshal(data)
}

func (s *Store) wrap(err error, msg string) error {
	issue := "Could not access saved projects."
	if errors.Is(err, fs.ErrNotExist) {
		issue = "Project not found."
	}
	return fault.Wrap(err, ftag.With(KindPersistence), fmsg.WithDesc(msg, issue))
}
