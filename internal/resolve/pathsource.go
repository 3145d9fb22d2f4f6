package resolve

import (
	"os"
	"path/filepath"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"
)

// PathSource discovers the set of manifest files reachable from a local
// SourceId's root directory — used to enumerate workspace members declared
// as `path = "..."` dependencies. The teacher vendors godirwalk for gps's
// own filesystem scanning (gps/filesystem.go); SPEC_FULL.md gives it an
// analogous job here: fast recursive directory walking without the extra
// allocation os.ReadDir/filepath.Walk impose for large trees.
type PathSource struct {
	id SourceId
}

// NewPathSource constructs a PathSource for a Path SourceId.
func NewPathSource(id SourceId) (*PathSource, error) {
	if id.Kind != SourcePath {
		return nil, errors.Errorf("NewPathSource: source %s is not a path source", id.Describe())
	}
	return &PathSource{id: id}, nil
}

// manifestFileName is the filename a package manifest is expected under.
const manifestFileName = "Cargo.toml"

// FindManifests walks the source's root directory and returns the
// directories containing a manifest file, skipping common
// build/vendor/VCS directories to keep the walk fast on large trees.
func (p *PathSource) FindManifests() ([]string, error) {
	var found []string
	root := p.id.URL

	err := godirwalk.Walk(root, &godirwalk.Options{
		Unsorted: false,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				switch filepath.Base(path) {
				case "target", "vendor", ".git", "node_modules":
					return filepath.SkipDir
				}
				return nil
			}
			if filepath.Base(path) == manifestFileName {
				found = append(found, filepath.Dir(path))
			}
			return nil
		},
		ErrorCallback: func(path string, err error) godirwalk.ErrorAction {
			if os.IsPermission(err) {
				return godirwalk.SkipNode
			}
			return godirwalk.Halt
		},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to walk path source %s", root)
	}
	return found, nil
}

// Describe implements the description half of RegistryFacade for path
// sources.
func (p *PathSource) Describe() string {
	return p.id.Describe()
}
