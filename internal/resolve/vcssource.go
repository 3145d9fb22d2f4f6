package resolve

import (
	"path/filepath"

	"github.com/Masterminds/vcs"
	"github.com/pkg/errors"
)

// GitSource wraps a git-backed SourceId with the ability to resolve a ref
// (branch/tag/rev) to a precise commit, matching gps's vcs_source.go/
// vcs_repo.go wrapping of Masterminds/vcs's vcs.Repo. The resulting Precise
// commit becomes part of lockfile identity per spec.md §3.
type GitSource struct {
	id   SourceId
	repo vcs.Repo
}

// NewGitSource opens (cloning into cacheDir if necessary) the git repo at
// id.URL and returns a GitSource able to resolve id.Ref to a precise
// commit.
func NewGitSource(id SourceId, cacheDir string) (*GitSource, error) {
	if id.Kind != SourceGit {
		return nil, errors.Errorf("NewGitSource: source %s is not a git source", id.Describe())
	}
	local := filepath.Join(cacheDir, "git", sanitizeForPath(id.URL))
	repo, err := vcs.NewGitRepo(id.URL, local)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to set up git source %s", id.URL)
	}
	if !repo.CheckLocal() {
		if err := repo.Get(); err != nil {
			return nil, errors.Wrapf(err, "failed to clone git source %s", id.URL)
		}
	}
	return &GitSource{id: id, repo: repo}, nil
}

// Precise resolves the source's Ref (or HEAD, if Ref is empty) to an exact
// commit hash, updating the local mirror first.
func (g *GitSource) Precise() (string, error) {
	if err := g.repo.Update(); err != nil {
		return "", errors.Wrapf(err, "failed to update git source %s", g.id.URL)
	}
	if g.id.Ref != "" {
		if err := g.repo.UpdateVersion(g.id.Ref); err != nil {
			return "", errors.Wrapf(err, "failed to checkout ref %q of %s", g.id.Ref, g.id.URL)
		}
	}
	rev, err := g.repo.Version()
	if err != nil {
		return "", errors.Wrapf(err, "failed to read current revision of %s", g.id.URL)
	}
	return rev, nil
}

// Describe returns a human-readable description, used by RegistryFacade.Describe.
func (g *GitSource) Describe() string {
	return g.id.Describe()
}

func sanitizeForPath(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			out = append(out, c)
		default:
			out = append(out, '-')
		}
	}
	return string(out)
}
