package remix

import (
	"regexp"
	"strings"
)

// Anchored so lookalike hosts (evilgithub.com) do not pass.
var repoURLPattern = regexp.MustCompile(`^(?:https?://)?(?:www\.)?github\.com/([^/]+)/([^/\s?#]+)`)

// RepoRef identifies a repository by owner and name.
type RepoRef struct {
	Owner string
	Name  string
}

func (r RepoRef) String() string {
	return r.Owner + "/" + r.Name
}

// ParseRepoURL extracts owner and name from a GitHub repository URL.
// Accepts https URLs with or without a trailing .git suffix.
func ParseRepoURL(rawURL string) (RepoRef, error) {
	matches := repoURLPattern.FindStringSubmatch(strings.TrimSpace(rawURL))
	if matches == nil {
		return RepoRef{}, ErrInvalidRepoURL
	}

	name := strings.TrimSuffix(matches[2], ".git")
	name = strings.TrimSuffix(name, "/")
	if name == "" {
		return RepoRef{}, ErrInvalidRepoURL
	}

	return RepoRef{Owner: matches[1], Name: name}, nil
}
