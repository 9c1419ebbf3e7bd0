// Package source resolves where a recipe and its template files live and
// makes them available as a local directory.
package source

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

// Location is a parsed recipe or template reference.
type Location struct {
	Raw string

	// Remote is true for http(s) references that must be cloned.
	Remote bool

	// CloneURL is the repository to clone (remote only).
	CloneURL string

	// Branch to check out after cloning; empty keeps the default branch.
	Branch string

	// File is the recipe path relative to the repository root (remote only).
	File string

	// Ref is the "<branch>/<path>" remainder of a GitHub URL. Branch names may
	// contain slashes, so the split is settled against the clone.
	Ref string
}

// IsURL reports whether raw is an http(s) reference.
func IsURL(raw string) bool {
	return strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://")
}

// Parse interprets raw. Local paths are returned as is.
//
// Remote references:
//   - raw.githubusercontent.com/<owner>/<repo>/<branch>/<file>
//   - github.com/<owner>/<repo>/(blob|tree|raw)/<branch>/<file>
//     clone https://github.com/<owner>/<repo>.git and check out <branch>.
//     Branch is taken as the first segment and File as the rest until the
//     clone shows a longer branch name (see Fetcher).
//   - any other URL clones defaultRepo; the branch is the path segment
//     between defaultRepo's name and the file name, if present.
func Parse(raw, defaultRepo string) Location {
	raw = strings.TrimSpace(raw)
	if !IsURL(raw) {
		return Location{Raw: raw}
	}

	loc := Location{Raw: raw, Remote: true}
	if owner, repo, rest, ok := parseGitHub(raw); ok {
		loc.CloneURL = "https://github.com/" + owner + "/" + repo + ".git"
		loc.Ref = rest
		loc.Branch, loc.File = splitRef(rest, 1)
		return loc
	}

	loc.CloneURL = defaultRepo
	loc.File = fileName(raw)
	loc.Branch = ExtractBranch(raw, RepoName(defaultRepo), loc.File)
	return loc
}

// ExtractBranch returns the path segment(s) between repoName and file in raw.
// Example: ".../sigbit-rails-template/feature-x/template.rb" -> "feature-x".
func ExtractBranch(raw, repoName, file string) string {
	if repoName == "" || file == "" {
		return ""
	}
	re := regexp.MustCompile(regexp.QuoteMeta(repoName) + `/(.+)/` + regexp.QuoteMeta(file))
	m := re.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	return m[1]
}

// RepoName returns the repository name of a clone URL.
// "https://github.com/o/sigbit-rails-template.git" -> "sigbit-rails-template"
func RepoName(cloneURL string) string {
	s := strings.TrimSuffix(strings.TrimRight(cloneURL, "/"), ".git")
	if i := strings.LastIndexAny(s, "/:"); i >= 0 {
		s = s[i+1:]
	}
	return s
}

// validNamePattern matches valid GitHub owner/repo names: [A-Za-z0-9_.-]+
var validNamePattern = regexp.MustCompile(`^[A-Za-z0-9_.\-]+$`)

// parseGitHub splits a github.com or raw.githubusercontent.com file URL into
// owner, repo and the remaining "<branch>/<file>" path.
func parseGitHub(raw string) (owner, repo, rest string, ok bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")

	switch u.Host {
	case "raw.githubusercontent.com":
		if len(parts) < 4 {
			return "", "", "", false
		}
		owner, repo, parts = parts[0], parts[1], parts[2:]
	case "github.com", "www.github.com":
		if len(parts) < 5 {
			return "", "", "", false
		}
		switch parts[2] {
		case "blob", "tree", "raw":
		default:
			return "", "", "", false
		}
		owner, repo, parts = parts[0], parts[1], parts[3:]
	default:
		return "", "", "", false
	}

	if !validNamePattern.MatchString(owner) || !validNamePattern.MatchString(repo) {
		return "", "", "", false
	}
	return owner, repo, strings.Join(parts, "/"), true
}

// splitRef splits ref after its n-th segment into branch and file path.
func splitRef(ref string, n int) (branch, file string) {
	segs := strings.Split(ref, "/")
	if n >= len(segs) {
		return "", ref
	}
	return strings.Join(segs[:n], "/"), strings.Join(segs[n:], "/")
}

func fileName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return ""
	}
	return base
}
