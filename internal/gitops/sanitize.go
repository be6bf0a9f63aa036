package gitops

import (
	"net/url"
	"regexp"
)

// credentialPattern matches the two credential forms the Git Operator ever
// embeds in a remote URL: "oauth2:<token>@" and "user:<token>@".
var credentialPattern = regexp.MustCompile(`(oauth2|user):[^@/\s]+@`)

// SanitizeRemoteURL replaces any embedded Git credentials with "***". It must
// be applied to every log line that could include a remote URL, including
// error messages surfaced from a failed push.
func SanitizeRemoteURL(s string) string {
	return credentialPattern.ReplaceAllString(s, "***@")
}

// embedToken returns repoURL with "oauth2:<token>@" inserted as the userinfo
// component, used to authenticate a single clone or push without ever
// persisting the credential to disk. Host-less URLs (local paths, used by
// filesystem-backed remotes in tests) pass through unchanged since there is
// no host to authenticate against.
func embedToken(repoURL, token string) (string, error) {
	u, err := url.Parse(repoURL)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return repoURL, nil
	}
	u.User = url.UserPassword("oauth2", token)
	return u.String(), nil
}

// stripCredentials returns repoURL with any userinfo removed, the
// credential-free form persisted as origin between operations.
func stripCredentials(repoURL string) (string, error) {
	u, err := url.Parse(repoURL)
	if err != nil {
		return "", err
	}
	u.User = nil
	return u.String(), nil
}

// sshToHTTPS converts an SSH-form GitHub remote ("git@github.com:owner/repo.git")
// to its HTTPS equivalent; URLs already in another form pass through.
func sshToHTTPS(remote string) string {
	loc := sshRemotePattern.FindStringSubmatch(remote)
	if loc == nil {
		return remote
	}
	host, path := loc[1], loc[2]
	return "https://" + host + "/" + path
}

var sshRemotePattern = regexp.MustCompile(`^git@([^:]+):(.+?)(?:\.git)?$`)

// commitURL builds the web URL for a commit from a (possibly SSH, possibly
// credentialed) remote URL and a commit SHA.
func commitURL(remote, sha string) (string, error) {
	https := sshToHTTPS(remote)
	clean, err := stripCredentials(https)
	if err != nil {
		return "", err
	}
	clean = trimDotGit(clean)
	return clean + "/commit/" + sha, nil
}

func trimDotGit(s string) string {
	const suffix = ".git"
	if len(s) > len(suffix) && s[len(s)-len(suffix):] == suffix {
		return s[:len(s)-len(suffix)]
	}
	return s
}
