package config

import (
	"regexp"
	"strings"
)

var dbNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_-]*$`)

// nonAlnumRun matches one or more characters that are not ASCII letters or digits.
var nonAlnumRun = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// ContainerName derives the deterministic container name for a session's
// preview, per spec §3/§4.1: prefix + "-" + project_id + "-" + sanitize(session_id).
func (c *Config) ContainerName(projectID, sessionID string) string {
	return c.PreviewResourcePrefix + "-" + projectID + "-" + SanitizeForName(sessionID)
}

// DBName derives the per-session Postgres database name, per spec §3/§4.1:
// lower(strip_hyphens("kosuke_preview_" + project_id + "_" + session_id)),
// validated against the identifier regex and the 63-byte length bound.
func (c *Config) DBName(projectID, sessionID string) (string, bool) {
	raw := "kosuke_preview_" + projectID + "_" + sessionID
	raw = strings.ToLower(raw)
	raw = strings.ReplaceAll(raw, "-", "")
	if len(raw) > 63 || !dbNamePattern.MatchString(raw) {
		return "", false
	}
	return raw, true
}

// BranchName derives the Git branch name for a session, per spec §3/§4.1:
// session_branch_prefix + session_id.
func (c *Config) BranchName(sessionID string) string {
	return c.SessionBranchPrefix + sessionID
}

// Subdomain derives the proxy-mode subdomain for a session, per spec §3:
// "project-" + project_id + "-" + sanitized_session + "." + base_domain,
// where sanitized_session is lowercased, non-alphanumeric runs replaced by a
// single hyphen, collapsed, truncated to 20 chars, and stripped of leading
// and trailing hyphens.
func (c *Config) Subdomain(projectID, sessionID string) string {
	return "project-" + projectID + "-" + SanitizeForSubdomain(sessionID) + "." + c.PreviewBaseDomain
}

// SanitizeForName lowercases session_id and strips characters unsafe for a
// container/resource name, collapsing runs of non-alphanumerics to a single
// hyphen and trimming leading/trailing hyphens.
func SanitizeForName(sessionID string) string {
	lowered := strings.ToLower(sessionID)
	collapsed := nonAlnumRun.ReplaceAllString(lowered, "-")
	return strings.Trim(collapsed, "-")
}

// SanitizeForSubdomain applies the subdomain-specific sanitization rule from
// spec §3: lowercase, non-alphanumeric runs collapsed to a single hyphen,
// truncated to 20 characters, then stripped of leading/trailing hyphens
// (trimmed again after truncation, since truncation can expose a trailing
// hyphen that was previously interior).
func SanitizeForSubdomain(sessionID string) string {
	collapsed := SanitizeForName(sessionID)
	if len(collapsed) > 20 {
		collapsed = collapsed[:20]
	}
	return strings.Trim(collapsed, "-")
}
