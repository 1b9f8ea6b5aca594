package gitver

import (
	"os"
	"regexp"
	"strings"
	"time"
)

// ResolveTemplate expands template variables in a single string against
// version info and environment. Works on any part of an image reference or
// job spec value — registry URL, path, tag, or a full line of HCL.
//
// Supported templates:
//
//	{version}      → "1.2.3" or "1.2.3-alpha.1" (full version)
//	{base}         → "1.2.3" (semver base, no prerelease)
//	{major}        → "1"
//	{minor}        → "2"
//	{patch}        → "3"
//	{prerelease}   → "alpha.1" or "" for stable
//	{branch}       → "main" (sanitized for tag use)
//	{sha}          → "abc1234" (short, 7)
//	{sha:12}       → first 12 chars of the full hash
//	{env:VAR}      → value of environment variable VAR
//	{date}         → "2026-08-29" (ISO date, UTC)
//	{datetime}     → RFC3339 timestamp, UTC
//
// Literals pass through as-is, so "latest" stays "latest" and templates
// compose freely: "{env:REGISTRY}/myorg/app:{version}".
func ResolveTemplate(s string, v *VersionInfo) string {
	if v == nil || !strings.Contains(s, "{") {
		return s
	}

	r := strings.NewReplacer(
		"{version}", v.Version,
		"{base}", v.Base,
		"{major}", v.Major,
		"{minor}", v.Minor,
		"{patch}", v.Patch,
		"{prerelease}", v.Prerelease,
		"{branch}", sanitizeTag(v.Branch),
		"{sha}", v.SHA,
	)
	s = r.Replace(s)

	s = shaWidthRe.ReplaceAllStringFunc(s, func(m string) string {
		width := len(v.FullSHA)
		if n := parseWidth(m); n > 0 && n < width {
			width = n
		}
		return v.FullSHA[:width]
	})

	s = envRe.ReplaceAllStringFunc(s, func(m string) string {
		name := m[len("{env:") : len(m)-1]
		return os.Getenv(name)
	})

	now := time.Now().UTC()
	s = strings.ReplaceAll(s, "{date}", now.Format("2006-01-02"))
	s = strings.ReplaceAll(s, "{datetime}", now.Format(time.RFC3339))

	return s
}

// ResolveVars expands {var:name} templates from the vars map. Unknown names
// are left untouched so a stray brace in a job spec survives rendering.
func ResolveVars(s string, vars map[string]string) string {
	if len(vars) == 0 || !strings.Contains(s, "{var:") {
		return s
	}
	return varRe.ReplaceAllStringFunc(s, func(m string) string {
		name := m[len("{var:") : len(m)-1]
		if val, ok := vars[name]; ok {
			return val
		}
		return m
	})
}

var (
	shaWidthRe = regexp.MustCompile(`\{sha:(\d+)\}`)
	envRe      = regexp.MustCompile(`\{env:([A-Za-z_][A-Za-z0-9_]*)\}`)
	varRe      = regexp.MustCompile(`\{var:([A-Za-z0-9_.-]+)\}`)
)

func parseWidth(m string) int {
	sub := shaWidthRe.FindStringSubmatch(m)
	if sub == nil {
		return 0
	}
	n := 0
	for _, c := range sub[1] {
		n = n*10 + int(c-'0')
	}
	return n
}

// sanitizeTag replaces characters not allowed in Docker tags.
func sanitizeTag(s string) string {
	r := strings.NewReplacer(
		"/", "-",
		" ", "-",
	)
	return r.Replace(s)
}
