package script

import (
	"strings"
)

// Template is one campaign script, addressed by type.
type Template struct {
	Type    Type   `json:"type"`
	Content string `json:"content"`
	Active  bool   `json:"is_active"`
}

// Type enumerates the script slots a campaign can define.
type Type string

const (
	TypeGreeting          Type = "greeting"
	TypeMainPitch         Type = "main_pitch"
	TypeObjectionHandling Type = "objection_handling"
	TypeClosing           Type = "closing"
)

// Resolve substitutes {name}-style placeholders from vars into content.
// Placeholders with no matching key are left verbatim; callers that care can
// inspect Unresolved and log them.
func Resolve(content string, vars map[string]string) string {
	if content == "" || len(vars) == 0 {
		return content
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(content)
}

// Unresolved reports placeholder names present in content but absent from vars.
func Unresolved(content string, vars map[string]string) []string {
	var missing []string
	rest := content
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			break
		}
		close := strings.IndexByte(rest[open:], '}')
		if close < 0 {
			break
		}
		name := rest[open+1 : open+close]
		rest = rest[open+close+1:]
		if name == "" || strings.ContainsAny(name, " \t\n{") {
			continue
		}
		if _, ok := vars[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
