package mcpgateway

import (
	"fmt"
	"strings"
	"unicode"
)

// NamingStrategy generates the HTTP-facing identifiers for tool servers and
// their tools. Implementations must be deterministic for a given
// serverID/name pair.
type NamingStrategy interface {
	// OperationID names the OpenAPI operation of one tool.
	OperationID(serverID, toolName string) string
	// MountPath is where a server's node is mounted below prefix.
	MountPath(prefix, serverID string) string
}

// ServerPrefixNaming prefixes operation ids with the originating server ID,
// separating fields with a configurable delimiter (defaults to "__").
type ServerPrefixNaming struct {
	Separator string
}

func (s ServerPrefixNaming) separator() string {
	if s.Separator == "" {
		return "__"
	}
	return s.Separator
}

func (s ServerPrefixNaming) OperationID(serverID, toolName string) string {
	if serverID == "" {
		return toolName
	}
	return s.decorate(serverID, toolName)
}

func (s ServerPrefixNaming) MountPath(prefix, serverID string) string {
	return normalizePrefix(prefix) + strings.Trim(serverID, "/")
}

func (s ServerPrefixNaming) decorate(serverID, value string) string {
	return fmt.Sprintf("%s%s%s", serverID, s.separator(), value)
}

// normalizePrefix returns prefix with exactly one leading and one trailing
// slash.
func normalizePrefix(prefix string) string {
	trimmed := strings.Trim(strings.TrimSpace(prefix), "/")
	if trimmed == "" {
		return "/"
	}
	return "/" + trimmed + "/"
}

// validServerName rejects names that cannot be mounted as a literal path.
func validServerName(name string) error {
	trimmed := strings.Trim(name, "/")
	if trimmed == "" {
		return fmt.Errorf("%w: empty server name", ErrConfiguration)
	}
	for _, r := range trimmed {
		if r == '{' || r == '}' || unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("%w: server name %q is not a valid path segment", ErrConfiguration, name)
		}
	}
	return nil
}

// toolSummary turns a tool name into a short human title: underscores become
// spaces and each word is capitalized.
func toolSummary(name string) string {
	words := strings.Fields(strings.ReplaceAll(name, "_", " "))
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
