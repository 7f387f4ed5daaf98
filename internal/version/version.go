// Package version builds cache keys that change whenever something that shapes an
// agent answer changes: the tool catalog wording, the prompt template, or the model.
// Old entries simply stop matching and age out of Redis.
package version

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Components identifies the versions of everything that influences an answer.
type Components struct {
	// Tools is the version string of the tool catalog.
	Tools string
	// Prompt is the registry identifier of the system prompt template.
	Prompt string
	// Model is the chat model identifier.
	Model string
}

// String renders the components compactly for use inside a key.
func (c Components) String() string {
	return fmt.Sprintf("t%s_p%s_m%s", c.Tools, sanitize(c.Prompt), sanitize(c.Model))
}

// GenerateVersionedCacheKey combines a prefix, a hash of the query and the component
// versions.
//
// Example output: "agentcache:a1b2c3d4...:tv1.0_phwchase17-openai-functions-agent_mgpt-4o"
func GenerateVersionedCacheKey(prefix, query string, c Components) string {
	return fmt.Sprintf("%s:%s:%s", prefix, Hash(query), c.String())
}

// Hash returns the hex SHA-256 of s.
func Hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func sanitize(s string) string {
	return strings.NewReplacer("/", "-", ":", "-", " ", "-").Replace(s)
}
