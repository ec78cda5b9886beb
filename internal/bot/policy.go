// internal/bot/policy.go
package bot

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"github.com/jason-s-yu/uno/internal/engine"
)

//go:embed scripts/*.lua
var scripts embed.FS

// Policy kinds accepted by NewBuiltinPolicy.
const (
	KindFirstLegal = "first_legal"
	KindGreedy     = "greedy"
)

// Kinds lists the built-in policy kinds.
func Kinds() []string {
	return []string{KindFirstLegal, KindGreedy}
}

// NewBuiltinPolicy builds one of the built-in policies. It never reads from
// disk, so it is the factory to hand to anything reachable over the network.
func NewBuiltinPolicy(kind string) (engine.Policy, error) {
	switch kind {
	case "", KindFirstLegal:
		return engine.FirstLegal{}, nil
	case KindGreedy:
		src, err := scripts.ReadFile("scripts/greedy.lua")
		if err != nil {
			return nil, err
		}
		return NewLuaPolicy(kind, string(src))
	}
	return nil, fmt.Errorf("unknown bot policy %q", kind)
}

// NewPolicy builds a built-in policy, or loads a script from disk for a kind
// of the form "lua:<path>".
func NewPolicy(kind string) (engine.Policy, error) {
	path, ok := strings.CutPrefix(kind, "lua:")
	if !ok {
		return NewBuiltinPolicy(kind)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bot script: %w", err)
	}
	return NewLuaPolicy(path, string(src))
}
