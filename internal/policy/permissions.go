// Package policy answers permission checks from a static grants file.
package policy

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/empirewand/wandcore/internal/domain"
	"gopkg.in/yaml.v3"
)

// Grants is the permissions file layout. Nodes are dot-separated; a trailing
// ".*" grants the whole subtree and "*" grants everything. Deny entries win
// over any grant.
type Grants struct {
	Default []string               `yaml:"default"`
	Groups  map[string][]string    `yaml:"groups"`
	Players map[string]PlayerGrant `yaml:"players"`
}

// PlayerGrant lists what one player holds beyond the defaults.
type PlayerGrant struct {
	Groups []string `yaml:"groups"`
	Nodes  []string `yaml:"nodes"`
	Deny   []string `yaml:"deny"`
}

// playerSubcommands are the subcommands every player may run by default.
var playerSubcommands = []string{
	"get", "list", "bind", "unbind", "bindall", "bindtype", "bindcat",
	"set-spell", "spells", "cast", "cd", "toggle", "switcheffect", "stats",
}

// DefaultGrants lets every player use the player-facing commands and every
// spell in both namespaces. Admin nodes are not granted.
func DefaultGrants() Grants {
	var nodes []string
	for _, ns := range domain.Namespaces {
		for _, sub := range playerSubcommands {
			nodes = append(nodes, fmt.Sprintf("%s.command.%s", ns, sub))
		}
		nodes = append(nodes, fmt.Sprintf("%s.spell.*", ns))
	}
	return Grants{Default: nodes}
}

// ParseGrants decodes a permissions file.
func ParseGrants(data []byte) (Grants, error) {
	var g Grants
	if err := yaml.Unmarshal(data, &g); err != nil {
		return Grants{}, fmt.Errorf("parse permissions file: %w", err)
	}
	for player, pg := range g.Players {
		for _, group := range pg.Groups {
			if _, ok := g.Groups[group]; !ok {
				return Grants{}, fmt.Errorf("player %s references unknown group %q", player, group)
			}
		}
	}
	return g, nil
}

// LoadGrants reads path, or returns DefaultGrants when path is empty.
func LoadGrants(path string) (Grants, error) {
	if path == "" {
		return DefaultGrants(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Grants{}, fmt.Errorf("read permissions file: %w", err)
	}
	return ParseGrants(data)
}

type resolved struct {
	defaults []string
	players  map[domain.PlayerID]resolvedPlayer
}

type resolvedPlayer struct {
	allow []string
	deny  []string
}

// Checker answers permission queries from a static grants set.
type Checker struct {
	current atomic.Pointer[resolved]
}

// NewChecker builds a checker for g.
func NewChecker(g Grants) *Checker {
	c := &Checker{}
	c.Replace(g)
	return c
}

// Replace swaps the grants set.
func (c *Checker) Replace(g Grants) {
	r := &resolved{
		defaults: normalize(g.Default),
		players:  make(map[domain.PlayerID]resolvedPlayer, len(g.Players)),
	}
	for id, pg := range g.Players {
		allow := normalize(pg.Nodes)
		for _, group := range pg.Groups {
			allow = append(allow, normalize(g.Groups[group])...)
		}
		r.players[domain.PlayerID(id)] = resolvedPlayer{allow: allow, deny: normalize(pg.Deny)}
	}
	c.current.Store(r)
}

// HasPermission reports whether player holds node.
func (c *Checker) HasPermission(player domain.PlayerID, node string) bool {
	r := c.current.Load()
	node = strings.ToLower(node)

	p, ok := r.players[player]
	if ok && matchAny(p.deny, node) {
		return false
	}
	return matchAny(r.defaults, node) || (ok && matchAny(p.allow, node))
}

func normalize(nodes []string) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func matchAny(patterns []string, node string) bool {
	for _, p := range patterns {
		if Match(p, node) {
			return true
		}
	}
	return false
}

// Match reports whether pattern grants node.
func Match(pattern, node string) bool {
	if pattern == "*" || pattern == node {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, ".*"); ok {
		return strings.HasPrefix(node, prefix+".")
	}
	return false
}
