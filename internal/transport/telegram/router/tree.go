package router

import (
	"sort"
	"strings"
)

type cmdNode struct {
	name     string
	cmd      *Command
	children map[string]*cmdNode
}

func newRoot() *cmdNode {
	return &cmdNode{children: map[string]*cmdNode{}}
}

func splitRoute(route string) []string {
	return strings.Fields(route)
}

func (r *cmdNode) add(route []string, c Command) {
	cur := r
	for _, tok := range route {
		n, ok := cur.children[tok]
		if !ok {
			n = &cmdNode{name: tok, children: map[string]*cmdNode{}}
			cur.children[tok] = n
		}
		cur = n
	}
	cur.cmd = &c
}

func (r *cmdNode) find(path []string) *cmdNode {
	cur := r
	for _, tok := range path {
		n, ok := cur.children[tok]
		if !ok {
			return nil
		}
		cur = n
	}
	return cur
}

func (r *cmdNode) child(name string) (*cmdNode, bool) {
	n, ok := r.children[name]
	return n, ok
}

func (r *cmdNode) childNames() []string {
	out := make([]string, 0, len(r.children))
	for k := range r.children {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// descend follows leading args that name subcommands, stopping at the first
// flag or unknown token. It returns the deepest node, the tokens consumed
// and the remaining args.
func (r *cmdNode) descend(args []string) (*cmdNode, []string, []string) {
	cur := r
	var path []string
	for len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		n, ok := cur.child(args[0])
		if !ok {
			break
		}
		cur, path, args = n, append(path, args[0]), args[1:]
	}
	return cur, path, args
}
