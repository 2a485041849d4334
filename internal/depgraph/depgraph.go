// Package depgraph computes table processing orders from registry references.
package depgraph

import (
	"fmt"
	"strings"

	"github.com/garagereg/dataport/internal/registry"
)

// Graph is a dependency graph over table names. An edge parent->child
// exists when child declares a reference to parent.
type Graph struct {
	nodes    []string
	children map[string][]string
	inDegree map[string]int
}

// FromRegistry builds a dependency graph from registered table
// references, restricted to the given table names. A nil or empty
// tables argument means all registered tables.
func FromRegistry(reg *registry.Registry, tables []string) (*Graph, error) {
	if reg == nil {
		return nil, fmt.Errorf("registry is nil")
	}
	if len(tables) == 0 {
		tables = reg.TableNames()
	}

	selected := make(map[string]bool, len(tables))
	for _, name := range tables {
		if !reg.Has(name) {
			return nil, fmt.Errorf("unknown table %q", name)
		}
		selected[name] = true
	}

	g := &Graph{
		children: make(map[string][]string),
		inDegree: make(map[string]int),
	}

	// Preserve registration order for deterministic output.
	for _, name := range reg.TableNames() {
		if !selected[name] {
			continue
		}
		g.nodes = append(g.nodes, name)
		g.inDegree[name] = 0
	}
	for _, name := range g.nodes {
		table, _ := reg.Lookup(name)
		for _, parent := range table.References {
			if !selected[parent] {
				// Parent excluded from this selection; the edge does not apply.
				continue
			}
			g.children[parent] = append(g.children[parent], name)
			g.inDegree[name]++
		}
	}

	return g, nil
}

// ImportOrder returns tables sorted parent-first using Kahn's
// algorithm. Rows must be written in this order so foreign keys resolve.
func (g *Graph) ImportOrder() ([]string, error) {
	inDegree := make(map[string]int, len(g.inDegree))
	for name, degree := range g.inDegree {
		inDegree[name] = degree
	}

	var queue []string
	for _, name := range g.nodes {
		if inDegree[name] == 0 {
			queue = append(queue, name)
		}
	}

	order := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		order = append(order, name)

		for _, child := range g.children[name] {
			inDegree[child]--
			if inDegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}

	if len(order) != len(g.nodes) {
		var stuck []string
		for _, name := range g.nodes {
			if inDegree[name] > 0 {
				stuck = append(stuck, name)
			}
		}
		return nil, &CycleError{Tables: stuck}
	}

	return order, nil
}

// DeleteOrder returns tables sorted child-first, the reverse of the
// import order. Rows must be deleted in this order so foreign keys do
// not block the delete.
func (g *Graph) DeleteOrder() ([]string, error) {
	order, err := g.ImportOrder()
	if err != nil {
		return nil, err
	}
	reversed := make([]string, len(order))
	for i, name := range order {
		reversed[len(order)-1-i] = name
	}
	return reversed, nil
}

// CycleError reports tables that could not be ordered because their
// references form a cycle.
type CycleError struct {
	Tables []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("reference cycle involving tables: %s", strings.Join(e.Tables, ", "))
}
