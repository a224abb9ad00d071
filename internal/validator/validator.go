// Package validator checks flow graphs for structural problems before deployment.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/dialtone/pkg/domain"
)

// Validate reports every structural problem of graph in a single *domain.GraphError.
// It returns nil for a deployable graph.
//
// A graph is deployable when it has exactly one entry node, every node ID is
// unique, every reference (node targets and edges) resolves, every Decision has
// a default, every non-terminal node has a way forward and every node is
// reachable from the entry.
func Validate(graph *domain.FlowGraph) error {
	if graph == nil {
		return &domain.GraphError{Problems: []string{"graph is nil"}}
	}

	var problems []string
	report := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(graph.ID) == "" {
		report("flow id is empty")
	}

	nodes := graph.Nodes()
	if len(nodes) == 0 {
		report("graph has no nodes")
		return &domain.GraphError{FlowID: graph.ID, Problems: problems}
	}

	seen := make(map[string]bool, len(nodes))
	for i, n := range nodes {
		if n == nil {
			report("node #%d is nil", i)
			continue
		}
		id := n.NodeID()
		if strings.TrimSpace(id) == "" {
			report("node #%d (%s) has an empty id", i, n.Kind())
			continue
		}
		if seen[id] {
			report("duplicate node id %q", id)
			continue
		}
		seen[id] = true
	}

	for _, n := range nodes {
		if n == nil || n.NodeID() == "" {
			continue
		}
		checkNode(n, seen, report)
	}

	for _, e := range graph.Edges() {
		if !seen[e.From] {
			report("edge %s -> %s starts at unknown node %q", e.From, e.To, e.From)
			continue
		}
		if !seen[e.To] {
			report("edge %s -> %s points at unknown node %q", e.From, e.To, e.To)
			continue
		}
		from, _ := graph.Node(e.From)
		if !contains(domain.Targets(from), e.To) {
			report("edge %s -> %s is not a transition of %s node %q", e.From, e.To, from.Kind(), e.From)
		}
	}

	entries := graph.EntryCandidates()
	switch len(entries) {
	case 0:
		report("no entry node: every node has an incoming transition")
	case 1:
		for _, id := range unreachable(graph, entries[0]) {
			report("node %q is unreachable from entry %q", id, entries[0])
		}
	default:
		report("multiple entry nodes: %s", strings.Join(entries, ", "))
	}

	if len(problems) == 0 {
		return nil
	}
	return &domain.GraphError{FlowID: graph.ID, Problems: problems}
}

func checkNode(n domain.Node, known map[string]bool, report func(string, ...any)) {
	id := n.NodeID()
	for _, t := range domain.Targets(n) {
		if !known[t] {
			report("node %q references unknown node %q", id, t)
		}
	}

	switch v := n.(type) {
	case *domain.Say:
		if v.Next == "" {
			report("say node %q has no next node", id)
		}
	case *domain.Collect:
		if v.Next == "" {
			report("collect node %q has no next node", id)
		}
		switch v.Input {
		case "", domain.InputSpeech, domain.InputDTMF, domain.InputAny:
		default:
			report("collect node %q has unknown input mode %q", id, v.Input)
		}
	case *domain.Decision:
		if v.Default == "" {
			report("decision node %q has no default", id)
		}
		values := make(map[string]bool, len(v.Matches))
		for i, m := range v.Matches {
			key := strings.ToLower(strings.TrimSpace(m.Value))
			if key == "" {
				report("decision node %q match #%d has an empty value", id, i)
				continue
			}
			if m.Target == "" {
				report("decision node %q match %q has no target", id, m.Value)
			}
			if values[key] {
				report("decision node %q matches %q more than once", id, m.Value)
			}
			values[key] = true
		}
	case *domain.Transfer:
		if strings.TrimSpace(v.Destination) == "" {
			report("transfer node %q has no destination", id)
		}
	case *domain.Record:
		if v.Next == "" {
			report("record node %q has no next node", id)
		}
	case *domain.Pause:
		if v.Next == "" {
			report("pause node %q has no next node", id)
		}
		if v.Length < 0 {
			report("pause node %q has a negative length", id)
		}
	case *domain.End:
	}
}

// unreachable returns node IDs not reachable from entry, sorted.
func unreachable(graph *domain.FlowGraph, entry string) []string {
	visited := map[string]bool{entry: true}
	queue := []string{entry}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range graph.Successors(current) {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}

	var out []string
	for _, id := range graph.NodeIDs() {
		if id != "" && !visited[id] {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
