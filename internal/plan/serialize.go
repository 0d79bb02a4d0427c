/*
Copyright 2024 Telespazio UK.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package plan

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// serializedPlan is the stable textual form of a graph: intents sorted by
// kind then key, dependency refs sorted, so two evaluations of the same spec
// diff clean.
type serializedPlan struct {
	Version int                `json:"version"`
	Intents []serializedIntent `json:"intents"`
}

type serializedIntent struct {
	Kind      string          `json:"kind"`
	Key       string          `json:"key,omitempty"`
	DependsOn []string        `json:"dependsOn,omitempty"`
	Spec      json.RawMessage `json:"spec,omitempty"`
}

const planVersion = 1

// Marshal renders a graph to its deterministic textual form.
func Marshal(g *Graph) ([]byte, error) {
	out := serializedPlan{Version: planVersion}
	for _, intent := range g.Intents() {
		spec, err := json.Marshal(intent.Spec)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", intent.Ref(), err)
		}
		deps := make([]string, 0, len(intent.DependsOn))
		for _, dep := range intent.DependsOn {
			deps = append(deps, dep.String())
		}
		sort.Strings(deps)
		out.Intents = append(out.Intents, serializedIntent{
			Kind:      string(intent.Kind),
			Key:       intent.Key,
			DependsOn: deps,
			Spec:      spec,
		})
	}
	sort.Slice(out.Intents, func(i, j int) bool {
		if out.Intents[i].Kind != out.Intents[j].Kind {
			return out.Intents[i].Kind < out.Intents[j].Kind
		}
		return out.Intents[i].Key < out.Intents[j].Key
	})
	return json.MarshalIndent(out, "", "  ")
}

// Unmarshal restores a graph from its serialized form. Payloads stay as raw
// JSON; node and edge sets round-trip unchanged. Every dependency ref must
// resolve within the plan.
func Unmarshal(data []byte) (*Graph, error) {
	var in serializedPlan
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, err
	}
	if in.Version != planVersion {
		return nil, fmt.Errorf("unsupported plan version %d", in.Version)
	}

	g := NewGraph()
	for _, si := range in.Intents {
		deps := make([]Ref, 0, len(si.DependsOn))
		for _, dep := range si.DependsOn {
			ref, err := parseRef(dep)
			if err != nil {
				return nil, err
			}
			deps = append(deps, ref)
		}
		if err := g.addRestored(Intent{
			Kind:      Kind(si.Kind),
			Key:       si.Key,
			DependsOn: deps,
			Spec:      si.Spec,
		}); err != nil {
			return nil, err
		}
	}
	if err := g.Verify(); err != nil {
		return nil, err
	}
	return g, nil
}

func parseRef(s string) (Ref, error) {
	kind, key, ok := strings.Cut(s, "/")
	if !ok {
		return Ref{}, fmt.Errorf("malformed intent ref %q", s)
	}
	return Ref{Kind: Kind(kind), Key: key}, nil
}

// SameShape reports whether two graphs have identical node and edge sets,
// ignoring payloads. Used to check that serialization is an idempotent
// projection.
func SameShape(a, b *Graph) bool {
	if len(a.Intents()) != len(b.Intents()) {
		return false
	}
	edges := func(g *Graph) map[string]struct{} {
		set := make(map[string]struct{})
		for _, intent := range g.Intents() {
			set[intent.Ref().String()] = struct{}{}
			for _, dep := range intent.DependsOn {
				set[intent.Ref().String()+"->"+dep.String()] = struct{}{}
			}
		}
		return set
	}
	ea, eb := edges(a), edges(b)
	if len(ea) != len(eb) {
		return false
	}
	for k := range ea {
		if _, ok := eb[k]; !ok {
			return false
		}
	}
	return true
}
