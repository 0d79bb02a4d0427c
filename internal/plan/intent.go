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

import "fmt"

// Kind classifies an intent by the cloud object it describes.
type Kind string

const (
	KindServer           Kind = "server"
	KindNetworking       Kind = "networking"
	KindSecurityGroup    Kind = "security-group"
	KindSecurityIngress  Kind = "security-group-ingress"
	KindElasticIP        Kind = "elastic-ip"
	KindRole             Kind = "role"
	KindPolicy           Kind = "policy"
	KindUser             Kind = "user"
	KindSSHKey           Kind = "ssh-key"
	KindWorkflow         Kind = "workflow"
	KindLambdaPermission Kind = "lambda-permission"
	KindDNSRecord        Kind = "dns-record"
)

// Ref identifies one intent within a graph. Singletons use an empty or
// well-known key; per-user intents are keyed by login name.
type Ref struct {
	Kind Kind
	Key  string
}

func (r Ref) String() string {
	return fmt.Sprintf("%s/%s", r.Kind, r.Key)
}

// Token returns the late-bound reference placeholder for a value that only
// exists once the intent has been realized, e.g. "${server/main}". The apply
// engine substitutes these after creation, guided by the dependency edges.
func (r Ref) Token() string {
	return fmt.Sprintf("${%s}", r)
}

// AttrToken is like Token but names one realized attribute of the intent,
// e.g. "${server/main#endpoint}" for the generated endpoint address.
func (r Ref) AttrToken(attr string) string {
	return fmt.Sprintf("${%s#%s}", r, attr)
}

// Intent describes one cloud object to create. Spec is the service input
// struct the apply engine would execute for it.
type Intent struct {
	Kind      Kind
	Key       string
	DependsOn []Ref
	Spec      any
}

func (i *Intent) Ref() Ref {
	return Ref{Kind: i.Kind, Key: i.Key}
}

// Graph is an ordered set of intents. Intents are appended in dependency
// order, so iteration order is always a valid topological linearization.
type Graph struct {
	intents []Intent
	index   map[Ref]int
}

func NewGraph() *Graph {
	return &Graph{index: make(map[Ref]int)}
}

// Add appends an intent. It fails if the ref is already taken or if any
// declared dependency has not been added yet, which is what keeps the
// emission order topological.
func (g *Graph) Add(intent Intent) error {
	ref := intent.Ref()
	if _, exists := g.index[ref]; exists {
		return &TopologyError{Detail: fmt.Sprintf("duplicate intent %s", ref)}
	}
	for _, dep := range intent.DependsOn {
		if _, ok := g.index[dep]; !ok {
			return &TopologyError{Detail: fmt.Sprintf(
				"intent %s depends on %s which does not exist", ref, dep)}
		}
	}
	g.index[ref] = len(g.intents)
	g.intents = append(g.intents, intent)
	return nil
}

// Intents returns the intents in emission order.
func (g *Graph) Intents() []Intent {
	return g.intents
}

// Lookup returns the intent for ref, if present.
func (g *Graph) Lookup(ref Ref) (*Intent, bool) {
	i, ok := g.index[ref]
	if !ok {
		return nil, false
	}
	return &g.intents[i], true
}

// Count returns the number of intents of the given kind.
func (g *Graph) Count(kind Kind) int {
	n := 0
	for _, intent := range g.intents {
		if intent.Kind == kind {
			n++
		}
	}
	return n
}

// Verify checks that every dependency ref resolves to an intent in the
// graph. Graphs built through Add hold this by construction; graphs restored
// from a serialized plan are checked explicitly.
func (g *Graph) Verify() error {
	for _, intent := range g.intents {
		for _, dep := range intent.DependsOn {
			if _, ok := g.index[dep]; !ok {
				return &TopologyError{Detail: fmt.Sprintf(
					"intent %s depends on %s which does not exist",
					intent.Ref(), dep)}
			}
		}
	}
	return nil
}

// addRestored appends an intent without the dependency-ordering check. Used
// only when rebuilding a graph from its serialized form, where intents arrive
// sorted by kind and key rather than topologically.
func (g *Graph) addRestored(intent Intent) error {
	ref := intent.Ref()
	if _, exists := g.index[ref]; exists {
		return &TopologyError{Detail: fmt.Sprintf("duplicate intent %s", ref)}
	}
	g.index[ref] = len(g.intents)
	g.intents = append(g.intents, intent)
	return nil
}
