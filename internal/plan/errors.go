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

// ValidationError reports an incoherent or malformed transfer spec. It is
// raised before any graph construction and names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid transfer spec: %s: %s", e.Field, e.Reason)
}

// TopologyError reports a structural violation while assembling the intent
// graph, e.g. a dependency on an intent that does not exist or a count
// mismatch between parallel collections.
type TopologyError struct {
	Detail string
}

func (e *TopologyError) Error() string {
	return fmt.Sprintf("topology error: %s", e.Detail)
}
