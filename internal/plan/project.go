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
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/iam"
)

// Outputs are the derived values exposed for downstream consumption.
type Outputs struct {
	// ServerEndpoint is the address clients connect to: the custom domain
	// when one is configured, otherwise the generated service endpoint of
	// the realized server.
	ServerEndpoint string
	// LoggingRoleARN is the ARN of the audit-logging role
	LoggingRoleARN string
	// UserRoleARNs maps each user's login name to its access-role ARN
	UserRoleARNs map[string]string
}

// Project reads the selected outputs off a built graph. serverID is the
// identifier assigned by the transfer service once the server intent has
// been realized; it may be empty before apply, in which case the endpoint is
// left blank unless a custom domain is configured. Projection is read-only
// and derives nothing the graph does not already carry.
func (b *Builder) Project(g *Graph, serverID string) Outputs {
	outputs := Outputs{UserRoleARNs: make(map[string]string)}
	if len(g.Intents()) == 0 {
		return outputs
	}

	pol := PolicyGenerator{AccountID: b.AccountID, Region: b.Region}
	for _, intent := range g.Intents() {
		if intent.Kind != KindRole {
			continue
		}
		input, ok := intent.Spec.(*iam.CreateRoleInput)
		if !ok {
			continue
		}
		roleARN := pol.RoleARN(aws.StringValue(input.RoleName))
		if login, found := strings.CutPrefix(intent.Key, userKeyPrefix); found {
			outputs.UserRoleARNs[login] = roleARN
		} else if intent.Key == keyLogging {
			outputs.LoggingRoleARN = roleARN
		}
		// The workflow and function roles are internal wiring, not outputs.
	}

	switch {
	case b.Spec.DNS.DomainName != "":
		outputs.ServerEndpoint = b.Spec.DNS.DomainName
	case serverID != "":
		outputs.ServerEndpoint = fmt.Sprintf(
			"%s.server.transfer.%s.amazonaws.com", serverID, b.Region)
	}
	return outputs
}
