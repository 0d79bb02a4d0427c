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
	corev1alpha1 "github.com/EO-DataHub/eodhp-transfer-planner/api/v1alpha1"
)

// Features are the capability flags derived from a transfer spec. The
// topology builder branches on these, never on the raw spec, so that all
// conditionality is resolved in one place.
type Features struct {
	// IsVPC is true when the endpoint attaches to a VPC
	IsVPC bool
	// SecurityGroupManaged is true when the planner creates the ingress group
	SecurityGroupManaged bool
	// IsS3Backend is true for object-storage home directories
	IsS3Backend bool
}

// ResolveFeatures computes the capability flags for a spec. It is total over
// valid specs and has no error conditions.
func ResolveFeatures(spec *corev1alpha1.TransferSpec) Features {
	return Features{
		IsVPC:                spec.Networking.VPCID != "",
		SecurityGroupManaged: spec.Enabled && spec.Networking.ManageSecurityGroup,
		IsS3Backend:          spec.Domain == corev1alpha1.DomainS3,
	}
}
