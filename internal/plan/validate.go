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

	corev1alpha1 "github.com/EO-DataHub/eodhp-transfer-planner/api/v1alpha1"
)

// Validate checks the coherence rules a transfer spec must satisfy before
// any graph construction. It has no side effects and reports the first
// violated constraint as a ValidationError naming the offending field.
func Validate(spec *corev1alpha1.TransferSpec) error {
	if spec.Name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}

	if spec.Domain != corev1alpha1.DomainS3 && spec.Domain != corev1alpha1.DomainEFS {
		return &ValidationError{Field: "domain",
			Reason: fmt.Sprintf("must be %q or %q, got %q",
				corev1alpha1.DomainS3, corev1alpha1.DomainEFS, spec.Domain)}
	}

	if spec.Domain == corev1alpha1.DomainS3 && spec.Bucket == "" {
		return &ValidationError{Field: "bucket",
			Reason: "required for the S3 domain"}
	}
	if spec.Domain == corev1alpha1.DomainEFS && spec.EFSID == "" {
		return &ValidationError{Field: "efsID",
			Reason: "required for the EFS domain"}
	}

	// Restricted homes are expressed as logical mappings into the bucket, so
	// they are only meaningful when a bucket is present.
	if spec.RestrictedHome && spec.Bucket == "" {
		return &ValidationError{Field: "restrictedHome",
			Reason: "requires a bucket name"}
	}

	subnets := make(map[string]struct{}, len(spec.Networking.SubnetIDs))
	for i, subnetID := range spec.Networking.SubnetIDs {
		if _, dup := subnets[subnetID]; dup {
			return &ValidationError{
				Field:  fmt.Sprintf("networking.subnetIDs[%d]", i),
				Reason: fmt.Sprintf("duplicate subnet %q", subnetID)}
		}
		subnets[subnetID] = struct{}{}
	}

	names := make(map[string]struct{}, len(spec.Users))
	logins := make(map[string]struct{}, len(spec.Users))
	for i, user := range spec.Users {
		field := fmt.Sprintf("users[%d]", i)
		if user.Name == "" {
			return &ValidationError{Field: field + ".name",
				Reason: "must not be empty"}
		}
		if user.Login == "" {
			return &ValidationError{Field: field + ".login",
				Reason: "must not be empty"}
		}
		if user.PublicKey == "" {
			return &ValidationError{Field: field + ".publicKey",
				Reason: "must not be empty"}
		}
		if _, dup := names[user.Name]; dup {
			return &ValidationError{Field: field + ".name",
				Reason: fmt.Sprintf("duplicate user %q", user.Name)}
		}
		if _, dup := logins[user.Login]; dup {
			return &ValidationError{Field: field + ".login",
				Reason: fmt.Sprintf("duplicate login %q", user.Login)}
		}
		names[user.Name] = struct{}{}
		logins[user.Login] = struct{}{}
	}

	if spec.Workflow.Enabled && spec.Workflow.FunctionARN == "" {
		return &ValidationError{Field: "workflow.functionARN",
			Reason: "required when the workflow is enabled"}
	}

	// A domain name without a zone (or vice versa) cannot produce a record.
	if (spec.DNS.DomainName == "") != (spec.DNS.HostedZoneID == "") {
		return &ValidationError{Field: "dns",
			Reason: "domainName and hostedZoneID must be set together"}
	}

	return nil
}
