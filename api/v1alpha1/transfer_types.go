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

package v1alpha1

// Storage domains supported by the transfer server.
const (
	DomainS3  = "S3"
	DomainEFS = "EFS"
)

// TransferSpec defines the desired state of one SFTP transfer endpoint and
// everything hanging off it: users, access scoping, networking and the
// optional on-upload processing pipeline. It is the single input of a plan
// evaluation.
type TransferSpec struct {
	// Name prefixes every resource created for this endpoint
	Name string `json:"name"`
	// Enabled is the global kill switch. When false no resources exist.
	Enabled bool `json:"enabled"`
	// Domain selects the storage backend, S3 or EFS
	Domain string `json:"domain"`
	// Users declared on the endpoint, in stable order
	Users []UserSpec `json:"users,omitempty"`
	// Bucket backing user home directories (S3 domain)
	Bucket string `json:"bucket,omitempty"`
	// S3Actions are the object-level actions granted inside a user's home
	S3Actions []string `json:"s3Actions,omitempty"`
	// EFSID is the shared filesystem backing home directories (EFS domain)
	EFSID string `json:"efsID,omitempty"`
	// RestrictedHome maps each user's home to a logical chroot-style path
	RestrictedHome bool `json:"restrictedHome,omitempty"`
	// Networking parameters
	Networking NetworkingSpec `json:"networking,omitempty"`
	// Workflow parameters
	Workflow WorkflowSpec `json:"workflow,omitempty"`
	// DNS parameters
	DNS DNSSpec `json:"dns,omitempty"`
}

// UserSpec declares one SFTP user.
type UserSpec struct {
	// Name identifies the user within the spec
	Name string `json:"name"`
	// Login is the SFTP login name and the home directory path segment
	Login string `json:"login"`
	// PublicKey is the user's SSH public key credential
	PublicKey string `json:"publicKey"`
	// UID/GID form the posix identity used by the EFS backend
	UID int64 `json:"uid,omitempty"`
	GID int64 `json:"gid,omitempty"`
}

// NetworkingSpec holds the optional VPC attachment of the endpoint. An empty
// VPCID means a public endpoint.
type NetworkingSpec struct {
	VPCID            string   `json:"vpcID,omitempty"`
	SubnetIDs        []string `json:"subnetIDs,omitempty"`
	SecurityGroupIDs []string `json:"securityGroupIDs,omitempty"`
	// AllowedCIDRs are granted ingress on port 22 by the managed group
	AllowedCIDRs []string `json:"allowedCIDRs,omitempty"`
	// ElasticIPs allocates one address per subnet
	ElasticIPs bool `json:"elasticIPs,omitempty"`
	// ManageSecurityGroup creates a security group for the endpoint
	ManageSecurityGroup bool `json:"manageSecurityGroup,omitempty"`
}

// WorkflowSpec holds the optional upload-triggered processing pipeline.
type WorkflowSpec struct {
	Enabled bool `json:"enabled,omitempty"`
	// FunctionARN identifies the externally deployed processing function
	FunctionARN string `json:"functionARN,omitempty"`
	// TimeoutSeconds bounds the custom workflow step
	TimeoutSeconds int64 `json:"timeoutSeconds,omitempty"`
}

// DNSSpec aliases a custom domain name to the server endpoint. Both fields
// must be set for a record to be created.
type DNSSpec struct {
	DomainName   string `json:"domainName,omitempty"`
	HostedZoneID string `json:"hostedZoneID,omitempty"`
}

// DefaultS3Actions are the object actions granted when the spec does not
// list its own set.
var DefaultS3Actions = []string{
	"s3:PutObject",
	"s3:GetObject",
	"s3:DeleteObject",
	"s3:GetObjectVersion",
}
