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

	corev1alpha1 "github.com/EO-DataHub/eodhp-transfer-planner/api/v1alpha1"
	"github.com/aws/aws-sdk-go/aws/arn"
)

const (
	transferServicePrincipal = "transfer.amazonaws.com"
	lambdaServicePrincipal   = "lambda.amazonaws.com"
)

// PolicyDocument is an IAM policy document.
type PolicyDocument struct {
	Version   string      `json:"Version"`
	Statement []Statement `json:"Statement"`
}

type Statement struct {
	Sid       string     `json:"Sid,omitempty"`
	Effect    string     `json:"Effect"`
	Principal *Principal `json:"Principal,omitempty"`
	Action    []string   `json:"Action"`
	Resource  []string   `json:"Resource,omitempty"`
}

type Principal struct {
	Service string `json:"Service"`
}

// Render returns the document as the JSON string an iam input expects.
func (d PolicyDocument) Render() (string, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// PolicyGenerator derives the policy documents of a plan. ARNs are built
// from the planner's account and region.
type PolicyGenerator struct {
	AccountID string
	Region    string
}

// Trust returns the assume-role policy document trusting the given service
// principal. Every service-trusting role in the plan shares this shape.
func (p PolicyGenerator) Trust(service string) PolicyDocument {
	return PolicyDocument{
		Version: "2012-10-17",
		Statement: []Statement{{
			Effect:    "Allow",
			Principal: &Principal{Service: service},
			Action:    []string{"sts:AssumeRole"},
		}},
	}
}

// ForUser returns the access policy scoping one user to its home prefix,
// branching on the storage backend.
//
// S3 backend: listing is granted on the bucket itself so the client can
// enumerate its home directory, and object actions are granted under
// bucket/<login>/*. The login name, not the spec map key, is the scoping
// path segment.
//
// EFS backend: a single statement over the shared filesystem. Isolation at
// this layer is the filesystem's posix model, driven by the user's uid.
func (p PolicyGenerator) ForUser(spec *corev1alpha1.TransferSpec,
	user corev1alpha1.UserSpec) PolicyDocument {

	if spec.Domain == corev1alpha1.DomainEFS {
		return PolicyDocument{
			Version: "2012-10-17",
			Statement: []Statement{{
				Sid:    "AllowFileSystemAccess",
				Effect: "Allow",
				Action: []string{
					"elasticfilesystem:ClientMount",
					"elasticfilesystem:ClientWrite",
					"elasticfilesystem:ClientRootAccess",
				},
				Resource: []string{p.fileSystemARN(spec.EFSID)},
			}},
		}
	}

	actions := spec.S3Actions
	if len(actions) == 0 {
		actions = corev1alpha1.DefaultS3Actions
	}
	bucketARN := p.bucketARN(spec.Bucket)
	return PolicyDocument{
		Version: "2012-10-17",
		Statement: []Statement{
			{
				Sid:      "AllowListingOfUserFolder",
				Effect:   "Allow",
				Action:   []string{"s3:ListBucket"},
				Resource: []string{bucketARN},
			},
			{
				Sid:      "HomeDirObjectAccess",
				Effect:   "Allow",
				Action:   actions,
				Resource: []string{fmt.Sprintf("%s/%s/*", bucketARN, user.Login)},
			},
		},
	}
}

// Logging returns the policy letting the transfer server write its audit
// logs.
func (p PolicyGenerator) Logging() PolicyDocument {
	return PolicyDocument{
		Version: "2012-10-17",
		Statement: []Statement{{
			Sid:    "AllowTransferLogging",
			Effect: "Allow",
			Action: []string{
				"logs:CreateLogGroup",
				"logs:CreateLogStream",
				"logs:DescribeLogStreams",
				"logs:PutLogEvents",
			},
			Resource: []string{"arn:aws:logs:*:*:log-group:/aws/transfer/*"},
		}},
	}
}

// Processing returns the policy of the role the workflow executes under:
// invoke the processing function and touch uploaded objects.
func (p PolicyGenerator) Processing(spec *corev1alpha1.TransferSpec) PolicyDocument {
	doc := PolicyDocument{
		Version: "2012-10-17",
		Statement: []Statement{{
			Sid:      "AllowInvokeProcessingFunction",
			Effect:   "Allow",
			Action:   []string{"lambda:InvokeFunction"},
			Resource: []string{spec.Workflow.FunctionARN},
		}},
	}
	if spec.Bucket != "" {
		bucketARN := p.bucketARN(spec.Bucket)
		doc.Statement = append(doc.Statement, Statement{
			Sid:    "AllowUploadedObjectAccess",
			Effect: "Allow",
			Action: []string{"s3:GetObject", "s3:GetObjectVersion", "s3:PutObject"},
			Resource: []string{
				bucketARN,
				fmt.Sprintf("%s/*", bucketARN),
			},
		})
	}
	return doc
}

// FunctionExecution returns the execution policy of the processing function
// itself: log writes, filesystem mounts, workflow step-state callbacks and
// the network interfaces needed for VPC-attached execution.
func (p PolicyGenerator) FunctionExecution(spec *corev1alpha1.TransferSpec) PolicyDocument {
	doc := PolicyDocument{
		Version: "2012-10-17",
		Statement: []Statement{
			{
				Sid:    "AllowFunctionLogging",
				Effect: "Allow",
				Action: []string{
					"logs:CreateLogGroup",
					"logs:CreateLogStream",
					"logs:PutLogEvents",
				},
				Resource: []string{"arn:aws:logs:*:*:*"},
			},
			{
				Sid:    "AllowWorkflowCallback",
				Effect: "Allow",
				Action: []string{"transfer:SendWorkflowStepState"},
				Resource: []string{
					p.transferARN("workflow/*"),
				},
			},
			{
				Sid:    "AllowNetworkInterfaces",
				Effect: "Allow",
				Action: []string{
					"ec2:CreateNetworkInterface",
					"ec2:DescribeNetworkInterfaces",
					"ec2:DeleteNetworkInterface",
				},
				Resource: []string{"*"},
			},
		},
	}
	if spec.EFSID != "" {
		doc.Statement = append(doc.Statement, Statement{
			Sid:    "AllowFileSystemMount",
			Effect: "Allow",
			Action: []string{
				"elasticfilesystem:ClientMount",
				"elasticfilesystem:ClientWrite",
			},
			Resource: []string{p.fileSystemARN(spec.EFSID)},
		})
	}
	return doc
}

// RoleARN returns the deterministic ARN of an IAM role in the planner's
// account.
func (p PolicyGenerator) RoleARN(name string) string {
	return arn.ARN{
		Partition: "aws",
		Service:   "iam",
		AccountID: p.AccountID,
		Resource:  "role/" + name,
	}.String()
}

func (p PolicyGenerator) bucketARN(bucket string) string {
	return arn.ARN{
		Partition: "aws",
		Service:   "s3",
		Resource:  bucket,
	}.String()
}

func (p PolicyGenerator) fileSystemARN(fsID string) string {
	return arn.ARN{
		Partition: "aws",
		Service:   "elasticfilesystem",
		Region:    p.Region,
		AccountID: p.AccountID,
		Resource:  "file-system/" + fsID,
	}.String()
}

func (p PolicyGenerator) transferARN(resource string) string {
	return arn.ARN{
		Partition: "aws",
		Service:   "transfer",
		Region:    p.Region,
		AccountID: p.AccountID,
		Resource:  resource,
	}.String()
}
