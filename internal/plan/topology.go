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
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/aws/aws-sdk-go/service/iam"
	"github.com/aws/aws-sdk-go/service/lambda"
	"github.com/aws/aws-sdk-go/service/route53"
	"github.com/aws/aws-sdk-go/service/transfer"
)

// Singleton intent keys.
const (
	keyMain     = "main"
	keyLogging  = "logging"
	keyWorkflow = "workflow"
	keyFunction = "function"
	keyOnUpload = "on-upload"
	keyTransfer = "transfer"
)

// userKeyPrefix namespaces per-user role and policy keys away from the
// singleton keys above, so a login such as "logging" cannot collide with
// internal wiring.
const userKeyPrefix = "user:"

func userKey(login string) string {
	return userKeyPrefix + login
}

// SourceFileLocation token resolved by the transfer service to the file that
// was just uploaded.
const originalFileLocation = "${original.file}"

// Builder assembles the intent graph of one transfer endpoint. A single
// Build call is a pure forward derivation: spec in, graph or error out.
type Builder struct {
	Spec *corev1alpha1.TransferSpec
	// AccountID and Region anchor the deterministic ARNs in the plan
	AccountID string
	Region    string
	// UniqueString suffixes resource names, as for workspace resources
	UniqueString string
}

// Build validates the spec and derives the full intent graph in dependency
// order. Disabled specs produce an empty graph.
func (b *Builder) Build() (*Graph, error) {
	if err := Validate(b.Spec); err != nil {
		return nil, err
	}

	g := NewGraph()
	if !b.Spec.Enabled {
		return g, nil
	}

	features := ResolveFeatures(b.Spec)
	if features.IsVPC && len(b.Spec.Networking.SubnetIDs) == 0 {
		return nil, &TopologyError{
			Detail: "VPC mode requested without any subnets declared"}
	}

	pol := PolicyGenerator{AccountID: b.AccountID, Region: b.Region}
	trustDoc, err := pol.Trust(transferServicePrincipal).Render()
	if err != nil {
		return nil, err
	}

	if err := b.addLogging(g, pol, trustDoc); err != nil {
		return nil, err
	}

	var serverDeps []Ref
	serverDeps = append(serverDeps, Ref{Kind: KindRole, Key: keyLogging})

	if features.IsVPC {
		networkingRef, err := b.addNetworking(g, features)
		if err != nil {
			return nil, err
		}
		serverDeps = append(serverDeps, networkingRef)
	}

	if b.Spec.Workflow.Enabled {
		workflowDeps, err := b.addWorkflow(g, pol, trustDoc)
		if err != nil {
			return nil, err
		}
		serverDeps = append(serverDeps, workflowDeps...)
	}

	serverRef, err := b.addServer(g, pol, features, serverDeps)
	if err != nil {
		return nil, err
	}

	for _, user := range b.Spec.Users {
		if err := b.addUser(g, pol, trustDoc, serverRef, user); err != nil {
			return nil, err
		}
	}

	if b.Spec.DNS.DomainName != "" && b.Spec.DNS.HostedZoneID != "" {
		if err := b.addDNSRecord(g, serverRef); err != nil {
			return nil, err
		}
	}

	return g, nil
}

func (b *Builder) prefix() string {
	if b.UniqueString == "" {
		return b.Spec.Name
	}
	return fmt.Sprintf("%s-%s", b.Spec.Name, b.UniqueString)
}

// addLogging emits the audit-logging role and its policy. These exist
// whenever the endpoint is enabled, independent of user count.
func (b *Builder) addLogging(g *Graph, pol PolicyGenerator, trustDoc string) error {
	name := fmt.Sprintf("%s-logging", b.prefix())
	doc, err := pol.Logging().Render()
	if err != nil {
		return err
	}

	if err := g.Add(Intent{
		Kind: KindPolicy,
		Key:  keyLogging,
		Spec: &iam.PutRolePolicyInput{
			PolicyName:     aws.String(name),
			RoleName:       aws.String(name),
			PolicyDocument: aws.String(doc),
		},
	}); err != nil {
		return err
	}

	return g.Add(Intent{
		Kind:      KindRole,
		Key:       keyLogging,
		DependsOn: []Ref{{Kind: KindPolicy, Key: keyLogging}},
		Spec: &iam.CreateRoleInput{
			RoleName:                 aws.String(name),
			AssumeRolePolicyDocument: aws.String(trustDoc),
		},
	})
}

// addNetworking emits the VPC attachment of the server: the optional managed
// security group and ingress rule, the optional per-subnet elastic IPs, and
// the endpoint-details intent tying them together. Exactly one networking
// intent is attached to the server in VPC mode.
func (b *Builder) addNetworking(g *Graph, features Features) (Ref, error) {
	networking := b.Spec.Networking
	securityGroupIDs := aws.StringSlice(networking.SecurityGroupIDs)
	var deps []Ref

	if features.SecurityGroupManaged {
		sgRef := Ref{Kind: KindSecurityGroup, Key: keyTransfer}
		if err := g.Add(Intent{
			Kind: KindSecurityGroup,
			Key:  keyTransfer,
			Spec: &ec2.CreateSecurityGroupInput{
				GroupName:   aws.String(fmt.Sprintf("%s-transfer", b.prefix())),
				Description: aws.String("SFTP ingress for the transfer endpoint"),
				VpcId:       aws.String(networking.VPCID),
			},
		}); err != nil {
			return Ref{}, err
		}

		cidrs := networking.AllowedCIDRs
		if len(cidrs) == 0 {
			cidrs = []string{"0.0.0.0/0"}
		}
		ranges := make([]*ec2.IpRange, 0, len(cidrs))
		for _, cidr := range cidrs {
			ranges = append(ranges, &ec2.IpRange{CidrIp: aws.String(cidr)})
		}
		if err := g.Add(Intent{
			Kind:      KindSecurityIngress,
			Key:       keyTransfer,
			DependsOn: []Ref{sgRef},
			Spec: &ec2.AuthorizeSecurityGroupIngressInput{
				GroupId: aws.String(sgRef.Token()),
				IpPermissions: []*ec2.IpPermission{{
					IpProtocol: aws.String("tcp"),
					FromPort:   aws.Int64(22),
					ToPort:     aws.Int64(22),
					IpRanges:   ranges,
				}},
			},
		}); err != nil {
			return Ref{}, err
		}

		deps = append(deps, sgRef)
		securityGroupIDs = append(securityGroupIDs, aws.String(sgRef.Token()))
	}

	// One address per declared subnet, a structural invariant of the plan.
	var allocationIDs []*string
	if networking.ElasticIPs {
		for _, subnetID := range networking.SubnetIDs {
			eipRef := Ref{Kind: KindElasticIP, Key: subnetID}
			if err := g.Add(Intent{
				Kind: KindElasticIP,
				Key:  subnetID,
				Spec: &ec2.AllocateAddressInput{
					Domain: aws.String(ec2.DomainTypeVpc),
				},
			}); err != nil {
				return Ref{}, err
			}
			deps = append(deps, eipRef)
			allocationIDs = append(allocationIDs, aws.String(eipRef.Token()))
		}
	}

	networkingRef := Ref{Kind: KindNetworking, Key: keyMain}
	if err := g.Add(Intent{
		Kind:      KindNetworking,
		Key:       keyMain,
		DependsOn: deps,
		Spec: &transfer.EndpointDetails{
			VpcId:                aws.String(networking.VPCID),
			SubnetIds:            aws.StringSlice(networking.SubnetIDs),
			SecurityGroupIds:     securityGroupIDs,
			AddressAllocationIds: allocationIDs,
		},
	}); err != nil {
		return Ref{}, err
	}
	return networkingRef, nil
}

// addWorkflow emits the upload pipeline: processing role, function
// execution role, invoke permission and the single-step workflow. Returns
// the refs the server intent must depend on.
func (b *Builder) addWorkflow(g *Graph, pol PolicyGenerator, trustDoc string) ([]Ref, error) {
	workflowRole := fmt.Sprintf("%s-workflow", b.prefix())
	functionRole := fmt.Sprintf("%s-function", b.prefix())

	processingDoc, err := pol.Processing(b.Spec).Render()
	if err != nil {
		return nil, err
	}
	if err := g.Add(Intent{
		Kind: KindPolicy,
		Key:  keyWorkflow,
		Spec: &iam.PutRolePolicyInput{
			PolicyName:     aws.String(workflowRole),
			RoleName:       aws.String(workflowRole),
			PolicyDocument: aws.String(processingDoc),
		},
	}); err != nil {
		return nil, err
	}
	workflowRoleRef := Ref{Kind: KindRole, Key: keyWorkflow}
	if err := g.Add(Intent{
		Kind:      KindRole,
		Key:       keyWorkflow,
		DependsOn: []Ref{{Kind: KindPolicy, Key: keyWorkflow}},
		Spec: &iam.CreateRoleInput{
			RoleName:                 aws.String(workflowRole),
			AssumeRolePolicyDocument: aws.String(trustDoc),
		},
	}); err != nil {
		return nil, err
	}

	lambdaTrustDoc, err := pol.Trust(lambdaServicePrincipal).Render()
	if err != nil {
		return nil, err
	}
	executionDoc, err := pol.FunctionExecution(b.Spec).Render()
	if err != nil {
		return nil, err
	}
	if err := g.Add(Intent{
		Kind: KindPolicy,
		Key:  keyFunction,
		Spec: &iam.PutRolePolicyInput{
			PolicyName:     aws.String(functionRole),
			RoleName:       aws.String(functionRole),
			PolicyDocument: aws.String(executionDoc),
		},
	}); err != nil {
		return nil, err
	}
	if err := g.Add(Intent{
		Kind:      KindRole,
		Key:       keyFunction,
		DependsOn: []Ref{{Kind: KindPolicy, Key: keyFunction}},
		Spec: &iam.CreateRoleInput{
			RoleName:                 aws.String(functionRole),
			AssumeRolePolicyDocument: aws.String(lambdaTrustDoc),
		},
	}); err != nil {
		return nil, err
	}

	permissionRef := Ref{Kind: KindLambdaPermission, Key: keyWorkflow}
	if err := g.Add(Intent{
		Kind: KindLambdaPermission,
		Key:  keyWorkflow,
		Spec: &lambda.AddPermissionInput{
			Action:       aws.String("lambda:InvokeFunction"),
			FunctionName: aws.String(b.Spec.Workflow.FunctionARN),
			Principal:    aws.String(transferServicePrincipal),
			StatementId:  aws.String("AllowTransferInvoke"),
		},
	}); err != nil {
		return nil, err
	}

	timeout := b.Spec.Workflow.TimeoutSeconds
	if timeout == 0 {
		timeout = 600
	}
	workflowRef := Ref{Kind: KindWorkflow, Key: keyOnUpload}
	if err := g.Add(Intent{
		Kind:      KindWorkflow,
		Key:       keyOnUpload,
		DependsOn: []Ref{workflowRoleRef, permissionRef},
		Spec: &transfer.CreateWorkflowInput{
			Description: aws.String(
				fmt.Sprintf("Forward files uploaded to %s for processing", b.Spec.Name)),
			Steps: []*transfer.WorkflowStep{{
				Type: aws.String(transfer.WorkflowStepTypeCustom),
				CustomStepDetails: &transfer.CustomStepDetails{
					Name:               aws.String("process_upload"),
					Target:             aws.String(b.Spec.Workflow.FunctionARN),
					TimeoutSeconds:     aws.Int64(timeout),
					SourceFileLocation: aws.String(originalFileLocation),
				},
			}},
		},
	}); err != nil {
		return nil, err
	}

	return []Ref{workflowRoleRef, workflowRef}, nil
}

// addServer emits the transfer-server singleton.
func (b *Builder) addServer(g *Graph, pol PolicyGenerator, features Features,
	deps []Ref) (Ref, error) {

	domain := transfer.DomainS3
	if !features.IsS3Backend {
		domain = transfer.DomainEfs
	}
	endpointType := transfer.EndpointTypePublic
	if features.IsVPC {
		endpointType = transfer.EndpointTypeVpc
	}

	input := &transfer.CreateServerInput{
		Domain:               aws.String(domain),
		EndpointType:         aws.String(endpointType),
		IdentityProviderType: aws.String(transfer.IdentityProviderTypeServiceManaged),
		Protocols:            aws.StringSlice([]string{"SFTP"}),
		LoggingRole: aws.String(
			pol.RoleARN(fmt.Sprintf("%s-logging", b.prefix()))),
	}
	if b.Spec.Workflow.Enabled {
		input.WorkflowDetails = &transfer.WorkflowDetails{
			OnUpload: []*transfer.WorkflowDetail{{
				ExecutionRole: aws.String(
					pol.RoleARN(fmt.Sprintf("%s-workflow", b.prefix()))),
				WorkflowId: aws.String(
					Ref{Kind: KindWorkflow, Key: keyOnUpload}.Token()),
			}},
		}
	}

	serverRef := Ref{Kind: KindServer, Key: keyMain}
	if err := g.Add(Intent{
		Kind:      KindServer,
		Key:       keyMain,
		DependsOn: deps,
		Spec:      input,
	}); err != nil {
		return Ref{}, err
	}
	return serverRef, nil
}

// addUser emits the per-user chain policy -> role -> user -> ssh key, keyed
// by login name throughout.
func (b *Builder) addUser(g *Graph, pol PolicyGenerator, trustDoc string,
	serverRef Ref, user corev1alpha1.UserSpec) error {

	roleName := fmt.Sprintf("%s-user-%s", b.prefix(), user.Login)
	doc, err := pol.ForUser(b.Spec, user).Render()
	if err != nil {
		return err
	}

	policyRef := Ref{Kind: KindPolicy, Key: userKey(user.Login)}
	if err := g.Add(Intent{
		Kind: KindPolicy,
		Key:  userKey(user.Login),
		Spec: &iam.PutRolePolicyInput{
			PolicyName:     aws.String(roleName),
			RoleName:       aws.String(roleName),
			PolicyDocument: aws.String(doc),
		},
	}); err != nil {
		return err
	}

	roleRef := Ref{Kind: KindRole, Key: userKey(user.Login)}
	if err := g.Add(Intent{
		Kind:      KindRole,
		Key:       userKey(user.Login),
		DependsOn: []Ref{policyRef},
		Spec: &iam.CreateRoleInput{
			RoleName:                 aws.String(roleName),
			AssumeRolePolicyDocument: aws.String(trustDoc),
		},
	}); err != nil {
		return err
	}

	userInput := &transfer.CreateUserInput{
		ServerId: aws.String(serverRef.Token()),
		UserName: aws.String(user.Login),
		Role:     aws.String(pol.RoleARN(roleName)),
	}
	if b.Spec.Domain == corev1alpha1.DomainEFS {
		userInput.HomeDirectory = aws.String(
			fmt.Sprintf("/%s/%s", b.Spec.EFSID, user.Login))
		userInput.PosixProfile = &transfer.PosixProfile{
			Uid: aws.Int64(user.UID),
			Gid: aws.Int64(user.GID),
		}
	} else if b.Spec.RestrictedHome {
		// Logical mapping: the user lands in "/" and only ever sees its own
		// prefix of the bucket.
		userInput.HomeDirectoryType = aws.String(transfer.HomeDirectoryTypeLogical)
		userInput.HomeDirectoryMappings = []*transfer.HomeDirectoryMapEntry{{
			Entry:  aws.String("/"),
			Target: aws.String(fmt.Sprintf("/%s/%s", b.Spec.Bucket, user.Login)),
		}}
	} else {
		userInput.HomeDirectory = aws.String(
			fmt.Sprintf("/%s/%s", b.Spec.Bucket, user.Login))
	}

	userRef := Ref{Kind: KindUser, Key: user.Login}
	if err := g.Add(Intent{
		Kind:      KindUser,
		Key:       user.Login,
		DependsOn: []Ref{serverRef, roleRef},
		Spec:      userInput,
	}); err != nil {
		return err
	}

	// The user must exist before its credential is attached.
	return g.Add(Intent{
		Kind:      KindSSHKey,
		Key:       user.Login,
		DependsOn: []Ref{userRef},
		Spec: &transfer.ImportSshPublicKeyInput{
			ServerId:         aws.String(serverRef.Token()),
			UserName:         aws.String(user.Login),
			SshPublicKeyBody: aws.String(user.PublicKey),
		},
	})
}

// addDNSRecord emits the CNAME aliasing the custom domain name to the
// server's generated endpoint address.
func (b *Builder) addDNSRecord(g *Graph, serverRef Ref) error {
	return g.Add(Intent{
		Kind:      KindDNSRecord,
		Key:       keyMain,
		DependsOn: []Ref{serverRef},
		Spec: &route53.ChangeResourceRecordSetsInput{
			HostedZoneId: aws.String(b.Spec.DNS.HostedZoneID),
			ChangeBatch: &route53.ChangeBatch{
				Changes: []*route53.Change{{
					Action: aws.String(route53.ChangeActionUpsert),
					ResourceRecordSet: &route53.ResourceRecordSet{
						Name: aws.String(b.Spec.DNS.DomainName),
						Type: aws.String(route53.RRTypeCname),
						TTL:  aws.Int64(300),
						ResourceRecords: []*route53.ResourceRecord{{
							Value: aws.String(serverRef.AttrToken("endpoint")),
						}},
					},
				}},
			},
		},
	})
}
