package plan_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/aws/aws-sdk-go/service/iam"
	"github.com/aws/aws-sdk-go/service/route53"
	"github.com/aws/aws-sdk-go/service/transfer"

	corev1alpha1 "github.com/EO-DataHub/eodhp-transfer-planner/api/v1alpha1"
	"github.com/EO-DataHub/eodhp-transfer-planner/internal/plan"
)

func newBuilder(spec *corev1alpha1.TransferSpec) *plan.Builder {
	return &plan.Builder{
		Spec:         spec,
		AccountID:    "123456789012",
		Region:       "eu-west-2",
		UniqueString: "dev",
	}
}

// refs collects the refs of all intents of one kind.
func refs(g *plan.Graph, kind plan.Kind) []string {
	var out []string
	for _, intent := range g.Intents() {
		if intent.Kind == kind {
			out = append(out, intent.Key)
		}
	}
	return out
}

var _ = Describe("Builder", func() {
	It("produces an empty graph when the endpoint is disabled", func() {
		spec := validSpec()
		spec.Enabled = false
		g, err := newBuilder(spec).Build()
		Expect(err).NotTo(HaveOccurred())
		Expect(g.Intents()).To(BeEmpty())
	})

	It("rejects an incoherent spec before building anything", func() {
		spec := validSpec()
		spec.Domain = "NFS"
		_, err := newBuilder(spec).Build()
		var verr *plan.ValidationError
		Expect(err).To(BeAssignableToTypeOf(verr))
	})

	It("emits every dependency before its dependents", func() {
		spec := validSpec()
		spec.Networking.VPCID = "vpc-0123"
		spec.Networking.SubnetIDs = []string{"subnet-1", "subnet-2"}
		spec.Networking.ElasticIPs = true
		spec.Networking.ManageSecurityGroup = true
		spec.Workflow.Enabled = true
		spec.Workflow.FunctionARN = "arn:aws:lambda:eu-west-2:123456789012:function:scan"
		spec.DNS = corev1alpha1.DNSSpec{
			DomainName:   "sftp.example.com",
			HostedZoneID: "Z0123",
		}

		g, err := newBuilder(spec).Build()
		Expect(err).NotTo(HaveOccurred())

		seen := map[string]bool{}
		for _, intent := range g.Intents() {
			for _, dep := range intent.DependsOn {
				Expect(seen[dep.String()]).To(BeTrue(),
					"intent %s depends on %s which was emitted later",
					intent.Ref(), dep)
			}
			seen[intent.Ref().String()] = true
		}
	})

	Describe("per-user intents", func() {
		It("produces one role/policy pair, user and credential per declared user", func() {
			g, err := newBuilder(validSpec()).Build()
			Expect(err).NotTo(HaveOccurred())

			Expect(refs(g, plan.KindUser)).To(Equal([]string{"alice", "bob"}))
			Expect(refs(g, plan.KindSSHKey)).To(Equal([]string{"alice", "bob"}))
			Expect(refs(g, plan.KindRole)).To(ConsistOf(
				"logging", "user:alice", "user:bob"))
			Expect(refs(g, plan.KindPolicy)).To(ConsistOf(
				"logging", "user:alice", "user:bob"))
		})

		It("produces zero per-user intents for an empty user list", func() {
			spec := validSpec()
			spec.Users = nil
			g, err := newBuilder(spec).Build()
			Expect(err).NotTo(HaveOccurred())
			Expect(refs(g, plan.KindUser)).To(BeEmpty())
			Expect(refs(g, plan.KindSSHKey)).To(BeEmpty())
			Expect(refs(g, plan.KindRole)).To(ConsistOf("logging"))
		})

		It("accepts logins that match internal role names", func() {
			spec := validSpec()
			spec.Users = []corev1alpha1.UserSpec{
				{Name: "u1", Login: "logging", PublicKey: "ssh-rsa AAA...", UID: 1001},
				{Name: "u2", Login: "function", PublicKey: "ssh-rsa BBB...", UID: 1002},
			}
			g, err := newBuilder(spec).Build()
			Expect(err).NotTo(HaveOccurred())

			Expect(refs(g, plan.KindRole)).To(ConsistOf(
				"logging", "user:logging", "user:function"))
			Expect(refs(g, plan.KindPolicy)).To(ConsistOf(
				"logging", "user:logging", "user:function"))
			Expect(refs(g, plan.KindUser)).To(Equal([]string{"logging", "function"}))
		})

		It("attaches the credential after its user", func() {
			g, err := newBuilder(validSpec()).Build()
			Expect(err).NotTo(HaveOccurred())

			key, ok := g.Lookup(plan.Ref{Kind: plan.KindSSHKey, Key: "alice"})
			Expect(ok).To(BeTrue())
			Expect(key.DependsOn).To(ConsistOf(
				plan.Ref{Kind: plan.KindUser, Key: "alice"}))
		})

		It("scopes each user's policy to its login name", func() {
			g, err := newBuilder(validSpec()).Build()
			Expect(err).NotTo(HaveOccurred())

			for _, login := range []string{"alice", "bob"} {
				intent, ok := g.Lookup(plan.Ref{
					Kind: plan.KindPolicy, Key: "user:" + login})
				Expect(ok).To(BeTrue())
				input := intent.Spec.(*iam.PutRolePolicyInput)
				Expect(aws.StringValue(input.PolicyDocument)).To(ContainSubstring(
					"arn:aws:s3:::hub-data/" + login + "/*"))
			}
		})

		It("references the shared filesystem for every EFS user", func() {
			spec := validSpec()
			spec.Domain = corev1alpha1.DomainEFS
			spec.Bucket = ""
			spec.EFSID = "fs-0123"
			g, err := newBuilder(spec).Build()
			Expect(err).NotTo(HaveOccurred())

			for _, login := range []string{"alice", "bob"} {
				intent, _ := g.Lookup(plan.Ref{
					Kind: plan.KindPolicy, Key: "user:" + login})
				input := intent.Spec.(*iam.PutRolePolicyInput)
				Expect(aws.StringValue(input.PolicyDocument)).To(ContainSubstring(
					"file-system/fs-0123"))
				Expect(aws.StringValue(input.PolicyDocument)).NotTo(
					ContainSubstring(login))
			}
		})

		It("passes the posix identity through unchanged on EFS", func() {
			spec := validSpec()
			spec.Domain = corev1alpha1.DomainEFS
			spec.Bucket = ""
			spec.EFSID = "fs-0123"
			g, err := newBuilder(spec).Build()
			Expect(err).NotTo(HaveOccurred())

			intent, _ := g.Lookup(plan.Ref{Kind: plan.KindUser, Key: "alice"})
			input := intent.Spec.(*transfer.CreateUserInput)
			Expect(aws.Int64Value(input.PosixProfile.Uid)).To(Equal(int64(1001)))
		})

		It("maps restricted homes logically", func() {
			spec := validSpec()
			spec.RestrictedHome = true
			g, err := newBuilder(spec).Build()
			Expect(err).NotTo(HaveOccurred())

			intent, _ := g.Lookup(plan.Ref{Kind: plan.KindUser, Key: "alice"})
			input := intent.Spec.(*transfer.CreateUserInput)
			Expect(aws.StringValue(input.HomeDirectoryType)).To(
				Equal(transfer.HomeDirectoryTypeLogical))
			Expect(input.HomeDirectoryMappings).To(HaveLen(1))
			Expect(aws.StringValue(input.HomeDirectoryMappings[0].Target)).To(
				Equal("/hub-data/alice"))
		})
	})

	Describe("networking", func() {
		It("attaches no networking intent to a public endpoint", func() {
			spec := validSpec()
			spec.Networking.ElasticIPs = true // VPC is a precondition
			g, err := newBuilder(spec).Build()
			Expect(err).NotTo(HaveOccurred())
			Expect(g.Count(plan.KindNetworking)).To(BeZero())
			Expect(g.Count(plan.KindElasticIP)).To(BeZero())

			server, _ := g.Lookup(plan.Ref{Kind: plan.KindServer, Key: "main"})
			input := server.Spec.(*transfer.CreateServerInput)
			Expect(aws.StringValue(input.EndpointType)).To(
				Equal(transfer.EndpointTypePublic))
		})

		It("attaches exactly one networking intent in VPC mode", func() {
			spec := validSpec()
			spec.Networking.VPCID = "vpc-0123"
			spec.Networking.SubnetIDs = []string{"subnet-1"}
			g, err := newBuilder(spec).Build()
			Expect(err).NotTo(HaveOccurred())
			Expect(g.Count(plan.KindNetworking)).To(Equal(1))

			server, _ := g.Lookup(plan.Ref{Kind: plan.KindServer, Key: "main"})
			Expect(server.DependsOn).To(ContainElement(
				plan.Ref{Kind: plan.KindNetworking, Key: "main"}))
		})

		It("fails when VPC mode has no subnets", func() {
			spec := validSpec()
			spec.Networking.VPCID = "vpc-0123"
			_, err := newBuilder(spec).Build()
			var terr *plan.TopologyError
			Expect(err).To(BeAssignableToTypeOf(terr))
			Expect(err.Error()).To(ContainSubstring("subnets"))
		})

		It("allocates exactly one elastic IP per subnet", func() {
			spec := validSpec()
			spec.Networking.VPCID = "vpc-0123"
			spec.Networking.SubnetIDs = []string{"subnet-1", "subnet-2", "subnet-3"}
			spec.Networking.ElasticIPs = true
			g, err := newBuilder(spec).Build()
			Expect(err).NotTo(HaveOccurred())
			Expect(refs(g, plan.KindElasticIP)).To(Equal(
				[]string{"subnet-1", "subnet-2", "subnet-3"}))
		})

		It("creates the managed security group with SFTP ingress", func() {
			spec := validSpec()
			spec.Networking.VPCID = "vpc-0123"
			spec.Networking.SubnetIDs = []string{"subnet-1"}
			spec.Networking.ManageSecurityGroup = true
			spec.Networking.AllowedCIDRs = []string{"10.0.0.0/8"}
			g, err := newBuilder(spec).Build()
			Expect(err).NotTo(HaveOccurred())
			Expect(g.Count(plan.KindSecurityGroup)).To(Equal(1))

			ingress, ok := g.Lookup(plan.Ref{
				Kind: plan.KindSecurityIngress, Key: "transfer"})
			Expect(ok).To(BeTrue())
			input := ingress.Spec.(*ec2.AuthorizeSecurityGroupIngressInput)
			Expect(aws.Int64Value(input.IpPermissions[0].FromPort)).To(Equal(int64(22)))
			Expect(aws.StringValue(input.IpPermissions[0].IpRanges[0].CidrIp)).To(
				Equal("10.0.0.0/8"))
		})
	})

	Describe("upload workflow", func() {
		var spec *corev1alpha1.TransferSpec

		BeforeEach(func() {
			spec = validSpec()
			spec.Workflow.Enabled = true
			spec.Workflow.FunctionARN = "arn:aws:lambda:eu-west-2:123456789012:function:scan"
		})

		It("adds exactly one workflow with exactly one custom step", func() {
			g, err := newBuilder(spec).Build()
			Expect(err).NotTo(HaveOccurred())
			Expect(g.Count(plan.KindWorkflow)).To(Equal(1))

			wf, _ := g.Lookup(plan.Ref{Kind: plan.KindWorkflow, Key: "on-upload"})
			input := wf.Spec.(*transfer.CreateWorkflowInput)
			Expect(input.Steps).To(HaveLen(1))
			Expect(aws.StringValue(input.Steps[0].Type)).To(
				Equal(transfer.WorkflowStepTypeCustom))
			Expect(aws.StringValue(input.Steps[0].CustomStepDetails.Target)).To(
				Equal(spec.Workflow.FunctionARN))
			Expect(aws.StringValue(input.Steps[0].CustomStepDetails.SourceFileLocation)).To(
				Equal("${original.file}"))
		})

		It("makes the server depend on the processing role and the workflow", func() {
			g, err := newBuilder(spec).Build()
			Expect(err).NotTo(HaveOccurred())

			server, _ := g.Lookup(plan.Ref{Kind: plan.KindServer, Key: "main"})
			Expect(server.DependsOn).To(ContainElements(
				plan.Ref{Kind: plan.KindRole, Key: "workflow"},
				plan.Ref{Kind: plan.KindWorkflow, Key: "on-upload"}))

			input := server.Spec.(*transfer.CreateServerInput)
			Expect(input.WorkflowDetails.OnUpload).To(HaveLen(1))
		})

		It("leaves no residual pipeline intents when disabled", func() {
			spec.Workflow.Enabled = false
			spec.Workflow.FunctionARN = ""
			g, err := newBuilder(spec).Build()
			Expect(err).NotTo(HaveOccurred())
			Expect(g.Count(plan.KindWorkflow)).To(BeZero())
			Expect(g.Count(plan.KindLambdaPermission)).To(BeZero())
			Expect(refs(g, plan.KindRole)).NotTo(ContainElement("workflow"))

			server, _ := g.Lookup(plan.Ref{Kind: plan.KindServer, Key: "main"})
			Expect(server.Spec.(*transfer.CreateServerInput).WorkflowDetails).To(BeNil())
		})
	})

	Describe("DNS", func() {
		It("aliases the custom domain to the server endpoint", func() {
			spec := validSpec()
			spec.DNS = corev1alpha1.DNSSpec{
				DomainName:   "sftp.example.com",
				HostedZoneID: "Z0123",
			}
			g, err := newBuilder(spec).Build()
			Expect(err).NotTo(HaveOccurred())

			record, ok := g.Lookup(plan.Ref{Kind: plan.KindDNSRecord, Key: "main"})
			Expect(ok).To(BeTrue())
			Expect(record.DependsOn).To(ConsistOf(
				plan.Ref{Kind: plan.KindServer, Key: "main"}))

			input := record.Spec.(*route53.ChangeResourceRecordSetsInput)
			rrset := input.ChangeBatch.Changes[0].ResourceRecordSet
			Expect(aws.StringValue(rrset.Name)).To(Equal("sftp.example.com"))
			Expect(aws.StringValue(rrset.Type)).To(Equal(route53.RRTypeCname))
		})

		It("creates no record without a domain name", func() {
			g, err := newBuilder(validSpec()).Build()
			Expect(err).NotTo(HaveOccurred())
			Expect(g.Count(plan.KindDNSRecord)).To(BeZero())
		})
	})

	It("matches the single-user S3 example end to end", func() {
		spec := &corev1alpha1.TransferSpec{
			Name:    "hub",
			Enabled: true,
			Domain:  corev1alpha1.DomainS3,
			Bucket:  "hub-data",
			Users: []corev1alpha1.UserSpec{
				{Name: "u1", Login: "alice", PublicKey: "ssh-rsa AAA...", UID: 1001},
			},
		}
		g, err := newBuilder(spec).Build()
		Expect(err).NotTo(HaveOccurred())

		Expect(g.Count(plan.KindServer)).To(Equal(1))
		Expect(g.Count(plan.KindUser)).To(Equal(1))
		Expect(g.Count(plan.KindSSHKey)).To(Equal(1))
		Expect(g.Count(plan.KindRole)).To(Equal(2))   // alice + logging
		Expect(g.Count(plan.KindPolicy)).To(Equal(2)) // alice + logging
		Expect(g.Count(plan.KindNetworking)).To(BeZero())
		Expect(g.Count(plan.KindWorkflow)).To(BeZero())

		intent, _ := g.Lookup(plan.Ref{Kind: plan.KindPolicy, Key: "user:alice"})
		doc := aws.StringValue(intent.Spec.(*iam.PutRolePolicyInput).PolicyDocument)
		Expect(doc).To(ContainSubstring("/alice/*"))
	})
})
