package plan_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	corev1alpha1 "github.com/EO-DataHub/eodhp-transfer-planner/api/v1alpha1"
	"github.com/EO-DataHub/eodhp-transfer-planner/internal/plan"
)

func validSpec() *corev1alpha1.TransferSpec {
	return &corev1alpha1.TransferSpec{
		Name:    "hub",
		Enabled: true,
		Domain:  corev1alpha1.DomainS3,
		Bucket:  "hub-data",
		Users: []corev1alpha1.UserSpec{
			{Name: "u1", Login: "alice", PublicKey: "ssh-rsa AAAA alice", UID: 1001, GID: 1001},
			{Name: "u2", Login: "bob", PublicKey: "ssh-rsa BBBB bob", UID: 1002, GID: 1002},
		},
	}
}

var _ = Describe("Validate", func() {
	It("accepts a coherent spec", func() {
		Expect(plan.Validate(validSpec())).To(Succeed())
	})

	It("rejects an unknown domain", func() {
		spec := validSpec()
		spec.Domain = "NFS"
		err := plan.Validate(spec)
		var verr *plan.ValidationError
		Expect(err).To(HaveOccurred())
		Expect(err).To(BeAssignableToTypeOf(verr))
		Expect(err.Error()).To(ContainSubstring("domain"))
	})

	It("requires a bucket for the S3 domain", func() {
		spec := validSpec()
		spec.Bucket = ""
		Expect(plan.Validate(spec)).To(MatchError(ContainSubstring("bucket")))
	})

	It("requires a filesystem ID for the EFS domain", func() {
		spec := validSpec()
		spec.Domain = corev1alpha1.DomainEFS
		spec.Bucket = ""
		Expect(plan.Validate(spec)).To(MatchError(ContainSubstring("efsID")))
	})

	It("rejects restricted homes without a bucket", func() {
		spec := validSpec()
		spec.Domain = corev1alpha1.DomainEFS
		spec.EFSID = "fs-0123"
		spec.Bucket = ""
		spec.RestrictedHome = true
		Expect(plan.Validate(spec)).To(MatchError(ContainSubstring("restrictedHome")))
	})

	It("rejects duplicate subnet IDs", func() {
		spec := validSpec()
		spec.Networking.VPCID = "vpc-0123"
		spec.Networking.SubnetIDs = []string{"subnet-1", "subnet-2", "subnet-1"}
		err := plan.Validate(spec)
		var verr *plan.ValidationError
		Expect(err).To(BeAssignableToTypeOf(verr))
		Expect(err.Error()).To(ContainSubstring("duplicate subnet"))
		Expect(err.Error()).To(ContainSubstring("subnetIDs[2]"))
	})

	It("rejects duplicate user names", func() {
		spec := validSpec()
		spec.Users[1].Name = spec.Users[0].Name
		Expect(plan.Validate(spec)).To(MatchError(ContainSubstring("duplicate user")))
	})

	It("rejects duplicate login names", func() {
		spec := validSpec()
		spec.Users[1].Login = spec.Users[0].Login
		Expect(plan.Validate(spec)).To(MatchError(ContainSubstring("duplicate login")))
	})

	It("rejects users without a public key", func() {
		spec := validSpec()
		spec.Users[0].PublicKey = ""
		Expect(plan.Validate(spec)).To(MatchError(ContainSubstring("publicKey")))
	})

	It("requires a function ARN when the workflow is enabled", func() {
		spec := validSpec()
		spec.Workflow.Enabled = true
		Expect(plan.Validate(spec)).To(MatchError(ContainSubstring("functionARN")))
	})

	It("requires domain name and hosted zone together", func() {
		spec := validSpec()
		spec.DNS.DomainName = "sftp.example.com"
		Expect(plan.Validate(spec)).To(MatchError(ContainSubstring("dns")))
	})

	It("allows an empty user list", func() {
		spec := validSpec()
		spec.Users = nil
		Expect(plan.Validate(spec)).To(Succeed())
	})
})
