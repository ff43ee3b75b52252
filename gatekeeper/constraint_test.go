package gatekeeper_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/open-policy-agent/frameworks/constraint/pkg/apis/templates/v1beta1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/testifysec/gatekeeper-authoring/gatekeeper"
)

var _ = Describe("ConstraintFor", func() {
	var template *v1beta1.ConstraintTemplate

	BeforeEach(func() {
		var err error
		template, err = gatekeeper.TemplateFor("required-labels", "package requiredlabels", []byte(labelsSchema))
		Expect(err).NotTo(HaveOccurred())
	})

	It("fills snippet tab stops", func() {
		constraint, err := gatekeeper.ConstraintFor(template, "must-have-owner", gatekeeper.SnippetPlaceholders{})
		Expect(err).NotTo(HaveOccurred())

		Expect(constraint.GetAPIVersion()).To(Equal(gatekeeper.ConstraintsAPIVersion))
		Expect(constraint.GetKind()).To(Equal("RequiredLabels"))
		Expect(constraint.Object).To(HaveKeyWithValue("metadata", HaveKeyWithValue("name", "${1:must-have-owner}")))

		spec := constraint.Object["spec"].(map[string]interface{})
		Expect(spec["enforcementAction"]).To(Equal("${2|dryrun,deny|}"))
		Expect(spec["match"]).To(Equal(map[string]interface{}{"kinds": []interface{}{}}))
		Expect(spec["parameters"]).To(Equal(map[string]interface{}{
			"labels":  []interface{}{"${3}"},
			"message": "${4}",
		}))
	})

	It("fills plain values by default", func() {
		constraint, err := gatekeeper.ConstraintFor(template, "must-have-owner", gatekeeper.DefaultPlaceholders{})
		Expect(err).NotTo(HaveOccurred())

		Expect(constraint.GetName()).To(Equal("must-have-owner"))
		Expect(gatekeeper.EnforcementAction(constraint)).To(Equal(gatekeeper.EnforcementDryRun))
		params, found, err := unstructured.NestedMap(constraint.Object, "spec", "parameters")
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeTrue())
		Expect(params).To(Equal(map[string]interface{}{
			"labels":  []interface{}{},
			"message": "",
		}))
	})

	It("generates no parameters for templates without a schema", func() {
		template.Spec.CRD.Spec.Validation = nil
		constraint, err := gatekeeper.ConstraintFor(template, "c", gatekeeper.DefaultPlaceholders{})
		Expect(err).NotTo(HaveOccurred())
		params, _, _ := unstructured.NestedMap(constraint.Object, "spec", "parameters")
		Expect(params).To(BeEmpty())
	})

	It("requires a kind", func() {
		template.Spec.CRD.Spec.Names.Kind = ""
		_, err := gatekeeper.ConstraintFor(template, "c", gatekeeper.DefaultPlaceholders{})
		Expect(err).To(MatchError(ContainSubstring("does not specify a kind")))

		template.Spec.CRD.Spec.Validation = nil
		_, err = gatekeeper.ConstraintFor(template, "c", gatekeeper.DefaultPlaceholders{})
		Expect(err).To(MatchError(ContainSubstring("does not contain a custom resource spec")))
	})
})

var _ = Describe("Enforcement actions", func() {
	newConstraint := func(spec map[string]interface{}) *unstructured.Unstructured {
		return &unstructured.Unstructured{Object: map[string]interface{}{"spec": spec}}
	}

	It("defaults to deny", func() {
		Expect(gatekeeper.EnforcementAction(newConstraint(map[string]interface{}{}))).To(Equal(gatekeeper.EnforcementDeny))
	})

	It("switches between actions", func() {
		c := newConstraint(map[string]interface{}{"enforcementAction": "deny"})

		changed, err := gatekeeper.SetEnforcementAction(c, gatekeeper.EnforcementDryRun)
		Expect(err).NotTo(HaveOccurred())
		Expect(changed).To(BeTrue())
		Expect(gatekeeper.EnforcementAction(c)).To(Equal(gatekeeper.EnforcementDryRun))

		changed, err = gatekeeper.SetEnforcementAction(c, gatekeeper.EnforcementDryRun)
		Expect(err).NotTo(HaveOccurred())
		Expect(changed).To(BeFalse())
	})

	It("treats a missing action as deny", func() {
		changed, err := gatekeeper.SetEnforcementAction(newConstraint(map[string]interface{}{}), gatekeeper.EnforcementDeny)
		Expect(err).NotTo(HaveOccurred())
		Expect(changed).To(BeFalse())
	})

	It("rejects unknown actions", func() {
		_, err := gatekeeper.SetEnforcementAction(newConstraint(map[string]interface{}{}), "block")
		Expect(err).To(HaveOccurred())
	})
})
