package lint_test

import (
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/testifysec/gatekeeper-authoring/pkg/lint"
)

var _ = Describe("SchemaPath", func() {
	DescribeTable("replaces the final extension",
		func(source, expected string) {
			Expect(lint.SchemaPath(source)).To(Equal(expected))
		},
		Entry("rego file", "/policies/required-labels.rego", "/policies/required-labels.schema.json"),
		Entry("double extension", "/policies/labels.v2.rego", "/policies/labels.v2.schema.json"),
		Entry("no extension", "/policies/labels", "/policies/labels.schema.json"),
		Entry("relative", "labels.rego", "labels.schema.json"),
	)
})

var _ = Describe("Loader", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		Expect(os.WriteFile(path, []byte(content), 0o600)).To(Succeed())
		return path
	}

	It("loads the schema next to a policy", func() {
		rego := write("labels.rego", "package labels")
		write("labels.schema.json", `{"properties": {"labels": {"type": "array", "items": {"type": "string"}}}}`)

		lookup := lint.Loader{}.ForSource(rego)
		Expect(lookup.Status).To(Equal(lint.Found))
		Expect(lookup.Err).NotTo(HaveOccurred())
		Expect(lookup.Available().PropertyNames()).To(Equal([]string{"labels"}))
		Expect(lookup.Raw).NotTo(BeEmpty())

		Expect(lint.AssociatedSchema(rego)).NotTo(BeNil())
	})

	It("reports a missing schema as not found", func() {
		rego := write("labels.rego", "package labels")
		lookup := lint.Loader{}.ForSource(rego)

		Expect(lookup.Status).To(Equal(lint.NotFound))
		Expect(lookup.Err).NotTo(HaveOccurred())
		Expect(lookup.Path).To(Equal(filepath.Join(dir, "labels.schema.json")))
		Expect(lookup.Available()).To(BeNil())
	})

	It("reports unparseable content as a parse error", func() {
		rego := write("labels.rego", "package labels")
		write("labels.schema.json", `{"properties": `)

		lookup := lint.Loader{}.ForSource(rego)
		Expect(lookup.Status).To(Equal(lint.ParseError))
		Expect(lookup.Err).To(HaveOccurred())
		Expect(lookup.Available()).To(BeNil())
		Expect(lint.AssociatedSchema(rego)).To(BeNil())
	})

	It("rejects documents of the wrong shape", func() {
		path := write("list.schema.json", `[1, 2, 3]`)
		Expect(lint.LoadSchema(path).Status).To(Equal(lint.ParseError))
	})

	It("distinguishes a missing properties section from an empty one", func() {
		none := write("none.schema.json", `{"type": "object"}`)
		empty := write("empty.schema.json", `{"properties": {}}`)

		Expect(lint.LoadSchema(none).Available().HasProperties()).To(BeFalse())
		Expect(lint.LoadSchema(empty).Available().HasProperties()).To(BeTrue())
	})

	It("treats read failures as no schema", func() {
		loader := lint.Loader{ReadFile: func(string) ([]byte, error) {
			return nil, errors.New("permission denied")
		}}
		lookup := loader.Load("/anywhere.schema.json")
		Expect(lookup.Status).To(Equal(lint.NotFound))
		Expect(lookup.Err).To(MatchError(ContainSubstring("permission denied")))
		Expect(lookup.Available()).To(BeNil())
	})

	It("contains panics from the document store", func() {
		loader := lint.Loader{ReadFile: func(string) ([]byte, error) {
			panic("store exploded")
		}}
		lookup := loader.Load("/anywhere.schema.json")
		Expect(lookup.Status).To(Equal(lint.ParseError))
		Expect(lookup.Available()).To(BeNil())
	})
})
