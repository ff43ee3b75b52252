package lint_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/testifysec/gatekeeper-authoring/pkg/lint"
)

var _ = Describe("Synthesize", func() {
	It("declares indexed references as string arrays", func() {
		schema := lint.Synthesize("input.parameters.tags[0]")

		Expect(schema.PropertyNames()).To(Equal([]string{"tags"}))
		tags, _ := schema.Properties.Get("tags")
		Expect(tags.Type).To(Equal(lint.TypeArray))
		Expect(tags.Items).To(Equal(&lint.Schema{Type: lint.TypeString}))
	})

	It("declares bare references as strings", func() {
		schema := lint.Synthesize("input.parameters.message")
		message, _ := schema.Properties.Get("message")
		Expect(message).To(Equal(&lint.Schema{Type: lint.TypeString}))
	})

	It("lists each name once, in first-seen order", func() {
		schema := lint.Synthesize("input.parameters.b input.parameters.a[_] input.parameters.b input.parameters.c")
		Expect(schema.PropertyNames()).To(Equal([]string{"b", "a", "c"}))
	})

	It("declares a name used both bare and indexed once", func() {
		// which of the two types wins is not part of the contract
		schema := lint.Synthesize("input.parameters.tags input.parameters.tags[0]")
		Expect(schema.PropertyNames()).To(Equal([]string{"tags"}))

		tags, _ := schema.Properties.Get("tags")
		Expect(tags.Type).To(BeElementOf(lint.TypeString, lint.TypeArray))
	})

	It("keeps differently cased names apart", func() {
		schema := lint.Synthesize("input.parameters.Foo input.parameters.foo")
		Expect(schema.PropertyNames()).To(Equal([]string{"Foo", "foo"}))
	})

	It("always carries the dialect marker and a properties section", func() {
		schema := lint.Synthesize("")
		Expect(schema.Dialect).To(Equal(lint.SchemaDialect))
		Expect(schema.HasProperties()).To(BeTrue())
		Expect(schema.Properties.Len()).To(BeZero())
	})

	It("serialises in declaration order", func() {
		schema := lint.Synthesize("input.parameters.zeta input.parameters.alpha[0]")
		data, err := schema.MarshalIndent()
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(MatchJSON(`{
			"$schema": "http://json-schema.org/draft-07/schema",
			"properties": {
				"zeta": {"type": "string"},
				"alpha": {"type": "array", "items": {"type": "string"}}
			}
		}`))
		Expect(string(data)).To(MatchRegexp(`(?s)"zeta".*"alpha"`))
	})

	It("writes an empty properties section for a blank schema", func() {
		data, err := lint.EmptySchema().MarshalIndent()
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(MatchJSON(`{"$schema": "http://json-schema.org/draft-07/schema", "properties": {}}`))
	})
})
