package lint_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/testifysec/gatekeeper-authoring/pkg/lint"
)

var _ = Describe("LineIndex", func() {
	text := "package p\n\nx := input.parameters.é_x\ny := input.parameters.tags[0]"
	index := lint.NewLineIndex(text)

	It("maps offsets to 1-based lines and columns", func() {
		Expect(index.PositionAt(0)).To(Equal(lint.Position{Line: 1, Column: 1}))
		Expect(index.PositionAt(9)).To(Equal(lint.Position{Line: 1, Column: 10}))
		Expect(index.PositionAt(10)).To(Equal(lint.Position{Line: 2, Column: 1}))
		Expect(index.PositionAt(11)).To(Equal(lint.Position{Line: 3, Column: 1}))
	})

	It("locates diagnostics for display", func() {
		diagnostics := lint.Lint(text, schemaWith())
		Expect(diagnostics).To(HaveLen(1))
		start, end := index.Span(diagnostics[0].Range)
		Expect(start).To(Equal(lint.Position{Line: 4, Column: 23}))
		Expect(end).To(Equal(lint.Position{Line: 4, Column: 27}))
		Expect(start.String()).To(Equal("4:23"))
	})

	It("counts multi-byte characters as one column", func() {
		text := "é := input.parameters.a"
		diagnostics := lint.Lint(text, schemaWith())
		start, _ := lint.NewLineIndex(text).Span(diagnostics[0].Range)
		Expect(start).To(Equal(lint.Position{Line: 1, Column: 23}))
	})

	It("clamps offsets outside the text", func() {
		Expect(index.PositionAt(-5)).To(Equal(lint.Position{Line: 1, Column: 1}))
		Expect(index.PositionAt(len(text) + 10)).To(Equal(index.PositionAt(len(text))))
	})
})
