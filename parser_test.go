package ofx_test

import (
	"errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/finfmt/ofx"
)

func buildTree(data string) (*ofx.Node, error) {
	b := ofx.NewTreeBuilder()
	if err := b.Feed(data); err != nil {
		return nil, err
	}
	return b.Close()
}

var _ = Describe("ofx", func() {
	Describe("TreeBuilder", func() {
		It("should build a tree from well formed tag soup", func() {
			root, err := buildTree("<OFX><SIGNONMSGSRSV1><SONRS><STATUS><CODE>0<SEVERITY>INFO</STATUS></SONRS></SIGNONMSGSRSV1></OFX>")
			Expect(err).To(BeNil())
			Expect(root.Name).To(Equal("OFX"))
			status := root.Find("SIGNONMSGSRSV1/SONRS/STATUS")
			Expect(status).ToNot(BeNil())
			Expect(status.Children).To(HaveLen(2))
			Expect(status.Children[0].Name).To(Equal("CODE"))
			Expect(status.Children[0].Text).To(Equal("0"))
		})
		It("should treat leaves with and without closing tags identically", func() {
			bare, err := buildTree("<OFX><STATUS><CODE>0<SEVERITY>INFO</STATUS></OFX>")
			Expect(err).To(BeNil())
			closed, err := buildTree("<OFX><STATUS><CODE>0</CODE><SEVERITY>INFO</SEVERITY></STATUS></OFX>")
			Expect(err).To(BeNil())
			Expect(closed).To(Equal(bare))
		})
		It("should trim whitespace around leaf text", func() {
			root, err := buildTree("<OFX><MEMO>\r\n  COFFEE SHOP  \r\n</MEMO></OFX>")
			Expect(err).To(BeNil())
			Expect(root.Find("MEMO").Text).To(Equal("COFFEE SHOP"))
		})
		It("should fail on a mismatched end tag with counters", func() {
			_, err := buildTree("<OFX><SONRS><STATUS></SONRS></OFX>")
			var soup *ofx.TagSoupError
			Expect(errors.As(err, &soup)).To(BeTrue())
			Expect(soup.Tag).To(Equal("SONRS"))
			Expect(errors.Is(err, ofx.ErrInvariant)).To(BeFalse())
		})
		It("should fail on a mismatched close tag captured after leaf text", func() {
			_, err := buildTree("<OFX><CODE>0</SEVERITY></OFX>")
			var soup *ofx.TagSoupError
			Expect(errors.As(err, &soup)).To(BeTrue())
			Expect(soup.Tag).To(Equal("SEVERITY"))
		})
		It("should fail on text after a closing tag", func() {
			_, err := buildTree("<OFX><STATUS><CODE>0</STATUS>stray</OFX>")
			var soup *ofx.TagSoupError
			Expect(errors.As(err, &soup)).To(BeTrue())
		})
		It("should fail on an end tag with no open element", func() {
			_, err := buildTree("<OFX></OFX></OFX>")
			var soup *ofx.TagSoupError
			Expect(errors.As(err, &soup)).To(BeTrue())
		})
		It("should fail on content after the document root closed", func() {
			_, err := buildTree("<OFX></OFX><OFX></OFX>")
			var soup *ofx.TagSoupError
			Expect(errors.As(err, &soup)).To(BeTrue())
		})
		It("should fail on unclosed elements at end of input", func() {
			_, err := buildTree("<OFX><SONRS>")
			var soup *ofx.TagSoupError
			Expect(errors.As(err, &soup)).To(BeTrue())
			Expect(soup.Tag).To(Equal("SONRS"))
			Expect(soup.Opens).To(Equal(1))
			Expect(soup.Closes).To(Equal(0))
		})
		It("should fail on empty input", func() {
			_, err := buildTree("")
			var soup *ofx.TagSoupError
			Expect(errors.As(err, &soup)).To(BeTrue())
		})
		It("should track open and close counts per tag", func() {
			b := ofx.NewTreeBuilder()
			Expect(b.Feed("<OFX><STMTTRN><FITID>1</STMTTRN><STMTTRN><FITID>2</STMTTRN></OFX>")).To(Succeed())
			opens, closes := b.Counts("STMTTRN")
			Expect(opens).To(Equal(2))
			Expect(closes).To(Equal(2))
		})
	})

	Describe("Node", func() {
		var root *ofx.Node
		BeforeEach(func() {
			var err error
			root, err = buildTree("<OFX><A><B><C>1</C></B><B><C>2</C></B></A></OFX>")
			Expect(err).To(BeNil())
		})
		Describe("Find()", func() {
			It("should resolve a slash separated path to the first match", func() {
				c := root.Find("A/B/C")
				Expect(c).ToNot(BeNil())
				Expect(c.Text).To(Equal("1"))
				Expect(root.Find("A/X")).To(BeNil())
			})
		})
		Describe("FindAll()", func() {
			It("should return all matching descendants in document order", func() {
				all := root.FindAll("C")
				Expect(all).To(HaveLen(2))
				Expect(all[0].Text).To(Equal("1"))
				Expect(all[1].Text).To(Equal("2"))
			})
		})
		Describe("Remove()", func() {
			It("should detach a direct child", func() {
				a := root.Find("A")
				first := a.Children[0]
				Expect(a.Remove(first)).To(BeTrue())
				Expect(a.Children).To(HaveLen(1))
				Expect(a.Remove(first)).To(BeFalse())
			})
		})
	})
})
