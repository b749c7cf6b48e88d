package ofx_test

import (
	"strings"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/finfmt/ofx"
)

var v1Header = strings.Join([]string{
	"OFXHEADER:100",
	"DATA:OFXSGML",
	"VERSION:102",
	"SECURITY:NONE",
	"ENCODING:USASCII",
	"CHARSET:NONE",
	"COMPRESSION:NONE",
	"OLDFILEUID:NONE",
	"NEWFILEUID:NONE",
	"", "",
}, "\r\n")

var v2Header = `<?xml version="1.0" encoding="UTF-8" standalone="no"?>` + "\r\n" +
	`<?OFX OFXHEADER="200" VERSION="203" SECURITY="NONE" OLDFILEUID="NONE" NEWFILEUID="NONE"?>` + "\r\n"

var _ = Describe("ofx", func() {
	Describe("ParseHeader()", func() {
		Context("when given a v1 header", func() {
			It("should parse every field and return the body offset", func() {
				data := []byte(v1Header + "<OFX></OFX>")
				h, offset, err := ofx.ParseHeader(data)
				Expect(err).To(BeNil())
				Expect(h.OFXHeader).To(Equal(100))
				Expect(h.Data).To(Equal("OFXSGML"))
				Expect(h.Version).To(Equal(102))
				Expect(h.Security).To(Equal("NONE"))
				Expect(h.Encoding).To(Equal("USASCII"))
				Expect(h.Charset).To(Equal("NONE"))
				Expect(h.Compression).To(Equal("NONE"))
				Expect(h.OldFileUID).To(Equal("NONE"))
				Expect(h.NewFileUID).To(Equal("NONE"))
				Expect(string(data[offset:])).To(Equal("<OFX></OFX>"))
			})
			It("should reject an unknown version", func() {
				data := []byte(strings.Replace(v1Header, "VERSION:102", "VERSION:105", 1))
				_, _, err := ofx.ParseHeader(data)
				Expect(err).To(BeAssignableToTypeOf(&ofx.HeaderError{}))
			})
			It("should reject a truncated header", func() {
				_, _, err := ofx.ParseHeader([]byte("OFXHEADER:100\r\nDATA:OFXSGML\r\n<OFX></OFX>"))
				Expect(err).To(BeAssignableToTypeOf(&ofx.HeaderError{}))
			})
		})
		Context("when given a v2 header", func() {
			It("should parse the processing instruction and return the body offset", func() {
				data := []byte(v2Header + "<OFX></OFX>")
				h, offset, err := ofx.ParseHeader(data)
				Expect(err).To(BeNil())
				Expect(h.OFXHeader).To(Equal(200))
				Expect(h.Version).To(Equal(203))
				Expect(h.Security).To(Equal("NONE"))
				Expect(string(data[offset:])).To(Equal("<OFX></OFX>"))
			})
			It("should reject an XML declaration without the OFX instruction", func() {
				data := []byte(`<?xml version="1.0"?>` + "\r\n<OFX></OFX>")
				_, _, err := ofx.ParseHeader(data)
				Expect(err).To(BeAssignableToTypeOf(&ofx.HeaderError{}))
			})
			It("should reject a mismatched OFXHEADER value", func() {
				data := []byte(strings.Replace(v2Header, `OFXHEADER="200"`, `OFXHEADER="100"`, 1) + "<OFX></OFX>")
				_, _, err := ofx.ParseHeader(data)
				Expect(err).To(BeAssignableToTypeOf(&ofx.HeaderError{}))
			})
		})
	})

	Describe("NewHeader()", func() {
		It("should fill v1 defaults", func() {
			h, err := ofx.NewHeader(102, "", "")
			Expect(err).To(BeNil())
			Expect(h.OFXHeader).To(Equal(100))
			Expect(h.Data).To(Equal("OFXSGML"))
			Expect(h.Charset).To(Equal("NONE"))
			Expect(h.OldFileUID).To(Equal("NONE"))
			Expect(h.NewFileUID).To(Equal("NONE"))
		})
		It("should fill v2 defaults", func() {
			h, err := ofx.NewHeader(203, "", "")
			Expect(err).To(BeNil())
			Expect(h.OFXHeader).To(Equal(200))
			Expect(h.Security).To(Equal("NONE"))
		})
		It("should reject an unknown version", func() {
			_, err := ofx.NewHeader(300, "", "")
			Expect(err).To(BeAssignableToTypeOf(&ofx.HeaderError{}))
		})
	})

	Describe("Header.String()", func() {
		It("should render v1 wire form that parses back identically", func() {
			h, err := ofx.NewHeader(102, "", "")
			Expect(err).To(BeNil())
			Expect(h.String()).To(Equal(v1Header))
			parsed, offset, err := ofx.ParseHeader([]byte(h.String() + "<OFX></OFX>"))
			Expect(err).To(BeNil())
			Expect(parsed).To(Equal(h))
			Expect(offset).To(Equal(len(h.String())))
		})
		It("should render v2 wire form that parses back identically", func() {
			h, err := ofx.NewHeader(203, "", "")
			Expect(err).To(BeNil())
			Expect(h.String()).To(Equal(v2Header))
			parsed, _, err := ofx.ParseHeader([]byte(h.String() + "<OFX></OFX>"))
			Expect(err).To(BeNil())
			Expect(parsed).To(Equal(h))
		})
	})

	Describe("Header.Codec()", func() {
		It("should map the v1 charset to the body encoding", func() {
			Expect((&ofx.Header{Charset: "ISO-8859-1"}).Codec()).To(Equal(charmap.ISO8859_1))
			Expect((&ofx.Header{Charset: "1252"}).Codec()).To(Equal(charmap.Windows1252))
			Expect((&ofx.Header{Charset: "NONE"}).Codec()).To(Equal(unicode.UTF8))
		})
	})
})
