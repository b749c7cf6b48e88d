package ofx

import (
	"bytes"
	"unicode/utf8"
)

// OFX escape sequences for element text, per OFX section 2.3.
var (
	escAmp  = []byte("&amp;")
	escLt   = []byte("&lt;")
	escGt   = []byte("&gt;")
	escFffd = []byte("�") // Unicode replacement character
)

// Decide whether the given rune is in the XML Character Range, per
// the Char production of http://www.xml.com/axml/testaxml.htm,
// Section 2.2 Characters.
// Lifted from https://golang.org/src/encoding/xml/xml.go:1102
func isInCharacterRange(r rune) (inrange bool) {
	return r == 0x09 ||
		r == 0x0A ||
		r == 0x0D ||
		r >= 0x20 && r <= 0xDF77 ||
		r >= 0xE000 && r <= 0xFFFD ||
		r >= 0x10000 && r <= 0x10FFFF
}

// EscapeString returns the OFX-escaped equivalent of the plain text data s,
// used when writing element text to the wire.
func EscapeString(s string) string {
	var (
		result bytes.Buffer
		esc    []byte
		last   = 0
	)
	for i := 0; i < len(s); {
		r, width := utf8.DecodeRuneInString(s[i:])
		i += width
		switch r {
		case '&':
			esc = escAmp
		case '<':
			esc = escLt
		case '>':
			esc = escGt
		default:
			if !isInCharacterRange(r) || (r == 0xFFFD && width == 1) {
				esc = escFffd
				break
			}
			continue
		}
		result.WriteString(s[last : i-width])
		result.Write(esc)
		last = i
	}
	result.WriteString(s[last:])
	return result.String()
}

// writeStartTag writes the opening tag for the given element to the buffer.
func writeStartTag(name string, buff *bytes.Buffer) {
	buff.WriteByte('<')
	buff.WriteString(name)
	buff.WriteByte('>')
}

// writeEndTag writes the closing tag for the given element to the buffer.
func writeEndTag(name string, buff *bytes.Buffer) {
	buff.Write([]byte("</"))
	buff.WriteString(name)
	buff.WriteByte('>')
}

// writeElement writes the starting and closing tags and escaped data for the
// given leaf element to the buffer.
func writeElement(name, data string, buff *bytes.Buffer) {
	writeStartTag(name, buff)
	buff.WriteString(EscapeString(data))
	writeEndTag(name, buff)
}
