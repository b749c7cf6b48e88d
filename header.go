package ofx

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Header holds the validated fields of an OFXv1 or OFXv2 header. The major
// version (Version/100) selects which syntax String() renders and which
// fields are meaningful: DATA/ENCODING/CHARSET/COMPRESSION are v1-only.
type Header struct {
	OFXHeader   int
	Data        string
	Version     int
	Security    string
	Encoding    string
	Charset     string
	Compression string
	OldFileUID  string
	NewFileUID  string
}

var (
	v1Versions = OneOf{Valid: []string{"102", "103", "151", "160"}}
	v2Versions = OneOf{Valid: []string{"200", "201", "202", "203", "210", "211", "220"}}

	headerSecurity    = OneOf{Valid: []string{"NONE", "TYPE1"}}
	headerEncoding    = OneOf{Valid: []string{"USASCII", "UNICODE", "UTF-8"}}
	headerCharset     = OneOf{Valid: []string{"ISO-8859-1", "1252", "NONE"}}
	headerCompression = OneOf{Valid: []string{"NONE"}}
	headerFileUID     = String{Length: 36}
)

var xmlDeclRegex = regexp.MustCompile(`^\s*<\?xml\s+` +
	`(version="(?P<xmlversion>[\d.]+)")?\s*` +
	`(encoding="(?P<encoding>[\w-]+)")?\s*` +
	`(standalone="(?P<standalone>\w+)")?\s*` +
	`\?>\s*`)

// The nine KEY:VALUE lines required by the OFXv1 spec, in fixed order,
// terminated by a blank line before the tag soup body.
var v1HeaderRegex = regexp.MustCompile(`^\s*` +
	`OFXHEADER:(?P<ofxheader>\d+)\s+` +
	`DATA:(?P<data>[A-Z]+)\s+` +
	`VERSION:(?P<version>\d+)\s+` +
	`SECURITY:(?P<security>\w+)\s+` +
	`ENCODING:(?P<encoding>[A-Z0-9-]+)\s+` +
	`CHARSET:(?P<charset>[\w-]+)\s+` +
	`COMPRESSION:(?P<compression>[A-Z]+)\s+` +
	`OLDFILEUID:(?P<oldfileuid>[\w-]+)\s+` +
	`NEWFILEUID:(?P<newfileuid>[\w-]+)\s+`)

var v2HeaderRegex = regexp.MustCompile(`^<\?OFX\s+` +
	`OFXHEADER="(?P<ofxheader>\d+)"\s+` +
	`VERSION="(?P<version>\d+)"\s+` +
	`SECURITY="(?P<security>\w+)"\s+` +
	`OLDFILEUID="(?P<oldfileuid>[\w-]+)"\s+` +
	`NEWFILEUID="(?P<newfileuid>[\w-]+)"\s*` +
	`\?>\s*`)

// ParseHeader recognizes the OFX header at the start of data and returns the
// validated header along with the offset of the first body byte. An input
// starting with an XML declaration is OFXv2; anything else must carry the
// nine-line OFXv1 header.
func ParseHeader(data []byte) (*Header, int, error) {
	text := string(data)
	if loc := xmlDeclRegex.FindStringIndex(text); loc != nil {
		return parseHeaderV2(text, loc[1])
	}
	return parseHeaderV1(text)
}

func parseHeaderV1(text string) (*Header, int, error) {
	loc := v1HeaderRegex.FindStringSubmatchIndex(text)
	if loc == nil {
		return nil, 0, &HeaderError{Reason: fmt.Sprintf("OFX header is malformed: %.80q", text)}
	}
	group := func(name string) string {
		i := v1HeaderRegex.SubexpIndex(name)
		if loc[2*i] < 0 {
			return ""
		}
		return text[loc[2*i]:loc[2*i+1]]
	}
	h := &Header{
		Data:        group("data"),
		Security:    group("security"),
		Encoding:    group("encoding"),
		Charset:     group("charset"),
		Compression: group("compression"),
		OldFileUID:  group("oldfileuid"),
		NewFileUID:  group("newfileuid"),
	}
	h.OFXHeader, _ = strconv.Atoi(group("ofxheader"))
	h.Version, _ = strconv.Atoi(group("version"))
	if err := h.validateV1(); err != nil {
		return nil, 0, err
	}
	return h, loc[1], nil
}

func parseHeaderV2(text string, bodyStart int) (*Header, int, error) {
	loc := v2HeaderRegex.FindStringSubmatchIndex(text[bodyStart:])
	if loc == nil {
		return nil, 0, &HeaderError{Reason: fmt.Sprintf("OFX processing instruction is malformed: %.80q", text[bodyStart:])}
	}
	group := func(name string) string {
		i := v2HeaderRegex.SubexpIndex(name)
		if loc[2*i] < 0 {
			return ""
		}
		return text[bodyStart:][loc[2*i]:loc[2*i+1]]
	}
	h := &Header{
		Security:   group("security"),
		OldFileUID: group("oldfileuid"),
		NewFileUID: group("newfileuid"),
	}
	h.OFXHeader, _ = strconv.Atoi(group("ofxheader"))
	h.Version, _ = strconv.Atoi(group("version"))
	if err := h.validateV2(); err != nil {
		return nil, 0, err
	}
	return h, bodyStart + loc[1], nil
}

func headerField(conv Converter, name, value string) error {
	if _, err := conv.Convert(value); err != nil {
		return &HeaderError{Reason: fmt.Sprintf("%s: %v", name, err)}
	}
	return nil
}

func (h *Header) validateV1() error {
	if h.OFXHeader != 100 {
		return &HeaderError{Reason: fmt.Sprintf("OFXHEADER must be 100, not %d", h.OFXHeader)}
	}
	if h.Data != "OFXSGML" {
		return &HeaderError{Reason: fmt.Sprintf("DATA must be OFXSGML, not %q", h.Data)}
	}
	for _, f := range []struct {
		conv  Converter
		name  string
		value string
	}{
		{v1Versions, "VERSION", strconv.Itoa(h.Version)},
		{headerSecurity, "SECURITY", h.Security},
		{headerEncoding, "ENCODING", h.Encoding},
		{headerCharset, "CHARSET", h.Charset},
		{headerCompression, "COMPRESSION", h.Compression},
		{headerFileUID, "OLDFILEUID", h.OldFileUID},
		{headerFileUID, "NEWFILEUID", h.NewFileUID},
	} {
		if err := headerField(f.conv, f.name, f.value); err != nil {
			return err
		}
	}
	return nil
}

func (h *Header) validateV2() error {
	if h.OFXHeader != 200 {
		return &HeaderError{Reason: fmt.Sprintf("OFXHEADER must be 200, not %d", h.OFXHeader)}
	}
	for _, f := range []struct {
		conv  Converter
		name  string
		value string
	}{
		{v2Versions, "VERSION", strconv.Itoa(h.Version)},
		{headerSecurity, "SECURITY", h.Security},
		{headerFileUID, "OLDFILEUID", h.OldFileUID},
		{headerFileUID, "NEWFILEUID", h.NewFileUID},
	} {
		if err := headerField(f.conv, f.name, f.value); err != nil {
			return err
		}
	}
	return nil
}

// NewHeader builds a header for the given OFX version with spec defaults
// filled in, routing to v1 or v2 syntax on the major version.
func NewHeader(version int, oldFileUID, newFileUID string) (*Header, error) {
	if oldFileUID == "" {
		oldFileUID = "NONE"
	}
	if newFileUID == "" {
		newFileUID = "NONE"
	}
	h := &Header{
		Version:    version,
		Security:   "NONE",
		OldFileUID: oldFileUID,
		NewFileUID: newFileUID,
	}
	switch version / 100 {
	case 1:
		h.OFXHeader = 100
		h.Data = "OFXSGML"
		h.Encoding = "USASCII"
		h.Charset = "NONE"
		h.Compression = "NONE"
		return h, h.validateV1()
	case 2:
		h.OFXHeader = 200
		return h, h.validateV2()
	}
	return nil, &HeaderError{Reason: fmt.Sprintf("invalid OFX version %d", version)}
}

// Codec returns the character encoding of the body, per the v1 CHARSET field.
// OFXv2 is always UTF-8.
func (h *Header) Codec() encoding.Encoding {
	switch h.Charset {
	case "ISO-8859-1":
		return charmap.ISO8859_1
	case "1252":
		return charmap.Windows1252
	}
	return unicode.UTF8
}

// String renders the header in wire form, including the separator before the
// body: nine CRLF-terminated lines plus a blank line for v1, or the XML
// declaration plus <?OFX ...?> processing instruction for v2.
func (h *Header) String() string {
	if h.Version/100 == 2 {
		return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8" standalone="no"?>`+"\r\n"+
			`<?OFX OFXHEADER="%d" VERSION="%d" SECURITY="%s" OLDFILEUID="%s" NEWFILEUID="%s"?>`+"\r\n",
			h.OFXHeader, h.Version, h.Security, h.OldFileUID, h.NewFileUID)
	}
	lines := []string{
		"OFXHEADER:" + strconv.Itoa(h.OFXHeader),
		"DATA:" + h.Data,
		"VERSION:" + strconv.Itoa(h.Version),
		"SECURITY:" + h.Security,
		"ENCODING:" + h.Encoding,
		"CHARSET:" + h.Charset,
		"COMPRESSION:" + h.Compression,
		"OLDFILEUID:" + h.OldFileUID,
		"NEWFILEUID:" + h.NewFileUID,
	}
	return strings.Join(lines, "\r\n") + "\r\n\r\n"
}
