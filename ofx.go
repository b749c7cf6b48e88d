package ofx

import (
	"io"
	"io/ioutil"

	"github.com/golang/glog"
)

// Parse reads a complete OFX document from r and materializes it into a
// Response. The header is validated, the body is transcoded to UTF-8 per the
// header's CHARSET, known-bad FI output is repaired, and the tag soup is
// tokenized, structured, and converted against the aggregate registry.
func Parse(r io.Reader) (*Response, error) {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}
	header, root, err := ParseTree(data)
	if err != nil {
		return nil, err
	}
	resp, err := Assemble(root)
	if err != nil {
		return nil, err
	}
	resp.Header = header
	return resp, nil
}

// ParseTree parses the raw document bytes up to the structured node tree,
// without converting aggregates. Callers that need access to tags the
// registry does not model can walk the tree directly.
func ParseTree(data []byte) (*Header, *Node, error) {
	header, offset, err := ParseHeader(data)
	if err != nil {
		return nil, nil, err
	}
	glog.V(2).Infof("parsed OFXHEADER %d VERSION %d, body at offset %d", header.OFXHeader, header.Version, offset)

	body, err := header.Codec().NewDecoder().Bytes(data[offset:])
	if err != nil {
		return nil, nil, err
	}
	body = preprocessBody(body)

	builder := NewTreeBuilder()
	if err := builder.Feed(string(body)); err != nil {
		return nil, nil, err
	}
	root, err := builder.Close()
	if err != nil {
		return nil, nil, err
	}
	return header, root, nil
}
