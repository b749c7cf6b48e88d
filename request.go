package ofx

import (
	"bytes"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
)

// Signon is the identity presented in the SONRQ handshake.
type Signon struct {
	UserID   string
	UserPass string
	Org      string
	FID      string
	// AppID/AppVer default to a recent Quicken for Windows release; many
	// FIs reject requests from unknown client applications.
	AppID     string
	AppVer    string
	Language  string
	ClientUID string
}

// Account describes one account a statement is requested for.
type Account interface {
	// acctFrom builds the *ACCTFROM aggregate node for this account.
	acctFrom() *Node
}

// BankAcct identifies a bank account (BANKACCTFROM).
type BankAcct struct {
	BankID   string
	AcctID   string
	AcctType string
}

func (a BankAcct) acctFrom() *Node {
	n := &Node{Name: "BANKACCTFROM"}
	n.append(&Node{Name: "BANKID", Text: a.BankID})
	n.append(&Node{Name: "ACCTID", Text: a.AcctID})
	n.append(&Node{Name: "ACCTTYPE", Text: a.AcctType})
	return n
}

// CCAcct identifies a credit card account (CCACCTFROM).
type CCAcct struct {
	AcctID string
}

func (a CCAcct) acctFrom() *Node {
	n := &Node{Name: "CCACCTFROM"}
	n.append(&Node{Name: "ACCTID", Text: a.AcctID})
	return n
}

// InvAcct identifies an investment account (INVACCTFROM).
type InvAcct struct {
	BrokerID string
	AcctID   string
}

func (a InvAcct) acctFrom() *Node {
	n := &Node{Name: "INVACCTFROM"}
	n.append(&Node{Name: "BROKERID", Text: a.BrokerID})
	n.append(&Node{Name: "ACCTID", Text: a.AcctID})
	return n
}

// Options are the per-request statement flags: which sections to include
// and the date range to cover. Zero times mean no bound.
type Options struct {
	Transactions bool
	Start        time.Time
	End          time.Time

	// Investment statements only.
	Positions bool
	AsOf      time.Time
	Balances  bool
}

// UIDSource produces transaction UIDs for *TRNRQ wrappers.
type UIDSource interface {
	TRNUID() string
}

type uuidSource struct{}

func (uuidSource) TRNUID() string {
	return uuid.NewString()
}

// RequestBuilder serializes statement requests into OFX wire bytes with the
// correct header prepended. The zero value is not usable; call
// NewRequestBuilder.
type RequestBuilder struct {
	// Version is the OFX header version, e.g. 102 or 203. The major
	// version selects v1 or v2 header syntax.
	Version int
	UIDs    UIDSource
	Clock   func() time.Time
}

// NewRequestBuilder returns a builder for OFXv1 (VERSION:102) requests with
// UUID transaction UIDs.
func NewRequestBuilder() *RequestBuilder {
	return &RequestBuilder{
		Version: 102,
		UIDs:    uuidSource{},
		Clock:   time.Now,
	}
}

// Build assembles a complete request document for the given identity and
// accounts and returns its wire bytes. Accounts of the same category are
// grouped under one message set wrapper, in bank / credit card / investment
// order.
func (b *RequestBuilder) Build(signon Signon, accounts []Account, opts Options) ([]byte, error) {
	header, err := NewHeader(b.Version, "", "")
	if err != nil {
		return nil, err
	}

	root := &Node{Name: "OFX"}
	sonrq, err := b.signonMsgs(signon)
	if err != nil {
		return nil, err
	}
	root.append(sonrq)

	var bank, cc, inv []*Node
	for _, account := range accounts {
		switch acct := account.(type) {
		case BankAcct:
			trnrq, err := b.stmtTrnRq("STMTTRNRQ", "STMTRQ", acct.acctFrom(), opts)
			if err != nil {
				return nil, err
			}
			bank = append(bank, trnrq)
		case CCAcct:
			trnrq, err := b.stmtTrnRq("CCSTMTTRNRQ", "CCSTMTRQ", acct.acctFrom(), opts)
			if err != nil {
				return nil, err
			}
			cc = append(cc, trnrq)
		case InvAcct:
			trnrq, err := b.invStmtTrnRq(acct, opts)
			if err != nil {
				return nil, err
			}
			inv = append(inv, trnrq)
		default:
			return nil, violation(ViolationValue, "unsupported account descriptor %T", account)
		}
	}
	for _, msgset := range []struct {
		wrapper string
		trnrqs  []*Node
	}{
		{"BANKMSGSRQV1", bank},
		{"CREDITCARDMSGSRQV1", cc},
		{"INVSTMTMSGSRQV1", inv},
	} {
		if len(msgset.trnrqs) == 0 {
			continue
		}
		wrapper := &Node{Name: msgset.wrapper}
		wrapper.Children = msgset.trnrqs
		root.append(wrapper)
	}

	var buff bytes.Buffer
	buff.WriteString(header.String())
	renderNode(root, &buff)
	glog.V(3).Infof("built %d byte request for %d account(s)", buff.Len(), len(accounts))
	return buff.Bytes(), nil
}

func (b *RequestBuilder) signonMsgs(signon Signon) (*Node, error) {
	dtclient, err := DateTime{}.Unconvert(b.Clock())
	if err != nil {
		return nil, err
	}
	if signon.Language == "" {
		signon.Language = "ENG"
	}
	if signon.AppID == "" {
		signon.AppID = "QWIN"
	}
	if signon.AppVer == "" {
		signon.AppVer = "2700"
	}

	sonrq := &Node{Name: "SONRQ"}
	sonrq.append(&Node{Name: "DTCLIENT", Text: dtclient})
	sonrq.append(&Node{Name: "USERID", Text: signon.UserID})
	sonrq.append(&Node{Name: "USERPASS", Text: signon.UserPass})
	sonrq.append(&Node{Name: "LANGUAGE", Text: signon.Language})
	if signon.Org != "" {
		fi := &Node{Name: "FI"}
		fi.append(&Node{Name: "ORG", Text: signon.Org})
		if signon.FID != "" {
			fi.append(&Node{Name: "FID", Text: signon.FID})
		}
		sonrq.append(fi)
	}
	sonrq.append(&Node{Name: "APPID", Text: signon.AppID})
	sonrq.append(&Node{Name: "APPVER", Text: signon.AppVer})
	if signon.ClientUID != "" {
		sonrq.append(&Node{Name: "CLIENTUID", Text: signon.ClientUID})
	}

	msgs := &Node{Name: "SIGNONMSGSRQV1"}
	msgs.append(sonrq)
	return msgs, nil
}

// inctran builds the INCTRAN aggregate for the given options.
func (b *RequestBuilder) inctran(opts Options) (*Node, error) {
	inctran := &Node{Name: "INCTRAN"}
	if !opts.Start.IsZero() {
		dtstart, err := DateTime{}.Unconvert(opts.Start)
		if err != nil {
			return nil, err
		}
		inctran.append(&Node{Name: "DTSTART", Text: dtstart})
	}
	if !opts.End.IsZero() {
		dtend, err := DateTime{}.Unconvert(opts.End)
		if err != nil {
			return nil, err
		}
		inctran.append(&Node{Name: "DTEND", Text: dtend})
	}
	include, err := Bool{}.Unconvert(opts.Transactions)
	if err != nil {
		return nil, err
	}
	inctran.append(&Node{Name: "INCLUDE", Text: include})
	return inctran, nil
}

func (b *RequestBuilder) wrapTrnRq(wrapper string, rq *Node) *Node {
	trnrq := &Node{Name: wrapper}
	trnrq.append(&Node{Name: "TRNUID", Text: b.UIDs.TRNUID()})
	trnrq.append(rq)
	return trnrq
}

func (b *RequestBuilder) stmtTrnRq(wrapper, rqTag string, acctFrom *Node, opts Options) (*Node, error) {
	rq := &Node{Name: rqTag}
	rq.append(acctFrom)
	inctran, err := b.inctran(opts)
	if err != nil {
		return nil, err
	}
	rq.append(inctran)
	return b.wrapTrnRq(wrapper, rq), nil
}

func (b *RequestBuilder) invStmtTrnRq(acct InvAcct, opts Options) (*Node, error) {
	rq := &Node{Name: "INVSTMTRQ"}
	rq.append(acct.acctFrom())
	inctran, err := b.inctran(opts)
	if err != nil {
		return nil, err
	}
	rq.append(inctran)
	rq.append(&Node{Name: "INCOO", Text: "N"})

	incpos := &Node{Name: "INCPOS"}
	if !opts.AsOf.IsZero() {
		dtasof, err := DateTime{}.Unconvert(opts.AsOf)
		if err != nil {
			return nil, err
		}
		incpos.append(&Node{Name: "DTASOF", Text: dtasof})
	}
	include, err := Bool{}.Unconvert(opts.Positions)
	if err != nil {
		return nil, err
	}
	incpos.append(&Node{Name: "INCLUDE", Text: include})
	rq.append(incpos)

	incbal, err := Bool{}.Unconvert(opts.Balances)
	if err != nil {
		return nil, err
	}
	rq.append(&Node{Name: "INCBAL", Text: incbal})
	return b.wrapTrnRq("INVSTMTTRNRQ", rq), nil
}

// renderNode serializes the node tree as tag soup. Closing tags are written
// for leaves too, which both OFXv1 and OFXv2 accept.
func renderNode(n *Node, buff *bytes.Buffer) {
	if len(n.Children) == 0 && n.Text != "" {
		writeElement(n.Name, n.Text, buff)
		return
	}
	writeStartTag(n.Name, buff)
	for _, child := range n.Children {
		renderNode(child, buff)
	}
	writeEndTag(n.Name, buff)
}
