package ofx

import (
	"time"

	"github.com/golang/glog"
)

// StatementKind identifies which transaction-response wrapper category a
// statement was materialized from.
type StatementKind int

const (
	// BankStatement is a STMTTRNRS/STMTRS statement.
	BankStatement StatementKind = iota
	// CreditCardStatement is a CCSTMTTRNRS/CCSTMTRS statement.
	CreditCardStatement
	// InvestmentStatement is an INVSTMTTRNRS/INVSTMTRS statement.
	InvestmentStatement
)

func (k StatementKind) String() string {
	switch k {
	case BankStatement:
		return "bank"
	case CreditCardStatement:
		return "creditcard"
	case InvestmentStatement:
		return "investment"
	}
	return "unknown"
}

// TransactionList is a statement's transaction list: the DTSTART/DTEND
// metadata pair followed by the converted transaction aggregates.
type TransactionList struct {
	Start time.Time
	End   time.Time
	Items []*Instance
}

// Statement is one materialized *STMTRS statement with its wrapper metadata
// (transaction UID, status, echo cookie) stapled on.
type Statement struct {
	Kind     StatementKind
	UID      string
	Status   *Instance
	Cookie   string
	Currency string
	Account  *Instance

	Transactions *TransactionList

	// Bank and credit card statements.
	LedgerBal *Instance
	AvailBal  *Instance

	// Investment statements.
	AsOf      time.Time
	Balances  *Instance
	Positions []*Instance

	// BALLIST members, from either statement family.
	OtherBalances []*Instance
}

// Response is the converted top level of an OFX response document: the
// signon result, zero or more statements, and zero or one security list.
type Response struct {
	Header     *Header
	Signon     *Instance
	Statements []*Statement
	Securities []*Instance
}

// statementSpec drives the wrapper walk for one statement category.
type statementSpec struct {
	kind    StatementKind
	wrapper string
	payload string
	acctTag string
}

var statementSpecs = []statementSpec{
	{BankStatement, "STMTTRNRS", "STMTRS", "BANKACCTFROM"},
	{CreditCardStatement, "CCSTMTTRNRS", "CCSTMTRS", "CCACCTFROM"},
	{InvestmentStatement, "INVSTMTTRNRS", "INVSTMTRS", "INVACCTFROM"},
}

// Subsections this codec does not model; they are stripped from the payload
// before conversion rather than rejected.
var unsupportedStmtTags = []string{"MKTGINFO", "INVOOLIST", "INV401K", "INV401KBAL"}

var (
	trnUIDConverter = String{Length: 36}
	cookieConverter = String{Length: 36}
	curdefConverter = OneOf{Valid: currencyCodes}
)

// Assemble walks the parsed root node and builds the response graph. A
// malformed signon or any structural violation is fatal; a wrapper whose
// statement payload is missing (the server reported an error for that one
// statement) is skipped.
func Assemble(root *Node) (*Response, error) {
	r := GetRegistry()
	resp := &Response{}

	sonrs := root.Find("SIGNONMSGSRSV1/SONRS")
	if sonrs == nil {
		return nil, &SpecViolation{
			Aggregate: "OFX",
			Field:     "sonrs",
			Kind:      ViolationMissing,
			Reason:    "response has no SIGNONMSGSRSV1/SONRS",
		}
	}
	signon, err := r.Convert(sonrs)
	if err != nil {
		return nil, err
	}
	resp.Signon = signon

	for _, spec := range statementSpecs {
		for _, trnrs := range root.FindAll(spec.wrapper) {
			stmt, err := assembleStatement(r, spec, trnrs)
			if err == ErrMissingPayload {
				glog.V(2).Infof("skipping <%s> without <%s> payload", spec.wrapper, spec.payload)
				continue
			}
			if err != nil {
				return nil, err
			}
			resp.Statements = append(resp.Statements, stmt)
		}
	}

	if seclist := root.Find("SECLISTMSGSRSV1/SECLIST"); seclist != nil {
		for _, sec := range seclist.Children {
			instance, err := r.Convert(sec)
			if err != nil {
				return nil, err
			}
			resp.Securities = append(resp.Securities, instance)
		}
	}
	return resp, nil
}

func assembleStatement(r *Registry, spec statementSpec, trnrs *Node) (*Statement, error) {
	payload := trnrs.Find(spec.payload)
	if payload == nil {
		return nil, ErrMissingPayload
	}

	for _, tag := range unsupportedStmtTags {
		if child := payload.Find(tag); child != nil {
			payload.Remove(child)
		}
	}

	stmt := &Statement{Kind: spec.kind}
	if err := stapleWrapper(r, stmt, trnrs); err != nil {
		return nil, err
	}

	curdef := payload.Find("CURDEF")
	if curdef == nil {
		return nil, &SpecViolation{
			Aggregate: spec.payload,
			Field:     "curdef",
			Kind:      ViolationMissing,
			Reason:    "required element is absent",
		}
	}
	currency, err := curdefConverter.Convert(curdef.Text)
	if err != nil {
		return nil, err
	}
	stmt.Currency = currency.(string)

	acct := payload.Find(spec.acctTag)
	if acct == nil {
		return nil, &SpecViolation{
			Aggregate: spec.payload,
			Field:     "acctfrom",
			Kind:      ViolationMissing,
			Reason:    "statement has no <" + spec.acctTag + ">",
		}
	}
	if stmt.Account, err = r.Convert(acct); err != nil {
		return nil, err
	}

	if spec.kind == InvestmentStatement {
		return stmt, assembleInvestment(r, stmt, payload)
	}
	return stmt, assembleBanking(r, stmt, payload)
}

// stapleWrapper attaches the wrapper-level metadata to the statement:
// transaction UID, status, and the optional client cookie echo.
func stapleWrapper(r *Registry, stmt *Statement, trnrs *Node) error {
	trnuid := trnrs.Find("TRNUID")
	if trnuid == nil {
		return &SpecViolation{
			Aggregate: trnrs.Name,
			Field:     "trnuid",
			Kind:      ViolationMissing,
			Reason:    "required element is absent",
		}
	}
	uid, err := trnUIDConverter.Convert(trnuid.Text)
	if err != nil {
		return err
	}
	stmt.UID = uid.(string)

	status := trnrs.Find("STATUS")
	if status == nil {
		return &SpecViolation{
			Aggregate: trnrs.Name,
			Field:     "status",
			Kind:      ViolationMissing,
			Reason:    "required element is absent",
		}
	}
	if stmt.Status, err = r.Convert(status); err != nil {
		return err
	}

	if cookie := trnrs.Find("CLTCOOKIE"); cookie != nil {
		v, err := cookieConverter.Convert(cookie.Text)
		if err != nil {
			return err
		}
		stmt.Cookie = v.(string)
	}
	return nil
}

func assembleBanking(r *Registry, stmt *Statement, payload *Node) error {
	if tranlist := payload.Find("BANKTRANLIST"); tranlist != nil {
		txns, err := assembleTransactionList(r, tranlist)
		if err != nil {
			return err
		}
		stmt.Transactions = txns
	}

	// LEDGERBAL is mandatory for banking statements.
	ledgerbal := payload.Find("LEDGERBAL")
	if ledgerbal == nil {
		return &SpecViolation{
			Aggregate: payload.Name,
			Field:     "ledgerbal",
			Kind:      ViolationMissing,
			Reason:    "required element is absent",
		}
	}
	var err error
	if stmt.LedgerBal, err = r.Convert(ledgerbal); err != nil {
		return err
	}

	if availbal := payload.Find("AVAILBAL"); availbal != nil {
		if stmt.AvailBal, err = r.Convert(availbal); err != nil {
			return err
		}
	}

	if ballist := payload.Find("BALLIST"); ballist != nil {
		for _, bal := range ballist.Children {
			instance, err := r.Convert(bal)
			if err != nil {
				return err
			}
			stmt.OtherBalances = append(stmt.OtherBalances, instance)
		}
	}
	return nil
}

func assembleInvestment(r *Registry, stmt *Statement, payload *Node) error {
	dtasof := payload.Find("DTASOF")
	if dtasof == nil {
		return &SpecViolation{
			Aggregate: payload.Name,
			Field:     "dtasof",
			Kind:      ViolationMissing,
			Reason:    "required element is absent",
		}
	}
	asof, err := DateTime{}.Convert(dtasof.Text)
	if err != nil {
		return err
	}
	stmt.AsOf = asof.(time.Time)

	if tranlist := payload.Find("INVTRANLIST"); tranlist != nil {
		txns, err := assembleTransactionList(r, tranlist)
		if err != nil {
			return err
		}
		stmt.Transactions = txns
	}

	if poslist := payload.Find("INVPOSLIST"); poslist != nil {
		for _, pos := range poslist.Children {
			instance, err := r.Convert(pos)
			if err != nil {
				return err
			}
			stmt.Positions = append(stmt.Positions, instance)
		}
	}

	// INVBAL carries its own BALLIST; the INVBAL schema detaches it before
	// flattening, and the members surface here as the statement's other
	// balances.
	if invbal := payload.Find("INVBAL"); invbal != nil {
		if stmt.Balances, err = r.Convert(invbal); err != nil {
			return err
		}
		stmt.OtherBalances = stmt.Balances.List("ballist")
	}
	return nil
}

// assembleTransactionList converts a *TRANLIST node: the two leading
// DTSTART/DTEND metadata leaves, then one converted aggregate per remaining
// child. The item count always matches the children once the two metadata
// nodes are removed.
func assembleTransactionList(r *Registry, tranlist *Node) (*TransactionList, error) {
	if len(tranlist.Children) < 2 ||
		tranlist.Children[0].Name != "DTSTART" ||
		tranlist.Children[1].Name != "DTEND" {
		return nil, &SpecViolation{
			Aggregate: tranlist.Name,
			Field:     "dtstart",
			Kind:      ViolationOrdering,
			Reason:    "transaction list must begin with <DTSTART> and <DTEND>",
		}
	}
	start, err := DateTime{}.Convert(tranlist.Children[0].Text)
	if err != nil {
		return nil, err
	}
	end, err := DateTime{}.Convert(tranlist.Children[1].Text)
	if err != nil {
		return nil, err
	}
	txns := &TransactionList{
		Start: start.(time.Time),
		End:   end.(time.Time),
		Items: make([]*Instance, 0, len(tranlist.Children)-2),
	}
	for _, child := range tranlist.Children[2:] {
		instance, err := r.Convert(child)
		if err != nil {
			return nil, err
		}
		txns.Items = append(txns.Items, instance)
	}
	return txns, nil
}
