package ofx_test

import (
	"strings"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/finfmt/ofx"
)

const bankBody = `<OFX>
<SIGNONMSGSRSV1><SONRS>
<STATUS><CODE>0<SEVERITY>INFO</STATUS>
<DTSERVER>20190923042445<LANGUAGE>ENG
<FI><ORG>Test Bank<FID>123</FI>
</SONRS></SIGNONMSGSRSV1>
<BANKMSGSRSV1><STMTTRNRS>
<TRNUID>1001
<STATUS><CODE>0<SEVERITY>INFO</STATUS>
<CLTCOOKIE>4
<STMTRS>
<CURDEF>USD
<BANKACCTFROM><BANKID>123456789<ACCTID>789<ACCTTYPE>CHECKING</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20190101120000.000[0:GMT]<DTEND>20190131120000.000[0:GMT]
<STMTTRN><TRNTYPE>DEBIT<DTPOSTED>20190119090000<TRNAMT>-20.96<FITID>A1<NAME>Coffee Shop</STMTTRN>
<STMTTRN><TRNTYPE>CREDIT<DTPOSTED>20190122090000<TRNAMT>115.26<FITID>A2<NAME>Paycheck</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL><BALAMT>315.50<DTASOF>20190131120000</LEDGERBAL>
<AVAILBAL><BALAMT>300.00<DTASOF>20190131120000</AVAILBAL>
<MKTGINFO>Visit our new branch
</STMTRS>
</STMTTRNRS></BANKMSGSRSV1>
</OFX>
`

const invBody = `<OFX>
<SIGNONMSGSRSV1><SONRS>
<STATUS><CODE>0<SEVERITY>INFO</STATUS>
<DTSERVER>20190923042445<LANGUAGE>ENG
</SONRS></SIGNONMSGSRSV1>
<INVSTMTMSGSRSV1><INVSTMTTRNRS>
<TRNUID>2001
<STATUS><CODE>0<SEVERITY>INFO</STATUS>
<INVSTMTRS>
<DTASOF>20190131
<CURDEF>USD
<INVACCTFROM><BROKERID>broker.example.com<ACCTID>882</INVACCTFROM>
<INVTRANLIST>
<DTSTART>20190101<DTEND>20190131
<BUYSTOCK><INVBUY>
<INVTRAN><FITID>B1<DTTRADE>20190115</INVTRAN>
<SECID><UNIQUEID>123456789<UNIQUEIDTYPE>CUSIP</SECID>
<UNITS>100<UNITPRICE>22.5000<TOTAL>-2250.00<SUBACCTSEC>CASH<SUBACCTFUND>CASH
</INVBUY><BUYTYPE>BUY</BUYSTOCK>
</INVTRANLIST>
<INVPOSLIST>
<POSSTOCK><INVPOS>
<SECID><UNIQUEID>123456789<UNIQUEIDTYPE>CUSIP</SECID>
<HELDINACCT>CASH<POSTYPE>LONG<UNITS>100<UNITPRICE>23.0000<MKTVAL>2300.00<DTPRICEASOF>20190131
</INVPOS></POSSTOCK>
</INVPOSLIST>
<INVBAL><AVAILCASH>1000.00<MARGINBALANCE>0.00<SHORTBALANCE>0.00
<BALLIST><BAL><NAME>Cash<DESC>Available cash<BALTYPE>DOLLAR<VALUE>1000.00</BAL></BALLIST>
</INVBAL>
</INVSTMTRS>
</INVSTMTTRNRS></INVSTMTMSGSRSV1>
<SECLISTMSGSRSV1><SECLIST>
<MFINFO><SECINFO>
<SECID><UNIQUEID>987654321<UNIQUEIDTYPE>CUSIP</SECID>
<SECNAME>Index Fund
</SECINFO>
<MFASSETCLASS>
<PORTION><ASSETCLASS>LARGESTOCK<PERCENT>60.0</PORTION>
<PORTION><ASSETCLASS>DOMESTICBOND<PERCENT>40.0</PORTION>
</MFASSETCLASS></MFINFO>
<STOCKINFO><SECINFO>
<SECID><UNIQUEID>123456789<UNIQUEIDTYPE>CUSIP</SECID>
<SECNAME>ACME Corp<TICKER>ACME
</SECINFO></STOCKINFO>
</SECLIST></SECLISTMSGSRSV1>
</OFX>
`

var _ = Describe("ofx", func() {
	Describe("Parse()", func() {
		Context("when given a v1 bank statement", func() {
			var resp *ofx.Response
			BeforeEach(func() {
				var err error
				resp, err = ofx.Parse(strings.NewReader(v1Header + bankBody))
				Expect(err).To(BeNil())
			})
			It("should carry the validated header", func() {
				Expect(resp.Header).ToNot(BeNil())
				Expect(resp.Header.Version).To(Equal(102))
			})
			It("should convert the signon result", func() {
				Expect(resp.Signon.Int("code")).To(Equal(int64(0)))
				Expect(resp.Signon.String("severity")).To(Equal("INFO"))
				Expect(resp.Signon.String("org")).To(Equal("Test Bank"))
				Expect(resp.Signon.String("language")).To(Equal("ENG"))
			})
			It("should staple the wrapper metadata onto the statement", func() {
				Expect(resp.Statements).To(HaveLen(1))
				stmt := resp.Statements[0]
				Expect(stmt.Kind).To(Equal(ofx.BankStatement))
				Expect(stmt.UID).To(Equal("1001"))
				Expect(stmt.Cookie).To(Equal("4"))
				Expect(stmt.Status.Int("code")).To(Equal(int64(0)))
			})
			It("should convert the account, currency and transactions", func() {
				stmt := resp.Statements[0]
				Expect(stmt.Currency).To(Equal("USD"))
				Expect(stmt.Account.String("bankid")).To(Equal("123456789"))
				Expect(stmt.Account.String("accttype")).To(Equal("CHECKING"))
				Expect(stmt.Transactions.Start).To(Equal(time.Date(2019, 1, 1, 12, 0, 0, 0, time.UTC)))
				Expect(stmt.Transactions.Items).To(HaveLen(2))
				first := stmt.Transactions.Items[0]
				Expect(first.String("trntype")).To(Equal("DEBIT"))
				Expect(first.Decimal("trnamt").Equal(decimal.New(-2096, -2))).To(BeTrue())
				Expect(first.String("name")).To(Equal("Coffee Shop"))
			})
			It("should convert the ledger and available balances", func() {
				stmt := resp.Statements[0]
				Expect(stmt.LedgerBal.Decimal("balamt").Equal(decimal.New(3155, -1))).To(BeTrue())
				Expect(stmt.AvailBal.Decimal("balamt").Equal(decimal.New(300, 0))).To(BeTrue())
			})
		})

		Context("when a wrapper reports an error without a payload", func() {
			It("should skip that statement and keep the signon", func() {
				body := `<OFX>
<SIGNONMSGSRSV1><SONRS>
<STATUS><CODE>0<SEVERITY>INFO</STATUS>
<DTSERVER>20190923042445<LANGUAGE>ENG
</SONRS></SIGNONMSGSRSV1>
<BANKMSGSRSV1><STMTTRNRS>
<TRNUID>1002
<STATUS><CODE>2000<SEVERITY>ERROR</STATUS>
</STMTTRNRS></BANKMSGSRSV1>
</OFX>
`
				resp, err := ofx.Parse(strings.NewReader(v1Header + body))
				Expect(err).To(BeNil())
				Expect(resp.Signon).ToNot(BeNil())
				Expect(resp.Statements).To(BeEmpty())
			})
		})

		Context("when the signon is missing", func() {
			It("should fail", func() {
				_, err := ofx.Parse(strings.NewReader(v1Header + "<OFX><BANKMSGSRSV1></BANKMSGSRSV1></OFX>"))
				Expect(err).To(BeAssignableToTypeOf(&ofx.SpecViolation{}))
			})
		})

		Context("when given an investment statement with a security list", func() {
			var resp *ofx.Response
			BeforeEach(func() {
				var err error
				resp, err = ofx.Parse(strings.NewReader(v1Header + invBody))
				Expect(err).To(BeNil())
			})
			It("should convert the statement with its as-of date", func() {
				Expect(resp.Statements).To(HaveLen(1))
				stmt := resp.Statements[0]
				Expect(stmt.Kind).To(Equal(ofx.InvestmentStatement))
				Expect(stmt.AsOf).To(Equal(time.Date(2019, 1, 31, 0, 0, 0, 0, time.UTC)))
				Expect(stmt.Account.String("brokerid")).To(Equal("broker.example.com"))
			})
			It("should convert transactions, positions and balances", func() {
				stmt := resp.Statements[0]
				Expect(stmt.Transactions.Items).To(HaveLen(1))
				buy := stmt.Transactions.Items[0]
				Expect(buy.Tag).To(Equal("BUYSTOCK"))
				Expect(buy.String("buytype")).To(Equal("BUY"))
				Expect(buy.Decimal("unitprice").Equal(decimal.New(225000, -4))).To(BeTrue())
				Expect(stmt.Positions).To(HaveLen(1))
				Expect(stmt.Positions[0].String("postype")).To(Equal("LONG"))
				Expect(stmt.Balances.Decimal("availcash").Equal(decimal.New(1000, 0))).To(BeTrue())
				Expect(stmt.OtherBalances).To(HaveLen(1))
				Expect(stmt.OtherBalances[0].String("name")).To(Equal("Cash"))
			})
			It("should convert the security list with detached asset classes", func() {
				Expect(resp.Securities).To(HaveLen(2))
				fund := resp.Securities[0]
				Expect(fund.Tag).To(Equal("MFINFO"))
				Expect(fund.String("secname")).To(Equal("Index Fund"))
				Expect(fund.List("mfassetclass")).To(HaveLen(2))
				Expect(fund.List("mfassetclass")[0].String("assetclass")).To(Equal("LARGESTOCK"))
				stock := resp.Securities[1]
				Expect(stock.Tag).To(Equal("STOCKINFO"))
				Expect(stock.String("ticker")).To(Equal("ACME"))
			})
		})

		Context("when the body is ISO-8859-1 encoded", func() {
			It("should transcode element text to UTF-8", func() {
				header := strings.Replace(v1Header, "CHARSET:NONE", "CHARSET:ISO-8859-1", 1)
				body := strings.Replace(bankBody, "Coffee Shop", "Caf\xe9", 1)
				resp, err := ofx.Parse(strings.NewReader(header + body))
				Expect(err).To(BeNil())
				Expect(resp.Statements[0].Transactions.Items[0].String("name")).To(Equal("Café"))
			})
		})

		Context("when the statement drops the account open tag", func() {
			It("should repair the known-bad form before parsing", func() {
				body := strings.Replace(bankBody, "<CURDEF>USD\n<BANKACCTFROM><BANKID>", "<CURDEF>USD</CURDEF>\n<BANKID>", 1)
				resp, err := ofx.Parse(strings.NewReader(v1Header + body))
				Expect(err).To(BeNil())
				Expect(resp.Statements[0].Account.String("bankid")).To(Equal("123456789"))
			})
		})
	})

	Describe("ParseTree()", func() {
		It("should parse a v2 document to the node tree", func() {
			data := v2Header + "<OFX><SIGNONMSGSRSV1><SONRS><STATUS><CODE>0</CODE><SEVERITY>INFO</SEVERITY></STATUS><DTSERVER>20190923042445</DTSERVER><LANGUAGE>ENG</LANGUAGE></SONRS></SIGNONMSGSRSV1></OFX>"
			header, root, err := ofx.ParseTree([]byte(data))
			Expect(err).To(BeNil())
			Expect(header.Version).To(Equal(203))
			Expect(root.Find("SIGNONMSGSRSV1/SONRS/DTSERVER").Text).To(Equal("20190923042445"))
		})
		It("should surface tag soup failures", func() {
			_, _, err := ofx.ParseTree([]byte(v1Header + "<OFX><SONRS>"))
			Expect(err).To(BeAssignableToTypeOf(&ofx.TagSoupError{}))
		})
	})
})
