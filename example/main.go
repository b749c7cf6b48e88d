package main

import (
	"fmt"
	"log"
	"strings"

	"github.com/finfmt/ofx"
)

func main() {
	data := strings.Join([]string{
		"OFXHEADER:100",
		"DATA:OFXSGML",
		"VERSION:102",
		"SECURITY:NONE",
		"ENCODING:USASCII",
		"CHARSET:NONE",
		"COMPRESSION:NONE",
		"OLDFILEUID:NONE",
		"NEWFILEUID:NONE",
		"",
		"<OFX>",
		"<SIGNONMSGSRSV1><SONRS>",
		"<STATUS><CODE>0<SEVERITY>INFO</STATUS>",
		"<DTSERVER>20190923042445<LANGUAGE>ENG",
		"<FI><ORG>Test Bank<FID>123</FI>",
		"</SONRS></SIGNONMSGSRSV1>",
		"<BANKMSGSRSV1><STMTTRNRS>",
		"<TRNUID>0",
		"<STATUS><CODE>0<SEVERITY>INFO</STATUS>",
		"<STMTRS>",
		"<CURDEF>USD",
		"<BANKACCTFROM><BANKID>123456789<ACCTID>789<ACCTTYPE>CREDITLINE</BANKACCTFROM>",
		"<BANKTRANLIST>",
		"<DTSTART>20190101120000.000[0:GMT]<DTEND>20190131120000.000[0:GMT]",
		"<STMTTRN><TRNTYPE>DEBIT<DTPOSTED>20190119090000<TRNAMT>-20.96<FITID>20190119090001<NAME>Sample Expense</STMTTRN>",
		"<STMTTRN><TRNTYPE>DEBIT<DTPOSTED>20190115090000<TRNAMT>-115.26<FITID>20190122090002<NAME>Another Expense</STMTTRN>",
		"</BANKTRANLIST>",
		"<LEDGERBAL><BALAMT>315.50<DTASOF>20190131120000.000[0:GMT]</LEDGERBAL>",
		"<AVAILBAL><BALAMT>315.50<DTASOF>20190131120000.000[-7:MST]</AVAILBAL>",
		"</STMTRS>",
		"</STMTTRNRS></BANKMSGSRSV1>",
		"</OFX>",
	}, "\r\n")

	resp, err := ofx.Parse(strings.NewReader(data))
	if err != nil {
		log.Fatalf("error parsing statement - %s", err)
	}

	for _, stmt := range resp.Statements {
		fmt.Printf("%s statement for account %s (%s)\n",
			stmt.Kind, stmt.Account.String("acctid"), stmt.Currency)
		for _, txn := range stmt.Transactions.Items {
			fmt.Printf("  %s %10s  %s\n",
				txn.DateTime("dtposted").Format("2006-01-02"),
				txn.Decimal("trnamt"), txn.String("name"))
		}
		fmt.Printf("  ledger balance %s as of %s\n",
			stmt.LedgerBal.Decimal("balamt"),
			stmt.LedgerBal.DateTime("dtasof").Format("2006-01-02"))
	}
}
