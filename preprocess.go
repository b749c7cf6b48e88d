package ofx

import "regexp"

var missingAcctFrom = regexp.MustCompile(`(CURDEF>\s*)(<BANKID>)`)

// preprocessBody applies one-off transforms to fix known-bad FI data before
// tokenizing, e.g. statements that drop the <BANKACCTFROM> opening tag.
func preprocessBody(body []byte) []byte {
	return missingAcctFrom.ReplaceAll(body, []byte("$1<BANKACCTFROM>$2"))
}
