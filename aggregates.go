package ofx

import "sync"

// Enums used in aggregate validation, per the OFX spec.
var (
	severities   = []string{"INFO", "WARN", "ERROR"}
	acctTypes    = []string{"CHECKING", "SAVINGS", "MONEYMRKT", "CREDITLINE"}
	invSubAccts  = []string{"CASH", "MARGIN", "SHORT", "OTHER"}
	buyTypes     = []string{"BUY", "BUYTOCOVER"}
	sellTypes    = []string{"SELL", "SELLSHORT"}
	assetClasses = []string{"DOMESTICBOND", "INTLBOND", "LARGESTOCK", "SMALLSTOCK", "INTLSTOCK", "MONEYMRKT", "OTHER"}
	inv401kSrcs  = []string{"PRETAX", "AFTERTAX", "MATCH", "PROFITSHARING", "ROLLOVER", "OTHERVEST", "OTHERNONVEST"}
	incomeTypes  = []string{"CGLONG", "CGSHORT", "DIV", "INTEREST", "MISC"}
	trnTypes     = []string{
		"CREDIT", "DEBIT", "INT", "DIV", "FEE", "SRVCHG", "DEP", "ATM", "POS",
		"XFER", "CHECK", "PAYMENT", "CASH", "DIRECTDEP", "DIRECTDEBIT",
		"REPEATPMT", "OTHER",
	}
	// ISO 4217 / 639-2 / 3166-1 alpha-3 codes observed in the wild; not the
	// exhaustive tables.
	currencyCodes = []string{
		"AUD", "BRL", "CAD", "CHF", "CNY", "CZK", "DKK", "EUR", "GBP", "HKD",
		"HUF", "IDR", "ILS", "INR", "JPY", "KRW", "MXN", "MYR", "NOK", "NZD",
		"PHP", "PLN", "RUB", "SEK", "SGD", "THB", "TRY", "TWD", "USD", "ZAR",
	}
	languageCodes = []string{
		"CHI", "DAN", "DEU", "DUT", "ENG", "FIN", "FRA", "FRE", "GER", "ITA",
		"JPN", "KOR", "NOR", "POR", "RUS", "SPA", "SWE",
	}
	countryCodes = []string{
		"AUS", "BRA", "CAN", "CHE", "CHN", "DEU", "ESP", "FRA", "GBR", "IND",
		"ITA", "JPN", "KOR", "MEX", "NLD", "NZL", "RUS", "USA",
	}
)

func el(name string, conv Converter) Field {
	return Field{Name: name, Conv: conv}
}

func req(name string, conv Converter) Field {
	return Field{Name: name, Conv: conv, Required: true}
}

// merge composes named field groups into one flat schema table. The OFX
// model reuses groups like SECID and ORIGCURRENCY across many transaction
// types; composition happens here, at type-definition time.
func merge(groups ...[]Field) []Field {
	var fields []Field
	for _, g := range groups {
		fields = append(fields, g...)
	}
	return fields
}

// Shared field groups.
var (
	currencyFields = []Field{
		el("cursym", OneOf{Valid: currencyCodes}),
		el("currate", Decimal{Scale: 8}),
	}
	secIDFields = []Field{
		req("uniqueid", String{Length: 32}),
		req("uniqueidtype", String{Length: 10}),
	}
	tranFields = []Field{
		req("fitid", String{Length: 255}),
		el("srvrtid", String{Length: 10}),
	}
	invTranFields = merge(tranFields, []Field{
		req("dttrade", DateTime{}),
		el("dtsettle", DateTime{}),
		el("reversalfitid", String{Length: 255}),
		el("memo", String{Length: 255}),
	})
	secInfoFields = merge(currencyFields, secIDFields, []Field{
		req("secname", String{Length: 120, Relaxed: true}),
		el("ticker", String{Length: 32}),
		el("fiid", String{Length: 32}),
		el("rating", String{Length: 10}),
		el("unitprice", Decimal{}),
		el("dtasof", DateTime{}),
		el("memo", String{Length: 255}),
	})
	invBuyFields = merge(invTranFields, secIDFields, currencyFields, []Field{
		req("units", Decimal{}),
		req("unitprice", Decimal{Scale: 4}),
		el("markup", Decimal{}),
		el("commission", Decimal{}),
		el("taxes", Decimal{}),
		el("fees", Decimal{}),
		el("load", Decimal{}),
		req("total", Decimal{}),
		el("subacctsec", OneOf{Valid: invSubAccts}),
		el("subacctfund", OneOf{Valid: invSubAccts}),
		el("loanid", String{Length: 32}),
		el("loanprincipal", Decimal{}),
		el("loaninterest", Decimal{}),
		el("inv401ksource", OneOf{Valid: inv401kSrcs}),
		el("dtpayroll", DateTime{}),
		el("prioryearcontrib", Bool{}),
	})
	invSellFields = merge(invTranFields, secIDFields, currencyFields, []Field{
		req("units", Decimal{}),
		req("unitprice", Decimal{Scale: 4}),
		el("markdown", Decimal{}),
		el("commission", Decimal{}),
		el("taxes", Decimal{}),
		el("fees", Decimal{}),
		el("load", Decimal{}),
		el("withholding", Decimal{}),
		el("taxexempt", Bool{}),
		req("total", Decimal{}),
		el("gain", Decimal{}),
		req("subacctsec", OneOf{Valid: invSubAccts}),
		req("subacctfund", OneOf{Valid: invSubAccts}),
		el("loanid", String{Length: 32}),
		el("statewithholding", Decimal{}),
		el("penalty", Decimal{}),
		el("inv401ksource", OneOf{Valid: inv401kSrcs}),
	})
	invPosFields = merge(secIDFields, currencyFields, []Field{
		req("heldinacct", OneOf{Valid: invSubAccts}),
		req("postype", OneOf{Valid: []string{"SHORT", "LONG"}}),
		req("units", Decimal{}),
		req("unitprice", Decimal{Scale: 4}),
		req("mktval", Decimal{}),
		req("dtpriceasof", DateTime{}),
		el("memo", String{Length: 255}),
		el("inv401ksource", OneOf{Valid: inv401kSrcs}),
	})
)

// origCurrencyMutex records whether a transaction's rate was carried under
// CURRENCY or ORIGCURRENCY; flattening erases the containing tag, and that
// distinction matters for foreign-currency transactions (OFX section 5.2).
var origCurrencyMutex = Mutex{
	Discriminator: "curtype",
	Tags:          []string{"CURRENCY", "ORIGCURRENCY"},
}

var registry *Registry
var initRegistry sync.Once

// GetRegistry returns the singleton schema registry: the closed table of
// every aggregate type this codec materializes, keyed by wire tag.
func GetRegistry() *Registry {
	initRegistry.Do(func() {
		registry = NewRegistry(
			&Schema{Tag: "FI", Fields: []Field{
				el("org", String{Length: 32}),
				el("fid", String{Length: 32}),
			}},
			&Schema{Tag: "STATUS", Fields: []Field{
				req("code", Integer{Digits: 6}),
				req("severity", OneOf{Valid: severities}),
				el("message", String{Length: 255}),
			}},
			&Schema{Tag: "SONRS", Fields: []Field{
				req("code", Integer{Digits: 6}),
				req("severity", OneOf{Valid: severities}),
				el("message", String{Length: 255}),
				req("dtserver", DateTime{}),
				el("userkey", String{Length: 64}),
				el("tskeyexpire", DateTime{}),
				el("language", OneOf{Valid: languageCodes}),
				el("dtprofup", DateTime{}),
				el("dtacctup", DateTime{}),
				el("org", String{Length: 32}),
				el("fid", String{Length: 32}),
				el("sesscookie", String{Length: 1000}),
				el("accesskey", String{Length: 1000}),
			}},
			&Schema{Tag: "BANKACCTFROM", Fields: []Field{
				req("bankid", String{Length: 9}),
				el("branchid", String{Length: 22}),
				req("acctid", String{Length: 22}),
				req("accttype", OneOf{Valid: acctTypes}),
				el("acctkey", String{Length: 22}),
			}},
			&Schema{Tag: "BANKACCTTO", Fields: []Field{
				req("bankid", String{Length: 9}),
				el("branchid", String{Length: 22}),
				req("acctid", String{Length: 22}),
				req("accttype", OneOf{Valid: acctTypes}),
				el("acctkey", String{Length: 22}),
			}},
			&Schema{Tag: "CCACCTFROM", Fields: []Field{
				req("acctid", String{Length: 22}),
				el("acctkey", String{Length: 22}),
			}},
			&Schema{Tag: "CCACCTTO", Fields: []Field{
				req("acctid", String{Length: 22}),
				el("acctkey", String{Length: 22}),
			}},
			&Schema{Tag: "INVACCTFROM", Fields: []Field{
				req("brokerid", String{Length: 22}),
				req("acctid", String{Length: 22}),
			}},
			&Schema{
				Tag: "LEDGERBAL",
				Fields: []Field{
					req("balamt", Decimal{}),
					req("dtasof", DateTime{}),
				},
				Orderings: []Ordering{{First: "BALAMT", Then: "DTASOF"}},
			},
			&Schema{
				Tag: "AVAILBAL",
				Fields: []Field{
					req("balamt", Decimal{}),
					req("dtasof", DateTime{}),
				},
				Orderings: []Ordering{{First: "BALAMT", Then: "DTASOF"}},
			},
			&Schema{
				Tag: "INVBAL",
				Fields: []Field{
					req("availcash", Decimal{}),
					req("marginbalance", Decimal{}),
					req("shortbalance", Decimal{}),
					el("buypower", Decimal{}),
				},
				// BALLIST members collide with each other (and with our own
				// balance fields) in a flat namespace; strip the list before
				// flattening and convert its members independently.
				Lists: []string{"BALLIST"},
			},
			&Schema{Tag: "BAL", Fields: merge(currencyFields, []Field{
				req("name", String{Length: 32}),
				req("desc", String{Length: 80}),
				req("baltype", OneOf{Valid: []string{"DOLLAR", "PERCENT", "NUMBER"}}),
				req("value", Decimal{}),
				el("dtasof", DateTime{}),
			})},
			&Schema{Tag: "SECID", Fields: secIDFields},
			&Schema{Tag: "PAYEE", Fields: []Field{
				req("name", String{Length: 32}),
				req("addr1", String{Length: 32}),
				el("addr2", String{Length: 32}),
				el("addr3", String{Length: 32}),
				req("city", String{Length: 32}),
				req("state", String{Length: 5}),
				req("postalcode", String{Length: 11}),
				el("country", OneOf{Valid: countryCodes}),
				req("phone", String{Length: 32}),
			}},
			&Schema{
				Tag: "STMTTRN",
				Fields: merge(tranFields, currencyFields, []Field{
					req("trntype", OneOf{Valid: trnTypes}),
					req("dtposted", DateTime{}),
					el("dtuser", DateTime{}),
					el("dtavail", DateTime{}),
					req("trnamt", Decimal{}),
					el("correctfitid", String{Length: 255}),
					el("correctaction", OneOf{Valid: []string{"REPLACE", "DELETE"}}),
					el("checknum", String{Length: 12}),
					el("refnum", String{Length: 32}),
					el("sic", Integer{}),
					el("payeeid", String{Length: 12}),
					el("name", String{Length: 32, Relaxed: true}),
					el("memo", String{Length: 255, Relaxed: true}),
					el("inv401ksource", OneOf{Valid: inv401kSrcs}),
				}),
				Mutexes:   []Mutex{origCurrencyMutex},
				Orderings: []Ordering{{First: "TRNTYPE", Then: "DTPOSTED"}},
			},
			&Schema{
				Tag: "INVBANKTRAN",
				Fields: merge(tranFields, currencyFields, []Field{
					req("trntype", OneOf{Valid: trnTypes}),
					req("dtposted", DateTime{}),
					el("dtuser", DateTime{}),
					el("dtavail", DateTime{}),
					req("trnamt", Decimal{}),
					el("checknum", String{Length: 12}),
					el("refnum", String{Length: 32}),
					el("name", String{Length: 32, Relaxed: true}),
					el("memo", String{Length: 255, Relaxed: true}),
					req("subacctfund", OneOf{Valid: invSubAccts}),
				}),
				Mutexes: []Mutex{origCurrencyMutex},
			},
			&Schema{Tag: "INVTRAN", Fields: invTranFields},
			&Schema{
				Tag:     "BUYDEBT",
				Fields:  merge(invBuyFields, []Field{el("accrdint", Decimal{})}),
				Mutexes: []Mutex{origCurrencyMutex},
			},
			&Schema{
				Tag: "BUYMF",
				Fields: merge(invBuyFields, []Field{
					req("buytype", OneOf{Valid: buyTypes}),
					el("relfitid", String{Length: 255}),
				}),
				Mutexes: []Mutex{origCurrencyMutex},
			},
			&Schema{
				Tag: "BUYSTOCK",
				Fields: merge(invBuyFields, []Field{
					req("buytype", OneOf{Valid: buyTypes}),
				}),
				Mutexes: []Mutex{origCurrencyMutex},
			},
			&Schema{
				Tag: "SELLMF",
				Fields: merge(invSellFields, []Field{
					req("selltype", OneOf{Valid: sellTypes}),
					el("avgcostbasis", Decimal{}),
					el("relfitid", String{Length: 255}),
				}),
				Mutexes: []Mutex{origCurrencyMutex},
			},
			&Schema{
				Tag: "SELLSTOCK",
				Fields: merge(invSellFields, []Field{
					req("selltype", OneOf{Valid: sellTypes}),
				}),
				Mutexes: []Mutex{origCurrencyMutex},
			},
			&Schema{
				Tag: "INCOME",
				Fields: merge(invTranFields, secIDFields, currencyFields, []Field{
					req("incometype", OneOf{Valid: incomeTypes}),
					req("total", Decimal{}),
					req("subacctsec", OneOf{Valid: invSubAccts}),
					req("subacctfund", OneOf{Valid: invSubAccts}),
					el("taxexempt", Bool{}),
					el("withholding", Decimal{}),
					el("inv401ksource", OneOf{Valid: inv401kSrcs}),
				}),
				Mutexes: []Mutex{origCurrencyMutex},
			},
			&Schema{
				Tag: "REINVEST",
				Fields: merge(invTranFields, secIDFields, currencyFields, []Field{
					req("incometype", OneOf{Valid: incomeTypes}),
					req("total", Decimal{}),
					el("subacctsec", OneOf{Valid: invSubAccts}),
					req("units", Decimal{}),
					req("unitprice", Decimal{Scale: 4}),
					el("commission", Decimal{}),
					el("taxes", Decimal{}),
					el("fees", Decimal{}),
					el("load", Decimal{}),
					el("taxexempt", Bool{}),
					el("inv401ksource", OneOf{Valid: inv401kSrcs}),
				}),
				Mutexes: []Mutex{origCurrencyMutex},
			},
			&Schema{Tag: "SECINFO", Fields: secInfoFields},
			&Schema{Tag: "DEBTINFO", Fields: merge(secInfoFields, []Field{
				req("parvalue", Decimal{}),
				req("debttype", OneOf{Valid: []string{"COUPON", "ZERO"}}),
				el("debtclass", OneOf{Valid: []string{"TREASURY", "MUNICIPAL", "CORPORATE", "OTHER"}}),
				el("couponrt", Decimal{Scale: 4}),
				el("dtcoupon", DateTime{}),
				el("couponfreq", OneOf{Valid: []string{"MONTHLY", "QUARTERLY", "SEMIANNUAL", "ANNUAL", "OTHER"}}),
				el("callprice", Decimal{Scale: 4}),
				el("yieldtocall", Decimal{Scale: 4}),
				el("dtcall", DateTime{}),
				el("calltype", OneOf{Valid: []string{"CALL", "PUT", "PREFUND", "MATURITY"}}),
				el("ytmat", Decimal{Scale: 4}),
				el("dtmat", DateTime{}),
				el("assetclass", OneOf{Valid: assetClasses}),
				el("fiassetclass", String{Length: 32}),
			})},
			&Schema{
				Tag: "MFINFO",
				Fields: merge(secInfoFields, []Field{
					el("mftype", OneOf{Valid: []string{"OPENEND", "CLOSEEND", "OTHER"}}),
					el("yld", Decimal{Scale: 4}),
					el("dtyieldasof", DateTime{}),
				}),
				// Repeated asset-class sub-lists would blow up flattening.
				Lists: []string{"MFASSETCLASS", "FIMFASSETCLASS"},
			},
			&Schema{Tag: "PORTION", Fields: []Field{
				el("assetclass", OneOf{Valid: assetClasses}),
				el("percent", Decimal{}),
			}},
			&Schema{Tag: "FIPORTION", Fields: []Field{
				el("fiassetclass", String{Length: 32}),
				el("percent", Decimal{}),
			}},
			&Schema{Tag: "OPTINFO", Fields: merge(secInfoFields, []Field{
				req("opttype", OneOf{Valid: []string{"CALL", "PUT"}}),
				req("strikeprice", Decimal{}),
				req("dtexpire", DateTime{}),
				req("shperctrct", Integer{}),
				el("assetclass", OneOf{Valid: assetClasses}),
				el("fiassetclass", String{Length: 32}),
			})},
			&Schema{Tag: "OTHERINFO", Fields: merge(secInfoFields, []Field{
				el("typedesc", String{Length: 32}),
				el("assetclass", OneOf{Valid: assetClasses}),
				el("fiassetclass", String{Length: 32}),
			})},
			&Schema{Tag: "STOCKINFO", Fields: merge(secInfoFields, []Field{
				el("stocktype", OneOf{Valid: []string{"COMMON", "PREFERRED", "CONVERTIBLE", "OTHER"}}),
				el("yld", Decimal{Scale: 4}),
				el("dtyieldasof", DateTime{}),
				el("typedesc", String{Length: 32}),
				el("assetclass", OneOf{Valid: assetClasses}),
				el("fiassetclass", String{Length: 32}),
			})},
			&Schema{Tag: "POSDEBT", Fields: invPosFields},
			&Schema{Tag: "POSMF", Fields: merge(invPosFields, []Field{
				el("unitsstreet", Decimal{}),
				el("unitsuser", Decimal{}),
				el("reinvdiv", Bool{}),
				el("reinvcg", Bool{}),
			})},
			&Schema{Tag: "POSOPT", Fields: merge(invPosFields, []Field{
				el("secured", OneOf{Valid: []string{"NAKED", "COVERED"}}),
			})},
			&Schema{Tag: "POSOTHER", Fields: invPosFields},
			&Schema{Tag: "POSSTOCK", Fields: merge(invPosFields, []Field{
				el("unitsstreet", Decimal{}),
				el("unitsuser", Decimal{}),
				el("reinvdiv", Bool{}),
			})},
			&Schema{
				Tag: "INCTRAN",
				Fields: []Field{
					el("dtstart", DateTime{}),
					el("dtend", DateTime{}),
					req("include", Bool{}),
				},
				Orderings: []Ordering{
					{First: "DTSTART", Then: "DTEND"},
					{First: "DTEND", Then: "INCLUDE"},
					{First: "DTSTART", Then: "INCLUDE"},
				},
			},
			&Schema{
				Tag: "INCPOS",
				Fields: []Field{
					el("dtasof", DateTime{}),
					req("include", Bool{}),
				},
				Orderings: []Ordering{{First: "DTASOF", Then: "INCLUDE"}},
			},
		)
	})
	return registry
}

// IsAggregate returns true if the given tag has a registered schema.
func IsAggregate(tag string) bool {
	_, found := GetRegistry().Schema(tag)
	return found
}
