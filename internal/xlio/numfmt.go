package xlio

import (
	"strconv"
	"strings"

	"github.com/xuri/nfp"
)

// formatParser is built once; nfp.NumberFormatParser() returns a reusable
// parser, the same way TsubasaBE's numfmt package keeps a single instance
// around rather than reparsing the section grammar per call.
var formatParser = nfp.NumberFormatParser()

// FormatNumber renders val against an Excel custom number-format code
// (e.g. "#,##0.00", "0.00%") for presentation — the LiteralValue itself
// always stays numeric for computation; this is purely for callers (xlsb
// display text, exports, UIs) that want the string Excel would show.
//
// Falls back to Go's default float formatting if fmtCode has no sections
// nfp can parse (e.g. "General").
func FormatNumber(val float64, fmtCode string) string {
	sections := formatParser.Parse(fmtCode)
	if len(sections) == 0 {
		return strconv.FormatFloat(val, 'G', -1, 64)
	}
	sec := pickSection(sections, val)
	return renderSection(val, sec)
}

func pickSection(sections []nfp.Section, val float64) nfp.Section {
	switch {
	case len(sections) == 1:
		return sections[0]
	case len(sections) == 2:
		if val < 0 {
			return sections[1]
		}
		return sections[0]
	default:
		switch {
		case val > 0:
			return sections[0]
		case val < 0:
			return sections[1]
		default:
			return sections[2]
		}
	}
}

// renderSection is a minimal literal/placeholder renderer, not a full
// implementation of nfp's token grammar (no thousands-separator grouping,
// no date tokens) — xlio only needs enough to show a plausible numeric
// string for xlsb cells, not pixel-exact Excel formatting.
func renderSection(val float64, sec nfp.Section) string {
	var b strings.Builder
	rendered := false
	for _, tok := range sec.Items {
		switch tok.TType {
		case nfp.TokenTypeLiteral:
			b.WriteString(tok.TValue)
		case nfp.TokenTypeZeroPlaceHolder, nfp.TokenTypeHashPlaceHolder, nfp.TokenTypeDecimalPoint:
			if !rendered {
				b.WriteString(strconv.FormatFloat(val, 'f', -1, 64))
				rendered = true
			}
		case nfp.TokenTypePercent:
			b.WriteByte('%')
		}
	}
	if !rendered {
		b.WriteString(strconv.FormatFloat(val, 'f', -1, 64))
	}
	return b.String()
}
