package resolver

import (
	"regexp"
	"strings"
)

// suffixTokens lists legal and organizational tokens stripped during name
// normalization. Matched as whole words after punctuation removal, so
// "Smith & Jones Holdings, Inc." and "SMITH JONES" normalize identically.
var suffixTokens = map[string]struct{}{
	"inc":          {},
	"incorporated": {},
	"corp":         {},
	"corporation":  {},
	"llc":          {},
	"llp":          {},
	"lp":           {},
	"ltd":          {},
	"limited":      {},
	"co":           {},
	"company":      {},
	"holding":      {},
	"holdings":     {},
	"group":        {},
	"plc":          {},
	"sa":           {},
	"nv":           {},
	"ag":           {},
	"gmbh":         {},
	"the":          {},
	"and":          {},
	"of":           {},
}

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9\s]+`)

// Normalize canonicalizes a free-text company name for matching:
// lowercase, punctuation to spaces, legal suffix tokens removed, whitespace
// collapsed. Total and idempotent; any input yields a (possibly empty) string.
//
//	"KRATOS DEFENSE & SECURITY SOLUTIONS, INC." -> "kratos defense security solutions"
func Normalize(raw string) string {
	name := strings.ToLower(raw)
	name = nonAlnumRe.ReplaceAllString(name, " ")

	fields := strings.Fields(name)
	kept := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, drop := suffixTokens[f]; drop {
			continue
		}
		kept = append(kept, f)
	}

	return strings.Join(kept, " ")
}
