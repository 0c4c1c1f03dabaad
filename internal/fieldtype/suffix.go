package fieldtype

// Suffix names the typed sub-field a value is stored under. Every field key in an
// indexed document holds objects whose keys are suffixed names ("-s", "-dtr", ...),
// which lets the index mapping pick a concrete type for each without a schema per field.
type Suffix string

// Separator prefixes every suffix in a sub-field name.
const Separator = "-"

const (
	SuffixText         Suffix = "s"
	SuffixIdno         Suffix = "idno"
	SuffixTokenizeWS   Suffix = "tokenize-ws"
	SuffixKeyword      Suffix = "kw"
	SuffixInteger      Suffix = "i"
	SuffixFloat        Suffix = "f"
	SuffixDouble       Suffix = "d"
	SuffixBool         Suffix = "b"
	SuffixLong         Suffix = "l"
	SuffixLongRange    Suffix = "lr"
	SuffixIntegerRange Suffix = "ir"
	SuffixDoubleRange  Suffix = "dr"
	SuffixWildcard     Suffix = "w"
	SuffixGeoShape     Suffix = "gs"
	SuffixGeoPoint     Suffix = "gp"
	SuffixObject       Suffix = "o"
	SuffixDate         Suffix = "dt"
	SuffixDateRange    Suffix = "dtr"
	SuffixTime         Suffix = "t"
	SuffixTimeRange    Suffix = "tr"
	SuffixCurrency     Suffix = "currency"
	SuffixTimestamp    Suffix = "ts"
)

// AllSuffixes lists every suffix in the vocabulary.
var AllSuffixes = []Suffix{
	SuffixText, SuffixIdno, SuffixTokenizeWS, SuffixKeyword, SuffixInteger, SuffixFloat,
	SuffixDouble, SuffixBool, SuffixLong, SuffixLongRange, SuffixIntegerRange,
	SuffixDoubleRange, SuffixWildcard, SuffixGeoShape, SuffixGeoPoint, SuffixObject,
	SuffixDate, SuffixDateRange, SuffixTime, SuffixTimeRange, SuffixCurrency, SuffixTimestamp,
}

// SortSubField is the keyword view the mapping adds beneath text sub-fields.
const SortSubField = "sort"

// Name returns the sub-field name for the suffix, e.g. "-kw".
func (s Suffix) Name() string {
	return Separator + string(s)
}

// Path returns the dotted query path of the suffix beneath key, e.g. "ca_objects/idno.-kw".
func (s Suffix) Path(key string) string {
	return key + "." + s.Name()
}

// Tokenizes reports whether values stored under the suffix are analyzed text.
// Boolean, integer and time suffixes never are, which is why the don't-tokenize
// option leaves them alone.
func (s Suffix) Tokenizes() bool {
	switch s {
	case SuffixBool, SuffixInteger, SuffixTime:
		return false
	}
	return true
}

// Valid reports whether s is part of the vocabulary.
func (s Suffix) Valid() bool {
	for _, v := range AllSuffixes {
		if v == s {
			return true
		}
	}
	return false
}
