package atone

// MaxPreallocElements caps the number of elements reserved up front from a
// source's size hint. Hints may come from attacker controlled length
// prefixes, so at most this many slots are reserved before elements have
// actually been read.
const MaxPreallocElements = 4096

// CautiousSizeHint turns a SeqAccess size hint into a safe reservation
// count: min(hint, MaxPreallocElements), with absent or negative hints
// counting as zero.
func CautiousSizeHint(hint int, ok bool) int {
	if !ok || hint <= 0 {
		return 0
	}
	return min(hint, MaxPreallocElements)
}
