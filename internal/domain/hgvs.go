package domain

import (
	"fmt"
	"regexp"
)

// HGVS syntax contracts. These are deliberately permissive in the same places
// the resolution service is (intronic offsets, ranges, delins forms) and
// strict about accession shape and sequence-type markers.
const (
	// nucleotideChange covers substitutions, del/ins/dup/inv and delins with
	// single positions, ranges and intronic offsets.
	nucleotideChange = `(-?\d+|-?\d+_-?\d+|-?\d+[+-]\d+)([ACGT]>[ACGT]|delins[ACGT]*|del[ACGT]*|ins[ACGT]*|dup[ACGT]*|inv[ACGT]*)`

	// proteinChange tolerates the long tail of predicted consequences:
	// missense, frameshift, extension, synonymous, unknown (?), p.0.
	proteinChange = `\(?0?\??\*?\??(\d*[A-Za-z]{3})*(\d+[A-Za-z]{3}(fs)?\*?\d*|\d*_[A-Za-z]{3}\d+(ins)?[A-Za-z]*|\d*_[A-Za-z]{3}\d+(delins)?[A-Za-z]*|\d+=|\d+\*|ext\d*)*\)?`
)

var (
	genomicHGVSPattern    = regexp.MustCompile(`^NC_\d+\.\d{1,2}:g\.` + nucleotideChange + `$`)
	transcriptHGVSPattern = regexp.MustCompile(`^NM_\d+\.\d{1,3}:c\.` + nucleotideChange + `$`)
	proteinHGVSPattern    = regexp.MustCompile(`^NP_\d+\.\d{1,3}:p\.` + proteinChange + `$`)

	// CodingChangePattern and GenomicChangePattern validate the genetic-change
	// suffix of a user-supplied search term before any request is built.
	CodingChangePattern  = regexp.MustCompile(`^c\.` + nucleotideChange + `$`)
	GenomicChangePattern = regexp.MustCompile(`^g\.` + nucleotideChange + `$`)

	hgncIDPattern = regexp.MustCompile(`^\d+$`)
)

// ValidGenomicHGVS reports whether s is a well-formed NC_ genomic description.
func ValidGenomicHGVS(s string) bool { return genomicHGVSPattern.MatchString(s) }

// ValidTranscriptHGVS reports whether s is a well-formed NM_ coding description.
func ValidTranscriptHGVS(s string) bool { return transcriptHGVSPattern.MatchString(s) }

// ValidProteinHGVS reports whether s is a well-formed NP_ protein consequence.
func ValidProteinHGVS(s string) bool { return proteinHGVSPattern.MatchString(s) }

// ValidHGNCID reports whether s is a bare numeric HGNC identifier.
func ValidHGNCID(s string) bool { return hgncIDPattern.MatchString(s) }

// ValidGeneSymbol bounds the symbol length. C20orf202 is the longest approved
// symbol at nine characters.
func ValidGeneSymbol(s string) bool { return len(s) >= 1 && len(s) <= 9 }

// CheckHGVS runs fn, converting any panic raised during pattern evaluation
// into an InternalValidationError instead of an unhandled fault.
func CheckHGVS(variant string, fn func() bool) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = NewResolverError(FailureInternalValidationError, variant,
				fmt.Sprintf("identifier syntax check failed internally: %v", r))
		}
	}()
	return fn(), nil
}
