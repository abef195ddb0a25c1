package domain

import (
	"strings"
)

// IrregularField is stored in place of a supplementary identifier (protein
// description, gene symbol, HGNC ID) that failed its syntax contract. The
// variant itself is still accepted.
const IrregularField = "Irregular response from resolver"

// ResolvedVariant is the canonical identifier set returned by the resolution
// service for one raw variant. GenomicHGVS and TranscriptHGVS are guaranteed
// to satisfy their HGVS syntax contracts; the remaining fields may carry
// IrregularField when the upstream value was malformed.
type ResolvedVariant struct {
	GenomicHGVS    string `json:"genomic_hgvs"`
	TranscriptHGVS string `json:"transcript_hgvs"`
	ProteinHGVS    string `json:"protein_hgvs"`
	GeneSymbol     string `json:"gene_symbol"`
	HGNCID         string `json:"hgnc_id"`
}

// GenomicAccession returns the portion of GenomicHGVS before the first ':',
// e.g. "NC_000011.10" for "NC_000011.10:g.2164285C>T".
func (v *ResolvedVariant) GenomicAccession() string {
	if i := strings.Index(v.GenomicHGVS, ":"); i >= 0 {
		return v.GenomicHGVS[:i]
	}
	return v.GenomicHGVS
}

// StarRating is the ordinal 0-4 review-confidence proxy derived from a
// free-text review status.
type StarRating int

const (
	StarsNone               StarRating = 0
	StarsSingleSubmitter    StarRating = 1
	StarsMultipleSubmitters StarRating = 2
	StarsExpertPanel        StarRating = 3
	StarsPracticeGuideline  StarRating = 4
)

// Glyphs renders the rating the way it is persisted and displayed: a run of
// star glyphs, with zero rendered as "0★" so it stays distinguishable from a
// missing value.
func (s StarRating) Glyphs() string {
	if s <= 0 {
		return "0★"
	}
	if s > 4 {
		s = 4
	}
	return strings.Repeat("★", int(s))
}

// StarRatingFromReviewStatus maps a free-text review-status phrase to a star
// rating, longest match wins.
func StarRatingFromReviewStatus(status string) StarRating {
	switch {
	case strings.Contains(status, "practice guideline"):
		return StarsPracticeGuideline
	case strings.Contains(status, "reviewed by expert panel"):
		return StarsExpertPanel
	case strings.Contains(status, "multiple submitters"):
		return StarsMultipleSubmitters
	case strings.Contains(status, "single submitter"):
		return StarsSingleSubmitter
	default:
		return StarsNone
	}
}

// AnnotationRecord is one clinical-significance record from the bulk
// reference dataset, keyed by (genomic accession, transcript HGVS prefix).
// Records are immutable within a cache generation.
type AnnotationRecord struct {
	Classification string     `json:"classification"`
	Conditions     string     `json:"conditions"`
	Stars          StarRating `json:"stars"`
	ReviewStatus   string     `json:"review_status"`
}

// PatientVariant associates a patient with a resolved genomic description.
// Unique on (PatientID, GenomicHGVS); first writer wins.
type PatientVariant struct {
	PatientID   string `json:"patient_id" db:"patient_ID"`
	GenomicHGVS string `json:"genomic_hgvs" db:"variant"`
}

// VariantAnnotation is the deduplicated, patient-independent annotation row.
// Unique on (GenomicHGVS, TranscriptHGVS, ProteinHGVS); last writer wins on
// all annotation columns.
type VariantAnnotation struct {
	GenomicHGVS    string     `json:"genomic_hgvs" db:"variant_NC"`
	TranscriptHGVS string     `json:"transcript_hgvs" db:"variant_NM"`
	ProteinHGVS    string     `json:"protein_hgvs" db:"variant_NP"`
	GeneSymbol     string     `json:"gene_symbol" db:"gene"`
	HGNCID         string     `json:"hgnc_id" db:"HGNC_ID"`
	Classification string     `json:"classification" db:"Classification"`
	Conditions     string     `json:"conditions" db:"Conditions"`
	Stars          StarRating `json:"stars" db:"Stars"`
	ReviewStatus   string     `json:"review_status" db:"Review_status"`
}
