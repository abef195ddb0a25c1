package service

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/variantdb-pipeline/internal/domain"
	"github.com/variantdb-pipeline/pkg/external"
)

// NotationKind identifies which of the five supported variant notations a
// search term uses, and therefore which resolution path applies.
type NotationKind string

const (
	NotationPositional        NotationKind = "positional"
	NotationEnsemblTranscript NotationKind = "ensembl_transcript"
	NotationRefSeqTranscript  NotationKind = "refseq_transcript"
	NotationRefSeqGenomic     NotationKind = "refseq_genomic"
	NotationGeneSymbol        NotationKind = "gene_symbol"
)

// ResolverRequest is a classified, syntax-validated variant ready to be sent
// to the resolution service.
type ResolverRequest struct {
	Kind    NotationKind
	Variant string
	Symbol  string // gene-symbol path only
	Change  string // genetic-change suffix, e.g. "c.1442G>A"
	Path    string // service endpoint path
}

var (
	geneSymbolForm  = regexp.MustCompile(`^[A-Za-z0-9_-]+:`)
	positionalForm  = regexp.MustCompile(`^[A-Za-z0-9]+-\d+-[ACGT]+-[ACGT]+$`)
	enstAccession   = regexp.MustCompile(`^ENST\d+(\.\d+)?$`)
)

// Classifier inspects a variant string, determines its notation, validates
// the genetic-change syntax, and builds the resolver request. All rejection
// happens here, before any network call exists to fail.
type Classifier struct{}

// NewClassifier creates a variant format classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify applies the notation rules in order, first match wins.
func (c *Classifier) Classify(variant string) (*ResolverRequest, error) {
	variant = strings.TrimSpace(variant)
	if variant == "" {
		return nil, domain.NewResolverError(domain.FailureClassificationRejected, variant,
			"variant description is empty")
	}

	switch {
	case strings.HasPrefix(variant, "ENST"):
		return c.classifyEnsembl(variant)

	case strings.HasPrefix(variant, "NM_"),
		strings.HasPrefix(variant, "LRG_"),
		strings.HasPrefix(variant, "NG_"):
		return c.classifyRefSeqTranscript(variant)

	case strings.HasPrefix(variant, "NC_"):
		return c.classifyRefSeqGenomic(variant)

	case geneSymbolForm.MatchString(variant):
		return c.classifyGeneSymbol(variant)

	default:
		return c.classifyPositional(variant)
	}
}

func splitSearchTerm(variant string) (accession, change string, err error) {
	i := strings.Index(variant, ":")
	if i < 0 {
		return "", "", domain.NewResolverError(domain.FailureMissingSeparator, variant,
			"variant description is missing the ':' separator between accession and genetic change")
	}
	return variant[:i], variant[i+1:], nil
}

func (c *Classifier) classifyEnsembl(variant string) (*ResolverRequest, error) {
	accession, change, err := splitSearchTerm(variant)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(change, "c.") {
		return nil, domain.NewResolverError(domain.FailureClassificationRejected, variant,
			"Ensembl transcript variants must use c. notation")
	}
	if !enstAccession.MatchString(accession) {
		return nil, domain.NewResolverError(domain.FailureIrregularNomenclature, variant,
			"irregular variant nomenclature: malformed Ensembl transcript accession")
	}
	dot := strings.Index(accession, ".")
	if dot < 0 {
		return nil, domain.NewResolverError(domain.FailureClassificationRejected, variant,
			"missing/invalid version number on the Ensembl transcript accession")
	}
	if _, convErr := strconv.Atoi(accession[dot+1:]); convErr != nil {
		return nil, domain.NewResolverError(domain.FailureClassificationRejected, variant,
			"missing/invalid version number on the Ensembl transcript accession")
	}
	if !domain.CodingChangePattern.MatchString(change) {
		return nil, domain.NewResolverError(domain.FailureIrregularNomenclature, variant,
			"irregular variant nomenclature in the coding change")
	}
	return &ResolverRequest{
		Kind:    NotationEnsemblTranscript,
		Variant: variant,
		Change:  change,
		Path:    external.EnsemblTranscriptPath(variant),
	}, nil
}

func (c *Classifier) classifyRefSeqTranscript(variant string) (*ResolverRequest, error) {
	_, change, err := splitSearchTerm(variant)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(change, "c.") {
		return nil, domain.NewResolverError(domain.FailureClassificationRejected, variant,
			"RefSeq transcript variants must use c. notation")
	}
	if !domain.CodingChangePattern.MatchString(change) {
		return nil, domain.NewResolverError(domain.FailureIrregularNomenclature, variant,
			"irregular variant nomenclature in the coding change")
	}
	return &ResolverRequest{
		Kind:    NotationRefSeqTranscript,
		Variant: variant,
		Change:  change,
		Path:    external.TranscriptPath(variant),
	}, nil
}

func (c *Classifier) classifyRefSeqGenomic(variant string) (*ResolverRequest, error) {
	_, change, err := splitSearchTerm(variant)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(change, "g.") {
		return nil, domain.NewResolverError(domain.FailureClassificationRejected, variant,
			"RefSeq genomic variants must use g. notation")
	}
	if !domain.GenomicChangePattern.MatchString(change) {
		return nil, domain.NewResolverError(domain.FailureIrregularNomenclature, variant,
			"irregular variant nomenclature in the genomic change")
	}
	return &ResolverRequest{
		Kind:    NotationRefSeqGenomic,
		Variant: variant,
		Change:  change,
		Path:    external.TranscriptPath(variant),
	}, nil
}

func (c *Classifier) classifyGeneSymbol(variant string) (*ResolverRequest, error) {
	symbol, change, err := splitSearchTerm(variant)
	if err != nil {
		return nil, err
	}
	switch {
	case strings.HasPrefix(change, "c."):
		if !domain.CodingChangePattern.MatchString(change) {
			return nil, domain.NewResolverError(domain.FailureIrregularNomenclature, variant,
				"irregular variant nomenclature in the coding change")
		}
	case strings.HasPrefix(change, "g."):
		if !domain.GenomicChangePattern.MatchString(change) {
			return nil, domain.NewResolverError(domain.FailureIrregularNomenclature, variant,
				"irregular variant nomenclature in the genomic change")
		}
	default:
		return nil, domain.NewResolverError(domain.FailureClassificationRejected, variant,
			"gene-symbol variants must use c. or g. notation")
	}
	return &ResolverRequest{
		Kind:    NotationGeneSymbol,
		Variant: variant,
		Symbol:  symbol,
		Change:  change,
		Path:    external.GeneTranscriptsPath(symbol),
	}, nil
}

func (c *Classifier) classifyPositional(variant string) (*ResolverRequest, error) {
	if !positionalForm.MatchString(variant) {
		return nil, domain.NewResolverError(domain.FailureClassificationRejected, variant,
			"unrecognized variant format; expected chrom-pos-ref-alt or an HGVS search term")
	}
	return &ResolverRequest{
		Kind:    NotationPositional,
		Variant: variant,
		Path:    external.PositionalPath(variant),
	}, nil
}
