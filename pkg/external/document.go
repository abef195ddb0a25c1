package external

import (
	"encoding/json"
	"strings"

	"github.com/variantdb-pipeline/internal/domain"
)

// ResolvedPayload carries the raw identifier set extracted from a resolver
// response, before any HGVS syntax validation has been applied.
type ResolvedPayload struct {
	TranscriptHGVS string
	GenomicHGVS    string
	ProteinHGVS    string
	GeneSymbol     string
	HGNCID         string // raw form, e.g. "HGNC:11782"
}

// resolvedEntry mirrors the per-variant object nested under the resolved
// identifier key.
type resolvedEntry struct {
	PrimaryAssemblyLoci struct {
		GRCh38 struct {
			HGVSGenomicDescription string `json:"hgvs_genomic_description"`
		} `json:"grch38"`
	} `json:"primary_assembly_loci"`
	ProteinConsequence struct {
		TLR string `json:"tlr"`
	} `json:"hgvs_predicted_protein_consequence"`
	GeneSymbol string `json:"gene_symbol"`
	GeneIDs    struct {
		HGNCID string `json:"hgnc_id"`
	} `json:"gene_ids"`
}

// metadataKeys are top-level keys that never name a resolved variant.
func isMetadataKey(key string) bool {
	return key == "flag" || key == "metadata" || strings.HasPrefix(key, "validation_warning")
}

// ParseResolved interprets a resolver response document for one variant.
// Failure cases: the empty-result marker, validation warnings, and responses
// missing the expected identifier fields.
func ParseResolved(variant string, doc Document) (*ResolvedPayload, error) {
	if len(doc) == 0 {
		return nil, domain.NewResolverError(domain.FailureIrregularResponse, variant,
			"resolver returned an empty document")
	}

	if raw, ok := doc["flag"]; ok {
		var flag string
		if err := json.Unmarshal(raw, &flag); err == nil && flag == "empty_result" {
			return nil, domain.NewResolverError(domain.FailureNotRecognized, variant,
				"the resolver did not recognize this variant description")
		}
	}

	if warnings := collectValidationWarnings(doc); len(warnings) > 0 {
		return nil, domain.NewResolverError(domain.FailureValidationWarning, variant,
			"resolver validation warnings: "+strings.Join(warnings, "; "))
	}

	// The payload is keyed by the resolved transcript description; take the
	// first non-metadata key.
	var key string
	for k := range doc {
		if !isMetadataKey(k) {
			key = k
			break
		}
	}
	if key == "" {
		return nil, domain.NewResolverError(domain.FailureIrregularResponse, variant,
			"resolver response held no resolved variant entry")
	}

	var entry resolvedEntry
	if err := json.Unmarshal(doc[key], &entry); err != nil {
		return nil, domain.WrapResolverError(domain.FailureMalformedResponse, variant,
			"resolved variant entry could not be decoded", err)
	}

	if entry.PrimaryAssemblyLoci.GRCh38.HGVSGenomicDescription == "" {
		return nil, domain.NewResolverError(domain.FailureIrregularResponse, variant,
			"resolver response was missing the genomic description")
	}

	return &ResolvedPayload{
		TranscriptHGVS: key,
		GenomicHGVS:    entry.PrimaryAssemblyLoci.GRCh38.HGVSGenomicDescription,
		ProteinHGVS:    entry.ProteinConsequence.TLR,
		GeneSymbol:     entry.GeneSymbol,
		HGNCID:         entry.GeneIDs.HGNCID,
	}, nil
}

func collectValidationWarnings(doc Document) []string {
	var warnings []string
	for key, raw := range doc {
		if !strings.HasPrefix(key, "validation_warning") {
			continue
		}
		var block struct {
			ValidationWarnings []string `json:"validation_warnings"`
		}
		if err := json.Unmarshal(raw, &block); err == nil {
			warnings = append(warnings, block.ValidationWarnings...)
		}
	}
	return warnings
}

// GeneTranscript is one transcript entry from the gene-to-transcripts tool.
type GeneTranscript struct {
	Reference    string                     `json:"reference"`
	Annotations  map[string]any             `json:"annotations"`
	GenomicSpans map[string]json.RawMessage `json:"genomic_spans"`
}

// ManeSelect reports whether the transcript carries the MANE-select
// annotation.
func (t GeneTranscript) ManeSelect() bool {
	v, ok := t.Annotations["mane_select"]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// ParseGeneTranscripts extracts the transcript list from a
// gene-to-transcripts response.
func ParseGeneTranscripts(symbol string, doc Document) ([]GeneTranscript, error) {
	raw, ok := doc["transcripts"]
	if !ok {
		return nil, domain.NewResolverError(domain.FailureIrregularResponse, symbol,
			"gene query response held no transcripts")
	}
	var transcripts []GeneTranscript
	if err := json.Unmarshal(raw, &transcripts); err != nil {
		return nil, domain.WrapResolverError(domain.FailureMalformedResponse, symbol,
			"gene query transcripts could not be decoded", err)
	}
	if len(transcripts) == 0 {
		return nil, domain.NewResolverError(domain.FailureNotRecognized, symbol,
			"no transcripts are known for this gene symbol")
	}
	return transcripts, nil
}
