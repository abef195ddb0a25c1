package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/variantdb-pipeline/internal/domain"
	"github.com/variantdb-pipeline/pkg/external"
)

// primaryAssemblySuffix selects the GRCh38 primary-assembly chromosome
// accession among a transcript's genomic spans. Chromosome NC_ accessions on
// the current build all carry version .11; this is reference-build-specific
// and will need revisiting for a future assembly.
const primaryAssemblySuffix = ".11"

// Resolver turns a raw variant string in any supported notation into a
// canonical identifier set, or a kind-tagged failure.
type Resolver interface {
	Resolve(ctx context.Context, variant string) (*domain.ResolvedVariant, error)
}

// VariantResolver classifies variants, drives the resolution API, and
// re-validates every identifier the service returns before accepting it.
type VariantResolver struct {
	api        external.API
	classifier *Classifier
	reporter   domain.Reporter
	log        *logrus.Logger
}

// NewVariantResolver wires the resolution driver.
func NewVariantResolver(api external.API, reporter domain.Reporter, log *logrus.Logger) *VariantResolver {
	return &VariantResolver{
		api:        api,
		classifier: NewClassifier(),
		reporter:   reporter,
		log:        log,
	}
}

// Resolve classifies and resolves one variant. Classification failures
// return before any network call is made.
func (r *VariantResolver) Resolve(ctx context.Context, variant string) (*domain.ResolvedVariant, error) {
	req, err := r.classifier.Classify(variant)
	if err != nil {
		return nil, err
	}

	if req.Kind == NotationGeneSymbol {
		return r.resolveGeneSymbol(ctx, req)
	}

	r.log.WithFields(logrus.Fields{
		"variant":  req.Variant,
		"notation": string(req.Kind),
	}).Info("Querying resolver")

	doc, err := r.api.Fetch(ctx, req.Variant, req.Path)
	if err != nil {
		return nil, err
	}

	payload, err := external.ParseResolved(req.Variant, doc)
	if err != nil {
		return nil, err
	}

	return r.validatePayload(req.Variant, payload)
}

// resolveGeneSymbol runs the two-step gene path: look up the gene's
// transcripts, pick the MANE-select one, and re-resolve through the matching
// accession notation.
func (r *VariantResolver) resolveGeneSymbol(ctx context.Context, req *ResolverRequest) (*domain.ResolvedVariant, error) {
	r.log.WithFields(logrus.Fields{
		"variant": req.Variant,
		"symbol":  req.Symbol,
	}).Info("Querying resolver for gene transcripts")

	doc, err := r.api.Fetch(ctx, req.Variant, req.Path)
	if err != nil {
		return nil, err
	}

	transcripts, err := external.ParseGeneTranscripts(req.Variant, doc)
	if err != nil {
		return nil, err
	}

	for _, t := range transcripts {
		if !t.ManeSelect() {
			continue
		}

		if strings.HasPrefix(req.Change, "c.") {
			if t.Reference == "" {
				return nil, domain.NewResolverError(domain.FailureIrregularResponse, req.Variant,
					"MANE transcript entry carried no reference accession")
			}
			return r.Resolve(ctx, fmt.Sprintf("%s:%s", t.Reference, req.Change))
		}

		// g. change: pick the primary-assembly genomic accession.
		for accession := range t.GenomicSpans {
			if strings.HasSuffix(accession, primaryAssemblySuffix) {
				return r.Resolve(ctx, fmt.Sprintf("%s:%s", accession, req.Change))
			}
		}
		return nil, domain.NewResolverError(domain.FailureIrregularResponse, req.Variant,
			"no primary-assembly genomic accession found for the MANE transcript")
	}

	return nil, domain.NewResolverError(domain.FailureNotRecognized, req.Variant,
		fmt.Sprintf("no MANE-select transcript is known for gene %s", req.Symbol))
}

// validatePayload re-checks every identifier the resolver returned. Genomic
// and transcript syntax failures are terminal; protein, gene symbol and
// HGNC ID irregularities downgrade to a partial success with the field
// flagged, since they are supplementary.
func (r *VariantResolver) validatePayload(variant string, payload *external.ResolvedPayload) (*domain.ResolvedVariant, error) {
	ok, err := domain.CheckHGVS(variant, func() bool { return domain.ValidGenomicHGVS(payload.GenomicHGVS) })
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.NewResolverError(domain.FailureIrregularResponse, variant,
			"genomic description from the resolver is not in valid HGVS nomenclature; variant not added to database")
	}

	ok, err = domain.CheckHGVS(variant, func() bool { return domain.ValidTranscriptHGVS(payload.TranscriptHGVS) })
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.NewResolverError(domain.FailureIrregularResponse, variant,
			"transcript description from the resolver is not in valid HGVS nomenclature; variant not added to database")
	}

	resolved := &domain.ResolvedVariant{
		GenomicHGVS:    payload.GenomicHGVS,
		TranscriptHGVS: payload.TranscriptHGVS,
		ProteinHGVS:    payload.ProteinHGVS,
		GeneSymbol:     payload.GeneSymbol,
		HGNCID:         normalizeHGNCID(payload.HGNCID),
	}

	ok, err = domain.CheckHGVS(variant, func() bool { return domain.ValidProteinHGVS(resolved.ProteinHGVS) })
	if err != nil {
		return nil, err
	}
	if !ok {
		r.reporter.Report(fmt.Sprintf("%s: Irregular protein consequence from the resolver.", variant))
		resolved.ProteinHGVS = domain.IrregularField
	}

	if !domain.ValidGeneSymbol(resolved.GeneSymbol) {
		r.reporter.Report(fmt.Sprintf("%s: Irregular gene symbol from the resolver.", variant))
		resolved.GeneSymbol = domain.IrregularField
	}

	if !domain.ValidHGNCID(resolved.HGNCID) {
		r.reporter.Report(fmt.Sprintf("%s: Irregular HGNC ID from the resolver. Variant will not be returned from gene queries.", variant))
		resolved.HGNCID = domain.IrregularField
	}

	r.log.WithField("variant", variant).Info("Successfully retrieved variant identifiers from resolver")
	return resolved, nil
}

// normalizeHGNCID strips the "HGNC:" registry prefix, leaving the bare
// numeric identifier.
func normalizeHGNCID(raw string) string {
	if i := strings.LastIndex(raw, ":"); i >= 0 {
		return raw[i+1:]
	}
	return raw
}
