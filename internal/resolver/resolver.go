package resolver

import (
	"context"
	"log/slog"

	"github.com/aquila-erp/invoice-extractor/internal/llm"
	"github.com/aquila-erp/invoice-extractor/internal/patterns"
)

// Source identifies where a candidate was discovered.
type Source int

const (
	SourceField Source = iota // structured AI output
	SourceOCR                 // raw OCR text
)

func (s Source) String() string {
	if s == SourceOCR {
		return "ocr"
	}
	return "field"
}

// Tier is the confidence class of a candidate.
type Tier int

const (
	TierKnownPrefix  Tier = iota // matched a configured prefix
	TierLedgerPrefix             // bare number completed with a ledger-derived prefix
	TierNoPrefix                 // bare number, no prefix found
)

func (t Tier) String() string {
	switch t {
	case TierKnownPrefix:
		return "known-prefix"
	case TierLedgerPrefix:
		return "ledger-prefix"
	default:
		return "no-prefix"
	}
}

// Candidate is one possible PO number. Candidates live only within a single
// Resolve call.
type Candidate struct {
	Source Source
	Tier   Tier
	Value  string
}

// PrefixLookupFn resolves a tax ID to a PO prefix, or "" when unknown.
// A nil function disables ledger enrichment.
type PrefixLookupFn func(ctx context.Context, taxID string) string

// Policy controls the selection order where the business rules allow
// variation. The default prefers OCR-sourced ledger-derived candidates over
// structured-field ones: the model drifts on long digit runs more than the
// OCR engine does.
type Policy struct {
	PreferOCRLedgerPrefix bool
}

// DefaultPolicy returns the production selection policy.
func DefaultPolicy() Policy {
	return Policy{PreferOCRLedgerPrefix: true}
}

// Resolver gathers PO candidates from structured fields and OCR text and
// picks one winner by strict priority.
type Resolver struct {
	lib    *patterns.Library
	taxIDs *patterns.TaxIDMatcher
	policy Policy
	logger *slog.Logger
}

func New(lib *patterns.Library, taxIDs *patterns.TaxIDMatcher, policy Policy, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if lib == nil {
		lib = patterns.DefaultLibrary()
	}
	return &Resolver{lib: lib, taxIDs: taxIDs, policy: policy, logger: logger}
}

// Resolve returns the best PO number for the extracted fields plus OCR text,
// or "" when unresolved. The lookup is consulted only for bare numeric
// candidates, keyed by tax IDs discovered in either source.
func (r *Resolver) Resolve(ctx context.Context, fields *llm.InvoiceFields, ocrText string, lookup PrefixLookupFn) string {
	fieldValues := candidateFields(fields)

	// Tax IDs from both sources feed the ledger prefix enrichment. The full
	// serialized field map is scanned, not just the PO candidate fields: the
	// registration number usually sits in VATIN or CustomerTRN.
	var taxIDs []string
	if r.taxIDs != nil {
		seen := make(map[string]struct{})
		for _, id := range r.taxIDs.Extract(llm.SerializeFields(fields)) {
			if _, dup := seen[id]; !dup {
				seen[id] = struct{}{}
				taxIDs = append(taxIDs, id)
			}
		}
		for _, id := range r.taxIDs.Extract(ocrText) {
			if _, dup := seen[id]; !dup {
				seen[id] = struct{}{}
				taxIDs = append(taxIDs, id)
			}
		}
	}

	// Memoize ledger lookups per tax ID within this resolution.
	prefixCache := make(map[string]string)
	ledgerPrefix := func() string {
		if lookup == nil {
			return ""
		}
		for _, id := range taxIDs {
			p, ok := prefixCache[id]
			if !ok {
				p = lookup(ctx, id)
				prefixCache[id] = p
			}
			if p != "" {
				return p
			}
		}
		return ""
	}

	var candidates []Candidate

	for _, fv := range fieldValues {
		if fv == "" {
			continue
		}
		if m, ok := r.lib.FindFirstPO(fv); ok {
			candidates = append(candidates, Candidate{Source: SourceField, Tier: TierKnownPrefix, Value: m.Number})
		}
		for _, num := range r.lib.FindNumericPOs(fv) {
			if p := ledgerPrefix(); p != "" {
				candidates = append(candidates, Candidate{Source: SourceField, Tier: TierLedgerPrefix, Value: p + num})
			} else {
				candidates = append(candidates, Candidate{Source: SourceField, Tier: TierNoPrefix, Value: num})
			}
		}
	}

	if ocrText != "" {
		for _, m := range r.lib.FindAllPO(ocrText) {
			candidates = append(candidates, Candidate{Source: SourceOCR, Tier: TierKnownPrefix, Value: m.Number})
		}
		for _, num := range r.lib.FindNumericPOs(ocrText) {
			if p := ledgerPrefix(); p != "" {
				candidates = append(candidates, Candidate{Source: SourceOCR, Tier: TierLedgerPrefix, Value: p + num})
			} else {
				candidates = append(candidates, Candidate{Source: SourceOCR, Tier: TierNoPrefix, Value: num})
			}
		}
	}

	winner := r.pick(candidates)
	if winner == "" {
		r.logger.Warn("resolver.unresolved",
			"field_candidates", countBySource(candidates, SourceField),
			"ocr_candidates", countBySource(candidates, SourceOCR),
		)
		return ""
	}
	r.logger.Info("resolver.resolved", "po_number", winner, "candidates", len(candidates))
	return winner
}

// pick applies the priority order; first match wins, never guess.
func (r *Resolver) pick(cands []Candidate) string {
	order := []struct {
		src  Source
		tier Tier
	}{
		{SourceField, TierKnownPrefix},
		{SourceOCR, TierKnownPrefix},
		{SourceOCR, TierLedgerPrefix},
		{SourceField, TierLedgerPrefix},
		{SourceField, TierNoPrefix},
		{SourceOCR, TierNoPrefix},
	}
	if !r.policy.PreferOCRLedgerPrefix {
		order[2], order[3] = order[3], order[2]
	}
	for _, step := range order {
		for _, c := range cands {
			if c.Source == step.src && c.Tier == step.tier {
				r.logger.Info("resolver.winner",
					"po_number", c.Value, "source", c.Source.String(), "tier", c.Tier.String())
				return c.Value
			}
		}
	}
	return ""
}

// candidateFields returns the five designated fields scanned for PO numbers.
func candidateFields(f *llm.InvoiceFields) []string {
	if f == nil {
		return nil
	}
	return []string{
		f.InvoiceNo,
		f.PONumber,
		f.OrderNumber,
		f.LPOReference,
		f.CustomerRefNo,
	}
}

func countBySource(cands []Candidate, src Source) int {
	n := 0
	for _, c := range cands {
		if c.Source == src {
			n++
		}
	}
	return n
}
