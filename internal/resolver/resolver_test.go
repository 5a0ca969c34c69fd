package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aquila-erp/invoice-extractor/internal/llm"
	"github.com/aquila-erp/invoice-extractor/internal/patterns"
)

func newTestResolver(policy Policy) *Resolver {
	return New(patterns.DefaultLibrary(), patterns.NewTaxIDMatcher("OM"), policy, nil)
}

func TestPickPriority(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		cands  []Candidate
		want   string
	}{
		{
			name:   "field known prefix beats everything",
			policy: DefaultPolicy(),
			cands: []Candidate{
				{SourceOCR, TierKnownPrefix, "ATCPO22"},
				{SourceField, TierNoPrefix, "24059999"},
				{SourceField, TierKnownPrefix, "AVPPO11"},
			},
			want: "AVPPO11",
		},
		{
			name:   "ocr known prefix beats field no-prefix",
			policy: DefaultPolicy(),
			cands: []Candidate{
				{SourceField, TierNoPrefix, "24059999"},
				{SourceOCR, TierKnownPrefix, "ATCPO22"},
			},
			want: "ATCPO22",
		},
		{
			name:   "ocr ledger prefix beats field no-prefix",
			policy: DefaultPolicy(),
			cands: []Candidate{
				{SourceField, TierNoPrefix, "24059999"},
				{SourceOCR, TierLedgerPrefix, "MCTPO24110001"},
			},
			want: "MCTPO24110001",
		},
		{
			name:   "default policy prefers ocr ledger over field ledger",
			policy: DefaultPolicy(),
			cands: []Candidate{
				{SourceField, TierLedgerPrefix, "MCTPO24059999"},
				{SourceOCR, TierLedgerPrefix, "MCTPO24110001"},
			},
			want: "MCTPO24110001",
		},
		{
			name:   "inverted policy prefers field ledger over ocr ledger",
			policy: Policy{PreferOCRLedgerPrefix: false},
			cands: []Candidate{
				{SourceField, TierLedgerPrefix, "MCTPO24059999"},
				{SourceOCR, TierLedgerPrefix, "MCTPO24110001"},
			},
			want: "MCTPO24059999",
		},
		{
			name:   "no-prefix field beats no-prefix ocr",
			policy: DefaultPolicy(),
			cands: []Candidate{
				{SourceOCR, TierNoPrefix, "24110001"},
				{SourceField, TierNoPrefix, "24059999"},
			},
			want: "24059999",
		},
		{
			name:   "empty set yields empty",
			policy: DefaultPolicy(),
			cands:  nil,
			want:   "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestResolver(tt.policy)
			assert.Equal(t, tt.want, r.pick(tt.cands))
		})
	}
}

func TestResolveFieldKnownPrefix(t *testing.T) {
	r := newTestResolver(DefaultPolicy())

	fields := &llm.InvoiceFields{PONumber: "ATCPO-0012345"}
	got := r.Resolve(context.Background(), fields, "", nil)
	assert.Equal(t, "ATCPO012345", got)
}

func TestResolveOCRBeatsBareField(t *testing.T) {
	r := newTestResolver(DefaultPolicy())

	fields := &llm.InvoiceFields{OrderNumber: "24059999"}
	got := r.Resolve(context.Background(), fields, "Order ref AVPPO-24110001 on page two", nil)
	assert.Equal(t, "AVPPO24110001", got)
}

func TestResolveLedgerEnrichment(t *testing.T) {
	var looked []string
	lookup := func(_ context.Context, taxID string) string {
		looked = append(looked, taxID)
		if taxID == "OM1100020467" {
			return "MCTPO"
		}
		return ""
	}

	r := newTestResolver(DefaultPolicy())
	fields := &llm.InvoiceFields{CustomerRefNo: "24059999"}
	got := r.Resolve(context.Background(), fields, "VATIN OM 11 0002 0467", lookup)

	assert.Equal(t, "MCTPO24059999", got)
	assert.Equal(t, []string{"OM1100020467"}, looked, "lookup must be memoized per tax ID")
}

func TestResolveNoLookupFallsBackToBareNumber(t *testing.T) {
	r := newTestResolver(DefaultPolicy())

	fields := &llm.InvoiceFields{OrderNumber: "24059999"}
	got := r.Resolve(context.Background(), fields, "", nil)
	assert.Equal(t, "24059999", got)
}

func TestResolveUnresolved(t *testing.T) {
	r := newTestResolver(DefaultPolicy())

	got := r.Resolve(context.Background(), &llm.InvoiceFields{InvoiceNo: "INV-001"}, "plain terms and conditions", nil)
	assert.Equal(t, "", got)

	got = r.Resolve(context.Background(), nil, "", nil)
	assert.Equal(t, "", got)
}
