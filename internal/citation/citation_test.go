package citation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/taxqa/internal/models"
)

func TestCleanSourceName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"NigeriaTaxAct.PDF", "NigeriaTaxAct"},
		{"NigeriaTaxAct.pdf", "NigeriaTaxAct"},
		{"TaxAct.Pdf", "TaxAct"},
		{"VAT Guide.docx", "VAT Guide"},
		{"NoExtension", "NoExtension"},
		{"corpus/2023/FinanceAct.pdf", "corpus/2023/FinanceAct"},
		{`2023\FinanceAct.pdf`, "2023/FinanceAct"},
		{"v1.2/Notes", "v1.2/Notes"},
		{"rules/.hidden", "rules/.hidden"},
		{"Finance Act 1.5", "Finance Act 1.5"},
		{"archive.tar.gz", "archive.tar"},
		{".hidden", ".hidden"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanSourceName(tt.in))
		})
	}
}

func retrieved(source, content string, sim float64) models.RetrievedChunk {
	return models.RetrievedChunk{
		Chunk:      &models.DocumentChunk{Source: source, Content: content},
		Similarity: sim,
	}
}

func TestAssemble(t *testing.T) {
	in := []models.RetrievedChunk{
		retrieved("VATAct.pdf", "VAT is 7.5%", 0.9),
		retrieved("CITA.PDF", "Company tax is 30%", 0.8),
		retrieved("VATAct.pdf", "Exempt supplies", 0.7),
	}
	got := Assemble(in)

	require.Len(t, got.Chunks, 3)
	for i, c := range got.Chunks {
		assert.Equal(t, ID(i+1), c.CitationID)
		assert.Same(t, in[i].Chunk, c.Chunk)
	}
	assert.Empty(t, in[0].CitationID, "input must not be mutated")

	assert.Equal(t, []models.SourceEntry{
		{CitationID: "SRC-1", Name: "VATAct"},
		{CitationID: "SRC-2", Name: "CITA"},
		{CitationID: "SRC-3", Name: "VATAct"},
	}, got.Sources.Entries())
	assert.Equal(t, []string{"VATAct", "CITA"}, got.Sources.DistinctNames())

	want := "[SRC-1] Source: VATAct\nVAT is 7.5%" +
		Delimiter + "[SRC-2] Source: CITA\nCompany tax is 30%" +
		Delimiter + "[SRC-3] Source: VATAct\nExempt supplies"
	assert.Equal(t, want, got.Block)
}

func TestAssemble_empty(t *testing.T) {
	got := Assemble(nil)
	assert.Equal(t, "", got.Block)
	assert.Equal(t, 0, got.Sources.Len())
	assert.Empty(t, got.Chunks)
}

func TestAssemble_rankOrderPreserved(t *testing.T) {
	var in []models.RetrievedChunk
	for i := 0; i < 12; i++ {
		in = append(in, retrieved("doc.pdf", strings.Repeat("x", i+1), 0))
	}
	got := Assemble(in)
	assert.Equal(t, 12, got.Sources.Len())
	assert.True(t, strings.HasPrefix(got.Block, "[SRC-1] "))
	assert.Contains(t, got.Block, "[SRC-12] Source: doc\n"+strings.Repeat("x", 12))
	name, ok := got.Sources.Lookup("SRC-10")
	assert.True(t, ok)
	assert.Equal(t, "doc", name)
}

func TestAssemble_sameFileNameInDifferentFolders(t *testing.T) {
	got := Assemble([]models.RetrievedChunk{
		retrieved("2020/FinanceAct.pdf", "Rate was 5%", 0.9),
		retrieved("2023/FinanceAct.pdf", "Rate is 7.5%", 0.8),
	})

	assert.Equal(t, []models.SourceEntry{
		{CitationID: "SRC-1", Name: "2020/FinanceAct"},
		{CitationID: "SRC-2", Name: "2023/FinanceAct"},
	}, got.Sources.Entries())
	assert.Equal(t, []string{"2020/FinanceAct", "2023/FinanceAct"}, got.Sources.DistinctNames())
	assert.Contains(t, got.Block, "[SRC-2] Source: 2023/FinanceAct\nRate is 7.5%")
}
