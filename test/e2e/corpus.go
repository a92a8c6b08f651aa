// Package e2e runs the ingestion and query pipelines together over a small tax corpus.
package e2e

// TaxDocument is one corpus file: its path relative to the corpus root and its text.
type TaxDocument struct {
	Path string
	Text string
}

// QuestionCase is a question and the cleaned source name that must rank first for it.
type QuestionCase struct {
	Question       string
	ExpectedSource string
}

// Corpus holds the documents written to disk and the questions asked against them.
type Corpus struct {
	Documents []TaxDocument
	Questions []QuestionCase
	// Skipped files have no text; Broken files cannot be parsed.
	Skipped []string
	Broken  []string
}

// BuildCorpus returns the fixed corpus used by the end-to-end tests. Each document sticks to
// one tax so the vocabulary embedder separates them cleanly.
func BuildCorpus() *Corpus {
	return &Corpus{
		Documents: []TaxDocument{
			{
				Path: "VAT_Act_2023.txt",
				Text: `Value Added Tax is charged on the supply of goods and services. The VAT rate is
7.5 percent of the value of taxable supplies. Every taxable person shall register for VAT and
file a VAT return monthly. Exempt supplies include basic food items and medical services.`,
			},
			{
				Path: "CompanyIncomeTax.md",
				Text: `# Company Income Tax

Company income tax is charged on the profits of every company. Large companies pay company
income tax at 30 percent, medium companies at 20 percent and small companies are exempt.
A company must file its company income tax return within six months after its accounting year end.`,
			},
			{
				Path: "WithholdingTax.docx",
				Text: `Withholding tax is deducted at source on dividends, interest and rent. The withholding
tax rate on dividends is 10 percent. The payer must remit withholding tax deducted within
twenty one days after the deduction.`,
			},
			{
				Path: "CapitalGainsTax.xlsx",
				Text: "Asset\tCapital gains tax rate\nShares\t10 percent\nLand\t10 percent\n" +
					"Capital gains on chargeable assets are taxed when the asset is disposed",
			},
			{
				Path: "rules/StampDuties.txt",
				Text: `Stamp duty is charged on instruments such as agreements, leases and receipts. Stamp duty
on electronic receipts is a flat fee. Instruments must be stamped within forty days of execution
or a stamp duty penalty applies.`,
			},
		},
		Questions: []QuestionCase{
			{Question: "What is the VAT rate on taxable supplies?", ExpectedSource: "VAT_Act_2023"},
			{Question: "When must a company file its company income tax return?", ExpectedSource: "CompanyIncomeTax"},
			{Question: "What withholding tax rate applies to dividends?", ExpectedSource: "WithholdingTax"},
			{Question: "How are capital gains on shares taxed?", ExpectedSource: "CapitalGainsTax"},
			{Question: "Is there a penalty for late stamp duty on instruments?", ExpectedSource: "rules/StampDuties"},
		},
		Skipped: []string{"blank.txt"},
		Broken:  []string{"broken.docx"},
	}
}
