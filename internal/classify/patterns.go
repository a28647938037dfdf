package classify

// DocumentType is the publication type of a regulatory document.
type DocumentType string

const (
	ETaxGuide         DocumentType = "e-tax-guide"
	Circular          DocumentType = "circular"
	Act               DocumentType = "act"
	Form              DocumentType = "form"
	Order             DocumentType = "order"
	Regulation        DocumentType = "regulation"
	PracticeStatement DocumentType = "practice-statement"
	AnnualReport      DocumentType = "annual-report"
	FAQ               DocumentType = "faq"
	Newsletter        DocumentType = "newsletter"
	GeneralDocument   DocumentType = "general"
)

// TaxCategory is the area of tax a document covers.
type TaxCategory string

const (
	IncomeTax       TaxCategory = "income"
	GST             TaxCategory = "gst"
	PropertyTax     TaxCategory = "property"
	CorporateTax    TaxCategory = "corporate"
	StampDuty       TaxCategory = "stamp-duty"
	WithholdingTax  TaxCategory = "withholding"
	TransferPricing TaxCategory = "transfer-pricing"
	International   TaxCategory = "international"
	EstateDuty      TaxCategory = "estate-duty"
	GeneralCategory TaxCategory = "general"
)

// rule is one row of a pattern table before compilation.
type rule struct {
	label    string
	patterns []string
	keywords []string
	weight   float64
}

// Table order is significant: ties resolve to the earlier entry.
var documentTypeRules = []rule{
	{
		label:    string(ETaxGuide),
		patterns: []string{`e-tax\s+guide`, `iras\s+e-tax\s+guide`, `etax\s+guide`},
		keywords: []string{"guide", "guidance", "treatment", "application"},
		weight:   1.0,
	},
	{
		label:    string(Circular),
		patterns: []string{`circular\s+no\.`, `iras\s+circular`, `tax\s+circular`},
		keywords: []string{"circular", "clarification", "announcement"},
		weight:   0.95,
	},
	{
		label: string(Act),
		patterns: []string{
			`income\s+tax\s+act`,
			`goods\s+and\s+services\s+tax\s+act`,
			`property\s+tax\s+act`,
			`stamp\s+duties\s+act`,
			`chapter\s+\d+[a-z]?`,
			`act\s+\d+`,
		},
		keywords: []string{"act", "section", "subsection", "chapter", "enactment"},
		weight:   1.0,
	},
	{
		label:    string(Form),
		patterns: []string{`form\s+[a-z0-9]+`, `iras\s+form`, `ir[0-9]+[a-z]?`, `appendix\s+[a-z0-9]+`},
		keywords: []string{"form", "declaration", "submission", "application", "return"},
		weight:   0.85,
	},
	{
		label:    string(Order),
		patterns: []string{`income\s+tax\s+\([^)]+\)\s+order`, `exemption\s+order`, `order\s+\d{4}`},
		keywords: []string{"order", "exemption", "relief", "prescribed"},
		weight:   0.9,
	},
	{
		label:    string(Regulation),
		patterns: []string{`income\s+tax\s+\([^)]+\)\s+regulations?`, `gst\s+\([^)]+\)\s+regulations?`, `regulations?\s+\d{4}`},
		keywords: []string{"regulation", "rules", "prescribed", "requirement"},
		weight:   0.9,
	},
	{
		label:    string(PracticeStatement),
		patterns: []string{`practice\s+statement`, `administrative\s+guidance`, `iras\s+practice`},
		keywords: []string{"practice", "procedure", "administrative", "guidance"},
		weight:   0.85,
	},
	{
		label:    string(AnnualReport),
		patterns: []string{`annual\s+report`, `yearly\s+report`, `fy\s*\d{4}`},
		keywords: []string{"annual", "report", "statistics", "performance"},
		weight:   0.8,
	},
	{
		label:    string(FAQ),
		patterns: []string{`frequently\s+asked\s+questions`, `faqs?`, `q\s*&\s*a`},
		keywords: []string{"question", "answer", "faq", "queries"},
		weight:   0.75,
	},
	{
		label:    string(Newsletter),
		patterns: []string{`tax\s+bytes?`, `newsletter`, `tax\s+news`},
		keywords: []string{"newsletter", "update", "news", "bulletin"},
		weight:   0.7,
	},
}

var taxCategoryRules = []rule{
	{
		label:    string(IncomeTax),
		patterns: []string{`income\s+tax`, `individual\s+tax`, `personal\s+tax`, `employment\s+income`, `taxable\s+income`},
		keywords: []string{"income", "salary", "employment", "resident", "non-resident", "relief", "deduction", "assessment"},
		weight:   1.0,
	},
	{
		label:    string(GST),
		patterns: []string{`goods\s+and\s+services\s+tax`, `gst`, `value\s+added\s+tax`, `vat`},
		keywords: []string{"gst", "supply", "input", "output", "registration", "zero-rated", "standard-rated", "exempt"},
		weight:   1.0,
	},
	{
		label:    string(PropertyTax),
		patterns: []string{`property\s+tax`, `annual\s+value`, `owner-occupied`},
		keywords: []string{"property", "annual value", "building", "land", "owner", "tenant", "assessment"},
		weight:   0.95,
	},
	{
		label:    string(CorporateTax),
		patterns: []string{`corporate\s+tax`, `company\s+tax`, `business\s+tax`, `enterprise\s+tax`},
		keywords: []string{"corporate", "company", "business", "enterprise", "profit", "loss", "capital allowance"},
		weight:   0.95,
	},
	{
		label:    string(StampDuty),
		patterns: []string{`stamp\s+dut(?:y|ies)`, `additional\s+buyer['s]*\s+stamp\s+duty`, `absd`, `bsd`},
		keywords: []string{"stamp", "duty", "transfer", "conveyance", "property", "shares", "document"},
		weight:   0.9,
	},
	{
		label:    string(WithholdingTax),
		patterns: []string{`withholding\s+tax`, `tax\s+withheld`, `non-resident\s+tax`},
		keywords: []string{"withholding", "non-resident", "royalty", "interest", "dividend", "treaty"},
		weight:   0.9,
	},
	{
		label:    string(TransferPricing),
		patterns: []string{`transfer\s+pricing`, `arm['s]*\s+length`, `related\s+party`},
		keywords: []string{"transfer pricing", "arms length", "related party", "documentation", "benchmark", "comparability"},
		weight:   0.85,
	},
	{
		label:    string(International),
		patterns: []string{`double\s+tax`, `tax\s+treaty`, `foreign\s+income`, `dta`},
		keywords: []string{"treaty", "foreign", "international", "double taxation", "residence", "source", "credit"},
		weight:   0.85,
	},
	{
		label:    string(EstateDuty),
		patterns: []string{`estate\s+duty`, `estate\s+duties\s+act`, `deceased\s+estate`},
		keywords: []string{"estate", "deceased", "inheritance", "executor", "probate"},
		weight:   0.8,
	},
}

// subTypeRules refine the winning document type. Checked in order; the
// first sub-type with any keyword present wins.
var subTypeRules = map[DocumentType][]struct {
	name     string
	keywords []string
}{
	ETaxGuide: {
		{"filing", []string{"filing", "submission", "deadline"}},
		{"computation", []string{"computation", "calculation", "formula"}},
		{"compliance", []string{"compliance", "requirement", "obligation"}},
		{"exemption", []string{"exemption", "relief", "deduction"}},
		{"international", []string{"foreign", "treaty", "international"}},
	},
	Form: {
		{"income", []string{"ir8a", "ir8e", "ir8s", "income"}},
		{"gst", []string{"gst", "f5", "f7", "f8"}},
		{"corporate", []string{"c-s", "ir", "corporate"}},
		{"property", []string{"property", "ptyb"}},
	},
	Circular: {
		{"clarification", []string{"clarify", "clarification", "explanation"}},
		{"update", []string{"update", "change", "amendment"}},
		{"guidance", []string{"guidance", "guide", "procedure"}},
	},
}
