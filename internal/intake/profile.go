package intake

// amountFormat determines how amount cells are written in a batch file.
type amountFormat int

const (
	// amountPlain is a dot-decimal value without grouping (e.g. "1250.00").
	amountPlain amountFormat = iota
	// amountEuropean uses dots for grouping and a comma decimal (e.g. "1.250,00").
	amountEuropean
)

// amountMode determines which columns carry the payment amount.
type amountMode int

const (
	// amountSingle means one amount column per row.
	amountSingle amountMode = iota
	// amountSplit means separate debit and credit columns; only credits
	// open settlement items.
	amountSplit
)

// Profile describes the column layout of one originator's batch export.
// Supporting a new originator is just adding a Profile to the profiles slice.
type Profile struct {
	Name         string
	DateCol      string
	RefCol       string
	DateFormat   string
	AmountMode   amountMode
	AmountFormat amountFormat
	AmountCol    string // used when AmountMode == amountSingle
	DebitCol     string // used when AmountMode == amountSplit
	CreditCol    string // used when AmountMode == amountSplit
}

// requiredCols returns the column names that must be present for this profile to match.
func (p Profile) requiredCols() []string {
	cols := []string{p.DateCol, p.RefCol}

	switch p.AmountMode {
	case amountSingle:
		cols = append(cols, p.AmountCol)
	case amountSplit:
		cols = append(cols, p.DebitCol, p.CreditCol)
	}

	return cols
}

// profiles is the ordered list of batch formats to try during auto-detection.
// More specific profiles should come first to avoid false matches.
var profiles = []Profile{
	{
		Name:         "ledger",
		DateCol:      "Value Date",
		RefCol:       "Reference",
		DateFormat:   "2006-01-02",
		AmountMode:   amountSplit,
		AmountFormat: amountPlain,
		DebitCol:     "Debit",
		CreditCol:    "Credit",
	},
	{
		Name:         "remittance",
		DateCol:      "Value Date",
		RefCol:       "Reference",
		DateFormat:   "2006-01-02",
		AmountMode:   amountSingle,
		AmountFormat: amountPlain,
		AmountCol:    "Amount",
	},
	{
		Name:         "sepa",
		DateCol:      "Data",
		RefCol:       "Referência",
		DateFormat:   "02-01-2006",
		AmountMode:   amountSingle,
		AmountFormat: amountEuropean,
		AmountCol:    "Montante",
	},
}
