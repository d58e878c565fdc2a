/*
Package ledger extracts payroll slip candidates from pasted ledger text.

PURPOSE:
  Payroll summaries arrive as freeform text copied out of spreadsheets.
  Parse finds the accrual period, the pay date and one candidate per
  employee block, without assuming any layout beyond the patterns below.

ALGORITHM:
  1. NFKC-normalize (full-width digits and commas become ASCII) and collapse
     whitespace runs to one space.
  2. Find the period marker ("2025년 3월 귀속", "귀속 2025년 3월",
     "귀속연월 2025-03", "2025.03 귀속") and the optional pay-date marker
     ("지급일 2025년 4월 10일", "지급일자 2025.04.10").
  3. Employee blocks start at {seq} {name} {first grouped number} and run to
     the next block start or the end of the text.
  4. First grouped number = base pay. The rest, after removing one copy of
     the base value, fill the six deduction slots in order. Anything left
     over is a net pay candidate.

CHECKSUM:
  Every candidate carries ChecksumOK = (base - deductions == net). The
  parser never rejects on it; the reconciler decides.

EXAMPLE:
  "1 홍길동 2,000,000 90,000 70,900 18,000 11,560 19,520 1,770 1,788,250"
    base 2,000,000, deductions total 211,750, net 1,788,250 (matched)

SEE ALSO:
  - reconcile/reconciler.go: matches candidates to the roster
*/
package ledger

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// PATTERNS
// =============================================================================

var (
	groupedNumber = regexp.MustCompile(`\b\d{1,3}(?:,\d{3})+\b`)

	// seq, name, up to two non-numeric tokens (rank, department), first grouped number
	blockStart = regexp.MustCompile(`(?:^|\s)(\d{1,4})\s+(\p{L}{2,})(?:\s+[^\s\d]+){0,2}?\s+(\d{1,3}(?:,\d{3})+)\b`)

	periodMarkers = []*regexp.Regexp{
		regexp.MustCompile(`(\d{4})\s*년\s*(\d{1,2})\s*월\s*(?:분\s*)?귀속`),
		regexp.MustCompile(`귀속연월\s*:?\s*(\d{4})\s*[-./]\s*(\d{1,2})`),
		regexp.MustCompile(`귀속\s*(?:연월\s*)?:?\s*(\d{4})\s*년\s*(\d{1,2})\s*월`),
		regexp.MustCompile(`(\d{4})\s*[-./]\s*(\d{1,2})\s*귀속`),
	}

	payDateMarkers = []*regexp.Regexp{
		regexp.MustCompile(`지급일(?:자)?\s*:?\s*(\d{4})\s*년\s*(\d{1,2})\s*월\s*(\d{1,2})\s*일`),
		regexp.MustCompile(`지급일(?:자)?\s*:?\s*(\d{4})\s*[-./]\s*(\d{1,2})\s*[-./]\s*(\d{1,2})`),
	}
)

// =============================================================================
// TYPES
// =============================================================================

// NetSource records how a candidate's net pay was chosen.
type NetSource string

const (
	NetMatched  NetSource = "matched"  // a leftover number equals base - deductions
	NetLast     NetSource = "last"     // no match; the last leftover number
	NetComputed NetSource = "computed" // no leftovers; base - deductions
)

// Candidate is one parsed employee block.
type Candidate struct {
	Seq             int
	Name            string
	BasePay         generic.Money
	Deductions      generic.Deductions
	TotalDeductions generic.Money
	NetPay          generic.Money
	NetSource       NetSource

	// ChecksumOK is BasePay - TotalDeductions == NetPay.
	ChecksumOK bool

	// Incomplete is set when fewer than six deduction figures were found;
	// the missing slots are zero.
	Incomplete bool

	Raw string
}

// Document is the parse result of one ledger text.
type Document struct {
	Period     generic.YearMonth
	PayDate    *time.Time
	Candidates []Candidate
	Discarded  int
	Normalized string
}

// Flagged returns the candidates that failed the checksum or are incomplete.
func (d *Document) Flagged() []Candidate {
	var out []Candidate
	for _, c := range d.Candidates {
		if !c.ChecksumOK || c.Incomplete {
			out = append(out, c)
		}
	}
	return out
}

// =============================================================================
// PARSING
// =============================================================================

// Normalize folds compatibility characters and collapses whitespace.
func Normalize(text string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(text)), " ")
}

// Parse extracts the period, pay date and employee blocks. A missing
// period marker or a document without usable blocks is a
// *generic.ParseError.
func Parse(text string) (*Document, error) {
	normalized := Normalize(text)
	if normalized == "" {
		return nil, generic.NewParseError("empty document")
	}

	period, found, err := findPeriod(normalized)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, generic.NewParseError("no period marker")
	}

	candidates, discarded := ExtractBlocks(normalized)
	if len(candidates) == 0 {
		return nil, generic.NewParseError("no employee blocks", "discarded "+strconv.Itoa(discarded))
	}

	return &Document{
		Period:     period,
		PayDate:    findPayDate(normalized),
		Candidates: candidates,
		Discarded:  discarded,
		Normalized: normalized,
	}, nil
}

func findPeriod(text string) (generic.YearMonth, bool, error) {
	for _, re := range periodMarkers {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		ym := generic.NewYearMonth(year, time.Month(month))
		if err := ym.Validate(); err != nil {
			return generic.YearMonth{}, false, generic.NewParseError("invalid period marker", m[0])
		}
		return ym, true, nil
	}
	return generic.YearMonth{}, false, nil
}

// findPayDate returns nil when there is no marker or it is not a real date.
func findPayDate(text string) *time.Time {
	for _, re := range payDateMarkers {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		d := generic.Date(year, time.Month(month), day)
		if d.Year() != year || int(d.Month()) != month || d.Day() != day {
			return nil
		}
		return &d
	}
	return nil
}

// ExtractBlocks splits already-normalized text into employee blocks and
// parses each. It returns the usable candidates and how many blocks were
// discarded for a missing name or a non-positive base pay.
func ExtractBlocks(text string) ([]Candidate, int) {
	matches := blockStart.FindAllStringSubmatchIndex(text, -1)

	var candidates []Candidate
	discarded := 0
	for i, m := range matches {
		start := m[2] // the sequence number, not the leading space
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		raw := strings.TrimSpace(text[start:end])

		seq, _ := strconv.Atoi(text[m[2]:m[3]])
		name := text[m[4]:m[5]]
		c, ok := parseBlock(seq, name, raw)
		if !ok {
			discarded++
			continue
		}
		candidates = append(candidates, c)
	}
	return candidates, discarded
}

func parseBlock(seq int, name, raw string) (Candidate, bool) {
	if strings.TrimSpace(name) == "" {
		return Candidate{}, false
	}

	var numbers []generic.Money
	for _, s := range groupedNumber.FindAllString(raw, -1) {
		m, err := generic.ParseMoney(s)
		if err != nil {
			continue
		}
		numbers = append(numbers, m)
	}
	if len(numbers) == 0 || !numbers[0].IsPositive() {
		return Candidate{}, false
	}

	base := numbers[0]
	rest := removeOnce(numbers, base)

	n := generic.DeductionCount
	if len(rest) < n {
		n = len(rest)
	}
	deductions := generic.DeductionsFromSlice(rest[:n])
	leftovers := rest[n:]
	total := deductions.Total()
	expected := base.Sub(total)

	c := Candidate{
		Seq:             seq,
		Name:            name,
		BasePay:         base,
		Deductions:      deductions,
		TotalDeductions: total,
		Incomplete:      n < generic.DeductionCount,
		Raw:             raw,
	}

	switch {
	case len(leftovers) == 0:
		c.NetPay, c.NetSource = expected, NetComputed
	case containsMoney(leftovers, expected):
		c.NetPay, c.NetSource = expected, NetMatched
	default:
		c.NetPay, c.NetSource = leftovers[len(leftovers)-1], NetLast
	}
	c.ChecksumOK = c.BasePay.Sub(c.TotalDeductions).Equal(c.NetPay)
	return c, true
}

// removeOnce drops the first value equal to target.
func removeOnce(values []generic.Money, target generic.Money) []generic.Money {
	out := make([]generic.Money, 0, len(values))
	removed := false
	for _, v := range values {
		if !removed && v.Equal(target) {
			removed = true
			continue
		}
		out = append(out, v)
	}
	return out
}

func containsMoney(values []generic.Money, target generic.Money) bool {
	for _, v := range values {
		if v.Equal(target) {
			return true
		}
	}
	return false
}
