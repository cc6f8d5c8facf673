package intercompany

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/ledger-consolidation/internal/domain/entity"
)

// Signal caps
const (
	AmountExactPoints   = 40
	AmountNearPoints    = 30
	AmountLoosePoints   = 20
	DateSameDayPoints   = 30
	DateThreeDayPoints  = 25
	DateWeekPoints      = 20
	DateFortnightPoints = 10
	EntityRefPoints     = 10
	TypePairPoints      = 10
)

var (
	nearTolerance  = decimal.NewFromFloat(0.02)
	looseTolerance = decimal.NewFromFloat(0.04)
)

// Breakdown holds the four independently capped signals of a pair
type Breakdown struct {
	Amount   int `json:"amount"`
	Date     int `json:"date"`
	Entity   int `json:"entity"`
	TypePair int `json:"type_pair"`
}

// Total returns the capped sum of the signals
func (b Breakdown) Total() int {
	return entity.ClampConfidence(b.Amount + b.Date + b.Entity + b.TypePair)
}

var validTypePairs = [][2]string{
	{entity.AccountTypeRevenue, entity.AccountTypeDirectCosts},
	{entity.AccountTypeCurrentAsset, entity.AccountTypeCurrentLiability},
	{entity.AccountTypeExpense, entity.AccountTypeExpense},
}

// AmountScore compares absolute net amounts; tolerances are relative to |a|
func AmountScore(a, b decimal.Decimal) int {
	absA, absB := a.Abs(), b.Abs()
	diff := absA.Sub(absB).Abs()

	switch {
	case diff.IsZero():
		return AmountExactPoints
	case diff.LessThanOrEqual(absA.Mul(nearTolerance)):
		return AmountNearPoints
	case diff.LessThanOrEqual(absA.Mul(looseTolerance)):
		return AmountLoosePoints
	default:
		return 0
	}
}

// DateScore scores the calendar-day distance between two posting dates
func DateScore(a, b time.Time) int {
	days := DaysApart(a, b)
	switch {
	case days == 0:
		return DateSameDayPoints
	case days <= 3:
		return DateThreeDayPoints
	case days <= 7:
		return DateWeekPoints
	case days <= 14:
		return DateFortnightPoints
	default:
		return 0
	}
}

// DaysApart returns the absolute number of calendar days between two dates
func DaysApart(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	d := int(da.Sub(db).Hours() / 24)
	if d < 0 {
		return -d
	}
	return d
}

// TypePairScore awards points when the account types form an expected pair, in either order
func TypePairScore(typeA, typeB string) int {
	for _, p := range validTypePairs {
		if (typeA == p[0] && typeB == p[1]) || (typeA == p[1] && typeB == p[0]) {
			return TypePairPoints
		}
	}
	return 0
}

// Score computes the breakdown for a line from organization A against a line from B
func (d *Detector) Score(a, b entity.JournalLine) Breakdown {
	bd := Breakdown{
		Amount:   AmountScore(a.NetAmount, b.NetAmount),
		Date:     DateScore(a.Date, b.Date),
		TypePair: TypePairScore(a.AccountType, b.AccountType),
	}
	if d.orgB.MentionedIn(a.Text()) {
		bd.Entity += EntityRefPoints
	}
	if d.orgA.MentionedIn(b.Text()) {
		bd.Entity += EntityRefPoints
	}
	return bd
}
