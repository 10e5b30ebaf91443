package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestOutcome(t *testing.T) {
	t.Run("parse", func(t *testing.T) {
		cases := map[string]Outcome{
			"yes": OutcomeYes, "YES": OutcomeYes, "Yes": OutcomeYes, "0": OutcomeYes,
			"no": OutcomeNo, "NO": OutcomeNo, "No": OutcomeNo, "1": OutcomeNo,
		}
		for in, want := range cases {
			got, err := ParseOutcome(in)
			if err != nil {
				t.Errorf("ParseOutcome(%q): %v", in, err)
				continue
			}
			if got != want {
				t.Errorf("ParseOutcome(%q) = %v, want %v", in, got, want)
			}
		}
		if _, err := ParseOutcome("maybe"); err == nil {
			t.Error("expected error for unknown outcome")
		}
	})

	t.Run("opposite", func(t *testing.T) {
		if OutcomeYes.Opposite() != OutcomeNo || OutcomeNo.Opposite() != OutcomeYes {
			t.Error("Opposite does not flip sides")
		}
	})

	t.Run("string", func(t *testing.T) {
		if OutcomeYes.String() != "yes" || OutcomeNo.String() != "no" {
			t.Errorf("String: %s / %s", OutcomeYes, OutcomeNo)
		}
	})
}

func TestQuantitiesSide(t *testing.T) {
	q := Quantities{
		QYes:       decimal.NewFromInt(3),
		QNo:        decimal.NewFromInt(7),
		LiquidityB: decimal.NewFromInt(100),
	}

	if !q.Side(OutcomeYes).Equal(decimal.NewFromInt(3)) || !q.Side(OutcomeNo).Equal(decimal.NewFromInt(7)) {
		t.Errorf("Side: %s / %s", q.Side(OutcomeYes), q.Side(OutcomeNo))
	}

	updated := q.WithSide(OutcomeNo, decimal.NewFromInt(9))
	if !updated.QNo.Equal(decimal.NewFromInt(9)) {
		t.Errorf("WithSide: qNo = %s, want 9", updated.QNo)
	}
	// Value semantics: the original is untouched.
	if !q.QNo.Equal(decimal.NewFromInt(7)) {
		t.Errorf("WithSide mutated the receiver: %s", q.QNo)
	}
}

func TestTradeQuoteSide(t *testing.T) {
	if (TradeQuote{IsSell: false}).Side() != "buy" {
		t.Error("buy quote reports wrong side")
	}
	if (TradeQuote{IsSell: true}).Side() != "sell" {
		t.Error("sell quote reports wrong side")
	}
}
