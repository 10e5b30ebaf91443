package pricing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/veritasmkt/veritas/internal/domain"
)

func quantities(qYes, qNo, b int64) domain.Quantities {
	return domain.Quantities{
		QYes:       decimal.NewFromInt(qYes),
		QNo:        decimal.NewFromInt(qNo),
		LiquidityB: decimal.NewFromInt(b),
	}
}

func TestCost(t *testing.T) {
	t.Run("symmetric state equals b ln 2 plus q", func(t *testing.T) {
		q := quantities(0, 0, 100)
		cost, err := Cost(q)
		if err != nil {
			t.Fatalf("Cost: %v", err)
		}
		// C(0, 0) = b * ln(2) ~= 69.3147
		want := decimal.RequireFromString("69.3147")
		if cost.Sub(want).Abs().GreaterThan(decimal.RequireFromString("0.0001")) {
			t.Errorf("Cost(0,0) = %s, want ~%s", cost, want)
		}
	})

	t.Run("symmetric in the two sides", func(t *testing.T) {
		a, err := Cost(quantities(30, 70, 100))
		if err != nil {
			t.Fatalf("Cost: %v", err)
		}
		b, err := Cost(quantities(70, 30, 100))
		if err != nil {
			t.Fatalf("Cost: %v", err)
		}
		if !a.Equal(b) {
			t.Errorf("Cost(30,70) = %s, Cost(70,30) = %s, want equal", a, b)
		}
	})

	t.Run("bounded below by max quantity", func(t *testing.T) {
		cost, err := Cost(quantities(500, 10, 100))
		if err != nil {
			t.Fatalf("Cost: %v", err)
		}
		if cost.LessThan(decimal.NewFromInt(500)) {
			t.Errorf("Cost(500,10) = %s, want >= 500", cost)
		}
	})

	t.Run("large skew does not overflow", func(t *testing.T) {
		// qYes/b = 100; the naive exp would blow up, log-sum-exp must not.
		cost, err := Cost(quantities(10000, 0, 100))
		if err != nil {
			t.Fatalf("Cost: %v", err)
		}
		if cost.LessThan(decimal.NewFromInt(10000)) {
			t.Errorf("Cost = %s, want >= 10000", cost)
		}
	})

	t.Run("rejects non-positive liquidity", func(t *testing.T) {
		if _, err := Cost(quantities(0, 0, 0)); err == nil {
			t.Error("expected error for b = 0")
		}
		if _, err := Cost(quantities(0, 0, -5)); err == nil {
			t.Error("expected error for b < 0")
		}
	})

	t.Run("rejects negative quantities", func(t *testing.T) {
		q := domain.Quantities{
			QYes:       decimal.NewFromInt(-1),
			QNo:        decimal.Zero,
			LiquidityB: decimal.NewFromInt(100),
		}
		if _, err := Cost(q); err == nil {
			t.Error("expected error for negative qYes")
		}
	})
}

func TestCostOfTrade(t *testing.T) {
	b100 := quantities(0, 0, 100)

	t.Run("buy charges positive cost and updates state", func(t *testing.T) {
		amount := decimal.NewFromInt(10)
		cost, after, err := CostOfTrade(b100, domain.OutcomeYes, amount, false)
		if err != nil {
			t.Fatalf("CostOfTrade: %v", err)
		}
		if cost.Sign() <= 0 {
			t.Errorf("buy cost = %s, want > 0", cost)
		}
		if !after.QYes.Equal(amount) || !after.QNo.IsZero() {
			t.Errorf("after = {%s %s}, want {10 0}", after.QYes, after.QNo)
		}
		// Near the balanced state each claim costs about half a unit.
		if cost.GreaterThan(amount) {
			t.Errorf("buy cost %s exceeds amount %s", cost, amount)
		}
	})

	t.Run("buying is monotonically more expensive", func(t *testing.T) {
		state := b100
		prev := decimal.Zero
		for i := 0; i < 5; i++ {
			cost, after, err := CostOfTrade(state, domain.OutcomeYes, decimal.NewFromInt(50), false)
			if err != nil {
				t.Fatalf("step %d: %v", i, err)
			}
			if cost.LessThan(prev) {
				t.Fatalf("step %d: cost %s < previous %s, want non-decreasing", i, cost, prev)
			}
			prev = cost
			state = after
		}
	})

	t.Run("round trip never profits the trader", func(t *testing.T) {
		amount := decimal.RequireFromString("37.5")
		buyCost, after, err := CostOfTrade(b100, domain.OutcomeYes, amount, false)
		if err != nil {
			t.Fatalf("buy: %v", err)
		}
		refund, back, err := CostOfTrade(after, domain.OutcomeYes, amount, true)
		if err != nil {
			t.Fatalf("sell: %v", err)
		}
		if refund.GreaterThan(buyCost) {
			t.Errorf("refund %s > buy cost %s", refund, buyCost)
		}
		if !back.QYes.IsZero() || !back.QNo.IsZero() {
			t.Errorf("state after round trip = {%s %s}, want origin", back.QYes, back.QNo)
		}
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		if _, _, err := CostOfTrade(b100, domain.OutcomeYes, decimal.Zero, false); !errors.Is(err, domain.ErrInvalidAmount) {
			t.Errorf("err = %v, want ErrInvalidAmount", err)
		}
	})

	t.Run("rejects oversell", func(t *testing.T) {
		state := quantities(5, 0, 100)
		_, _, err := CostOfTrade(state, domain.OutcomeYes, decimal.NewFromInt(6), true)
		if !errors.Is(err, domain.ErrInsufficientShares) {
			t.Errorf("err = %v, want ErrInsufficientShares", err)
		}
	})

	t.Run("cost quoted at six decimal places", func(t *testing.T) {
		cost, _, err := CostOfTrade(b100, domain.OutcomeNo, decimal.RequireFromString("13.371337"), false)
		if err != nil {
			t.Fatalf("CostOfTrade: %v", err)
		}
		if cost.Exponent() < -6 {
			t.Errorf("cost %s carries more than 6 decimal places", cost)
		}
	})
}

func TestYesPrice(t *testing.T) {
	t.Run("balanced market prices at one half", func(t *testing.T) {
		p, err := YesPrice(quantities(0, 0, 100))
		if err != nil {
			t.Fatalf("YesPrice: %v", err)
		}
		if !p.Equal(decimal.RequireFromString("0.5")) {
			t.Errorf("YesPrice = %s, want 0.5", p)
		}
	})

	t.Run("skew moves price toward the heavy side", func(t *testing.T) {
		p, err := YesPrice(quantities(200, 50, 100))
		if err != nil {
			t.Fatalf("YesPrice: %v", err)
		}
		if !p.GreaterThan(decimal.RequireFromString("0.5")) {
			t.Errorf("YesPrice = %s, want > 0.5 with qYes > qNo", p)
		}
		if p.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			t.Errorf("YesPrice = %s, want < 1", p)
		}
	})

	t.Run("outcome prices sum to one", func(t *testing.T) {
		q := quantities(120, 80, 100)
		yes, err := Price(q, domain.OutcomeYes)
		if err != nil {
			t.Fatalf("Price(yes): %v", err)
		}
		no, err := Price(q, domain.OutcomeNo)
		if err != nil {
			t.Fatalf("Price(no): %v", err)
		}
		if !yes.Add(no).Equal(decimal.NewFromInt(1)) {
			t.Errorf("yes %s + no %s != 1", yes, no)
		}
	})
}

func TestMaxLoss(t *testing.T) {
	loss, err := MaxLoss(decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("MaxLoss: %v", err)
	}
	want := decimal.RequireFromString("69.3147")
	if loss.Sub(want).Abs().GreaterThan(decimal.RequireFromString("0.0001")) {
		t.Errorf("MaxLoss(100) = %s, want ~%s", loss, want)
	}
}
