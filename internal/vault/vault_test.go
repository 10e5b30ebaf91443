package vault

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/veritasmkt/veritas/internal/domain"
	"github.com/veritasmkt/veritas/internal/ledger"
)

const (
	settlementRole = "settlement-engine"
	marketID       = "market-1"
)

func newTestVault(t *testing.T) (*Vault, *ledger.CashLedger) {
	t.Helper()
	cash := ledger.NewCashLedger()
	v := New(cash, settlementRole)
	if err := v.Register(marketID); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := cash.Credit("alice", decimal.NewFromInt(100)); err != nil {
		t.Fatalf("Credit: %v", err)
	}
	return v, cash
}

func TestVaultDeposit(t *testing.T) {
	t.Run("moves cash into custody", func(t *testing.T) {
		v, cash := newTestVault(t)
		if err := v.Deposit(marketID, "alice", decimal.NewFromInt(30)); err != nil {
			t.Fatalf("Deposit: %v", err)
		}
		if got := v.BalanceOf(marketID); !got.Equal(decimal.NewFromInt(30)) {
			t.Errorf("vault balance = %s, want 30", got)
		}
		if got := cash.BalanceOf("alice"); !got.Equal(decimal.NewFromInt(70)) {
			t.Errorf("alice = %s, want 70", got)
		}
		if got := cash.BalanceOf(Account); !got.Equal(decimal.NewFromInt(30)) {
			t.Errorf("vault account = %s, want 30", got)
		}
	})

	t.Run("rejects unregistered markets", func(t *testing.T) {
		v, _ := newTestVault(t)
		err := v.Deposit("market-unknown", "alice", decimal.NewFromInt(5))
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		v, _ := newTestVault(t)
		if err := v.Deposit(marketID, "alice", decimal.Zero); !errors.Is(err, domain.ErrInvalidAmount) {
			t.Errorf("err = %v, want ErrInvalidAmount", err)
		}
	})

	t.Run("depositor must have the cash", func(t *testing.T) {
		v, _ := newTestVault(t)
		err := v.Deposit(marketID, "broke", decimal.NewFromInt(5))
		if !errors.Is(err, domain.ErrInsufficientBalance) {
			t.Errorf("err = %v, want ErrInsufficientBalance", err)
		}
		if got := v.BalanceOf(marketID); !got.IsZero() {
			t.Errorf("failed deposit recorded, balance = %s", got)
		}
	})
}

func TestVaultWithdraw(t *testing.T) {
	fund := func(t *testing.T, v *Vault) {
		t.Helper()
		if err := v.Deposit(marketID, "alice", decimal.NewFromInt(50)); err != nil {
			t.Fatalf("Deposit: %v", err)
		}
	}

	t.Run("settlement role may withdraw", func(t *testing.T) {
		v, cash := newTestVault(t)
		fund(t, v)
		if err := v.Withdraw(settlementRole, marketID, "bob", decimal.NewFromInt(20)); err != nil {
			t.Fatalf("Withdraw: %v", err)
		}
		if got := v.BalanceOf(marketID); !got.Equal(decimal.NewFromInt(30)) {
			t.Errorf("vault balance = %s, want 30", got)
		}
		if got := cash.BalanceOf("bob"); !got.Equal(decimal.NewFromInt(20)) {
			t.Errorf("bob = %s, want 20", got)
		}
	})

	t.Run("the market may release its own funds", func(t *testing.T) {
		v, _ := newTestVault(t)
		fund(t, v)
		if err := v.Withdraw(marketID, marketID, "alice", decimal.NewFromInt(10)); err != nil {
			t.Errorf("Withdraw: %v", err)
		}
	})

	t.Run("anyone else is rejected", func(t *testing.T) {
		v, _ := newTestVault(t)
		fund(t, v)
		err := v.Withdraw("mallory", marketID, "mallory", decimal.NewFromInt(1))
		if !errors.Is(err, domain.ErrUnauthorized) {
			t.Errorf("err = %v, want ErrUnauthorized", err)
		}
	})

	t.Run("cannot exceed recorded collateral", func(t *testing.T) {
		v, _ := newTestVault(t)
		fund(t, v)
		err := v.Withdraw(settlementRole, marketID, "bob", decimal.NewFromInt(51))
		if !errors.Is(err, domain.ErrConservation) {
			t.Errorf("err = %v, want ErrConservation", err)
		}
		if got := v.BalanceOf(marketID); !got.Equal(decimal.NewFromInt(50)) {
			t.Errorf("failed withdrawal debited balance, got %s", got)
		}
	})
}

func TestVaultRegister(t *testing.T) {
	v, _ := newTestVault(t)
	if err := v.Register(marketID); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("double register: err = %v, want ErrAlreadyExists", err)
	}
	if !v.IsRegistered(marketID) {
		t.Error("IsRegistered = false for registered market")
	}
	if v.IsRegistered("other") {
		t.Error("IsRegistered = true for unknown market")
	}
}
