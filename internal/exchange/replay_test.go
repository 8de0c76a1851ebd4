package exchange

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"fairsengine/internal/book"
)

func testPair(t *testing.T) book.TradingPair {
	t.Helper()
	p, err := book.NewTradingPair(book.NewCurrency("BTC"), book.NewCurrency("USDT"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return p
}

func d(s string) decimal.Decimal {
	v, _ := decimal.NewFromString(s)
	return v
}

func TestStepTimeAdvancesAndExhausts(t *testing.T) {
	pair := testPair(t)
	r := NewReplay("replay", Fees{}, [][]Row{
		{{Pair: pair, Price: d("100"), Volume: d("1")}},
		{{Pair: pair, Price: d("101"), Volume: d("1")}},
	}, nil)

	if !r.StepTime() {
		t.Fatal("expected first StepTime to succeed")
	}
	if !r.StepTime() {
		t.Fatal("expected second StepTime to succeed")
	}
	if r.StepTime() {
		t.Fatal("expected third StepTime to report exhausted")
	}
	if !r.Done() {
		t.Fatal("expected Done() true after exhausting steps")
	}
}

func TestFrameReturnsLastKnownRow(t *testing.T) {
	pair := testPair(t)
	r := NewReplay("replay", Fees{}, [][]Row{
		{{Pair: pair, Price: d("100"), Volume: d("2")}},
	}, nil)
	r.StepTime()

	frame, err := r.Frame(context.Background(), []book.TradingPair{pair})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, ok := frame[pair]
	if !ok || !got.Price.Equal(d("100")) || !got.Volume.Equal(d("2")) {
		t.Fatalf("got %+v ok=%v, want price 100 volume 2", got, ok)
	}
}

func TestAddOrderFillsImmediatelyAndUpdatesBalances(t *testing.T) {
	pair := testPair(t)
	r := NewReplay("replay", Fees{Taker: d("0.001")}, [][]Row{
		{{Pair: pair, Price: d("100"), Volume: d("10")}},
	}, map[string]decimal.Decimal{"USDT": d("1000"), "BTC": d("0")})
	r.StepTime()

	order, err := r.AddOrder(context.Background(), pair, book.Buy, book.Market, d("100"), d("2"), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.Status != book.Filled {
		t.Fatalf("status = %v, want Filled", order.Status)
	}

	balances, err := r.Balances(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !balances["BTC"].Equal(d("2")) {
		t.Fatalf("BTC balance = %v, want 2", balances["BTC"])
	}
	wantUSDT := d("1000").Sub(d("200")).Sub(d("0.2"))
	if !balances["USDT"].Equal(wantUSDT) {
		t.Fatalf("USDT balance = %v, want %v", balances["USDT"], wantUSDT)
	}
}

func TestAddOrderWithoutDataErrors(t *testing.T) {
	pair := testPair(t)
	r := NewReplay("replay", Fees{}, nil, nil)
	if _, err := r.AddOrder(context.Background(), pair, book.Buy, book.Market, d("1"), d("1"), false); err == nil {
		t.Fatal("expected error with no replay data")
	}
}

func TestCancelOrderOfKnownIDSucceeds(t *testing.T) {
	pair := testPair(t)
	r := NewReplay("replay", Fees{}, [][]Row{
		{{Pair: pair, Price: d("100"), Volume: d("1")}},
	}, map[string]decimal.Decimal{"USDT": d("1000")})
	r.StepTime()
	order, err := r.AddOrder(context.Background(), pair, book.Buy, book.Market, d("100"), d("1"), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.CancelOrder(context.Background(), order.ID); err != nil {
		t.Fatalf("unexpected error cancelling known order: %v", err)
	}
	if err := r.CancelOrder(context.Background(), "nonexistent"); err == nil {
		t.Fatal("expected error cancelling unknown order id")
	}
}
