package book

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func testPair() ExchangePair {
	pair, err := NewTradingPair(NewCurrency("BTC"), NewCurrency("USDT"))
	if err != nil {
		panic(err)
	}
	return NewExchangePair("bybit", pair)
}

func TestBestBidLessThanBestAsk(t *testing.T) {
	ob := NewOrderBook(testPair(),
		[]BookLevel{{Price: d("99"), Size: d("1")}, {Price: d("98"), Size: d("2")}},
		[]BookLevel{{Price: d("101"), Size: d("1")}, {Price: d("102"), Size: d("2")}},
	)

	bid, _ := ob.BestBid()
	ask, _ := ob.BestAsk()
	if !bid.Price.LessThan(ask.Price) {
		t.Fatalf("best bid %s should be < best ask %s", bid.Price, ask.Price)
	}
}

func TestUpdateInsertsReplacesAndDeletes(t *testing.T) {
	ob := NewOrderBook(testPair(), nil, nil)

	if err := ob.Update(Bid, BookLevel{Price: d("100"), Size: d("1")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bid, ok := ob.BestBid()
	if !ok || !bid.Size.Equal(d("1")) {
		t.Fatalf("expected level at 100 size 1, got %+v ok=%v", bid, ok)
	}

	// replace size at same price
	if err := ob.Update(Bid, BookLevel{Price: d("100"), Size: d("5")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bid, _ = ob.BestBid()
	if !bid.Size.Equal(d("5")) {
		t.Fatalf("expected replaced size 5, got %s", bid.Size)
	}

	// delete via zero size
	if err := ob.Update(Bid, BookLevel{Price: d("100"), Size: d("0")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := ob.BestBid(); ok {
		t.Fatal("expected bid side to be empty after delete")
	}
}

func TestUpdateCrossedBookClears(t *testing.T) {
	ob := NewOrderBook(testPair(),
		[]BookLevel{{Price: d("99"), Size: d("1")}},
		[]BookLevel{{Price: d("101"), Size: d("1")}},
	)

	err := ob.Update(Bid, BookLevel{Price: d("105"), Size: d("1")})
	if err != ErrCrossedBook {
		t.Fatalf("got %v, want ErrCrossedBook", err)
	}
	if !ob.Reset {
		t.Fatal("expected Reset to be set")
	}
	if _, ok := ob.BestBid(); ok {
		t.Fatal("expected book cleared after crossed update")
	}
}

func TestMid(t *testing.T) {
	ob := NewOrderBook(testPair(),
		[]BookLevel{{Price: d("99"), Size: d("1")}},
		[]BookLevel{{Price: d("101"), Size: d("1")}},
	)
	mid, ok := ob.Mid()
	if !ok || !mid.Equal(d("100")) {
		t.Fatalf("got (%s, %v), want (100, true)", mid, ok)
	}
}

func TestOrderStatusMonotonicity(t *testing.T) {
	o := &Order{Status: Open}
	if err := o.UpdateStatus(Filled); err != nil {
		t.Fatalf("unexpected error transitioning to Filled: %v", err)
	}
	if err := o.UpdateStatus(Cancelled); err == nil {
		t.Fatal("expected error transitioning out of a terminal state")
	}
}
