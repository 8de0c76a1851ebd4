package feed

import (
	"testing"
	"time"
)

func sliceProducer(values []int) Producer[int] {
	i := 0
	return func() (int, bool, error) {
		if i >= len(values) {
			return 0, false, nil
		}
		v := values[i]
		i++
		return v, true, nil
	}
}

func TestSubscriberReceivesAllValuesInOrder(t *testing.T) {
	f, runner := Of("ints", sliceProducer([]int{1, 2, 3}))

	got := make(chan int, 8)
	f.Subscribe(func(v int) { got <- v })

	// give the runner's subscriber-drain loop a chance to register the
	// subscription before values start flowing
	time.Sleep(5 * time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- runner() }()

	var results []int
	timeout := time.After(time.Second)
	for len(results) < 3 {
		select {
		case v := <-got:
			results = append(results, v)
		case <-timeout:
			t.Fatalf("timed out, got %v so far", results)
		}
	}
	for i, v := range results {
		if v != i+1 {
			t.Fatalf("results[%d] = %d, want %d", i, v, i+1)
		}
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runner returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("runner did not return after producer exhausted")
	}
}

func TestMapAppliesFunction(t *testing.T) {
	parent, parentRunner := Of("ints", sliceProducer([]int{1, 2, 3}))
	doubled, doubledRunner := Map("doubled", parent, func(v int) int { return v * 2 })

	got := make(chan int, 8)
	doubled.Subscribe(func(v int) { got <- v })

	go parentRunner()
	go doubledRunner()

	var results []int
	timeout := time.After(time.Second)
	for len(results) < 3 {
		select {
		case v := <-got:
			results = append(results, v)
		case <-timeout:
			t.Fatalf("timed out, got %v so far", results)
		}
	}
	want := []int{2, 4, 6}
	for i, v := range results {
		if v != want[i] {
			t.Fatalf("results[%d] = %d, want %d", i, v, want[i])
		}
	}
}
