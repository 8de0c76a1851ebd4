// Package feed implements a typed, fan-out publish/subscribe stream backed
// by a pull-style producer. A Feed has no back-pressure: subscribers are
// expected to be non-blocking or to post onto their own queue.
package feed

import "fairsengine/pkg/utils"

// Producer yields values until it is exhausted (returns ok=false) or
// errors.
type Producer[T any] func() (v T, ok bool, err error)

// Feed multiplexes the values produced by a single Producer to any number
// of subscribers.
type Feed[T any] struct {
	subCh    chan func(T)
	publish  chan T
	log      *utils.Logger
}

// Of constructs a Feed from a Producer. It returns the Feed and a runner
// function that pumps values from the producer to subscribers until the
// producer is exhausted or errors; the runner is meant to be attached to a
// threadmgr.Manager.
func Of[T any](name string, producer Producer[T]) (*Feed[T], func() error) {
	f := &Feed[T]{
		subCh:   make(chan func(T), 8),
		publish: make(chan T, 64),
		log:     utils.L().WithComponent("feed").With(utils.String("feed", name)),
	}

	runner := func() error {
		var subs []func(T)
		for {
			select {
			case sub := <-f.subCh:
				subs = append(subs, sub)
				continue
			default:
			}

			v, ok, err := producer()
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}

			// drain any subscriptions that queued up meanwhile
			for {
				select {
				case sub := <-f.subCh:
					subs = append(subs, sub)
					continue
				default:
				}
				break
			}

			kept := subs[:0]
			for _, sub := range subs {
				if dispatch(f.log, sub, v) {
					kept = append(kept, sub)
				}
			}
			subs = kept
		}
	}
	return f, runner
}

// dispatch delivers v to sub and reports whether sub returned normally.
func dispatch[T any](log *utils.Logger, sub func(T), v T) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("subscriber panicked, dropping subscriber", utils.Any("panic", r))
			ok = false
		}
	}()
	sub(v)
	return true
}

// Subscribe registers cb to be invoked once per published value, in
// publication order, starting from the next value published after the call
// returns. A subscriber that panics is logged and stops receiving further
// values; other subscribers are unaffected.
func (f *Feed[T]) Subscribe(cb func(T)) {
	f.subCh <- cb
}

// Map derives a new Feed whose values are f(v) for every value v published
// on the parent. It returns the derived Feed and a runner to attach.
func Map[T, U any](name string, parent *Feed[T], f func(T) U) (*Feed[U], func() error) {
	ch := make(chan U, 64)
	parent.Subscribe(func(v T) { ch <- f(v) })

	producer := func() (U, bool, error) {
		v, ok := <-ch
		return v, ok, nil
	}
	return Of(name, producer)
}

// FoldFeed continuously folds incoming published values into an
// accumulator, exposing the running accumulator through the returned
// *cell.Cell-shaped getter. It mirrors cell.Fold but sourced from a Feed
// subscription rather than a channel the caller owns.
func FoldFeed[T, A any](parent *Feed[T], init A, f func(A, T) A) (get func() A, runner func() error) {
	ch := make(chan T, 64)
	parent.Subscribe(func(v T) { ch <- v })

	acc := init
	accCh := make(chan A, 1)
	accCh <- acc

	get = func() A {
		v := <-accCh
		accCh <- v
		return v
	}
	runner = func() error {
		for v := range ch {
			cur := <-accCh
			cur = f(cur, v)
			accCh <- cur
		}
		return nil
	}
	return get, runner
}
