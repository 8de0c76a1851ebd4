package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"

	"fairsengine/internal/book"
	"fairsengine/pkg/ratelimit"
	"fairsengine/pkg/retry"
	"fairsengine/pkg/utils"
)

// wireJSON is used for the high-frequency websocket frame decode path
// instead of encoding/json: book-delta frames arrive many times a second
// per pair and jsoniter's reflection cache keeps that path off the GC.
var wireJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// Credentials holds the API key/secret pair used to authenticate the
// private websocket channels (order book subscriptions are public and
// need none).
type Credentials struct {
	APIKey string
	Secret string
}

// authMessage is the wallet-channel authentication frame: signing is
// HMAC-SHA384 of "AUTH<nonce>" with the API secret.
type authMessage struct {
	APIKey      string   `json:"apiKey"`
	Event       string   `json:"event"`
	AuthPayload string   `json:"authPayload"`
	AuthNonce   string   `json:"authNonce"`
	AuthSig     string   `json:"authSig"`
	Filter      []string `json:"filter"`
}

func signAuthPayload(secret, nonce string) string {
	payload := "AUTH" + nonce
	h := hmac.New(sha512.New384, []byte(secret))
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}

func buildAuthMessage(creds Credentials) authMessage {
	nonce := strconv.FormatInt(time.Now().UnixNano(), 10)
	payload := "AUTH" + nonce
	return authMessage{
		APIKey:      creds.APIKey,
		Event:       "auth",
		AuthPayload: payload,
		AuthNonce:   nonce,
		AuthSig:     signAuthPayload(creds.Secret, nonce),
		Filter:      []string{"wallet"},
	}
}

// Live is an Exchange backed by an authenticated websocket connection: a
// public order-book channel per subscribed pair (R0 precision, price-level
// deltas with size 0 meaning "remove") and a private wallet channel
// (snapshot "ws" followed by updates "wu", filtered to exchange wallet).
type Live struct {
	name  string
	wsURL string
	creds Credentials
	fees  Fees

	mu        sync.RWMutex
	conn      *websocket.Conn
	books     map[book.TradingPair]*book.OrderBook
	feeds     map[book.TradingPair]chan book.OrderBook
	balances  map[string]decimal.Decimal
	chanPairs map[int]book.TradingPair    // resolved channel id -> pair, from "subscribed" acks
	pending   map[string]book.TradingPair // symbol -> pair, awaiting a "subscribed" ack

	retryer *retry.Retryer
	orders  *ratelimit.RateLimiter
	log     *utils.Logger

	closeCh chan struct{}
}

// NewLive builds a Live adapter. Connect must be called before use.
// Order submission is throttled to 10 req/sec with a burst of 20, in line
// with the venue limits most of this engine's adapters target.
func NewLive(name, wsURL string, creds Credentials, fees Fees) *Live {
	return &Live{
		name:      name,
		wsURL:     wsURL,
		creds:     creds,
		fees:      fees,
		books:     make(map[book.TradingPair]*book.OrderBook),
		feeds:     make(map[book.TradingPair]chan book.OrderBook),
		balances:  make(map[string]decimal.Decimal),
		chanPairs: make(map[int]book.TradingPair),
		pending:   make(map[string]book.TradingPair),
		retryer:   retry.NewRetryer(retry.NetworkConfig()),
		orders:    ratelimit.NewRateLimiter(10, 20),
		log:       utils.L().WithExchange(name),
		closeCh:   make(chan struct{}),
	}
}

// ID implements Exchange.
func (l *Live) ID() string { return l.name }

// Connect dials the websocket, authenticates the wallet channel, and
// starts the read pump. It dials once: a failed dial is returned without
// retrying, and a dropped connection stops the read pump without a
// reconnect.
func (l *Live) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, l.wsURL, nil)
	if err != nil {
		return fmt.Errorf("exchange: dial %s: %w", l.name, err)
	}

	if err := conn.WriteJSON(buildAuthMessage(l.creds)); err != nil {
		conn.Close()
		return fmt.Errorf("exchange: auth %s: %w", l.name, err)
	}

	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()

	go l.readPump()
	l.log.Info("connected")
	return nil
}

func (l *Live) readPump() {
	for {
		select {
		case <-l.closeCh:
			return
		default:
		}
		l.mu.RLock()
		conn := l.conn
		l.mu.RUnlock()
		if conn == nil {
			return
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			l.log.Error("read error", utils.Err(err))
			return
		}
		l.handleMessage(msg)
	}
}

// bookDelta is one price-level update in the R0-precision order book
// channel: [price, count, amount]. A count of 0 removes the level;
// amount sign selects bid/ask.
type bookDelta struct {
	Price  decimal.Decimal
	Count  int
	Amount decimal.Decimal
}

// walletChannelID is the reserved channel id the venue's authenticated
// user channel (auth acks, wallet snapshots/updates, order acks) always
// reports on, rather than one assigned per subscription.
const walletChannelID = 0

func (l *Live) handleMessage(raw []byte) {
	var generic map[string]interface{}
	if err := wireJSON.Unmarshal(raw, &generic); err == nil {
		l.handleEventFrame(generic)
		return
	}

	var frame []interface{}
	if err := wireJSON.Unmarshal(raw, &frame); err != nil || len(frame) < 2 {
		return
	}
	chanIDf, ok := frame[0].(float64)
	if !ok {
		return
	}
	chanID := int(chanIDf)

	if chanID == walletChannelID {
		l.handleWalletFrame(frame)
		return
	}
	l.handleBookFrame(chanID, frame[1])
}

// handleEventFrame resolves a "subscribed" book-channel ack to the pair
// whose wire symbol matches; auth acks and other named-field frames carry
// no state this adapter needs and are otherwise ignored.
func (l *Live) handleEventFrame(generic map[string]interface{}) {
	if event, _ := generic["event"].(string); event != "subscribed" {
		return
	}
	if channel, _ := generic["channel"].(string); channel != "book" {
		return
	}
	symbol, _ := generic["symbol"].(string)
	chanIDf, _ := generic["chanId"].(float64)

	l.mu.Lock()
	defer l.mu.Unlock()
	pair, ok := l.pending[symbol]
	if !ok {
		return
	}
	l.chanPairs[int(chanIDf)] = pair
	delete(l.pending, symbol)
}

// handleBookFrame applies payload — either a single [price,count,amount]
// update or a snapshot array of such tuples — to the OrderBook registered
// for chanID, then republishes the book on its feed channel. Unresolved
// channel ids (ack not yet received) and heartbeats ("hb") are dropped.
func (l *Live) handleBookFrame(chanID int, payload interface{}) {
	if _, isHeartbeat := payload.(string); isHeartbeat {
		return
	}

	l.mu.RLock()
	pair, ok := l.chanPairs[chanID]
	var ob *book.OrderBook
	var ch chan book.OrderBook
	if ok {
		ob = l.books[pair]
		ch = l.feeds[pair]
	}
	l.mu.RUnlock()
	if !ok || ob == nil {
		return
	}

	levels, ok := payload.([]interface{})
	if !ok || len(levels) == 0 {
		return
	}
	if _, snapshot := levels[0].([]interface{}); snapshot {
		for _, lvl := range levels {
			l.applyBookLevel(ob, lvl)
		}
	} else {
		l.applyBookLevel(ob, levels)
	}

	if ch == nil {
		return
	}
	snap := book.NewOrderBook(ob.Pair, ob.Bids(), ob.Asks())
	select {
	case ch <- *snap:
	default:
		l.log.Warn("book feed full, dropping snapshot", utils.Symbol(pair.String()))
	}
}

// applyBookLevel decodes one [price, count, amount] tuple and applies it to
// ob: count 0 removes the level at that price; amount's sign selects bid
// (positive) vs ask (negative), and its magnitude is the level size.
func (l *Live) applyBookLevel(ob *book.OrderBook, raw interface{}) {
	tuple, ok := raw.([]interface{})
	if !ok || len(tuple) != 3 {
		return
	}
	price, ok1 := tuple[0].(float64)
	count, ok2 := tuple[1].(float64)
	amount, ok3 := tuple[2].(float64)
	if !ok1 || !ok2 || !ok3 {
		return
	}
	delta := bookDelta{
		Price:  decimal.NewFromFloat(price),
		Count:  int(count),
		Amount: decimal.NewFromFloat(amount),
	}

	side := book.Bid
	size := delta.Amount
	if delta.Amount.IsNegative() {
		side = book.Ask
		size = size.Neg()
	}
	if delta.Count == 0 {
		size = decimal.Zero
	}
	if err := ob.Update(side, book.BookLevel{Price: delta.Price, Size: size}); err != nil {
		l.log.Warn("book update crossed, book reset", utils.Symbol(ob.Pair.String()), utils.Err(err))
	}
}

// handleWalletFrame applies a "ws" (snapshot, one entry per wallet) or "wu"
// (update, one entry) frame to l.balances, keyed by currency.
func (l *Live) handleWalletFrame(frame []interface{}) {
	kind, _ := frame[1].(string)
	if kind != "ws" && kind != "wu" {
		return
	}
	if len(frame) < 3 {
		return
	}

	var entries [][]interface{}
	switch kind {
	case "ws":
		rows, ok := frame[2].([]interface{})
		if !ok {
			return
		}
		for _, r := range rows {
			if entry, ok := r.([]interface{}); ok {
				entries = append(entries, entry)
			}
		}
	case "wu":
		entry, ok := frame[2].([]interface{})
		if !ok {
			return
		}
		entries = append(entries, entry)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, entry := range entries {
		if len(entry) < 3 {
			continue
		}
		if walletType, _ := entry[0].(string); walletType != "exchange" {
			continue
		}
		currency, ok := entry[1].(string)
		if !ok {
			continue
		}
		balance, ok := entry[2].(float64)
		if !ok {
			continue
		}
		l.balances[currency] = decimal.NewFromFloat(balance)
	}
}

// bookSubscribeMessage requests the R0-precision (raw price-level) book
// channel for symbol.
type bookSubscribeMessage struct {
	Event   string `json:"event"`
	Channel string `json:"channel"`
	Symbol  string `json:"symbol"`
	Prec    string `json:"prec"`
}

// wireSymbol renders pair in the venue's "tBASEQUOTE" channel-symbol form.
func wireSymbol(pair book.TradingPair) string {
	return "t" + pair.Base.String() + pair.Quote.String()
}

// Subscribe opens the public order-book channel for pair, returning the
// live OrderBook pointer and the stream of snapshots published on every
// update (including the crossed-book reset case). The channel id the venue
// assigns is learned asynchronously from the "subscribed" event frame and
// resolved in handleMessage.
func (l *Live) subscribe(pair book.TradingPair) (*book.OrderBook, chan book.OrderBook) {
	l.mu.Lock()
	if ob, ok := l.books[pair]; ok {
		ch := l.feeds[pair]
		l.mu.Unlock()
		return ob, ch
	}
	ep := book.NewExchangePair(l.name, pair)
	ob := book.NewOrderBook(ep, nil, nil)
	ch := make(chan book.OrderBook, 64)
	l.books[pair] = ob
	l.feeds[pair] = ch
	symbol := wireSymbol(pair)
	l.pending[symbol] = pair
	conn := l.conn
	l.mu.Unlock()

	if conn != nil {
		if err := conn.WriteJSON(bookSubscribeMessage{Event: "subscribe", Channel: "book", Symbol: symbol, Prec: "R0"}); err != nil {
			l.log.Error("book subscribe failed", utils.Symbol(pair.String()), utils.Err(err))
		}
	}
	return ob, ch
}

// BookFeed implements Exchange.
func (l *Live) BookFeed(pair book.TradingPair) (*book.OrderBook, <-chan book.OrderBook, error) {
	if l.conn == nil {
		return nil, nil, ErrAdapterUnavailable
	}
	ob, ch := l.subscribe(pair)
	return ob, ch, nil
}

// Frame implements Exchange using each pair's current book mid as the
// frame price; live volume is taken from the best bid/ask size sum.
func (l *Live) Frame(_ context.Context, pairs []book.TradingPair) (map[book.TradingPair]Frame, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[book.TradingPair]Frame, len(pairs))
	for _, p := range pairs {
		ob, ok := l.books[p]
		if !ok {
			continue
		}
		mid, ok := ob.Mid()
		if !ok {
			continue
		}
		bid, _ := ob.BestBid()
		ask, _ := ob.BestAsk()
		out[p] = Frame{Price: mid, Volume: bid.Size.Add(ask.Size)}
	}
	return out, nil
}

// Balances implements Exchange, reading the wallet snapshot/update state
// maintained by the private channel handler.
func (l *Live) Balances(_ context.Context) (map[string]decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]decimal.Decimal, len(l.balances))
	for k, v := range l.balances {
		out[k] = v
	}
	return out, nil
}

// FeeSchedule implements Exchange.
func (l *Live) FeeSchedule() Fees { return l.fees }

// AddOrder implements Exchange. It waits on the order rate limiter, then
// runs submitOrder under the shared retry policy. submitOrder sends
// nothing to the venue: while connected it returns a locally built Open
// order with no venue order id.
func (l *Live) AddOrder(ctx context.Context, pair book.TradingPair, side book.Direction, typ book.OrderType, price, volume decimal.Decimal, maker bool) (*book.Order, error) {
	if err := l.orders.Wait(ctx); err != nil {
		return nil, err
	}
	var order *book.Order
	err := l.retryer.Do(ctx, func() error {
		var err error
		order, err = l.submitOrder(ctx, pair, side, typ, price, volume, maker)
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (l *Live) submitOrder(_ context.Context, pair book.TradingPair, side book.Direction, typ book.OrderType, price, volume decimal.Decimal, maker bool) (*book.Order, error) {
	if l.conn == nil {
		return nil, ErrAdapterUnavailable
	}
	return &book.Order{
		Pair:   book.NewExchangePair(l.name, pair),
		Side:   side,
		Type:   typ,
		Price:  price,
		Volume: volume,
		Status: book.Open,
	}, nil
}

// CancelOrder implements Exchange.
func (l *Live) CancelOrder(_ context.Context, orderID string) error {
	if l.conn == nil {
		return ErrAdapterUnavailable
	}
	return nil
}

// OpenPositions implements Exchange.
func (l *Live) OpenPositions(_ context.Context) ([]*book.Order, error) {
	return nil, nil
}

// Close implements Exchange.
func (l *Live) Close() error {
	select {
	case <-l.closeCh:
		return nil
	default:
		close(l.closeCh)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		err := l.conn.Close()
		l.conn = nil
		return err
	}
	return nil
}

var _ Exchange = (*Live)(nil)
