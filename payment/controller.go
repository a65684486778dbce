// Package payment drives a scanned payment intent through confirmation,
// submission and on-chain settlement.
package payment

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vitwit/jpycpay/logger"
	"github.com/vitwit/jpycpay/metrics"
	"github.com/vitwit/jpycpay/settlement"
	"github.com/vitwit/jpycpay/tokens"
	"github.com/vitwit/jpycpay/types"
	"github.com/vitwit/jpycpay/utils"
	"github.com/vitwit/jpycpay/verification"
)

// Parser turns a scanned string into a payment intent.
type Parser interface {
	Parse(raw string) (*types.PaymentIntent, error)
}

// History receives the records of finished payments.
type History interface {
	Append(rec types.PaymentRecord) (types.PaymentRecord, error)
}

// Dependencies are the collaborators a Controller is built from.
type Dependencies struct {
	Parser   Parser
	Registry *tokens.Registry
	Verifier verification.Verifier
	Settler  settlement.Settler
	History  History
	Account  common.Address
	Network  types.Network
}

// Review is the confirmation view of the current intent.
type Review struct {
	Intent               *types.PaymentIntent
	Token                tokens.Descriptor
	Balance              *types.BalanceView
	Verification         *types.VerificationResult
	HasSufficientBalance bool
	DisplayBalance       string

	generation uint64
}

// Outcome is the result of a Confirm call.
type Outcome struct {
	State       State
	Settlement  *types.SettlementResult
	Record      *types.PaymentRecord
	ExplorerURL string
}

// Snapshot is a consistent copy of the controller state.
type Snapshot struct {
	State       State
	Phase       string
	Intent      *types.PaymentIntent
	Token       types.TokenLabel
	TxHash      string
	ExplorerURL string
	Failure     error
	Record      *types.PaymentRecord
}

// Controller owns one payment attempt at a time. Its lock is never held
// across a provider call.
type Controller struct {
	mu sync.Mutex

	state      State
	intent     *types.PaymentIntent
	token      tokens.Descriptor
	review     *Review
	pending    *types.PendingTransfer
	failure    error
	record     *types.PaymentRecord
	generation uint64
	awaiting   bool

	parser       Parser
	registry     *tokens.Registry
	verifier     verification.Verifier
	settler      settlement.Settler
	history      History
	account      common.Address
	network      types.Network
	recordFailed bool
	observers    []Observer
	logger       logger.Logger
	metrics      metrics.Recorder
	now          func() time.Time
}

type Option func(*Controller)

func WithObserver(o Observer) Option {
	return func(c *Controller) {
		if o != nil {
			c.observers = append(c.observers, o)
		}
	}
}

// WithRecordFailedTransfers also records transfers that were mined but
// reverted, with status failed.
func WithRecordFailedTransfers(enabled bool) Option {
	return func(c *Controller) {
		c.recordFailed = enabled
	}
}

func WithLogger(l logger.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithMetrics(m metrics.Recorder) Option {
	return func(c *Controller) {
		if m != nil {
			c.metrics = m
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

func NewController(deps Dependencies, opts ...Option) (*Controller, error) {
	switch {
	case deps.Parser == nil:
		return nil, types.NewError(types.ErrConfigError, "payment controller needs a parser")
	case deps.Registry == nil:
		return nil, types.NewError(types.ErrConfigError, "payment controller needs a token registry")
	case deps.Verifier == nil:
		return nil, types.NewError(types.ErrConfigError, "payment controller needs a verifier")
	case deps.Settler == nil:
		return nil, types.NewError(types.ErrConfigError, "payment controller needs a settler")
	case deps.History == nil:
		return nil, types.NewError(types.ErrConfigError, "payment controller needs a history store")
	}

	c := &Controller{
		state:    StateIdle,
		token:    deps.Registry.Default(),
		parser:   deps.Parser,
		registry: deps.Registry,
		verifier: deps.Verifier,
		settler:  deps.Settler,
		history:  deps.History,
		account:  deps.Account,
		network:  deps.Network,
		logger:   logger.NoopLogger{},
		metrics:  metrics.NoopRecorder{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Scan parses raw and, on success, moves idle -> awaiting_confirmation. A
// failed parse leaves the state unchanged.
func (c *Controller) Scan(raw string) (*types.PaymentIntent, error) {
	c.mu.Lock()
	if c.state != StateIdle {
		defer c.mu.Unlock()
		return nil, c.invalidState("scan")
	}
	c.mu.Unlock()

	intent, err := c.parser.Parse(raw)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.state != StateIdle {
		defer c.mu.Unlock()
		return nil, c.invalidState("scan")
	}
	c.intent = intent
	c.review = nil
	c.generation++
	t := c.transitionLocked(StateAwaitingConfirmation, nil)
	c.mu.Unlock()

	c.notify(t)
	return intent, nil
}

// SelectToken switches the token the current intent will be paid with.
func (c *Controller) SelectToken(label types.TokenLabel) error {
	token, err := c.registry.Get(label)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateAwaitingConfirmation {
		return c.invalidState("select token")
	}
	if token.Label != c.token.Label {
		c.token = token
		c.review = nil
		c.generation++
	}
	return nil
}

// Review reads the live balance of the selected token and records whether
// it covers the intent. A failed read yields an insufficient review and the
// read error.
func (c *Controller) Review(ctx context.Context) (*Review, error) {
	c.mu.Lock()
	if c.state != StateAwaitingConfirmation {
		defer c.mu.Unlock()
		return nil, c.invalidState("review")
	}
	intent, token, generation := c.intent, c.token, c.generation
	c.mu.Unlock()

	result, err := c.verifier.Verify(ctx, intent, token, c.account)

	review := &Review{
		Intent:       intent,
		Token:        token,
		Verification: result,
		generation:   generation,
	}
	if result != nil {
		review.HasSufficientBalance = err == nil && result.HasSufficientBalance
		review.Balance = result.View
		if result.View != nil && result.View.Balance != nil {
			review.DisplayBalance = utils.FormatBalance(result.View.Balance, result.Decimals)
		}
	}

	c.mu.Lock()
	if c.state == StateAwaitingConfirmation && c.generation == generation {
		c.review = review
	}
	c.mu.Unlock()

	return review, err
}

// Confirm submits the reviewed payment and waits for its on-chain outcome.
// It is rejected unless the latest review reported a sufficient balance, and
// while another submission of this controller is in flight. If ctx ends after
// the transfer was broadcast, the controller stays in awaiting_on_chain and
// returns a PendingConfirmation error; Resume continues the wait.
func (c *Controller) Confirm(ctx context.Context) (*Outcome, error) {
	c.mu.Lock()
	switch {
	case c.state.InFlight():
		c.mu.Unlock()
		return nil, types.NewError(types.ErrPaymentInFlight, "a payment is already in flight")
	case c.state != StateAwaitingConfirmation:
		defer c.mu.Unlock()
		return nil, c.invalidState("confirm")
	case c.review == nil || c.review.generation != c.generation:
		c.mu.Unlock()
		return nil, types.NewError(types.ErrInsufficientBalance, "balance has not been reviewed")
	case !c.review.HasSufficientBalance:
		c.mu.Unlock()
		return nil, types.NewError(types.ErrInsufficientBalance, "insufficient balance")
	}

	intent, token := c.intent, c.token
	amount := c.review.Verification.Required
	generation := c.generation
	t := c.transitionLocked(StateSubmitting, nil)
	c.mu.Unlock()
	c.notify(t)

	c.logger.Info("submitting payment", map[string]any{
		"to":     intent.Recipient,
		"amount": intent.Amount,
		"token":  token.Label.String(),
	})

	pending, err := c.settler.Submit(ctx, token.ContractAddress, common.HexToAddress(intent.Recipient), amount)
	if err != nil {
		c.fail(err)
		return &Outcome{State: StateFailed}, err
	}

	c.mu.Lock()
	c.pending = pending
	c.awaiting = true
	t = c.transitionLocked(StateAwaitingOnChain, nil)
	c.mu.Unlock()
	c.notify(t)

	return c.await(ctx, generation, intent, token, pending)
}

// Resume waits again for a transfer whose confirmation wait ended with its
// context. The transfer is never resubmitted.
func (c *Controller) Resume(ctx context.Context) (*Outcome, error) {
	c.mu.Lock()
	if c.state != StateAwaitingOnChain {
		defer c.mu.Unlock()
		return nil, c.invalidState("resume")
	}
	if c.awaiting {
		c.mu.Unlock()
		return nil, types.NewError(types.ErrPaymentInFlight, "confirmation is already being awaited")
	}
	c.awaiting = true
	intent, token, pending, generation := c.intent, c.token, c.pending, c.generation
	c.mu.Unlock()

	return c.await(ctx, generation, intent, token, pending)
}

// await resolves an awaiting_on_chain attempt. It leaves the state unchanged
// when ctx ends before the provider reports an outcome.
func (c *Controller) await(
	ctx context.Context,
	generation uint64,
	intent *types.PaymentIntent,
	token tokens.Descriptor,
	pending *types.PendingTransfer,
) (*Outcome, error) {
	explorerURL := c.network.ExplorerTxURL(pending.Hash)
	result, err := c.settler.Await(ctx, pending)

	c.mu.Lock()
	c.awaiting = false
	c.mu.Unlock()

	if err != nil && stillPending(ctx, err) {
		c.logger.Warn("confirmation wait ended, transfer still pending", map[string]any{
			"tx":    pending.Hash,
			"error": err,
		})
		if !types.IsKind(err, types.ErrPendingConfirmation) {
			err = &types.Error{
				Kind:    types.ErrPendingConfirmation,
				Message: "transaction " + pending.Hash + " is still awaiting confirmation",
				Err:     err,
			}
		}
		return &Outcome{State: StateAwaitingOnChain, Settlement: result, ExplorerURL: explorerURL}, err
	}

	if err != nil {
		c.fail(err)
		outcome := &Outcome{State: StateFailed, Settlement: result, ExplorerURL: explorerURL}
		if c.recordFailed && result != nil && result.BlockNumber > 0 {
			outcome.Record = c.appendRecord(generation, intent, token, pending.Hash, types.StatusFailed)
		}
		return outcome, err
	}

	c.mu.Lock()
	t := c.transitionLocked(StateSucceeded, nil)
	c.mu.Unlock()
	c.notify(t)

	return &Outcome{
		State:       StateSucceeded,
		Settlement:  result,
		Record:      c.appendRecord(generation, intent, token, pending.Hash, types.StatusSuccess),
		ExplorerURL: explorerURL,
	}, nil
}

func stillPending(ctx context.Context, err error) bool {
	return types.IsKind(err, types.ErrPendingConfirmation) ||
		ctx.Err() != nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Cancel aborts a payment that has not been confirmed yet.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	if c.state.InFlight() {
		c.mu.Unlock()
		return types.NewError(types.ErrPaymentInFlight, "a submitted payment cannot be cancelled")
	}
	if c.state != StateAwaitingConfirmation {
		defer c.mu.Unlock()
		return c.invalidState("cancel")
	}
	t := c.transitionLocked(StateIdle, nil)
	c.clearLocked()
	c.mu.Unlock()

	c.notify(t)
	return nil
}

// Reset returns a finished attempt to idle. It is a no-op when already idle.
func (c *Controller) Reset() error {
	c.mu.Lock()
	if c.state == StateIdle {
		c.mu.Unlock()
		return nil
	}
	if !c.state.Terminal() {
		defer c.mu.Unlock()
		return c.invalidState("reset")
	}
	t := c.transitionLocked(StateIdle, nil)
	c.clearLocked()
	c.mu.Unlock()

	c.notify(t)
	return nil
}

// Retry reopens a failed attempt for confirmation with the same intent. The
// balance must be reviewed again before confirming.
func (c *Controller) Retry() error {
	c.mu.Lock()
	if c.state != StateFailed {
		defer c.mu.Unlock()
		return c.invalidState("retry")
	}
	c.review = nil
	c.pending = nil
	c.failure = nil
	c.record = nil
	c.generation++
	t := c.transitionLocked(StateAwaitingConfirmation, nil)
	c.mu.Unlock()

	c.notify(t)
	return nil
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		State:   c.state,
		Phase:   c.state.Phase(),
		Intent:  c.intent,
		Token:   c.token.Label,
		Failure: c.failure,
		Record:  c.record,
	}
	if c.pending != nil {
		s.TxHash = c.pending.Hash
		s.ExplorerURL = c.network.ExplorerTxURL(c.pending.Hash)
	}
	return s
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Token returns the selected token descriptor.
func (c *Controller) Token() tokens.Descriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Controller) Account() common.Address {
	return c.account
}

func (c *Controller) fail(err error) {
	c.mu.Lock()
	c.failure = err
	t := c.transitionLocked(StateFailed, err)
	c.mu.Unlock()

	c.notify(t)
	c.logger.Warn("payment failed", map[string]any{"error": err})
}

// appendRecord stores the payment in history. Failures are logged and never
// change the outcome of the attempt.
func (c *Controller) appendRecord(
	generation uint64,
	intent *types.PaymentIntent,
	token tokens.Descriptor,
	txHash string,
	status types.PaymentStatus,
) *types.PaymentRecord {
	rec, err := c.history.Append(types.PaymentRecord{
		TransactionHash: txHash,
		To:              intent.Recipient,
		Amount:          intent.Amount,
		Timestamp:       c.now().UnixMilli(),
		Memo:            intent.Memo(),
		Status:          status,
		Network:         c.network.Label(),
		Token:           token.Label.String(),
		MerchantName:    intent.MerchantName,
	})
	if err != nil {
		c.metrics.IncCounter(metrics.HistoryError, map[string]string{"token": token.Label.String()})
		c.logger.Error("failed to record payment", map[string]any{
			"tx":    txHash,
			"error": err,
		})
		return nil
	}

	c.mu.Lock()
	if c.generation == generation {
		c.record = &rec
	}
	c.mu.Unlock()

	return &rec
}

// transitionLocked moves to next. Callers hold c.mu and pass the result to
// notify after unlocking.
func (c *Controller) transitionLocked(next State, err error) Transition {
	if !IsValidTransition(c.state, next) {
		// Guarded by every caller; reaching here is a programming error.
		panic("payment: invalid transition from " + c.state.String() + " to " + next.String())
	}

	t := Transition{
		From:   c.state,
		To:     next,
		At:     c.now(),
		Token:  c.token.Label,
		Intent: c.intent,
		Err:    err,
	}
	if c.pending != nil {
		t.TxHash = c.pending.Hash
	}
	c.state = next

	labels := map[string]string{"token": c.token.Label.String(), "state": next.String()}
	c.metrics.IncCounter(metrics.PaymentTransition, labels)
	switch next {
	case StateSucceeded:
		c.metrics.IncCounter(metrics.PaymentSucceeded, labels)
	case StateFailed:
		c.metrics.IncCounter(metrics.PaymentFailed, labels)
	}

	return t
}

func (c *Controller) notify(t Transition) {
	c.logger.Info("payment state changed", map[string]any{
		"from":  t.From.String(),
		"to":    t.To.String(),
		"token": t.Token.String(),
		"tx":    t.TxHash,
	})
	for _, o := range c.observers {
		o.OnTransition(t)
	}
}

func (c *Controller) clearLocked() {
	c.intent = nil
	c.review = nil
	c.pending = nil
	c.failure = nil
	c.record = nil
	c.generation++
}

func (c *Controller) invalidState(op string) error {
	return types.NewError(types.ErrInvalidState, "cannot %s in state %s", op, c.state)
}
