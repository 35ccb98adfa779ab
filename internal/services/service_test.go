package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bookledger-io/equity-ledger/internal/clients/chainclient"
	"github.com/bookledger-io/equity-ledger/internal/config"
	"github.com/bookledger-io/equity-ledger/internal/db/model"
	"github.com/bookledger-io/equity-ledger/internal/queue"
	"github.com/bookledger-io/equity-ledger/internal/types"
)

type fakeChain struct {
	confirmed    map[string]bool
	confirmErr   error
	broadcastTx  string
	broadcastErr error
}

func (c *fakeChain) IsConfirmed(ctx context.Context, txid string, minConfirmations uint64) (bool, error) {
	if c.confirmErr != nil {
		return false, c.confirmErr
	}
	return c.confirmed[txid], nil
}

func (c *fakeChain) GetTransaction(ctx context.Context, txid string) (*chainclient.TxDetails, error) {
	if !c.confirmed[txid] {
		return nil, nil
	}
	return &chainclient.TxDetails{TxID: txid, Confirmations: 6}, nil
}

func (c *fakeChain) Broadcast(ctx context.Context, rawTx string) (string, error) {
	if c.broadcastErr != nil {
		return "", c.broadcastErr
	}
	return c.broadcastTx, nil
}

type fakePayment struct {
	verified map[string]bool
}

func (p *fakePayment) IsPaymentVerified(ctx context.Context, reference string) (bool, error) {
	return p.verified[reference], nil
}

type fakeKyc struct {
	rejected map[string]bool
}

func (k *fakeKyc) IsVerified(ctx context.Context, userID string) (bool, error) {
	return !k.rejected[userID], nil
}

type capturedEvent struct {
	eventType queue.EventType
	event     any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (p *fakePublisher) Publish(ctx context.Context, eventType queue.EventType, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, capturedEvent{eventType: eventType, event: event})
	return nil
}

func (p *fakePublisher) byType(eventType queue.EventType) []capturedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []capturedEvent
	for _, e := range p.events {
		if e.eventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

type testEnv struct {
	service   *Service
	db        *fakeDb
	chain     *fakeChain
	payment   *fakePayment
	kyc       *fakeKyc
	publisher *fakePublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		Chain: config.ChainConfig{
			MinConfirmations: 6,
			DepositWindow:    time.Hour,
		},
		Poller: config.PollerConfig{
			ExpiryCheckerPollingInterval: time.Minute,
			ExpiredStakesLimit:           100,
		},
		Wallet: config.WalletConfig{
			ServerSecret: "0123456789abcdef0123456789abcdef",
		},
	}

	env := &testEnv{
		db:        newFakeDb(),
		chain:     &fakeChain{confirmed: make(map[string]bool)},
		payment:   &fakePayment{verified: make(map[string]bool)},
		kyc:       &fakeKyc{rejected: make(map[string]bool)},
		publisher: &fakePublisher{},
	}
	env.service = NewService(cfg, env.db, env.chain, env.payment, env.kyc, env.publisher)
	return env
}

// fundUser registers the token once and mints an initial balance.
func (e *testEnv) fundUser(t *testing.T, userID, tokenID string, amount int64) {
	t.Helper()
	ctx := context.Background()

	if _, err := e.db.GetTokenByID(ctx, tokenID); err != nil {
		e.db.tokens[tokenID] = &model.Token{ID: tokenID, Ticker: tokenID}
		e.db.tickers[tokenID] = tokenID
	}
	_, err := e.service.RecordTransaction(ctx, TransactionInput{
		UserID:  userID,
		TokenID: tokenID,
		Type:    types.TxMint,
		Amount:  amount,
	})
	require.NoError(t, err)
}

func (e *testEnv) confirmedStake(t *testing.T, userID, tokenID string, amount int64) *model.Stake {
	t.Helper()
	ctx := context.Background()

	e.fundUser(t, userID, tokenID, amount)
	stake, err := e.service.CreateStake(ctx, StakeInput{
		UserID:      userID,
		TokenID:     tokenID,
		Amount:      amount,
		DepositTxID: "tx-" + userID,
	})
	require.NoError(t, err)

	e.chain.confirmed["tx-"+userID] = true
	stake, err = e.service.ConfirmStake(ctx, stake.ID)
	require.NoError(t, err)
	return stake
}
