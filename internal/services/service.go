package services

import (
	"context"

	"github.com/bookledger-io/equity-ledger/internal/clients/chainclient"
	"github.com/bookledger-io/equity-ledger/internal/clients/kycclient"
	"github.com/bookledger-io/equity-ledger/internal/clients/paymentclient"
	"github.com/bookledger-io/equity-ledger/internal/config"
	"github.com/bookledger-io/equity-ledger/internal/db"
	"github.com/bookledger-io/equity-ledger/internal/queue"
	"github.com/bookledger-io/equity-ledger/internal/utils/keylock"
	"github.com/bookledger-io/equity-ledger/internal/utils/poller"
)

// EventPublisher is the queue surface the service needs. Satisfied by
// queue.QueueManager.
type EventPublisher interface {
	Publish(ctx context.Context, eventType queue.EventType, event any) error
}

type Service struct {
	cfg     *config.Config
	db      db.DbInterface
	chain   chainclient.ChainInterface
	payment paymentclient.PaymentInterface
	kyc     kycclient.KycInterface
	events  EventPublisher
	// locks serializes read-then-write balance mutations per
	// (user, token) key. Never held across a collaborator call.
	locks *keylock.KeyedLock
}

func NewService(
	cfg *config.Config,
	db db.DbInterface,
	chain chainclient.ChainInterface,
	payment paymentclient.PaymentInterface,
	kyc kycclient.KycInterface,
	events EventPublisher,
) *Service {
	return &Service{
		cfg:     cfg,
		db:      db,
		chain:   chain,
		payment: payment,
		kyc:     kyc,
		events:  events,
		locks:   keylock.New(),
	}
}

// StartBackgroundPollers launches the deposit-deadline expiry checker.
// Blocks until ctx is cancelled.
func (s *Service) StartBackgroundPollers(ctx context.Context) {
	expiryPoller := poller.NewPoller(
		s.cfg.Poller.ExpiryCheckerPollingInterval,
		s.checkExpiredStakes,
	)
	expiryPoller.Start(ctx)
}

func balanceKey(userID, tokenID string) string {
	return userID + "/" + tokenID
}
