package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bookledger-io/equity-ledger/internal/db"
	"github.com/bookledger-io/equity-ledger/internal/db/model"
	"github.com/bookledger-io/equity-ledger/internal/types"
)

// fakeDb is an in-memory DbInterface with the same guarded-update
// semantics as the mongo implementation. failNext lets a test inject a
// single failure into a named method to exercise compensation paths.
type fakeDb struct {
	mu sync.Mutex

	tokens        map[string]*model.Token
	tickers       map[string]string
	balances      map[string]*model.Balance
	transactions  []*model.Transaction
	stakes        map[string]*model.Stake
	capTable      map[string]*model.CapTableEntry
	distributions map[string]*model.DividendDistribution
	withdrawals   map[string]*model.WithdrawalRequest
	wallets       map[string]*model.Wallet

	failNext map[string]*injectedFailure
}

type injectedFailure struct {
	skip int
	err  error
}

func newFakeDb() *fakeDb {
	return &fakeDb{
		tokens:        make(map[string]*model.Token),
		tickers:       make(map[string]string),
		balances:      make(map[string]*model.Balance),
		stakes:        make(map[string]*model.Stake),
		capTable:      make(map[string]*model.CapTableEntry),
		distributions: make(map[string]*model.DividendDistribution),
		withdrawals:   make(map[string]*model.WithdrawalRequest),
		wallets:       make(map[string]*model.Wallet),
		failNext:      make(map[string]*injectedFailure),
	}
}

func (f *fakeDb) failOnce(method string, err error) {
	f.failNth(method, 1, err)
}

// failNth makes the n-th call to method fail; earlier calls succeed.
func (f *fakeDb) failNth(method string, n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext[method] = &injectedFailure{skip: n - 1, err: err}
}

func (f *fakeDb) takeFailure(method string) error {
	inj, ok := f.failNext[method]
	if !ok {
		return nil
	}
	if inj.skip > 0 {
		inj.skip--
		return nil
	}
	delete(f.failNext, method)
	return inj.err
}

func (f *fakeDb) Ping(ctx context.Context) error { return nil }

func (f *fakeDb) SaveToken(ctx context.Context, token *model.Token) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("SaveToken"); err != nil {
		return err
	}
	if _, ok := f.tickers[token.Ticker]; ok {
		return &db.DuplicateKeyError{Key: token.Ticker, Message: "ticker already exists"}
	}
	copied := *token
	f.tokens[token.ID] = &copied
	f.tickers[token.Ticker] = token.ID
	return nil
}

func (f *fakeDb) GetTokenByID(ctx context.Context, tokenID string) (*model.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	token, ok := f.tokens[tokenID]
	if !ok {
		return nil, &db.NotFoundError{Key: tokenID, Message: "token not found"}
	}
	copied := *token
	return &copied, nil
}

func (f *fakeDb) GetTokenByTicker(ctx context.Context, ticker string) (*model.Token, error) {
	f.mu.Lock()
	id, ok := f.tickers[ticker]
	f.mu.Unlock()
	if !ok {
		return nil, &db.NotFoundError{Key: ticker, Message: "token not found"}
	}
	return f.GetTokenByID(ctx, id)
}

func (f *fakeDb) AdjustTokenSupply(ctx context.Context, tokenID string, delta int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("AdjustTokenSupply"); err != nil {
		return err
	}
	token, ok := f.tokens[tokenID]
	if !ok {
		return &db.NotFoundError{Key: tokenID, Message: "token not found"}
	}
	if token.TotalSupply+delta < 0 {
		return &db.PreconditionFailedError{Key: tokenID, Message: "supply would go negative"}
	}
	token.TotalSupply += delta
	return nil
}

func (f *fakeDb) balance(userID, tokenID string) *model.Balance {
	key := userID + "/" + tokenID
	b, ok := f.balances[key]
	if !ok {
		b = &model.Balance{UserID: userID, TokenID: tokenID}
		f.balances[key] = b
	}
	return b
}

func (f *fakeDb) GetBalance(ctx context.Context, userID, tokenID string) (*model.Balance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.balances[userID+"/"+tokenID]
	if !ok {
		return nil, &db.NotFoundError{Key: userID + "/" + tokenID, Message: "balance not found"}
	}
	copied := *b
	return &copied, nil
}

func (f *fakeDb) CreditBalance(ctx context.Context, userID, tokenID string, amount int64, counter model.BalanceCounter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("CreditBalance"); err != nil {
		return err
	}
	b := f.balance(userID, tokenID)
	b.Balance += amount
	f.bumpCounter(b, counter, amount)
	return nil
}

func (f *fakeDb) DebitBalance(ctx context.Context, userID, tokenID string, amount int64, counter model.BalanceCounter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("DebitBalance"); err != nil {
		return err
	}
	b, ok := f.balances[userID+"/"+tokenID]
	if !ok || b.Balance < amount {
		return &db.PreconditionFailedError{
			Key:     userID + "/" + tokenID,
			Message: "balance not found or insufficient funds",
		}
	}
	b.Balance -= amount
	f.bumpCounter(b, counter, amount)
	return nil
}

func (f *fakeDb) bumpCounter(b *model.Balance, counter model.BalanceCounter, amount int64) {
	switch counter {
	case model.CounterPurchased:
		b.TotalPurchased += amount
	case model.CounterReceived:
		b.TotalReceived += amount
	case model.CounterSent:
		b.TotalSent += amount
	case model.CounterWithdrawn:
		b.TotalWithdrawn += amount
	}
}

func (f *fakeDb) ReserveBalance(ctx context.Context, userID, tokenID string, amount int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("ReserveBalance"); err != nil {
		return err
	}
	b, ok := f.balances[userID+"/"+tokenID]
	if !ok || b.Balance < amount {
		return &db.PreconditionFailedError{
			Key:     userID + "/" + tokenID,
			Message: "balance not found or insufficient funds",
		}
	}
	b.Balance -= amount
	b.PendingOut += amount
	return nil
}

func (f *fakeDb) ReleaseReservation(ctx context.Context, userID, tokenID string, amount int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("ReleaseReservation"); err != nil {
		return err
	}
	b, ok := f.balances[userID+"/"+tokenID]
	if !ok || b.PendingOut < amount {
		return &db.PreconditionFailedError{
			Key:     userID + "/" + tokenID,
			Message: "no matching reservation to release",
		}
	}
	b.PendingOut -= amount
	b.Balance += amount
	return nil
}

func (f *fakeDb) FinalizeReservation(ctx context.Context, userID, tokenID string, amount int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("FinalizeReservation"); err != nil {
		return err
	}
	b, ok := f.balances[userID+"/"+tokenID]
	if !ok || b.PendingOut < amount {
		return &db.PreconditionFailedError{
			Key:     userID + "/" + tokenID,
			Message: "no matching reservation to finalize",
		}
	}
	b.PendingOut -= amount
	b.TotalWithdrawn += amount
	return nil
}

func (f *fakeDb) ListBalancesByToken(ctx context.Context, tokenID string) ([]model.Balance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Balance
	for _, b := range f.balances {
		if b.TokenID == tokenID {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (f *fakeDb) ReplayBalance(ctx context.Context, userID, tokenID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var running int64
	for _, tx := range f.transactions {
		if tx.UserID != userID || tx.TokenID != tokenID || tx.Status != types.TxConfirmed {
			continue
		}
		switch {
		case tx.Type.Credits():
			running += tx.Amount
		case tx.Type.Debits():
			running -= tx.Amount
		}
	}
	return running, nil
}

func (f *fakeDb) SaveTransaction(ctx context.Context, tx *model.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("SaveTransaction"); err != nil {
		return err
	}
	if tx.DistributionID != "" {
		for _, existing := range f.transactions {
			if existing.DistributionID == tx.DistributionID && existing.UserID == tx.UserID {
				return &db.DuplicateKeyError{
					Key:     tx.DistributionID + "/" + tx.UserID,
					Message: "dividend already paid for this distribution",
				}
			}
		}
	}
	copied := *tx
	f.transactions = append(f.transactions, &copied)
	return nil
}

func (f *fakeDb) GetTransactionByID(ctx context.Context, txID string) (*model.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tx := range f.transactions {
		if tx.ID == txID {
			copied := *tx
			return &copied, nil
		}
	}
	return nil, &db.NotFoundError{Key: txID, Message: "transaction not found"}
}

func (f *fakeDb) GetTransactions(ctx context.Context, filter model.TransactionFilter, limit, offset int64) ([]model.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Transaction
	for _, tx := range f.transactions {
		if filter.UserID != "" && tx.UserID != filter.UserID {
			continue
		}
		if filter.TokenID != "" && tx.TokenID != filter.TokenID {
			continue
		}
		if filter.Type != "" && tx.Type != filter.Type {
			continue
		}
		if filter.Status != "" && tx.Status != filter.Status {
			continue
		}
		out = append(out, *tx)
	}
	if offset > int64(len(out)) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeDb) UpdateTransactionStatus(ctx context.Context, txID string, qualified []types.TransactionStatus, newStatus types.TransactionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tx := range f.transactions {
		if tx.ID != txID {
			continue
		}
		for _, q := range qualified {
			if tx.Status == q {
				tx.Status = newStatus
				return nil
			}
		}
		return &db.NotFoundError{
			Key:     txID,
			Message: "transaction not found or current status is not qualified",
		}
	}
	return &db.NotFoundError{Key: txID, Message: "transaction not found"}
}

func (f *fakeDb) GetExecutedDistributionIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]struct{})
	for _, tx := range f.transactions {
		if tx.UserID == userID && tx.DistributionID != "" {
			out[tx.DistributionID] = struct{}{}
		}
	}
	return out, nil
}

func (f *fakeDb) SaveNewStake(ctx context.Context, stake *model.Stake) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("SaveNewStake"); err != nil {
		return err
	}
	if _, ok := f.stakes[stake.ID]; ok {
		return &db.DuplicateKeyError{Key: stake.ID, Message: "stake already exists"}
	}
	copied := *stake
	f.stakes[stake.ID] = &copied
	return nil
}

func (f *fakeDb) GetStakeByID(ctx context.Context, stakeID string) (*model.Stake, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stake, ok := f.stakes[stakeID]
	if !ok {
		return nil, &db.NotFoundError{Key: stakeID, Message: "stake not found"}
	}
	copied := *stake
	return &copied, nil
}

func (f *fakeDb) UpdateStakeState(ctx context.Context, stakeID string, qualified []types.StakeState, newState types.StakeState, stampField string, stampAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("UpdateStakeState"); err != nil {
		return err
	}
	stake, ok := f.stakes[stakeID]
	if !ok {
		return &db.NotFoundError{Key: stakeID, Message: "stake not found or current state is not qualified"}
	}
	allowed := false
	for _, q := range qualified {
		if stake.State == q {
			allowed = true
			break
		}
	}
	if !allowed {
		return &db.NotFoundError{Key: stakeID, Message: "stake not found or current state is not qualified"}
	}
	stake.State = newState
	switch stampField {
	case "confirmed_at":
		at := stampAt
		stake.ConfirmedAt = &at
	case "unstaked_at":
		at := stampAt
		stake.UnstakedAt = &at
	}
	return nil
}

func (f *fakeDb) RevertStakeState(ctx context.Context, stakeID string, from, to types.StakeState, clearField string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("RevertStakeState"); err != nil {
		return err
	}
	stake, ok := f.stakes[stakeID]
	if !ok || stake.State != from {
		return &db.NotFoundError{Key: stakeID, Message: "stake not found or current state is not qualified"}
	}
	stake.State = to
	switch clearField {
	case "confirmed_at":
		stake.ConfirmedAt = nil
	case "unstaked_at":
		stake.UnstakedAt = nil
	}
	return nil
}

func (f *fakeDb) MarkStakeSubState(ctx context.Context, stakeID string, subState types.StakeSubState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stake, ok := f.stakes[stakeID]
	if !ok {
		return &db.NotFoundError{Key: stakeID, Message: "stake not found"}
	}
	stake.SubState = subState.String()
	return nil
}

func (f *fakeDb) AccrueDividends(ctx context.Context, stakeID string, amount int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("AccrueDividends"); err != nil {
		return err
	}
	stake, ok := f.stakes[stakeID]
	if !ok || stake.State != types.StakeConfirmed {
		return &db.NotFoundError{Key: stakeID, Message: "stake not found or current state is not qualified"}
	}
	stake.DividendsAccumulated += amount
	return nil
}

func (f *fakeDb) GetStakesByUser(ctx context.Context, userID string) ([]model.Stake, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Stake
	for _, stake := range f.stakes {
		if stake.UserID == userID {
			out = append(out, *stake)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeDb) GetConfirmedStakes(ctx context.Context, tokenID string) ([]model.Stake, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Stake
	for _, stake := range f.stakes {
		if stake.TokenID == tokenID && stake.State == types.StakeConfirmed {
			out = append(out, *stake)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeDb) FindExpiredPendingStakes(ctx context.Context, now time.Time, limit int64) ([]model.Stake, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Stake
	for _, stake := range f.stakes {
		if stake.State != types.StakePendingDeposit {
			continue
		}
		if stake.SubState == types.SubStateDepositExpired.String() {
			continue
		}
		if stake.DepositDeadline.Before(now) {
			out = append(out, *stake)
		}
		if limit > 0 && int64(len(out)) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeDb) UpsertCapTableEntry(ctx context.Context, entry *model.CapTableEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("UpsertCapTableEntry"); err != nil {
		return err
	}
	copied := *entry
	if existing, ok := f.capTable[entry.StakeID]; ok {
		copied.LifetimeDividends = existing.LifetimeDividends
		copied.LastDividendAmount = existing.LastDividendAmount
	}
	f.capTable[entry.StakeID] = &copied
	return nil
}

func (f *fakeDb) RemoveCapTableEntry(ctx context.Context, stakeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("RemoveCapTableEntry"); err != nil {
		return err
	}
	entry, ok := f.capTable[stakeID]
	if !ok {
		return &db.NotFoundError{Key: stakeID, Message: "cap table entry not found"}
	}
	entry.Status = model.CapEntryRemoved
	return nil
}

func (f *fakeDb) RestoreCapTableEntry(ctx context.Context, stakeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.capTable[stakeID]
	if !ok {
		return &db.NotFoundError{Key: stakeID, Message: "cap table entry not found"}
	}
	entry.Status = model.CapEntryActive
	return nil
}

func (f *fakeDb) GetActiveCapTable(ctx context.Context, tokenID string) ([]model.CapTableEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.CapTableEntry
	for _, entry := range f.capTable {
		if entry.TokenID == tokenID && entry.Status == model.CapEntryActive {
			out = append(out, *entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StakeID < out[j].StakeID })
	return out, nil
}

func (f *fakeDb) UpdateCapTablePercentage(ctx context.Context, stakeID, percentage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.capTable[stakeID]
	if !ok {
		return &db.NotFoundError{Key: stakeID, Message: "cap table entry not found"}
	}
	entry.PercentageOfTotal = percentage
	return nil
}

func (f *fakeDb) RecordCapTableDividend(ctx context.Context, stakeID string, amount int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.capTable[stakeID]
	if !ok {
		return &db.NotFoundError{Key: stakeID, Message: "cap table entry not found"}
	}
	entry.LastDividendAmount = amount
	entry.LifetimeDividends += amount
	return nil
}

func (f *fakeDb) SaveDistribution(ctx context.Context, dist *model.DividendDistribution) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("SaveDistribution"); err != nil {
		return err
	}
	if _, ok := f.distributions[dist.ID]; ok {
		return &db.DuplicateKeyError{Key: dist.ID, Message: "distribution already exists"}
	}
	copied := *dist
	f.distributions[dist.ID] = &copied
	return nil
}

func (f *fakeDb) GetDistributionByID(ctx context.Context, distributionID string) (*model.DividendDistribution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	dist, ok := f.distributions[distributionID]
	if !ok {
		return nil, &db.NotFoundError{Key: distributionID, Message: "distribution not found"}
	}
	copied := *dist
	return &copied, nil
}

func (f *fakeDb) GetDistributionsForUser(ctx context.Context, userID string) ([]model.DividendDistribution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.DividendDistribution
	for _, dist := range f.distributions {
		for _, payment := range dist.Payments {
			if payment.UserID == userID {
				out = append(out, *dist)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeDb) SaveWithdrawalRequest(ctx context.Context, req *model.WithdrawalRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("SaveWithdrawalRequest"); err != nil {
		return err
	}
	if _, ok := f.withdrawals[req.ID]; ok {
		return &db.DuplicateKeyError{Key: req.ID, Message: "withdrawal request already exists"}
	}
	copied := *req
	f.withdrawals[req.ID] = &copied
	return nil
}

func (f *fakeDb) GetWithdrawalRequest(ctx context.Context, requestID string) (*model.WithdrawalRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.withdrawals[requestID]
	if !ok {
		return nil, &db.NotFoundError{Key: requestID, Message: "withdrawal request not found"}
	}
	copied := *req
	return &copied, nil
}

func (f *fakeDb) UpdateWithdrawalState(ctx context.Context, requestID string, qualified []types.WithdrawalState, newState types.WithdrawalState, reason, txID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("UpdateWithdrawalState"); err != nil {
		return err
	}
	req, ok := f.withdrawals[requestID]
	if !ok {
		return &db.NotFoundError{Key: requestID, Message: "withdrawal request not found or current state is not qualified"}
	}
	allowed := false
	for _, q := range qualified {
		if req.State == q {
			allowed = true
			break
		}
	}
	if !allowed {
		return &db.NotFoundError{Key: requestID, Message: "withdrawal request not found or current state is not qualified"}
	}
	req.State = newState
	if reason != "" {
		req.Reason = reason
	}
	if txID != "" {
		req.TxID = txID
	}
	return nil
}

func (f *fakeDb) GetWithdrawalsByUser(ctx context.Context, userID string) ([]model.WithdrawalRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.WithdrawalRequest
	for _, req := range f.withdrawals {
		if req.UserID == userID {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (f *fakeDb) UpsertWallet(ctx context.Context, wallet *model.Wallet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("UpsertWallet"); err != nil {
		return err
	}
	copied := *wallet
	f.wallets[wallet.UserID] = &copied
	return nil
}

func (f *fakeDb) GetWalletByUserID(ctx context.Context, userID string) (*model.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wallet, ok := f.wallets[userID]
	if !ok {
		return nil, &db.NotFoundError{Key: userID, Message: "wallet not found"}
	}
	copied := *wallet
	return &copied, nil
}
