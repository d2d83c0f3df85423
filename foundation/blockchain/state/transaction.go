package state

import (
	"time"

	"github.com/simchain/simchain/foundation/blockchain/database"
	"github.com/simchain/simchain/foundation/blockchain/validate"
)

// SubmitWalletTransaction accepts a signed transaction from a wallet for
// inclusion into the chain. The transaction is validated against the current
// state, admitted into the mempool and a mining cycle is signaled, so an
// accepted transaction is sealed into a block almost immediately.
func (s *State) SubmitWalletTransaction(signedTx database.SignedTx) error {
	s.evHandler("state: SubmitWalletTransaction: started: tx[%s]", signedTx)

	s.mu.Lock()
	if err := s.checkMutable(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	if _, err := validate.Check(signedTx, s.genesis, s.db); err != nil {
		kind, ok := validate.ErrorKind(err)
		if !ok || kind != validate.KindNonceMismatch {
			return err
		}

		// Only the settled nonce check failed. The nonce may still be good
		// against the pending view: extending the sender's run of pending
		// nonces, or replacing a pending transaction by fee. The economic
		// checks skipped by the early nonce failure must still pass.
		fromID, ferr := signedTx.FromAccount()
		if ferr != nil || !s.nonceAcceptable(fromID, signedTx.Nonce) {
			return err
		}
		if _, err := validate.CheckRelaxedNonce(signedTx, s.genesis, s.db); err != nil {
			return err
		}
	}

	tx := database.NewBlockTx(signedTx, uint64(s.clock.Now().Unix()))

	n, err := s.mempool.Upsert(tx)
	if err != nil {
		return err
	}
	s.evHandler("state: SubmitWalletTransaction: admitted: tx[%s] pool[%d]", signedTx, n)

	if s.Worker != nil {
		s.Worker.SignalStartMining()
	}

	return nil
}

// nonceAcceptable reports whether the nonce is usable given what the sender
// already has pending: the next nonce after the contiguous pending run, or a
// nonce that is pending and therefore a replacement candidate.
func (s *State) nonceAcceptable(fromID database.AccountID, nonce uint64) bool {
	next := s.db.GetAccount(fromID).Nonce

	for _, pending := range s.mempool.PendingForAccount(fromID) {
		if pending.Nonce == nonce {
			return true
		}
		if pending.Nonce == next {
			next++
		}
	}

	return nonce == next
}

// EvictStaleTransactions removes every pending transaction older than the
// specified age and returns how many were dropped.
func (s *State) EvictStaleTransactions(maxAge time.Duration) int {
	cutoff := uint64(s.clock.Now().Add(-maxAge).Unix())
	evicted := s.mempool.EvictOlderThan(cutoff)

	for _, tx := range evicted {
		s.evHandler("state: EvictStaleTransactions: evicted: tx[%s]", tx)
	}

	return len(evicted)
}
