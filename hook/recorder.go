package hook

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/veldtmc/econledger/id"
	"github.com/veldtmc/econledger/transaction"
)

// DefaultRecorderLimit caps retained receipts when no limit is given.
const DefaultRecorderLimit = 1024

// Receipt is one recorded transaction outcome.
type Receipt struct {
	ID     id.ID               `json:"id"`
	Result *transaction.Result `json:"result"`
}

// Recorder is a hook that keeps an in-memory receipt history, newest
// first. It retains at most limit receipts; older ones fall off.
type Recorder struct {
	mu        sync.RWMutex
	limit     int
	receipts  []*Receipt
	byAccount map[uuid.UUID][]*Receipt
}

var (
	_ OnTransactionProcessed = (*Recorder)(nil)
	_ OnTransactionFailed    = (*Recorder)(nil)
)

// NewRecorder creates a recorder retaining up to limit receipts. A
// non-positive limit uses DefaultRecorderLimit.
func NewRecorder(limit int) *Recorder {
	if limit <= 0 {
		limit = DefaultRecorderLimit
	}
	return &Recorder{
		limit:     limit,
		byAccount: make(map[uuid.UUID][]*Receipt),
	}
}

func (r *Recorder) Name() string { return "recorder" }

// OnTransactionProcessed records a successful transaction under every
// account its legs touched.
func (r *Recorder) OnTransactionProcessed(_ context.Context, result *transaction.Result) error {
	r.record(result)
	return nil
}

// OnTransactionFailed records the failure in the global history only;
// failed results carry no leg balances to attribute.
func (r *Recorder) OnTransactionFailed(_ context.Context, result *transaction.Result) error {
	r.record(result)
	return nil
}

func (r *Recorder) record(result *transaction.Result) {
	receipt := &Receipt{ID: id.NewReceiptID(), Result: result}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.receipts = append(r.receipts, receipt)
	if len(r.receipts) > r.limit {
		r.evict(r.receipts[0])
		r.receipts = r.receipts[1:]
	}

	seen := make(map[uuid.UUID]struct{}, len(result.Balances))
	for _, b := range result.Balances {
		if _, dup := seen[b.Account]; dup {
			continue
		}
		seen[b.Account] = struct{}{}
		r.byAccount[b.Account] = append(r.byAccount[b.Account], receipt)
	}
}

func (r *Recorder) evict(oldest *Receipt) {
	for _, b := range oldest.Result.Balances {
		list := r.byAccount[b.Account]
		for i, rec := range list {
			if rec == oldest {
				r.byAccount[b.Account] = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(r.byAccount[b.Account]) == 0 {
			delete(r.byAccount, b.Account)
		}
	}
}

// History returns the receipts touching the account, newest first.
func (r *Recorder) History(acct uuid.UUID) []*Receipt {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.byAccount[acct]
	result := make([]*Receipt, len(list))
	for i, rec := range list {
		result[len(list)-1-i] = rec
	}
	return result
}

// All returns every retained receipt, newest first, including failures.
func (r *Recorder) All() []*Receipt {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Receipt, len(r.receipts))
	for i, rec := range r.receipts {
		result[len(r.receipts)-1-i] = rec
	}
	return result
}
