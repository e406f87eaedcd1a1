package db

import (
	"sync"
	"time"
)

// table keeps records of one kind in insertion order. Ids start at 1 and are
// never handed out twice, even after the record is deleted.
type table[T any] struct {
	nextID int64
	rows   map[int64]T
	order  []int64
}

func newTable[T any]() *table[T] {
	return &table[T]{nextID: 1, rows: make(map[int64]T)}
}

func (t *table[T]) insert(row T) int64 {
	id := t.nextID
	t.nextID++
	t.rows[id] = row
	t.order = append(t.order, id)
	return id
}

func (t *table[T]) get(id int64) (T, bool) {
	row, ok := t.rows[id]
	return row, ok
}

func (t *table[T]) list() []T {
	out := make([]T, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.rows[id])
	}
	return out
}

func (t *table[T]) remove(id int64) bool {
	if _, ok := t.rows[id]; !ok {
		return false
	}
	delete(t.rows, id)
	for i, existing := range t.order {
		if existing == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

// Repository is the process-lifetime entity store. It owns the canonical
// Account, Farm, Log and Stat records and hands out copies. It does not
// check references between entities; callers own that.
type Repository struct {
	mu       sync.RWMutex
	accounts *table[Account]
	farms    *table[Farm]
	logs     *table[Log]
	stat     Stat
	nowFn    func() time.Time
}

func NewRepository() *Repository {
	return &Repository{
		accounts: newTable[Account](),
		farms:    newTable[Farm](),
		logs:     newTable[Log](),
		nowFn:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source used for store-assigned timestamps.
func (r *Repository) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nowFn = now
}

func (r *Repository) Now() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nowFn()
}

// Account operations
func (r *Repository) CreateAccount(a Account) Account {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a.CreatedAt.IsZero() {
		a.CreatedAt = r.nowFn()
	}
	a.ID = r.accounts.nextID
	r.accounts.insert(a)
	return a
}

func (r *Repository) GetAccount(id int64) (Account, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.accounts.get(id)
}

func (r *Repository) ListAccounts() []Account {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.accounts.list()
}

func (r *Repository) UpdateAccount(id int64, patch AccountPatch) (Account, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.accounts.get(id)
	if !ok {
		return Account{}, false
	}
	patch.apply(&current)
	r.accounts.rows[id] = current
	return current, true
}

func (r *Repository) DeleteAccount(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.accounts.remove(id)
}

// Farm operations
func (r *Repository) CreateFarm(f Farm) Farm {
	r.mu.Lock()
	defer r.mu.Unlock()

	f.ID = r.farms.nextID
	r.farms.insert(f)
	return f
}

func (r *Repository) GetFarm(id int64) (Farm, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.farms.get(id)
}

func (r *Repository) ListFarms() []Farm {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.farms.list()
}

func (r *Repository) ListFarmsByAccount(accountID int64) []Farm {
	r.mu.RLock()
	defer r.mu.RUnlock()

	farms := []Farm{}
	for _, id := range r.farms.order {
		if f := r.farms.rows[id]; f.AccountID == accountID {
			farms = append(farms, f)
		}
	}
	return farms
}

func (r *Repository) CountFarms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.farms.rows)
}

func (r *Repository) UpdateFarm(id int64, patch FarmPatch) (Farm, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.farms.get(id)
	if !ok {
		return Farm{}, false
	}
	patch.apply(&current)
	r.farms.rows[id] = current
	return current, true
}

func (r *Repository) DeleteFarm(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.farms.remove(id)
}

// Log operations. Logs have no update path.
func (r *Repository) CreateLog(l Log) Log {
	r.mu.Lock()
	defer r.mu.Unlock()

	l.ID = r.logs.nextID
	l.CreatedAt = r.nowFn()
	r.logs.insert(l)
	return l
}

func (r *Repository) GetLog(id int64) (Log, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.logs.get(id)
}

// ListLogs returns every retained log, oldest first.
func (r *Repository) ListLogs() []Log {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.logs.list()
}

func (r *Repository) CountLogs() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.logs.order)
}

func (r *Repository) DeleteLog(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.logs.remove(id)
}

// TrimLogs evicts the oldest logs until at most keep remain and returns how
// many were removed.
func (r *Repository) TrimLogs(keep int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.trimLogs(keep)
}

// AppendLog inserts l and trims to keep entries under one lock, so readers
// never observe more than keep logs. It returns the stored log and how many
// old entries were evicted.
func (r *Repository) AppendLog(l Log, keep int) (Log, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l.ID = r.logs.nextID
	l.CreatedAt = r.nowFn()
	r.logs.insert(l)
	return l, r.trimLogs(keep)
}

func (r *Repository) trimLogs(keep int) int {
	excess := len(r.logs.order) - keep
	if excess <= 0 {
		return 0
	}
	for _, id := range r.logs.order[:excess] {
		delete(r.logs.rows, id)
	}
	r.logs.order = append([]int64(nil), r.logs.order[excess:]...)
	return excess
}

// Stat operations
func (r *Repository) GetStat() Stat {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stat
}

func (r *Repository) UpdateStat(patch StatPatch) Stat {
	r.mu.Lock()
	defer r.mu.Unlock()

	patch.apply(&r.stat)
	return r.stat
}

// AdjustStat applies fn to the stat record under the store lock.
func (r *Repository) AdjustStat(fn func(*Stat)) Stat {
	r.mu.Lock()
	defer r.mu.Unlock()

	fn(&r.stat)
	return r.stat
}
