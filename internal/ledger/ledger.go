// Package ledger keeps the ordered set of soft-deleted contracts awaiting
// restore or purge.
//
// The in-memory structure is a doubly linked list indexed by record id, so
// append, remove and upsert are O(1) and the chain cannot form a cycle. The
// persisted form keeps explicit head/tail/next/prev identifiers; it is
// validated when loaded, since it may have been written by something else.
//
// Expected conditions (unknown id, storage failures, remote failures) are
// logged and absorbed. No ledger operation returns them to the caller.
package ledger

import (
	"container/list"
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"contract-ledger/internal/event"
	"contract-ledger/internal/metrics"
	"contract-ledger/internal/model"
)

// ActiveCollection receives restored records. Append must replace an entry
// with the same id rather than add a second one.
type ActiveCollection interface {
	Append(ctx context.Context, record model.ContractRecord) error
}

// RemoteDeleter mirrors a purge to the backend that owns the contract.
type RemoteDeleter interface {
	DeleteContract(ctx context.Context, id string) error
}

type Options struct {
	Remote    RemoteDeleter
	Bus       event.Bus
	Metrics   *metrics.Collector
	Logger    *slog.Logger
	Retention time.Duration
	Now       func() time.Time
}

type Ledger struct {
	mu    sync.Mutex
	order *list.List
	index map[string]*list.Element

	store     *NodeStore
	remote    RemoteDeleter
	bus       event.Bus
	metrics   *metrics.Collector
	logger    *slog.Logger
	retention time.Duration
	now       func() time.Time
}

// New loads the ledger from store. Corrupt or partial persisted state is
// repaired and written back.
func New(ctx context.Context, store *NodeStore, opts Options) *Ledger {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	l := &Ledger{
		order:     list.New(),
		index:     make(map[string]*list.Element),
		store:     store,
		remote:    opts.Remote,
		bus:       opts.Bus,
		metrics:   opts.Metrics,
		logger:    logger.With("component", "ledger"),
		retention: opts.Retention,
		now:       now,
	}

	nodes := store.LoadAll(ctx)
	head := store.Head(ctx)
	tail := store.Tail(ctx)

	records, intact := walkChain(nodes, head)
	for _, record := range records {
		l.index[record.ID] = l.order.PushBack(record)
	}

	if !intact || tail != l.tailID() {
		l.logger.Warn("persisted ledger chain repaired", "nodes", len(nodes), "head", head, "tail", tail)
		l.persistLocked(ctx)
	}

	l.metrics.SetLedgerSize(l.order.Len())
	l.logger.Info("ledger loaded", "records", l.order.Len())
	return l
}

// walkChain linearizes persisted nodes from head. The walk stops at a terminal
// or dangling link, at a revisited id, or once it has produced len(nodes)
// records. Nodes the walk never reached follow in deletion order. intact is
// false when any repair was needed.
func walkChain(nodes map[string]model.LedgerNode, head string) ([]model.ContractRecord, bool) {
	records := make([]model.ContractRecord, 0, len(nodes))
	seen := make(map[string]struct{}, len(nodes))
	intact := true

	current := head
	for current != "" && len(records) < len(nodes) {
		node, ok := nodes[current]
		if !ok {
			intact = false
			break
		}
		if _, dup := seen[current]; dup {
			intact = false
			break
		}
		seen[current] = struct{}{}

		record := node.Record
		record.ID = current
		records = append(records, record)
		current = node.Next
	}

	if current != "" && len(records) == len(nodes) {
		// chain points past the last node
		intact = false
	}

	if len(records) == len(nodes) {
		return records, intact
	}

	orphans := make([]model.ContractRecord, 0, len(nodes)-len(records))
	for id, node := range nodes {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		record := node.Record
		record.ID = id
		orphans = append(orphans, record)
	}

	sort.Slice(orphans, func(i, j int) bool {
		if orphans[i].DeletedAt.Equal(orphans[j].DeletedAt) {
			return orphans[i].ID < orphans[j].ID
		}
		return orphans[i].DeletedAt.Before(orphans[j].DeletedAt)
	})

	return append(records, orphans...), false
}

// Append records a deletion. See Upsert.
func (l *Ledger) Append(ctx context.Context, record model.ContractRecord) {
	l.Upsert(ctx, record)
}

// Upsert appends each record at the tail, or replaces its data in place when
// the id is already present. Records without an id are skipped. The batch is
// persisted and announced once. It returns the number of records applied.
func (l *Ledger) Upsert(ctx context.Context, records ...model.ContractRecord) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	applied := 0
	lastID := ""
	for _, record := range records {
		if record.ID == "" {
			continue
		}
		if record.DeletedAt.IsZero() {
			record.DeletedAt = l.now().UTC()
		}

		if el, ok := l.index[record.ID]; ok {
			el.Value = record
			l.metrics.Operation("append", "replaced")
		} else {
			l.index[record.ID] = l.order.PushBack(record)
			l.metrics.Operation("append", "inserted")
		}
		applied++
		lastID = record.ID
	}

	if applied == 0 {
		return 0
	}

	l.persistLocked(ctx)
	subject := ""
	if applied == 1 {
		subject = lastID
	}
	l.publishLocked(event.TypeLedgerAppended, subject)
	return applied
}

// Restore moves the record out of the ledger and into active. Unknown ids are
// a no-op. The record is written to active before it is unlinked, so a failed
// write leaves the ledger untouched and the record is never lost.
func (l *Ledger) Restore(ctx context.Context, id string, active ActiveCollection) (model.ContractRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	el, ok := l.index[id]
	if !ok {
		l.metrics.Operation("restore", "not_found")
		return model.ContractRecord{}, false
	}
	record := el.Value.(model.ContractRecord)

	if err := active.Append(ctx, record); err != nil {
		l.logger.Warn("restore aborted: active collection rejected record", "id", id, "error", err)
		l.metrics.Operation("restore", "active_failed")
		return model.ContractRecord{}, false
	}

	l.unlinkLocked(el)
	l.persistLocked(ctx)
	l.publishLocked(event.TypeLedgerRestored, id)
	l.metrics.Operation("restore", "ok")
	return record, true
}

// Purge removes the record for good. Local removal always wins; the remote
// delete runs afterwards, detached from ctx cancellation, and its failure is
// only logged.
func (l *Ledger) Purge(ctx context.Context, id string) bool {
	l.mu.Lock()
	el, ok := l.index[id]
	if !ok {
		l.mu.Unlock()
		l.metrics.Operation("purge", "not_found")
		return false
	}
	l.unlinkLocked(el)
	l.persistLocked(ctx)
	l.publishLocked(event.TypeLedgerPurged, id)
	l.mu.Unlock()

	l.metrics.Operation("purge", "ok")

	if l.remote != nil {
		if err := l.remote.DeleteContract(context.WithoutCancel(ctx), id); err != nil {
			l.logger.Warn("remote purge failed; local removal kept", "id", id, "error", err)
			l.metrics.RemoteFailure()
		}
	}

	return true
}

// Sweep drops records deleted longer ago than the retention window. It does
// nothing when no retention is configured.
func (l *Ledger) Sweep(ctx context.Context) int {
	if l.retention <= 0 {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.retention)
	removed := 0
	for el := l.order.Front(); el != nil; {
		next := el.Next()
		if el.Value.(model.ContractRecord).DeletedAt.Before(cutoff) {
			l.unlinkLocked(el)
			removed++
		}
		el = next
	}

	if removed > 0 {
		l.persistLocked(ctx)
		l.publishLocked(event.TypeLedgerSwept, "")
		l.logger.Info("retention sweep removed records", "removed", removed, "cutoff", cutoff)
	}
	return removed
}

// StartSweeper runs Sweep on every tick until ctx is done.
func (l *Ledger) StartSweeper(ctx context.Context, interval time.Duration) {
	if l.retention <= 0 || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	l.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep(ctx)
		}
	}
}

// Linearize returns the records from head to tail, oldest deletion first.
func (l *Ledger) Linearize() []model.ContractRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.linearizeLocked()
}

func (l *Ledger) View() model.LedgerView {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.viewLocked()
}

func (l *Ledger) Get(id string) (model.ContractRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	el, ok := l.index[id]
	if !ok {
		return model.ContractRecord{}, false
	}
	return el.Value.(model.ContractRecord), true
}

func (l *Ledger) Head() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.headID()
}

func (l *Ledger) Tail() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tailID()
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.order.Len()
}

func (l *Ledger) headID() string {
	if front := l.order.Front(); front != nil {
		return front.Value.(model.ContractRecord).ID
	}
	return ""
}

func (l *Ledger) tailID() string {
	if back := l.order.Back(); back != nil {
		return back.Value.(model.ContractRecord).ID
	}
	return ""
}

func (l *Ledger) unlinkLocked(el *list.Element) {
	record := l.order.Remove(el).(model.ContractRecord)
	delete(l.index, record.ID)
}

func (l *Ledger) linearizeLocked() []model.ContractRecord {
	records := make([]model.ContractRecord, 0, l.order.Len())
	for el := l.order.Front(); el != nil; el = el.Next() {
		records = append(records, el.Value.(model.ContractRecord))
	}
	return records
}

func (l *Ledger) viewLocked() model.LedgerView {
	items := l.linearizeLocked()
	return model.LedgerView{
		Items: items,
		Head:  l.headID(),
		Tail:  l.tailID(),
		Count: len(items),
	}
}

// persistLocked writes the full chain. Failures leave memory ahead of storage
// until the next successful write.
func (l *Ledger) persistLocked(ctx context.Context) {
	nodes := make(map[string]model.LedgerNode, l.order.Len())
	for el := l.order.Front(); el != nil; el = el.Next() {
		record := el.Value.(model.ContractRecord)
		node := model.LedgerNode{Record: record}
		if next := el.Next(); next != nil {
			node.Next = next.Value.(model.ContractRecord).ID
		}
		if prev := el.Prev(); prev != nil {
			node.Prev = prev.Value.(model.ContractRecord).ID
		}
		nodes[record.ID] = node
	}

	if err := l.store.SaveAll(ctx, nodes); err != nil {
		l.logger.Warn("ledger write failed", "error", err)
		l.metrics.StorageFailure("nodes")
	}
	if err := l.store.SetHead(ctx, l.headID()); err != nil {
		l.logger.Warn("ledger head write failed", "error", err)
		l.metrics.StorageFailure("head")
	}
	if err := l.store.SetTail(ctx, l.tailID()); err != nil {
		l.logger.Warn("ledger tail write failed", "error", err)
		l.metrics.StorageFailure("tail")
	}

	l.metrics.SetLedgerSize(l.order.Len())
}

func (l *Ledger) publishLocked(eventType event.Type, subject string) {
	if l.bus == nil {
		return
	}

	l.bus.Publish(event.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Payload:   l.viewLocked(),
		Timestamp: l.now().UTC().Format(time.RFC3339Nano),
		Subject:   subject,
	})
}
