package usecase_test

import (
	"context"
	"sync"
	"time"

	"github.com/seabird-lab/beacon/pkg/domain/interfaces"
	"github.com/seabird-lab/beacon/pkg/domain/model"
	"github.com/seabird-lab/beacon/pkg/domain/types"
	"github.com/seabird-lab/beacon/pkg/repository/memory"
)

// countingRepo wraps the in-memory repository and records every call so
// tests can assert which remote operations a use case performed.
type countingRepo struct {
	inner interfaces.Repository

	mu         sync.Mutex
	reports    []model.PresenceRecord
	getManies  int
	creates    int
	subscribes int
}

func newCountingRepo() *countingRepo {
	return &countingRepo{inner: memory.New()}
}

func (r *countingRepo) Presence() interfaces.PresenceRepository {
	return &countingPresence{repo: r}
}

func (r *countingRepo) Attention() interfaces.AttentionRepository {
	return &countingAttention{repo: r}
}

func (r *countingRepo) Close() error {
	return r.inner.Close()
}

func (r *countingRepo) recordedReports() []model.PresenceRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.PresenceRecord{}, r.reports...)
}

func (r *countingRepo) remoteCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reports) + r.getManies + r.creates + r.subscribes
}

type countingPresence struct {
	repo *countingRepo
}

func (p *countingPresence) Report(ctx context.Context, rec *model.PresenceRecord) error {
	p.repo.mu.Lock()
	p.repo.reports = append(p.repo.reports, *rec)
	p.repo.mu.Unlock()
	return p.repo.inner.Presence().Report(ctx, rec)
}

func (p *countingPresence) GetMany(ctx context.Context, ids []types.UserID) (map[types.UserID]model.PresenceRecord, error) {
	p.repo.mu.Lock()
	p.repo.getManies++
	p.repo.mu.Unlock()
	return p.repo.inner.Presence().GetMany(ctx, ids)
}

func (p *countingPresence) Watch(ctx context.Context, ids []types.UserID) (interfaces.PresenceSubscription, error) {
	return p.repo.inner.Presence().Watch(ctx, ids)
}

type countingAttention struct {
	repo *countingRepo
}

func (a *countingAttention) Create(ctx context.Context, ev *model.AttentionEvent) (*model.AttentionEvent, error) {
	a.repo.mu.Lock()
	a.repo.creates++
	a.repo.mu.Unlock()
	return a.repo.inner.Attention().Create(ctx, ev)
}

func (a *countingAttention) PurgeBefore(ctx context.Context, cutoff time.Time) (int, error) {
	return a.repo.inner.Attention().PurgeBefore(ctx, cutoff)
}

func (a *countingAttention) Subscribe(ctx context.Context, receiverID types.UserID) (interfaces.AttentionSubscription, error) {
	a.repo.mu.Lock()
	a.repo.subscribes++
	a.repo.mu.Unlock()
	return a.repo.inner.Attention().Subscribe(ctx, receiverID)
}

// eventually polls cond until it holds or the deadline passes.
func eventually(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
