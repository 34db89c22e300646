package mqpub

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/coregx/mqpub/model"
)

// fakeGateway is an in-memory BrokerGateway for tests. Connectivity is set
// per broker and publish outcomes are controlled through publishFn.
type fakeGateway struct {
	mu           sync.Mutex
	connected    map[string]bool
	publishFn    func(model.Message) error
	published    []model.Message
	deadLettered map[string]uint64
}

func newFakeGateway(brokers ...string) *fakeGateway {
	g := &fakeGateway{
		connected:    make(map[string]bool),
		deadLettered: make(map[string]uint64),
	}
	for _, b := range brokers {
		g.connected[b] = true
	}
	return g
}

func (g *fakeGateway) setConnected(broker string, up bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.connected[broker] = up
}

func (g *fakeGateway) publishedMessages() []model.Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]model.Message, len(g.published))
	copy(out, g.published)
	return out
}

func (g *fakeGateway) Brokers() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	names := make([]string, 0, len(g.connected))
	for name := range g.connected {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (g *fakeGateway) Knows(broker string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.connected[broker]
	return ok
}

func (g *fakeGateway) Connected(broker string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.connected[broker]
}

func (g *fakeGateway) AllConnected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, up := range g.connected {
		if !up {
			return false
		}
	}
	return true
}

func (g *fakeGateway) Publish(_ context.Context, m model.Message) error {
	g.mu.Lock()
	fn := g.publishFn
	g.mu.Unlock()

	if fn != nil {
		if err := fn(m); err != nil {
			return err
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.published = append(g.published, m)
	return nil
}

func (g *fakeGateway) Status(broker string) (model.BrokerStatus, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	up, ok := g.connected[broker]
	if !ok {
		return model.BrokerStatus{}, false
	}
	state := model.ConnDisconnected
	if up {
		state = model.ConnConnected
	}
	return model.BrokerStatus{
		Name:         broker,
		State:        state,
		DeadLettered: g.deadLettered[broker],
	}, true
}

func (g *fakeGateway) Statuses() []model.BrokerStatus {
	statuses := make([]model.BrokerStatus, 0, len(g.connected))
	for _, name := range g.Brokers() {
		if s, ok := g.Status(name); ok {
			statuses = append(statuses, s)
		}
	}
	return statuses
}

func (g *fakeGateway) NoteDeadLettered(broker string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deadLettered[broker]++
}

// fakeOutboxRepository is an in-memory OutboxRepository. Rows are drained in
// created_at then ID order, mirroring the FIFO contract of the SQL adapter.
type fakeOutboxRepository struct {
	mu       sync.Mutex
	rows     map[int64]model.OutboxRow
	nextID   int64
	saveErr  error
	claimErr error
}

func newFakeOutboxRepository() *fakeOutboxRepository {
	return &fakeOutboxRepository{rows: make(map[int64]model.OutboxRow), nextID: 1}
}

func (r *fakeOutboxRepository) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func (r *fakeOutboxRepository) all() []model.OutboxRow {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.OutboxRow, 0, len(r.rows))
	for _, row := range r.rows {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// makeAllDue clears every retry delay and claim lease so the next ClaimDue
// sees the full backlog. Tests use it to fast-forward backoff schedules.
func (r *fakeOutboxRepository) makeAllDue() {
	r.mu.Lock()
	defer r.mu.Unlock()
	past := time.Now().Add(-time.Second)
	for id, row := range r.rows {
		row.NextRetryAt = past
		row.ClaimedUntil.Valid = false
		r.rows[id] = row
	}
}

func (r *fakeOutboxRepository) Load(_ context.Context, id int64) (model.OutboxRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return model.OutboxRow{}, ErrNoData
	}
	return row, nil
}

func (r *fakeOutboxRepository) Save(_ context.Context, m *model.OutboxRow) (*model.OutboxRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return nil, r.saveErr
	}
	if m.ID == 0 {
		m.ID = r.nextID
		r.nextID++
	}
	r.rows[m.ID] = *m
	return m, nil
}

func (r *fakeOutboxRepository) Delete(_ context.Context, m *model.OutboxRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, m.ID)
	return nil
}

func (r *fakeOutboxRepository) ClaimDue(_ context.Context, limit int) ([]model.OutboxRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.claimErr != nil {
		return nil, r.claimErr
	}

	now := time.Now()
	var due []model.OutboxRow
	for _, row := range r.rows {
		if !row.IsDue(now) {
			continue
		}
		if row.ClaimedUntil.Valid && row.ClaimedUntil.Time.After(now) {
			continue
		}
		due = append(due, row)
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].CreatedAt.Equal(due[j].CreatedAt) {
			return due[i].ID < due[j].ID
		}
		return due[i].CreatedAt.Before(due[j].CreatedAt)
	})
	if len(due) > limit {
		due = due[:limit]
	}
	if len(due) == 0 {
		return nil, ErrNoData
	}

	lease := now.Add(30 * time.Second)
	for i := range due {
		due[i].ClaimedUntil.Time = lease
		due[i].ClaimedUntil.Valid = true
		r.rows[due[i].ID] = due[i]
	}
	return due, nil
}

func (r *fakeOutboxRepository) CountPending(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows), nil
}

// fakeDeadLetterRepository is an in-memory DeadLetterRepository.
type fakeDeadLetterRepository struct {
	mu      sync.Mutex
	entries map[int64]model.DeadLetter
	nextID  int64
	saveErr error
}

func newFakeDeadLetterRepository() *fakeDeadLetterRepository {
	return &fakeDeadLetterRepository{entries: make(map[int64]model.DeadLetter), nextID: 1}
}

func (r *fakeDeadLetterRepository) sorted(desc bool) []model.DeadLetter {
	out := make([]model.DeadLetter, 0, len(r.entries))
	for _, dl := range r.entries {
		out = append(out, dl)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DeadLetteredAt.Equal(out[j].DeadLetteredAt) {
			if desc {
				return out[i].ID > out[j].ID
			}
			return out[i].ID < out[j].ID
		}
		if desc {
			return out[i].DeadLetteredAt.After(out[j].DeadLetteredAt)
		}
		return out[i].DeadLetteredAt.Before(out[j].DeadLetteredAt)
	})
	return out
}

func (r *fakeDeadLetterRepository) Load(_ context.Context, id int64) (model.DeadLetter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	dl, ok := r.entries[id]
	if !ok {
		return model.DeadLetter{}, ErrNoData
	}
	return dl, nil
}

func (r *fakeDeadLetterRepository) Save(_ context.Context, m model.DeadLetter) (model.DeadLetter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return model.DeadLetter{}, r.saveErr
	}
	if m.ID == 0 {
		m.ID = r.nextID
		r.nextID++
	}
	r.entries[m.ID] = m
	return m, nil
}

func (r *fakeDeadLetterRepository) Delete(_ context.Context, m model.DeadLetter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, m.ID)
	return nil
}

func (r *fakeDeadLetterRepository) FindRecent(_ context.Context, limit int) ([]model.DeadLetter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.sorted(true)
	if len(out) > limit {
		out = out[:limit]
	}
	if len(out) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}

func (r *fakeDeadLetterRepository) FindForReplay(_ context.Context, filter model.DeadLetterFilter, limit int) ([]model.DeadLetter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.DeadLetter
	for _, dl := range r.sorted(false) {
		if filter.Broker != "" && dl.Broker != filter.Broker {
			continue
		}
		if filter.TopicPrefix != "" && !strings.HasPrefix(dl.Topic, filter.TopicPrefix) {
			continue
		}
		if !filter.Before.IsZero() && !dl.DeadLetteredAt.Before(filter.Before) {
			continue
		}
		out = append(out, dl)
		if len(out) == limit {
			break
		}
	}
	if len(out) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}

func (r *fakeDeadLetterRepository) Count(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries), nil
}

func (r *fakeDeadLetterRepository) PruneOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pruned := 0
	for id, dl := range r.entries {
		if dl.DeadLetteredAt.Before(cutoff) {
			delete(r.entries, id)
			pruned++
		}
	}
	return pruned, nil
}
