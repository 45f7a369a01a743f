package service

import (
	"container/list"
	"context"
	"sync"

	"github.com/eerriikk-pro/sius-parse/internal/domain/dedupe"
	"github.com/eerriikk-pro/sius-parse/internal/domain/model"
)

// jobRegistry remembers the latest state of recent import jobs, forgetting
// the oldest once max entries are held. Failed jobs release their checksum
// so the same content can be uploaded again.
type jobRegistry struct {
	mu      sync.Mutex
	max     int
	jobs    map[string]*list.Element
	order   *list.List
	deduper dedupe.Deduper
}

func newJobRegistry(max int, deduper dedupe.Deduper) *jobRegistry {
	return &jobRegistry{
		max:     max,
		jobs:    make(map[string]*list.Element),
		order:   list.New(),
		deduper: deduper,
	}
}

func (r *jobRegistry) put(job model.ImportJob) {
	job.Content = nil

	r.mu.Lock()
	defer r.mu.Unlock()
	if el, ok := r.jobs[job.ID]; ok {
		el.Value = job
		return
	}
	if r.max > 0 && r.order.Len() >= r.max {
		oldest := r.order.Back()
		r.order.Remove(oldest)
		delete(r.jobs, oldest.Value.(model.ImportJob).ID)
	}
	r.jobs[job.ID] = r.order.PushFront(job)
}

func (r *jobRegistry) get(id string) (model.ImportJob, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	el, ok := r.jobs[id]
	if !ok {
		return model.ImportJob{}, false
	}
	return el.Value.(model.ImportJob), true
}

func (r *jobRegistry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if el, ok := r.jobs[id]; ok {
		r.order.Remove(el)
		delete(r.jobs, id)
	}
}

// Finish implements worker.Reporter.
func (r *jobRegistry) Finish(ctx context.Context, job model.ImportJob) {
	if job.Status == model.JobFailed && r.deduper != nil {
		r.deduper.Unrecord(ctx, job.Checksum)
	}
	r.put(job)
}
