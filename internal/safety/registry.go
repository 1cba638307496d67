// Package safety tracks reports, blocks, and mutes. The registry is
// process-wide and shared by every room, so it carries its own lock.
package safety

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Report statuses advance pending → reviewed → resolved and never move
// backwards.
const (
	ReportPending  = "pending"
	ReportReviewed = "reviewed"
	ReportResolved = "resolved"
)

// Report is a user-filed complaint about another entity.
type Report struct {
	ID        string `json:"id"`
	Reporter  string `json:"reporter"`
	Target    string `json:"target"`
	Reason    string `json:"reason"`
	Status    string `json:"status"`
	CreatedMs int64  `json:"createdMs"`
}

type muteRecord struct {
	by        string
	expiresAt time.Time // zero = indefinite
}

// Registry is the process-wide safety store.
type Registry struct {
	mu      sync.RWMutex
	reports map[string]*Report
	blocks  map[string]map[string]struct{} // blocker → set of blocked
	mutes   map[string]muteRecord          // orgID+"/"+target
	now     func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		reports: make(map[string]*Report),
		blocks:  make(map[string]map[string]struct{}),
		mutes:   make(map[string]muteRecord),
		now:     time.Now,
	}
}

// Report files a new report in pending status.
func (r *Registry) Report(reporter, target, reason string) *Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	rep := &Report{
		ID:        "rep_" + uuid.NewString(),
		Reporter:  reporter,
		Target:    target,
		Reason:    reason,
		Status:    ReportPending,
		CreatedMs: r.now().UnixMilli(),
	}
	r.reports[rep.ID] = rep
	return rep
}

// AdvanceReport moves a report one step forward. Returns false for unknown
// ids or already-resolved reports.
func (r *Registry) AdvanceReport(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rep, ok := r.reports[id]
	if !ok {
		return false
	}
	switch rep.Status {
	case ReportPending:
		rep.Status = ReportReviewed
	case ReportReviewed:
		rep.Status = ReportResolved
	default:
		return false
	}
	return true
}

// Block makes IsBlocked(a, b) true. Storage is one-directional.
func (r *Registry) Block(a, b string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.blocks[a]
	if set == nil {
		set = make(map[string]struct{}, 1)
		r.blocks[a] = set
	}
	set[b] = struct{}{}
}

// Unblock removes a one-directional block.
func (r *Registry) Unblock(a, b string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if set := r.blocks[a]; set != nil {
		delete(set, b)
		if len(set) == 0 {
			delete(r.blocks, a)
		}
	}
}

// IsBlocked reports whether a has blocked b.
func (r *Registry) IsBlocked(a, b string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.blocks[a][b]
	return ok
}

// IsBlockedEitherWay reports whether either side has blocked the other.
// Chat visibility uses this: a blocked pair sees nothing from each other.
func (r *Registry) IsBlockedEitherWay(a, b string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.blocks[a][b]; ok {
		return true
	}
	_, ok := r.blocks[b][a]
	return ok
}

// Mute silences target within org. A zero duration mutes indefinitely.
// Re-muting the same (org, target) replaces the prior record.
func (r *Registry) Mute(orgID, target, by string, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := muteRecord{by: by}
	if duration > 0 {
		rec.expiresAt = r.now().Add(duration)
	}
	r.mutes[orgID+"/"+target] = rec
}

// Unmute lifts a mute early.
func (r *Registry) Unmute(orgID, target string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.mutes, orgID+"/"+target)
}

// IsMuted reports whether target is currently muted within org. Expired
// records count as unmuted and are dropped lazily.
func (r *Registry) IsMuted(orgID, target string) bool {
	key := orgID + "/" + target
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.mutes[key]
	if !ok {
		return false
	}
	if !rec.expiresAt.IsZero() && !r.now().Before(rec.expiresAt) {
		delete(r.mutes, key)
		return false
	}
	return true
}
