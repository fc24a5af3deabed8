package api

import (
	"sync"
	"time"

	"github.com/emandor/textconv/internal/export"
	"github.com/emandor/textconv/internal/extract"
)

type Status string

const (
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusEmpty   Status = "empty"
	StatusFailed  Status = "failed"
)

// Batch is one folder run. Fields are guarded by mu; handlers read a
// View instead of the batch itself.
type Batch struct {
	mu sync.RWMutex

	ID       string
	Folder   string
	Status   Status
	Current  int
	Total    int
	Records  []extract.Record
	Output   export.Result
	Err      error
	Started  time.Time
	Finished time.Time
}

type RecordSummary struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Pages int    `json:"pages"`
	Error string `json:"error,omitempty"`
}

type View struct {
	ID       string          `json:"id"`
	Folder   string          `json:"folder"`
	Status   Status          `json:"status"`
	Current  int             `json:"current"`
	Total    int             `json:"total"`
	Failed   int             `json:"failed"`
	Output   *export.Result  `json:"output,omitempty"`
	Message  string          `json:"message,omitempty"`
	Records  []RecordSummary `json:"records,omitempty"`
	Started  time.Time       `json:"started_at"`
	Finished *time.Time      `json:"finished_at,omitempty"`
}

func (b *Batch) progress(current, total int) {
	b.mu.Lock()
	b.Current, b.Total = current, total
	b.mu.Unlock()
}

func (b *Batch) finish(st Status, recs []extract.Record, out export.Result, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Status = st
	b.Records = recs
	b.Output = out
	b.Err = err
	b.Finished = time.Now()
	if recs != nil {
		b.Total = len(recs)
		b.Current = len(recs)
	}
}

// records returns the finished records, or false while the batch runs.
func (b *Batch) records() ([]extract.Record, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.Records, b.Status == StatusDone
}

func (b *Batch) View() View {
	b.mu.RLock()
	defer b.mu.RUnlock()

	v := View{
		ID:      b.ID,
		Folder:  b.Folder,
		Status:  b.Status,
		Current: b.Current,
		Total:   b.Total,
		Failed:  extract.Failed(b.Records),
		Started: b.Started,
	}
	if b.Err != nil {
		v.Message = b.Err.Error()
	}
	if b.Status == StatusDone {
		out := b.Output
		v.Output = &out
	}
	if !b.Finished.IsZero() {
		f := b.Finished
		v.Finished = &f
	}
	for i, r := range b.Records {
		s := RecordSummary{Index: i + 1, Name: r.Name, Kind: r.Kind.String(), Pages: r.Pages}
		if r.Err != nil {
			s.Error = r.Err.Error()
		}
		v.Records = append(v.Records, s)
	}
	return v
}

// Registry keeps batches in memory for the life of the process. At most
// one batch runs per folder, since they would write the same output files.
type Registry struct {
	mu      sync.RWMutex
	batches map[string]*Batch
	running map[string]string // folder -> batch id
}

func NewRegistry() *Registry {
	return &Registry{batches: map[string]*Batch{}, running: map[string]string{}}
}

// add registers b unless its folder is busy, in which case the id of the
// batch holding the folder is returned.
func (r *Registry) add(b *Batch) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, busy := r.running[b.Folder]; busy {
		return id, false
	}
	r.running[b.Folder] = b.ID
	r.batches[b.ID] = b
	return b.ID, true
}

func (r *Registry) release(b *Batch) {
	r.mu.Lock()
	if r.running[b.Folder] == b.ID {
		delete(r.running, b.Folder)
	}
	r.mu.Unlock()
}

func (r *Registry) Get(id string) (*Batch, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.batches[id]
	return b, ok
}
