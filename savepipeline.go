package mapshine

import "time"

// SavePipeline serializes one subsystem's persistence. Mutation paths mark
// it dirty (counting commits); the frame loop calls Poll, which starts at
// most one save once the debounce window and commit threshold allow it. A
// save never starts while another is in flight. Discrete host writes go
// through Run, which executes immediately when idle and queues in FIFO
// order otherwise, so re-entrant mutations cannot lose updates.
type SavePipeline struct {
	debounce        time.Duration
	commitThreshold int

	save    func() error
	onError func(error)

	dirty       bool
	dirtySince  time.Time
	inFlight    bool
	lastSavedAt time.Time
	commitCount int

	queue []func() error
}

// NewSavePipeline creates a pipeline around the subsystem's save function.
// commitThreshold below 2 saves on any dirty state once the debounce
// window passes.
func NewSavePipeline(debounce time.Duration, commitThreshold int, save func() error) *SavePipeline {
	return &SavePipeline{
		debounce:        debounce,
		commitThreshold: commitThreshold,
		save:            save,
	}
}

// SetOnError installs the callback invoked when a save or queued
// operation fails.
func (p *SavePipeline) SetOnError(fn func(error)) { p.onError = fn }

// MarkDirty records a commit at the given time. The first commit of a
// burst opens the debounce window.
func (p *SavePipeline) MarkDirty(now time.Time) {
	if !p.dirty {
		p.dirty = true
		p.dirtySince = now
	}
	p.commitCount++
}

// Dirty reports whether unsaved state exists.
func (p *SavePipeline) Dirty() bool { return p.dirty }

// InFlight reports whether a save or queued operation is executing.
func (p *SavePipeline) InFlight() bool { return p.inFlight }

// CommitCount returns the number of commits since the last successful save.
func (p *SavePipeline) CommitCount() int { return p.commitCount }

// LastSavedAt returns the completion time of the last successful save.
func (p *SavePipeline) LastSavedAt() time.Time { return p.lastSavedAt }

// Run executes op now when the pipeline is idle, otherwise appends it to
// the FIFO for the next drain. The immediate case returns op's error;
// queued operations report through the error callback instead.
func (p *SavePipeline) Run(op func() error) error {
	if p.inFlight {
		p.queue = append(p.queue, op)
		return nil
	}
	p.inFlight = true
	err := op()
	p.inFlight = false
	p.drainQueue()
	return err
}

// Poll drains queued operations, then starts a save when the subsystem is
// dirty, idle, past the commit threshold, and past the debounce window.
// Called once per frame.
func (p *SavePipeline) Poll(now time.Time) {
	p.drainQueue()
	if !p.dirty || p.inFlight {
		return
	}
	if p.commitThreshold > 1 && p.commitCount < p.commitThreshold {
		return
	}
	if now.Sub(p.dirtySince) < p.debounce {
		return
	}
	p.runSave(now)
}

// Flush saves immediately when dirty, ignoring debounce and threshold.
// Used on scene teardown.
func (p *SavePipeline) Flush(now time.Time) {
	p.drainQueue()
	if p.dirty && !p.inFlight {
		p.runSave(now)
	}
}

// Reset drops all pending state without saving.
func (p *SavePipeline) Reset() {
	p.dirty = false
	p.commitCount = 0
	p.queue = nil
}

func (p *SavePipeline) runSave(now time.Time) {
	p.inFlight = true
	before := p.commitCount
	err := p.save()
	p.inFlight = false

	if err != nil {
		if p.onError != nil {
			p.onError(err)
		}
		// Stay dirty and reopen the debounce window so the save retries.
		p.dirtySince = now
		return
	}

	p.lastSavedAt = now
	// Commits that landed while the save executed stay pending.
	p.commitCount -= before
	p.dirty = p.commitCount > 0
	if p.dirty {
		p.dirtySince = now
	}
}

func (p *SavePipeline) drainQueue() {
	if p.inFlight {
		return
	}
	for len(p.queue) > 0 {
		op := p.queue[0]
		p.queue = p.queue[1:]
		p.inFlight = true
		err := op()
		p.inFlight = false
		if err != nil && p.onError != nil {
			p.onError(err)
		}
	}
}
