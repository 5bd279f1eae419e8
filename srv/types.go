package srv

import (
	"sync"
	"time"

	"github.com/opd-ai/bookmaker/bookcompiler"
)

// JobState is the lifecycle position of a generation job.
type JobState string

const (
	StateQueued     JobState = "queued"
	StateGenerating JobState = "generating"
	StateCompleted  JobState = "completed"
	StateError      JobState = "error"
)

// Finished reports whether the job will not change state again.
func (s JobState) Finished() bool {
	return s == StateCompleted || s == StateError
}

// WSMessage is one entry of a job's event stream.
type WSMessage struct {
	Type      string    `json:"type"` // "state" or a bookcompiler.EventKind
	Status    JobState  `json:"status"`
	Message   string    `json:"message,omitempty"`
	Chapter   int       `json:"chapter,omitempty"`
	Title     string    `json:"title,omitempty"`
	StartPage int       `json:"startPage,omitempty"`
	Pages     int       `json:"pages,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TOCEntry is a chapter start page as listed in the table of contents.
type TOCEntry struct {
	Title     string `json:"title"`
	StartPage int    `json:"startPage"`
}

// JobStatus is the JSON view of a job.
type JobStatus struct {
	ID       string     `json:"id"`
	State    JobState   `json:"state"`
	Error    string     `json:"error,omitempty"`
	Pages    int        `json:"pages,omitempty"`
	TOCPages int        `json:"tocPages,omitempty"`
	Chapters []TOCEntry `json:"chapters,omitempty"`
	Created  time.Time  `json:"created"`
	Finished *time.Time `json:"finished,omitempty"`
}

// Job is one queued book. Its event history is kept so late subscribers
// can replay it.
type Job struct {
	mu       sync.RWMutex
	ID       string
	State    JobState
	Err      error
	Created  time.Time
	Started  time.Time
	Finished time.Time
	Dir      string
	Path     string
	Result   *bookcompiler.Result

	book    bookcompiler.Book
	history []WSMessage
	subs    map[chan WSMessage]struct{}
	dropped map[<-chan WSMessage]struct{}
}

func newJob(id string, book bookcompiler.Book) *Job {
	return &Job{
		ID:      id,
		State:   StateQueued,
		Created: time.Now(),
		book:    book,
		subs:    make(map[chan WSMessage]struct{}),
		dropped: make(map[<-chan WSMessage]struct{}),
	}
}

// GetState returns the current state.
func (j *Job) GetState() JobState {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.State
}

// Status returns a snapshot for the API.
func (j *Job) Status() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()

	st := JobStatus{ID: j.ID, State: j.State, Created: j.Created}
	if j.Err != nil {
		st.Error = j.Err.Error()
	}
	if !j.Finished.IsZero() {
		finished := j.Finished
		st.Finished = &finished
	}
	if j.Result != nil {
		st.Pages = j.Result.Pages
		st.TOCPages = j.Result.Bounds.TOC
		for _, entry := range j.Result.Index {
			st.Chapters = append(st.Chapters, TOCEntry{Title: entry.Title, StartPage: entry.StartPage})
		}
	}
	return st
}

// UpdateState moves the job to state and publishes the transition. The
// state change and its history entry are made together, so a subscriber
// never sees a finished job without its final state message.
func (j *Job) UpdateState(state JobState, message string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.State = state
	switch state {
	case StateGenerating:
		j.Started = time.Now()
	case StateCompleted, StateError:
		j.Finished = time.Now()
	}
	j.publishLocked(WSMessage{Type: "state", Status: state, Message: message})
}

// publishEvent forwards a compiler progress event to subscribers.
func (j *Job) publishEvent(ev bookcompiler.Event) {
	msg := WSMessage{
		Type:      string(ev.Kind),
		Title:     ev.Title,
		StartPage: ev.StartPage,
		Pages:     ev.Pages,
	}
	if ev.Chapter >= 0 {
		msg.Chapter = ev.Chapter + 1
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	msg.Status = j.State
	j.publishLocked(msg)
}

func (j *Job) publish(msg WSMessage) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.publishLocked(msg)
}

// publishLocked appends msg to the history and fans it out. A subscriber
// whose buffer is full is dropped and its channel closed; Dropped reports
// it. Subscriptions end once the job is finished. j.mu must be held.
func (j *Job) publishLocked(msg WSMessage) {
	msg.Timestamp = time.Now()

	j.history = append(j.history, msg)
	for ch := range j.subs {
		select {
		case ch <- msg:
		default:
			delete(j.subs, ch)
			j.dropped[ch] = struct{}{}
			close(ch)
		}
	}
	if j.State.Finished() {
		for ch := range j.subs {
			delete(j.subs, ch)
			close(ch)
		}
	}
}

// Subscribe returns the events published so far and a channel receiving
// later ones. The channel is closed when the job finishes; for a finished
// job it is returned closed. cancel releases the subscription.
func (j *Job) Subscribe() (history []WSMessage, events <-chan WSMessage, cancel func()) {
	ch := make(chan WSMessage, 64)

	j.mu.Lock()
	defer j.mu.Unlock()
	history = append([]WSMessage(nil), j.history...)
	if j.State.Finished() {
		close(ch)
		return history, ch, func() {}
	}
	j.subs[ch] = struct{}{}

	return history, ch, func() {
		j.mu.Lock()
		defer j.mu.Unlock()
		delete(j.dropped, ch)
		if _, ok := j.subs[ch]; ok {
			delete(j.subs, ch)
			close(ch)
		}
	}
}

// Dropped reports whether the subscription behind events was closed
// because it fell behind, rather than because the job finished.
func (j *Job) Dropped(events <-chan WSMessage) bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	_, ok := j.dropped[events]
	return ok
}
