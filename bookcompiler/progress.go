package bookcompiler

// EventKind names a generation milestone.
type EventKind string

const (
	EventValidated EventKind = "validated"
	EventCover     EventKind = "cover"
	EventChapter   EventKind = "chapter"
	EventTOC       EventKind = "toc"
	EventAssembled EventKind = "assembled"
	EventWritten   EventKind = "written"
)

// Event reports progress of a Compile call. Chapter is -1 for events that
// are not about a chapter.
type Event struct {
	Kind      EventKind
	Chapter   int
	Title     string
	StartPage int
	Pages     int
	Path      string
}

func (bc *BookCompiler) emit(ev Event) {
	if bc.progress != nil {
		bc.progress(ev)
	}
}
