package watch

// Kind represents the type of file system event.
type Kind int

const (
	// KindCreate is emitted when a new file or directory appears.
	KindCreate Kind = iota
	// KindRemove is emitted when a file or directory is deleted.
	KindRemove
	// KindModify is emitted when the content or metadata of an existing
	// path changes.
	KindModify
	// KindRenameFrom is emitted for the old path of a rename whose
	// destination is unknown (moved out of the watched tree, or the
	// matching half was not observed).
	KindRenameFrom
	// KindRenameTo is emitted for the new path of a rename whose origin
	// is unknown (moved into the watched tree).
	KindRenameTo
	// KindRenameBoth is emitted when both halves of a rename were
	// observed. Paths holds exactly two entries, ordered (from, to).
	KindRenameBoth
	// KindRenameOther is emitted for rename notifications the source
	// could not classify. Consumers should treat the affected paths as
	// state-unknown.
	KindRenameOther
)

// String returns the string representation of the event kind.
func (k Kind) String() string {
	switch k {
	case KindCreate:
		return "create"
	case KindRemove:
		return "remove"
	case KindModify:
		return "modify"
	case KindRenameFrom:
		return "rename-from"
	case KindRenameTo:
		return "rename-to"
	case KindRenameBoth:
		return "rename-both"
	case KindRenameOther:
		return "rename-other"
	default:
		return "unknown"
	}
}

// Event is a single raw file system notification.
//
// Either Paths carries the affected paths for Kind, or one of the
// out-of-band signals is set: Degraded means the source may have lost
// events and a full rescan is needed, Err carries a transport-level
// adapter fault. An event with either signal set has no paths.
type Event struct {
	// Kind is the type of change.
	Kind Kind

	// Paths are the affected paths, ordered where the kind requires it
	// (KindRenameBoth is always [from, to]).
	Paths []string

	// Degraded indicates the source dropped events (e.g. kernel queue
	// overflow) and recommends a rescan.
	Degraded bool

	// Err is a non-recoverable adapter fault, if any.
	Err error
}
