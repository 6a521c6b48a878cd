package richtext

// Options configures a RichText document at construction time. The zero
// value is ready to use; fields only tune preallocation and logging, never
// correctness.
type Options struct {
	// ArenaHint preallocates the byte arena to this many bytes, avoiding
	// early reallocation for documents whose rough size is known upfront.
	ArenaHint int

	// Logger receives debug records for remote ops buffered pending their
	// dependencies (CausalPending) and for dropped stale patches
	// (StaleRangePatch).
	// A nil Logger disables logging.
	Logger *Logger
}

func (o Options) arenaHint() int {
	if o.ArenaHint < 0 {
		return 0
	}
	return o.ArenaHint
}
