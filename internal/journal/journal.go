package journal

// Journal defines the audit-log operations the patch service depends on.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with fakes.
type Journal interface {
	Record(e Entry) (int64, error)
	List(f Filter) ([]Entry, error)
	Close() error
}

// Verify *DB satisfies Journal at compile time.
var _ Journal = (*DB)(nil)
