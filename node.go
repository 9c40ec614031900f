package tecnicofs

// FileSystemOperator defines the namespace operations external consumers need.
// It is implemented by the in-process engine and by the socket client so the
// same workload can run against either.
type FileSystemOperator interface {
	// Create adds a node at path and returns its id
	Create(path string, kind Kind) (int, error)

	// Delete removes the node at path. Directories must be empty
	Delete(path string) error

	// Lookup resolves path to a node id
	Lookup(path string) (int, error)

	// Print writes a dump of the whole tree to the file at outPath
	Print(outPath string) error
}

// RootID is the fixed id of the root directory
const RootID = 0
