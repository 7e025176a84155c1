package main

// Exit codes
const (
	ExitSuccess         = 0 // Success
	ExitError           = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError     = 2 // Configuration error (no embeddings file, missing file, bad config)
	ExitDataError       = 3 // Data error (unreadable embeddings, empty table)
	ExitNotInVocabulary = 4 // Query word is not in the vocabulary
	ExitSnapshotStale   = 6 // Snapshot is missing or stale
)
