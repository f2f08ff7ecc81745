package feed

import (
	"github.com/hazyhaar/teamsfeed/feed/internal/journal"
)

// Journal persists session attempts in SQLite.
type Journal = journal.Journal

// Attempt is one journaled session attempt.
type Attempt = journal.Attempt

// OpenJournal opens (or creates) the attempt journal at path.
func OpenJournal(path string) (*Journal, error) {
	return journal.Open(path)
}
