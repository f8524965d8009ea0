package inmemdb

import (
	"sync"

	"github.com/simchatzion/ledger/core/cleaning"
)

type (
	// DB is an in-memory ledger store, all tables share one lock so multi-table writes are atomic.
	DB struct {
		sync.RWMutex
		cases    map[string]*cleaning.Case
		payments map[string]*cleaning.Payment
		history  []cleaning.HistoryEntry
		emails   []cleaning.EmailLog
		settings map[string]string
		caseSeq  int64
	}
)

func Open() (*DB, error) {
	db := &DB{
		cases:    make(map[string]*cleaning.Case),
		payments: make(map[string]*cleaning.Payment),
		settings: make(map[string]string),
	}
	return db, nil
}
