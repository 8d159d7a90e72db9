package memorystorage

import (
	"github.com/patric-chuzhbe/sitegate/internal/db/jsondb"
)

// MemoryStorage is a JSONDB that never touches the filesystem.
type MemoryStorage struct {
	*jsondb.JSONDB
}

func New() (*MemoryStorage, error) {
	db, err := jsondb.New("")
	if err != nil {
		return nil, err
	}

	return &MemoryStorage{JSONDB: db}, nil
}
