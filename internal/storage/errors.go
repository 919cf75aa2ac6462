package storage

import "errors"

var (
	ErrNoRows         = errors.New("no rows in result set")
	ErrDBNotConnected = errors.New("database not connected")
)
