// Package testutil provides common constants and utilities for tests
package testutil

import "time"

const (
	// TestTimeout is the default timeout for test operations
	TestTimeout = 30 * time.Second

	// ShortTestTimeout is a shorter timeout for quick operations
	ShortTestTimeout = 5 * time.Second

	// TestDebounce is the watch debounce used in tests
	TestDebounce = 50 * time.Millisecond

	// TestTopK is a typical retrieval size
	TestTopK = 3

	// TestTableCount is a common number of schema files to create
	TestTableCount = 10
)

// Common test strings
const (
	// TestDescription is a default table description
	TestDescription = "Test table for unit tests"

	// TestSQL is a canned model answer
	TestSQL = "SELECT * FROM customers;"
)
