package engine

// TestCatalog exposes the shared test catalog to the external engine_test
// package (loader_test.go), which cannot see unexported test helpers.
var TestCatalog = testCatalog
