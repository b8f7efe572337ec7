package redisx

const (
	// Catalog cache version: bumped to drop every cached listing at once.
	KeyCatalogVersion = "catalog:ver"

	// Cached product listing: catalog:products:{version}:{filter-key}
	KeyCatalogListing = "catalog:products:%d:%s"
)
