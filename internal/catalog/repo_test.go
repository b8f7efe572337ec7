package catalog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ferretex/ferretex-api/internal/catalog"
)

func TestListFilterKey(t *testing.T) {
	min := int64(100)
	max := int64(5000)

	f := catalog.ListFilter{Query: "drill", Category: "tools", InStock: true, Sort: "price_desc"}
	assert.Equal(t, "q=drill&cat=tools&status=&stock=true&sort=price_desc", f.Key())

	f.MinPrice, f.MaxPrice = &min, &max
	assert.Equal(t, "q=drill&cat=tools&status=&stock=true&sort=price_desc&min=100&max=5000", f.Key())

	// stable: same filter, same key
	assert.Equal(t, f.Key(), f.Key())

	// distinct filters never collide on the same key
	g := f
	g.InStock = false
	assert.NotEqual(t, f.Key(), g.Key())
}
