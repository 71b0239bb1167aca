package bus

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeProducts_Records(t *testing.T) {
	data := []byte(`[
		{"id":"p1","name":"Widget","price":10.50},
		{"id":"p2","name":"Gadget","price":3,"category":"ignored"}
	]`)

	products, err := decodeProducts(data)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "p1", products[0].ID)
	assert.Equal(t, "Widget", products[0].Name)
	assert.True(t, decimal.RequireFromString("10.50").Equal(products[0].Price))
	assert.True(t, decimal.RequireFromString("3").Equal(products[1].Price))
}

func TestDecodeProducts_Empty(t *testing.T) {
	products, err := decodeProducts([]byte(`[]`))
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestDecodeProducts_UpstreamErrorObject(t *testing.T) {
	_, err := decodeProducts([]byte(`{"error":{"status":400,"message":"some products were not found"}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "some products were not found")
}

func TestDecodeProducts_TopLevelMessage(t *testing.T) {
	_, err := decodeProducts([]byte(`{"message":"catalog offline","status":503}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog offline")
}

func TestDecodeProducts_Garbage(t *testing.T) {
	_, err := decodeProducts([]byte(`"nope"`))
	require.Error(t, err)
}

func TestDecodeProducts_MalformedRecord(t *testing.T) {
	_, err := decodeProducts([]byte(`[{"id":"p1","price":"abc"}]`))
	require.Error(t, err)
}
