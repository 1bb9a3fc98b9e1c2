package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONDoc_ScanAndValue(t *testing.T) {
	var d JSONDoc
	require.NoError(t, d.Scan([]byte(`{"id":"a","revision":7,"nested":{"x":[1,2]}}`)))
	assert.Equal(t, int64(7), d["revision"])

	v, err := d.Value()
	require.NoError(t, err)

	var back JSONDoc
	require.NoError(t, back.Scan(v))
	assert.Equal(t, d, back)
}

func TestJSONDoc_ScanNil(t *testing.T) {
	d := JSONDoc{"x": 1}
	require.NoError(t, d.Scan(nil))
	assert.Nil(t, d)

	assert.Error(t, d.Scan(42))
}
