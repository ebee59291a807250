package util

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type optionalFixture struct {
	Name   Optional[string] `json:"name"`
	Rating Optional[int]    `json:"rating"`
}

func TestOptionalAbsent(t *testing.T) {
	var fixture optionalFixture
	require.NoError(t, json.Unmarshal([]byte(`{}`), &fixture))

	assert.False(t, fixture.Name.Set)
	assert.False(t, fixture.Name.Valid)
	assert.False(t, fixture.Rating.Set)
}

func TestOptionalExplicitNull(t *testing.T) {
	var fixture optionalFixture
	require.NoError(t, json.Unmarshal([]byte(`{"rating": null}`), &fixture))

	assert.True(t, fixture.Rating.Set)
	assert.False(t, fixture.Rating.Valid)
	assert.Nil(t, fixture.Rating.Ptr())
	assert.False(t, fixture.Name.Set)
}

func TestOptionalValue(t *testing.T) {
	var fixture optionalFixture
	require.NoError(t, json.Unmarshal([]byte(`{"name": "screen", "rating": 4}`), &fixture))

	assert.True(t, fixture.Name.Set)
	assert.True(t, fixture.Name.Valid)
	assert.Equal(t, "screen", fixture.Name.Value)

	ptr := fixture.Rating.Ptr()
	require.NotNil(t, ptr)
	assert.Equal(t, 4, *ptr)
}

func TestOptionalTypeMismatch(t *testing.T) {
	var fixture optionalFixture
	assert.Error(t, json.Unmarshal([]byte(`{"rating": "four"}`), &fixture))
}

func TestOptionalMarshal(t *testing.T) {
	out, err := json.Marshal(Some(3))
	require.NoError(t, err)
	assert.Equal(t, `3`, string(out))

	out, err = json.Marshal(Null[int]())
	require.NoError(t, err)
	assert.Equal(t, `null`, string(out))
}

func TestOptionalConstructors(t *testing.T) {
	some := Some("x")
	assert.True(t, some.Set)
	assert.True(t, some.Valid)

	null := Null[string]()
	assert.True(t, null.Set)
	assert.False(t, null.Valid)
	assert.Nil(t, null.Ptr())
}
