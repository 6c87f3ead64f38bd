package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseContentPreservesKeyOrder(t *testing.T) {
	raw := []byte(`{"twitter":"short","linkedin":"long form","instagram":{"caption":"pic"}}`)

	content, err := ParseContent(raw)
	require.NoError(t, err)

	per, ok := content.(PerPlatform)
	require.True(t, ok)
	require.Len(t, per, 3)
	assert.Equal(t, PlatformContent{Key: "twitter", Value: "short"}, per[0])
	assert.Equal(t, PlatformContent{Key: "linkedin", Value: "long form"}, per[1])
	assert.Equal(t, PlatformContent{Key: "instagram", Value: `{"caption":"pic"}`, IsObject: true}, per[2])

	encoded, err := EncodeContent(content)
	require.NoError(t, err)
	assert.Equal(t, string(raw), string(encoded))
}

func TestParseContentPlainText(t *testing.T) {
	content, err := ParseContent([]byte(`"hello \"world\""`))
	require.NoError(t, err)
	assert.Equal(t, PlainText(`hello "world"`), content)

	content, err = ParseContent(nil)
	require.NoError(t, err)
	assert.Equal(t, PlainText(""), content)

	content, err = ParseContent([]byte(`42`))
	require.NoError(t, err)
	assert.Equal(t, PlainText("42"), content)
}

func TestParseContentRejectsBrokenObjects(t *testing.T) {
	_, err := ParseContent([]byte(`{"twitter":`))
	assert.Error(t, err)
}

func TestParsePlatform(t *testing.T) {
	p, err := ParsePlatform(" linkedin ")
	require.NoError(t, err)
	assert.Equal(t, PlatformLinkedIn, p)
	assert.Equal(t, "linkedin", p.Key())

	_, err = ParsePlatform("myspace")
	assert.Error(t, err)
}

func TestPlatformSetSliceIsOrdered(t *testing.T) {
	set := NewPlatformSet(PlatformYoutube, PlatformFacebook, PlatformInstagram)
	assert.Equal(t, []Platform{PlatformInstagram, PlatformFacebook, PlatformYoutube}, set.Slice())
	assert.True(t, set.Has(PlatformFacebook))
	assert.False(t, set.Has(PlatformTwitter))
}

func TestPostPlatformStatusTerminal(t *testing.T) {
	assert.False(t, PostPlatformPending.Terminal())
	for _, s := range []PostPlatformStatus{PostPlatformPublished, PostPlatformScheduled, PostPlatformFailed} {
		assert.True(t, s.Terminal(), s)
	}
}
