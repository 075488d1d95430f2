package bootstrap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcwire/reactor/api"
)

func TestBindFailsWithoutChildInitializer(t *testing.T) {
	group := &fakeGroup{r: &fakeReactor{}}
	b := New().Group(group, group)

	f := b.Bind(":0")
	assert.ErrorIs(t, f.Cause(), api.ErrMissingChildInit)
}

func TestBindFailsWithoutParentGroup(t *testing.T) {
	b := New().ChildInitializer(&markerInitializer{})

	f := b.Bind(":0")
	assert.ErrorIs(t, f.Cause(), api.ErrMissingBindAddr)
}

func TestBindFailsWithEmptyAddress(t *testing.T) {
	group := &fakeGroup{r: &fakeReactor{}}
	b := New().Group(group, group).ChildInitializer(&markerInitializer{})

	f := b.Bind("")
	assert.ErrorIs(t, f.Cause(), api.ErrMissingBindAddr)
}

func TestFunctionalSettersAreChainable(t *testing.T) {
	group := &fakeGroup{r: &fakeReactor{}}
	init := &markerInitializer{}

	b := New().
		Group(group, group).
		ChildInitializer(init).
		Option(api.OptionBacklog, 128).
		ChildOption(api.OptionTCPNoDelay, true).
		Attr(api.NewAttrKey("server_test.parent"), "p").
		ChildAttr(api.NewAttrKey("server_test.child"), "c")

	require.NoError(t, b.validate())
	v, ok := b.parentOptions.Get(api.OptionBacklog)
	require.True(t, ok)
	require.Equal(t, 128, v)
}
