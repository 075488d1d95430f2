package pipeline_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcwire/reactor/api"
	"github.com/arcwire/reactor/pipeline"
	"github.com/arcwire/reactor/promise"
)

// recordingHandler implements only ChannelRead: per the mask-computation
// algorithm, it must carry no other event's bit, so handlers that don't
// implement e.g. ChannelActive are skipped in O(1) rather than invoked
// with a no-op.
type recordingHandler struct {
	name string
	log  *[]string
}

func (h *recordingHandler) HandlerAdded(api.HandlerContext)   {}
func (h *recordingHandler) HandlerRemoved(api.HandlerContext) {}
func (h *recordingHandler) ChannelRead(ctx api.HandlerContext, msg any) {
	*h.log = append(*h.log, h.name)
	ctx.FireChannelRead(msg)
}

func newPipeline(transport api.Transport) (*pipeline.Pipeline, *fakeChannel) {
	ch := newFakeChannel(transport)
	pl := pipeline.New(ch)
	ch.pl = pl
	return pl, ch
}

func TestInboundPropagationSkipsHandlersWithoutTheBit(t *testing.T) {
	pl, _ := newPipeline(&fakeTransport{})
	var log []string

	pl.AddLast("a", &recordingHandler{name: "a", log: &log})
	// b implements only HandlerAdded/HandlerRemoved: no ChannelRead bit,
	// so it must never appear in the recorded order.
	pl.AddLast("b", &noopHandler{})
	pl.AddLast("c", &recordingHandler{name: "c", log: &log})

	pl.FireChannelRead("hello")

	assert.Equal(t, []string{"a", "c"}, log)
}

func TestOutboundWriteReachesTransportHead(t *testing.T) {
	transport := &fakeTransport{}
	pl, _ := newPipeline(transport)

	p := promise.New(nil)
	pl.Write("payload", p)

	require.Len(t, transport.writes, 1)
	assert.Equal(t, "payload", transport.writes[0])
	assert.True(t, p.IsSuccess())
}

func TestReplacePreservesPosition(t *testing.T) {
	pl, _ := newPipeline(&fakeTransport{})
	var log []string

	pl.AddLast("a", &recordingHandler{name: "a", log: &log})
	pl.AddLast("b", &recordingHandler{name: "b", log: &log})
	pl.AddLast("c", &recordingHandler{name: "c", log: &log})

	pl.Replace("b", "b2", &recordingHandler{name: "b2", log: &log})
	pl.FireChannelRead(nil)

	assert.Equal(t, []string{"a", "b2", "c"}, log)
	assert.Nil(t, pl.Get("b"))
	assert.NotNil(t, pl.Get("b2"))
}

func TestDuplicateHandlerNamePanics(t *testing.T) {
	pl, _ := newPipeline(&fakeTransport{})
	pl.AddLast("a", &noopHandler{})
	assert.ErrorIs(t, recoverErr(func() { pl.AddLast("a", &noopHandler{}) }), api.ErrHandlerExists)
}

func TestNonSharableHandlerReuseAcrossNamesPanics(t *testing.T) {
	pl, _ := newPipeline(&fakeTransport{})
	h := &noopHandler{}
	pl.AddLast("a", h)
	assert.ErrorIs(t, recoverErr(func() { pl.AddLast("b", h) }), api.ErrNotSharable)
}

func TestAddBeforeUnknownBaseNamePanicsWithHandlerNotFound(t *testing.T) {
	pl, _ := newPipeline(&fakeTransport{})
	assert.ErrorIs(t, recoverErr(func() { pl.AddBefore("nope", "a", &noopHandler{}) }), api.ErrHandlerNotFound)
}

func TestRemoveUnknownNamePanicsWithHandlerNotFound(t *testing.T) {
	pl, _ := newPipeline(&fakeTransport{})
	assert.ErrorIs(t, recoverErr(func() { pl.Remove("nope") }), api.ErrHandlerNotFound)
}

func TestRemoveSentinelPanics(t *testing.T) {
	pl, _ := newPipeline(&fakeTransport{})
	assert.ErrorIs(t, recoverErr(func() { pl.Remove("head") }), api.ErrRemoveSentinel)
	assert.ErrorIs(t, recoverErr(func() { pl.Remove("tail") }), api.ErrRemoveSentinel)
}

func TestReplaceSentinelPanics(t *testing.T) {
	pl, _ := newPipeline(&fakeTransport{})
	assert.ErrorIs(t, recoverErr(func() { pl.Replace("head", "x", &noopHandler{}) }), api.ErrRemoveSentinel)
}

// recoverErr runs fn and returns the panic value as an error, or nil if
// fn did not panic or panicked with a non-error value.
func recoverErr(fn func()) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if e, ok := rec.(error); ok {
				err = e
			}
		}
	}()
	fn()
	return nil
}

func TestUnhandledExceptionReachesTailWithoutPanicking(t *testing.T) {
	pl, _ := newPipeline(&fakeTransport{})
	assert.NotPanics(t, func() {
		pl.FireExceptionCaught(errors.New("nobody's listening"))
	})
}

type noopHandler struct{}

func (*noopHandler) HandlerAdded(api.HandlerContext)   {}
func (*noopHandler) HandlerRemoved(api.HandlerContext) {}
