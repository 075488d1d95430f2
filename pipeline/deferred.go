package pipeline

import (
	"sync"

	"github.com/arcwire/reactor/api"
)

// Deferred wraps a user api.Initializer so it runs InitChannel exactly
// once per channel and then removes itself, no matter whether
// channelRegistered reaches it first or it is added to an
// already-registered channel (spec §4.4's "this races with
// registration... the pipeline must ensure InitChannel runs exactly
// once per channel").
func Deferred(user api.Initializer) api.Handler {
	return &deferredInit{user: user}
}

type deferredInit struct {
	user api.Initializer
	once sync.Once
	name string
}

func (d *deferredInit) HandlerAdded(ctx api.HandlerContext) {
	d.name = ctx.Name()
	d.user.HandlerAdded(ctx)
	if ctx.Channel().IsRegistered() {
		d.runOnce(ctx)
	}
}

func (d *deferredInit) HandlerRemoved(ctx api.HandlerContext) {
	d.user.HandlerRemoved(ctx)
}

func (d *deferredInit) ChannelRegistered(ctx api.HandlerContext) {
	d.runOnce(ctx)
	ctx.FireChannelRegistered()
}

func (d *deferredInit) runOnce(ctx api.HandlerContext) {
	d.once.Do(func() {
		if err := d.user.InitChannel(ctx.Channel()); err != nil {
			ctx.FireExceptionCaught(err)
			return
		}
		ctx.Pipeline().Remove(d.name)
	})
}
