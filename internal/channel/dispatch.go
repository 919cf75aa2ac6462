package channel

import (
	"encoding/json"

	"go.uber.org/zap"

	"agora/internal/models"
)

// Handler consumes the data payload of one inbound frame.
type Handler func(data json.RawMessage) error

// Dispatcher routes inbound frames to per-type handlers. At most one
// handler is registered per frame type; re-registering replaces the
// previous handler.
type Dispatcher struct {
	handlers map[models.FrameType]Handler
	log      *zap.Logger
}

func NewDispatcher(log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[models.FrameType]Handler),
		log:      log,
	}
}

// Register installs h for frames of type t, replacing any previous handler.
func (d *Dispatcher) Register(t models.FrameType, h Handler) {
	d.handlers[t] = h
}

// Dispatch parses one raw frame and invokes the matching handler.
// Malformed frames are dropped with a warning, unknown types are ignored,
// and a failing or panicking handler is isolated to that single frame.
// Nothing here ever terminates the channel.
func (d *Dispatcher) Dispatch(raw []byte) {
	var frame models.Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		d.log.Warn("dropping malformed frame", zap.Error(err))
		return
	}
	if frame.Type == "" {
		d.log.Warn("dropping frame without type discriminator")
		return
	}

	h, ok := d.handlers[frame.Type]
	if !ok {
		d.log.Debug("no handler for frame type", zap.String("type", string(frame.Type)))
		return
	}
	d.invoke(frame.Type, h, frame.Data)
}

func (d *Dispatcher) invoke(t models.FrameType, h Handler, data json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("handler panicked", zap.String("type", string(t)), zap.Any("panic", r))
		}
	}()
	if err := h(data); err != nil {
		d.log.Warn("handler failed", zap.String("type", string(t)), zap.Error(err))
	}
}
