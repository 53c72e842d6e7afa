package gateway

import (
	"context"
	"sync"

	"github.com/tgifai/macmate/internal/channel"
	"github.com/tgifai/macmate/internal/pkg/logs"
)

type QueueOptions struct {
	LaneBuffer    int
	MaxConcurrent int
}

// MessageQueue keeps one lane per user so a user's messages are handled in
// order, while different users proceed concurrently up to MaxConcurrent.
type MessageQueue struct {
	lanes         map[string]chan *channel.Message
	mu            sync.Mutex
	handler       func(context.Context, *channel.Message)
	ctx           context.Context
	laneBuffer    int
	maxConcurrent chan struct{}
}

func newMessageQueue(opts QueueOptions) *MessageQueue {
	laneBuffer := opts.LaneBuffer
	if laneBuffer <= 0 {
		laneBuffer = 10
	}
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	return &MessageQueue{
		lanes:         make(map[string]chan *channel.Message),
		laneBuffer:    laneBuffer,
		maxConcurrent: make(chan struct{}, maxConcurrent),
	}
}

func (q *MessageQueue) Init(ctx context.Context, handler func(context.Context, *channel.Message)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ctx = ctx
	q.handler = handler
}

func (q *MessageQueue) Enqueue(ctx context.Context, msg *channel.Message) error {
	lane := q.lane(msg.ChannelID + ":" + msg.UserID)
	select {
	case lane <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MessageQueue) lane(key string) chan *channel.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	if lane, ok := q.lanes[key]; ok {
		return lane
	}
	lane := make(chan *channel.Message, q.laneBuffer)
	q.lanes[key] = lane
	go q.drain(key, lane)
	return lane
}

func (q *MessageQueue) drain(key string, lane chan *channel.Message) {
	for {
		select {
		case <-q.ctx.Done():
			return
		case msg := <-lane:
			select {
			case q.maxConcurrent <- struct{}{}:
			case <-q.ctx.Done():
				return
			}
			q.run(key, msg)
			<-q.maxConcurrent
		}
	}
}

func (q *MessageQueue) run(key string, msg *channel.Message) {
	defer func() {
		if rec := recover(); rec != nil {
			logs.CtxError(q.ctx, "[queue] handler panicked in lane %s: %v", key, rec)
		}
	}()
	q.handler(q.ctx, msg)
}
