// Package providertest provides a scripted chat model for tests of packages
// that depend on model.BaseChatModel.
package providertest

import (
	"context"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Call records one Generate invocation.
type Call struct {
	// Messages is the prompt that was sent.
	Messages []*schema.Message
	// Options are the resolved per-call options.
	Options *model.Options
}

// FakeChat is a model.BaseChatModel that returns a fixed reply or error and
// records every call. The zero value replies with an empty message.
type FakeChat struct {
	// Reply is the assistant content returned by Generate.
	Reply string
	// Err, when set, is returned instead of a reply.
	Err error
	// Respond, when set, computes the reply from the prompt and takes
	// precedence over Reply.
	Respond func(msgs []*schema.Message) string

	mu    sync.Mutex
	calls []Call
}

// Generate implements model.BaseChatModel.
func (f *FakeChat) Generate(_ context.Context, msgs []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Messages: msgs, Options: model.GetCommonOptions(nil, opts...)})
	f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}
	reply := f.Reply
	if f.Respond != nil {
		reply = f.Respond(msgs)
	}
	return schema.AssistantMessage(reply, nil), nil
}

// Stream implements model.BaseChatModel by emitting the Generate reply as a
// single chunk.
func (f *FakeChat) Stream(ctx context.Context, msgs []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, msgs, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// Calls returns a copy of the recorded calls.
func (f *FakeChat) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// LastCall returns the most recent call, or false when none was made.
func (f *FakeChat) LastCall() (Call, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return Call{}, false
	}
	return f.calls[len(f.calls)-1], true
}
