// Package llmtest provides a scripted llm.Invoker for tests.
package llmtest

import (
	"context"
	"errors"
	"sync"

	"github.com/dgallion1/edugest/internal/llm"
)

// ErrNoReply is returned once the script runs out.
var ErrNoReply = errors.New("llmtest: no scripted reply")

// Call is one recorded invocation.
type Call struct {
	System    string
	User      string
	CallPoint string
	Params    llm.Params
}

// Reply is one scripted result.
type Reply struct {
	Text string
	Err  error
}

func Text(s string) Reply { return Reply{Text: s} }
func Err(err error) Reply { return Reply{Err: err} }

// Invoker replays scripted replies in order, or delegates to Handler when set.
type Invoker struct {
	Handler func(Call) (string, error)

	mu      sync.Mutex
	replies []Reply
	calls   []Call
}

func New(replies ...Reply) *Invoker {
	return &Invoker{replies: replies}
}

func (f *Invoker) Invoke(_ context.Context, system, user, callPoint string, p llm.Params) (string, error) {
	f.mu.Lock()
	call := Call{System: system, User: user, CallPoint: callPoint, Params: p}
	f.calls = append(f.calls, call)
	handler := f.Handler
	var reply *Reply
	if handler == nil && len(f.replies) > 0 {
		reply = &f.replies[0]
		f.replies = f.replies[1:]
	}
	f.mu.Unlock()

	if handler != nil {
		return handler(call)
	}
	if reply == nil {
		return "", ErrNoReply
	}
	return reply.Text, reply.Err
}

// Calls returns a copy of the recorded calls.
func (f *Invoker) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}
