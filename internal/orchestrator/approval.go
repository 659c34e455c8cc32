package orchestrator

import (
	"context"
	"errors"

	"github.com/dweebuild/dweebuild/internal/agent"
)

// ErrApprovalClosed is returned by Ask once the channel's handler has exited.
var ErrApprovalClosed = errors.New("approval channel closed")

// approvalRequest pairs an agent's request with its private reply channel.
type approvalRequest struct {
	req        agent.ApprovalRequest
	responseCh chan approvalAnswer
}

type approvalAnswer struct {
	approved bool
	err      error
}

// ApprovalChannel serialises tool approval requests from concurrently
// running agents onto one decision function, typically an operator prompt.
type ApprovalChannel struct {
	requestCh chan approvalRequest
	decide    agent.ApproveFunc
	done      chan struct{}
}

// NewApprovalChannel creates a channel with the given buffer size.
// bufferSize should typically be 2x the concurrency limit to prevent blocking.
func NewApprovalChannel(bufferSize int, decide agent.ApproveFunc) *ApprovalChannel {
	return &ApprovalChannel{
		requestCh: make(chan approvalRequest, bufferSize),
		decide:    decide,
		done:      make(chan struct{}),
	}
}

// Start launches the handler goroutine. It runs until ctx is cancelled.
func (c *ApprovalChannel) Start(ctx context.Context) {
	go c.handle(ctx)
}

func (c *ApprovalChannel) handle(ctx context.Context) {
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			return
		case r := <-c.requestCh:
			ok, err := c.decide(ctx, r.req)

			select {
			case <-ctx.Done():
				r.responseCh <- approvalAnswer{err: ctx.Err()}
				return
			default:
				r.responseCh <- approvalAnswer{approved: ok, err: err}
			}
		}
	}
}

// Ask submits req and waits for the decision. It has the agent.ApproveFunc
// signature so it can be handed straight to agent.WithApproval.
func (c *ApprovalChannel) Ask(ctx context.Context, req agent.ApprovalRequest) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	responseCh := make(chan approvalAnswer, 1)

	select {
	case c.requestCh <- approvalRequest{req: req, responseCh: responseCh}:
	case <-c.done:
		return false, ErrApprovalClosed
	case <-ctx.Done():
		return false, ctx.Err()
	}

	select {
	case a := <-responseCh:
		return a.approved, a.err
	case <-c.done:
		// The handler may have answered just before exiting.
		select {
		case a := <-responseCh:
			return a.approved, a.err
		default:
			return false, ErrApprovalClosed
		}
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Stop blocks until the handler goroutine has exited.
func (c *ApprovalChannel) Stop() {
	<-c.done
}

// AutoApprove approves every request.
func AutoApprove(context.Context, agent.ApprovalRequest) (bool, error) { return true, nil }

// DenyAll rejects every request.
func DenyAll(context.Context, agent.ApprovalRequest) (bool, error) { return false, nil }
