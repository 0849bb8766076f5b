package gate

import (
	"sync"
	"time"

	"gateflow/models"
)

// PendingRequest is an outbound frame still waiting for its acknowledgement.
type PendingRequest struct {
	ID      int64
	Channel string
	Event   models.EventKind
	Payload []string
	SentAt  time.Time
}

// PendingRequests correlates acknowledgements with the requests that caused
// them. It is safe for concurrent use.
type PendingRequests struct {
	mu      sync.Mutex
	pending map[int64]PendingRequest
}

func NewPendingRequests() *PendingRequests {
	return &PendingRequests{pending: make(map[int64]PendingRequest)}
}

// Register records req. Requests without an id are not tracked.
func (p *PendingRequests) Register(req models.WsRequest, sentAt time.Time) {
	if req.ID == nil {
		return
	}
	p.mu.Lock()
	p.pending[*req.ID] = PendingRequest{
		ID:      *req.ID,
		Channel: req.Channel,
		Event:   req.Event,
		Payload: req.Payload,
		SentAt:  sentAt,
	}
	p.mu.Unlock()
}

// Resolve matches an acknowledgement against the request with the same id
// and forgets it. An unknown id, or an event or channel different from the
// request's, is an ErrEventMismatch protocol error.
func (p *PendingRequests) Resolve(id int64, channel string, got models.EventKind) (PendingRequest, error) {
	p.mu.Lock()
	req, ok := p.pending[id]
	if ok {
		delete(p.pending, id)
	}
	p.mu.Unlock()

	idCopy := id
	if !ok {
		return PendingRequest{}, &models.ProtocolError{
			Kind:    models.ErrEventMismatch,
			Channel: channel,
			Event:   string(got),
			ID:      &idCopy,
		}
	}
	if req.Event != got || req.Channel != channel {
		return req, &models.ProtocolError{
			Kind:     models.ErrEventMismatch,
			Channel:  channel,
			Event:    string(got),
			Expected: req.Event,
			ID:       &idCopy,
		}
	}
	return req, nil
}

// Expire removes and returns requests sent before cutoff.
func (p *PendingRequests) Expire(cutoff time.Time) []PendingRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	var expired []PendingRequest
	for id, req := range p.pending {
		if req.SentAt.Before(cutoff) {
			expired = append(expired, req)
			delete(p.pending, id)
		}
	}
	return expired
}

func (p *PendingRequests) Has(id int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.pending[id]
	return ok
}

func (p *PendingRequests) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Reset drops every pending request, used when a connection is replaced.
func (p *PendingRequests) Reset() {
	p.mu.Lock()
	p.pending = make(map[int64]PendingRequest)
	p.mu.Unlock()
}
