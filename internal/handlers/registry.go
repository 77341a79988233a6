// -----------------------------------------------------------------------
// Connection Registry - tracks live WebSocket subscribers per job
// -----------------------------------------------------------------------

package handlers

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
)

// wsConn pairs a WebSocket connection with a write mutex. gorilla/websocket
// allows only one concurrent writer per connection.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

// Registry tracks connected WebSocket subscribers. A connection is scoped
// either to a single job or to the global stream that sees every job.
// Delivery is failure isolated: a dead connection is dropped, the rest
// keep receiving.
type Registry struct {
	mu       sync.RWMutex
	scopes   map[*wsConn]string          // "" = global stream
	jobSubs  map[string]map[*wsConn]bool // job id -> scoped subscribers
	watchers map[*wsConn]bool            // global stream subscribers
	logger   arbor.ILogger
	closed   bool
}

// NewRegistry creates an empty connection registry
func NewRegistry(logger arbor.ILogger) *Registry {
	return &Registry{
		scopes:   make(map[*wsConn]string),
		jobSubs:  make(map[string]map[*wsConn]bool),
		watchers: make(map[*wsConn]bool),
		logger:   logger,
	}
}

// Register adds a connection. An empty jobID subscribes to all jobs.
func (r *Registry) Register(conn *wsConn, jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		conn.conn.Close()
		return
	}

	r.scopes[conn] = jobID
	if jobID == "" {
		r.watchers[conn] = true
	} else {
		if r.jobSubs[jobID] == nil {
			r.jobSubs[jobID] = make(map[*wsConn]bool)
		}
		r.jobSubs[jobID][conn] = true
	}

	r.logger.Debug().
		Str("job_id", jobID).
		Int("total", len(r.scopes)).
		Msg("WebSocket subscriber registered")
}

// Unregister removes a connection from all sets
func (r *Registry) Unregister(conn *wsConn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remove(conn)
}

// remove drops a connection; callers hold the write lock
func (r *Registry) remove(conn *wsConn) {
	jobID, ok := r.scopes[conn]
	if !ok {
		return
	}
	delete(r.scopes, conn)
	delete(r.watchers, conn)
	if subs, ok := r.jobSubs[jobID]; ok {
		delete(subs, conn)
		if len(subs) == 0 {
			delete(r.jobSubs, jobID)
		}
	}
}

// SendToJob delivers data to the job's scoped subscribers and to every
// global watcher. Write failures evict the failed connection only.
func (r *Registry) SendToJob(jobID string, data []byte) {
	r.mu.RLock()
	targets := make([]*wsConn, 0, len(r.watchers)+len(r.jobSubs[jobID]))
	for conn := range r.jobSubs[jobID] {
		targets = append(targets, conn)
	}
	for conn := range r.watchers {
		targets = append(targets, conn)
	}
	r.mu.RUnlock()

	r.deliver(targets, data)
}

// Broadcast delivers data to every connection regardless of scope
func (r *Registry) Broadcast(data []byte) {
	r.mu.RLock()
	targets := make([]*wsConn, 0, len(r.scopes))
	for conn := range r.scopes {
		targets = append(targets, conn)
	}
	r.mu.RUnlock()

	r.deliver(targets, data)
}

func (r *Registry) deliver(targets []*wsConn, data []byte) {
	for _, conn := range targets {
		if err := conn.write(data); err != nil {
			r.logger.Debug().Err(err).Msg("Dropping dead WebSocket connection")
			r.mu.Lock()
			r.remove(conn)
			r.mu.Unlock()
			conn.conn.Close()
		}
	}
}

// Counts returns the total connection count and per-job subscriber counts
func (r *Registry) Counts() (int, map[string]int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	perJob := make(map[string]int, len(r.jobSubs))
	for jobID, subs := range r.jobSubs {
		perJob[jobID] = len(subs)
	}
	return len(r.scopes), perJob
}

// Close drops every connection and rejects future registrations
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	for conn := range r.scopes {
		conn.conn.Close()
	}
	r.scopes = make(map[*wsConn]string)
	r.jobSubs = make(map[string]map[*wsConn]bool)
	r.watchers = make(map[*wsConn]bool)

	r.logger.Debug().Msg("Connection registry closed")
	return nil
}
