// Package session implements the Session bridge of spec 2 item 9: the
// binding between a client connection id (sid), the authenticated account
// it belongs to, and the stage it currently joins, independent of the live
// net.Conn. Pitaya keeps this same split between Session (survives
// reconnection) and Agent/NetworkEntity (the live connection); this package
// plays Session's role, and agent.Agent plays NetworkEntity's.
package session

import (
	"sync"

	"github.com/ulala-x/playhouse/networkentity"
)

// Session is the account-facing binding a client connection owns across
// its lifetime, independent of reconnection (spec 2 item 9).
type Session struct {
	Sid       int64
	entity    networkentity.NetworkEntity
	mu        sync.RWMutex
	accountId string
	stageId   int64
	data      map[string]interface{}

	onCloseMu sync.Mutex
	onClose   []func(*Session)
}

// New creates a Session for the given connection id, not yet bound to any
// account or stage.
func New(sid int64, entity networkentity.NetworkEntity) *Session {
	return &Session{
		Sid:    sid,
		entity: entity,
		data:   make(map[string]interface{}),
	}
}

// AccountId returns the bound account, or "" before authentication.
func (s *Session) AccountId() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accountId
}

// Bind sets the account this session belongs to. Called once, from
// OnAuthenticate (spec 4.7: "AccountId must be set during OnAuthenticate").
func (s *Session) Bind(accountId string) {
	s.mu.Lock()
	s.accountId = accountId
	s.mu.Unlock()
}

// StageId returns the stage this session currently joins, or 0 if none.
func (s *Session) StageId() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stageId
}

// SetStage records which stage this session is bound to.
func (s *Session) SetStage(stageId int64) {
	s.mu.Lock()
	s.stageId = stageId
	s.mu.Unlock()
}

// Entity returns the live connection backing this session.
func (s *Session) Entity() networkentity.NetworkEntity {
	return s.entity
}

// Set stores an arbitrary session-scoped value (spec 2 item 9's "sid ->
// accountId -> stage bindings" is the mandatory part; this is the
// general-purpose extension pitaya's Session.Set/Get also offers).
func (s *Session) Set(key string, value interface{}) {
	s.mu.Lock()
	s.data[key] = value
	s.mu.Unlock()
}

// Get retrieves a value stored with Set.
func (s *Session) Get(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// OnClose registers fn to run when the session closes (pitaya's
// OnCloseCallbacks pattern).
func (s *Session) OnClose(fn func(*Session)) {
	s.onCloseMu.Lock()
	s.onClose = append(s.onClose, fn)
	s.onCloseMu.Unlock()
}

// Close runs registered close callbacks and closes the underlying entity.
func (s *Session) Close() error {
	s.onCloseMu.Lock()
	callbacks := s.onClose
	s.onCloseMu.Unlock()
	for _, fn := range callbacks {
		fn(s)
	}
	return s.entity.Close()
}
