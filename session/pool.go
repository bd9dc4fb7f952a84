package session

import "sync"

// Pool indexes every live Session by sid and by accountId, mirroring
// pitaya's session.SessionPool (a package-level singleton there; kept
// instance-scoped here so a Session node can run more than one in tests).
type Pool struct {
	mu        sync.RWMutex
	bySid     map[int64]*Session
	byAccount map[string]*Session
}

// NewPool creates an empty session pool.
func NewPool() *Pool {
	return &Pool{
		bySid:     make(map[int64]*Session),
		byAccount: make(map[string]*Session),
	}
}

// Add registers a newly connected session.
func (p *Pool) Add(s *Session) {
	p.mu.Lock()
	p.bySid[s.Sid] = s
	p.mu.Unlock()
}

// BindAccount indexes s under accountId, called once OnAuthenticate
// succeeds and s.Bind has been called.
func (p *Pool) BindAccount(s *Session, accountId string) {
	p.mu.Lock()
	p.byAccount[accountId] = s
	p.mu.Unlock()
}

// BySid returns the session for a connection id.
func (p *Pool) BySid(sid int64) (*Session, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.bySid[sid]
	return s, ok
}

// ByAccountId returns the session bound to an account, if connected.
func (p *Pool) ByAccountId(accountId string) (*Session, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.byAccount[accountId]
	return s, ok
}

// Remove unregisters a session on disconnect.
func (p *Pool) Remove(s *Session) {
	p.mu.Lock()
	delete(p.bySid, s.Sid)
	if s.AccountId() != "" {
		delete(p.byAccount, s.AccountId())
	}
	p.mu.Unlock()
}

// Count returns the number of connected sessions (metrics.ReportNumberOfConnectedClients).
func (p *Pool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.bySid)
}
