package session

import (
	"os"
	"sync"
)

// Registry is the in-memory index of live sessions. A single mutex
// guards every map so the email/client/session views can never drift
// apart. Descriptor duplication happens under the lock; reads and
// writes on the duplicates happen outside it.
type Registry struct {
	mu            sync.Mutex
	byEmail       map[string]*Session
	emailByClient map[string]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byEmail:       make(map[string]*Session),
		emailByClient: make(map[string]string),
	}
}

// Register installs a session for its user, replacing any previous
// session for the same email. The displaced session, if any, is
// returned so the caller can tear it down; it is already unlinked from
// every index when Register returns.
func (r *Registry) Register(s *Session) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	stale := r.byEmail[s.Email]
	if stale != nil {
		delete(r.emailByClient, stale.ClientID)
	}
	r.byEmail[s.Email] = s
	r.emailByClient[s.ClientID] = s.Email
	return stale
}

// Lookup returns the live session for a user.
func (r *Registry) Lookup(email string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byEmail[email]
	return s, ok
}

// EmailForClient maps a client connection id back to the user it is
// driving a terminal for.
func (r *Registry) EmailForClient(clientID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	email, ok := r.emailByClient[clientID]
	return email, ok
}

// ContainerID returns the container backing a user's session.
func (r *Registry) ContainerID(email string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byEmail[email]
	if !ok {
		return "", ErrSessionNotFound
	}
	return s.ContainerID, nil
}

// MasterDup returns a fresh duplicate of the interactive shell's master
// descriptor. The duplicate is created while the lock is held so a
// concurrent Remove cannot close the original mid-dup; the caller owns
// the duplicate and must close it.
func (r *Registry) MasterDup(email string) (*os.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byEmail[email]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.shell.MasterDup()
}

// SecondaryDup returns a duplicate of the scraping shell's master,
// falling back to the interactive shell when no secondary was attached.
func (r *Registry) SecondaryDup(email string) (*os.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byEmail[email]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.secondary != nil {
		return s.secondary.MasterDup()
	}
	return s.shell.MasterDup()
}

// Remove unlinks the session for a user from every index and returns
// it. Exactly one caller wins for a given session; later callers get
// ok=false, which is how concurrent teardown paths converge on a single
// winner.
func (r *Registry) Remove(email string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byEmail[email]
	if !ok {
		return nil, false
	}
	delete(r.byEmail, email)
	delete(r.emailByClient, s.ClientID)
	return s, true
}

// RemoveSession unlinks s only if it is still the registered session
// for its user. A session that was already replaced or removed is left
// alone, so a late child-exit watcher cannot tear down its successor.
func (r *Registry) RemoveSession(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byEmail[s.Email] != s {
		return false
	}
	delete(r.byEmail, s.Email)
	delete(r.emailByClient, s.ClientID)
	return true
}

// RemoveClient unlinks whatever session the client was driving. Used on
// websocket disconnect, where only the connection id is known.
func (r *Registry) RemoveClient(clientID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	email, ok := r.emailByClient[clientID]
	if !ok {
		return nil, false
	}
	s := r.byEmail[email]
	delete(r.byEmail, email)
	delete(r.emailByClient, clientID)
	return s, s != nil
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byEmail)
}
