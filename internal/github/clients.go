package github

// Clients is the set of per-identity API clients the migration can
// act as. It fans out identity only: callers still issue one request
// at a time, whichever client performs it.
type Clients struct {
	byLogin      map[string]*Client
	defaultLogin string
}

// NewClients builds the client set from ordered (login, client)
// pairs. The first client is the default actor.
func NewClients(clients []*Client) *Clients {
	set := &Clients{byLogin: make(map[string]*Client, len(clients))}
	for i, c := range clients {
		if i == 0 {
			set.defaultLogin = c.Login
		}
		set.byLogin[c.Login] = c
	}
	return set
}

// For returns the client acting as the given login, or the default
// client when no credential is configured for it.
func (s *Clients) For(login string) *Client {
	if c, ok := s.byLogin[login]; ok {
		return c
	}
	return s.byLogin[s.defaultLogin]
}

// Default returns the default actor's client.
func (s *Clients) Default() *Client {
	return s.byLogin[s.defaultLogin]
}

// HasIdentity reports whether a credential is configured for login.
// Authors without an identity of their own get the "Original
// reporter" header on their migrated text.
func (s *Clients) HasIdentity(login string) bool {
	_, ok := s.byLogin[login]
	return ok
}
