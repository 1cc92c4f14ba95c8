package metrics

import "sync"

// Event counter names.
const (
	RoomsCreated        = "rooms_created"
	RoomsDeletedExpired = "rooms_deleted_expired"
	RoomsDeletedEmpty   = "rooms_deleted_empty"
	RoomsTerminated     = "rooms_terminated"
	JoinsDeniedFull     = "joins_denied_full"
	JoinsDeniedPasscode = "joins_denied_passcode"
	MessagesSent        = "messages_sent"
	MessagesExpired     = "messages_expired"
	SignalsRelayed      = "signals_relayed"
	RateLimited         = "rate_limited"
	IdentitiesIssued    = "identities_issued"
	CredentialsRejected = "credentials_rejected"
	DeliveriesDropped   = "deliveries_dropped"
	MirrorDropped       = "mirror_dropped"
)

// Metrics is a concurrency-safe counter registry.
type Metrics struct {
	mu sync.Mutex
	m  map[string]uint64
}

func New() *Metrics {
	return &Metrics{m: make(map[string]uint64)}
}

func (m *Metrics) Inc(name string) { m.Add(name, 1) }

func (m *Metrics) Add(name string, n uint64) {
	if m == nil || n == 0 {
		return
	}
	m.mu.Lock()
	if m.m == nil {
		m.m = make(map[string]uint64)
	}
	m.m[name] += n
	m.mu.Unlock()
}

func (m *Metrics) Get(name string) uint64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m[name]
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() map[string]uint64 {
	out := make(map[string]uint64)
	if m == nil {
		return out
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.m {
		out[k] = v
	}
	return out
}
