package signaling

// MaxBufferedCandidates bounds the candidates kept per connection.
const MaxBufferedCandidates = 64

// Buffer keeps the most recent negotiation state a connection sent.
type Buffer struct {
	offer      *Envelope
	answer     *Envelope
	candidates []Envelope
}

// Record stores env. A new offer starts a new negotiation, so earlier
// candidates are dropped.
func (b *Buffer) Record(env Envelope) {
	env.Target = ""
	switch env.Type {
	case TypeOffer:
		b.offer = &env
		b.answer = nil
		b.candidates = b.candidates[:0]
	case TypeAnswer:
		b.answer = &env
	case TypeICECandidate:
		if len(b.candidates) >= MaxBufferedCandidates {
			copy(b.candidates, b.candidates[1:])
			b.candidates = b.candidates[:len(b.candidates)-1]
		}
		b.candidates = append(b.candidates, env)
	}
}

// Replay returns what a peer joining late needs to catch up: the latest
// offer followed by its candidates in the order they were sent. An
// answer is never replayed because it was addressed to a peer that has
// since left.
func (b *Buffer) Replay() []Envelope {
	if b.offer == nil {
		return nil
	}
	out := make([]Envelope, 0, 1+len(b.candidates))
	out = append(out, *b.offer)
	out = append(out, b.candidates...)
	return out
}

// Candidates is the number of buffered candidates.
func (b *Buffer) Candidates() int { return len(b.candidates) }
