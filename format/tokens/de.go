package tokens

import (
	"github.com/wippyai/atone"
	"github.com/wippyai/atone/errors"
	"github.com/wippyai/atone/internal/scalar"
)

// Counts tallies how elements were requested during decoding.
type Counts struct {
	Fresh   int
	InPlace int
}

// Deserializer replays a token stream.
type Deserializer struct {
	tokens []Token
	pos    int
	counts Counts
}

// NewDeserializer returns a Deserializer positioned on the first token.
func NewDeserializer(tokens ...Token) *Deserializer {
	return &Deserializer{tokens: tokens}
}

// Counts returns how many elements were decoded fresh and in place.
func (d *Deserializer) Counts() Counts {
	return d.counts
}

// Remaining returns the tokens not yet consumed.
func (d *Deserializer) Remaining() []Token {
	return d.tokens[d.pos:]
}

// Finish fails if any tokens were left unconsumed.
func (d *Deserializer) Finish() error {
	if rest := d.Remaining(); len(rest) > 0 {
		return errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Detail("%d trailing tokens, next is %s", len(rest), rest[0]).
			Build()
	}
	return nil
}

func (d *Deserializer) peek() (Token, error) {
	if d.pos >= len(d.tokens) {
		return Token{}, errors.InvalidData(errors.PhaseDecode, nil, "unexpected end of tokens")
	}
	return d.tokens[d.pos], nil
}

func (d *Deserializer) DeserializeSeq(v atone.SeqVisitor) error {
	tok, err := d.peek()
	if err != nil {
		return err
	}
	if tok.Kind != KindSeq {
		return errors.NotASequence(tok.String())
	}
	d.pos++

	seq := &seqAccess{d: d, announced: tok.Len}
	if err := v.VisitSeq(seq); err != nil {
		return err
	}
	if !seq.done {
		return errors.InvalidData(errors.PhaseDecode, nil, "sequence not consumed to its end")
	}
	return nil
}

type seqAccess struct {
	d         *Deserializer
	announced int
	read      int
	done      bool
}

// SizeHint reports the announced length minus what has been read, which
// for a forged Seq token may be far from the truth.
func (s *seqAccess) SizeHint() (int, bool) {
	if s.announced < 0 {
		return 0, false
	}
	return max(s.announced-s.read, 0), true
}

func (s *seqAccess) NextElement(dst any) (bool, error) {
	return s.next(dst, false)
}

func (s *seqAccess) NextElementInPlace(dst any) (bool, error) {
	return s.next(dst, true)
}

func (s *seqAccess) next(dst any, inPlace bool) (bool, error) {
	if s.done {
		return false, nil
	}
	tok, err := s.d.peek()
	if err != nil {
		return false, err
	}
	if tok.Kind == KindSeqEnd {
		s.d.pos++
		s.done = true
		return false, nil
	}

	if inPlace {
		s.d.counts.InPlace++
	} else {
		s.d.counts.Fresh++
	}
	s.read++

	if handled, err := atone.DeserializeNested(s.d, dst, inPlace); handled {
		return true, err
	}
	if tok.Kind == KindSeq {
		k, err := scalar.Target(dst)
		if err != nil {
			return false, err
		}
		return false, errors.TypeMismatch(errors.PhaseDecode, nil, k.String(), "Seq")
	}
	s.d.pos++
	return true, scalar.Assign(dst, tok.Value)
}
