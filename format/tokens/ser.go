package tokens

import (
	"github.com/wippyai/atone"
)

// Serializer records everything written to it.
type Serializer struct {
	tokens []Token
}

// NewSerializer returns an empty recorder.
func NewSerializer() *Serializer {
	return &Serializer{}
}

// Tokens returns the recorded stream.
func (s *Serializer) Tokens() []Token {
	return s.tokens
}

func (s *Serializer) SerializeSeq(length int) (atone.SeqSerializer, error) {
	if length < 0 {
		length = atone.UnknownLen
	}
	s.tokens = append(s.tokens, Seq(length))
	return &seqSerializer{s: s}, nil
}

type seqSerializer struct {
	s *Serializer
}

func (q *seqSerializer) SerializeElement(v any) error {
	if handled, err := atone.SerializeNested(q.s, v); handled {
		return err
	}
	tok, err := scalarToken(v)
	if err != nil {
		return err
	}
	q.s.tokens = append(q.s.tokens, tok)
	return nil
}

func (q *seqSerializer) End() error {
	q.s.tokens = append(q.s.tokens, SeqEnd())
	return nil
}

// Serialize records v's tokens.
func Serialize(v atone.Serializable) ([]Token, error) {
	s := NewSerializer()
	if err := v.Serialize(s); err != nil {
		return nil, err
	}
	return s.Tokens(), nil
}
