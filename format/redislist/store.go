package redislist

import (
	"context"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/wippyai/atone"
	"github.com/wippyai/atone/errors"
	"github.com/wippyai/atone/format/json"
)

// DefaultPageSize is the number of entries fetched per LRANGE.
const DefaultPageSize = 256

// Options configures a Store. Zero fields take their defaults.
type Options struct {
	PageSize int64
}

// Store saves and loads sequences as Redis lists.
// The store is safe for concurrent use; a single Load is not.
type Store struct {
	rdb      *redis.Client
	pageSize int64
}

// New creates a Store over rdb.
func New(rdb *redis.Client, opts Options) *Store {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	return &Store{rdb: rdb, pageSize: opts.PageSize}
}

// Save replaces the list at key with the elements of v. The delete and the
// push run in one MULTI, so readers never see a half written list.
func (s *Store) Save(ctx context.Context, key string, v atone.Serializable) error {
	w := &writer{}
	if err := v.Serialize(w); err != nil {
		return err
	}

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(w.entries) > 0 {
			pipe.RPush(ctx, key, w.entries...)
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(errors.PhaseEncode, errors.KindIO, err, "redis save "+key)
	}
	return nil
}

// Load decodes the list at key into v. A missing key is an empty sequence.
func (s *Store) Load(ctx context.Context, key string, v atone.Deserializable) error {
	return v.Deserialize(s.reader(ctx, key))
}

// LoadInPlace is Load reusing the elements already in v. If a page fetch or
// an element fails, v keeps the elements decoded so far.
func (s *Store) LoadInPlace(ctx context.Context, key string, v atone.InPlaceDeserializable) error {
	return v.DeserializeInPlace(s.reader(ctx, key))
}

func (s *Store) reader(ctx context.Context, key string) *reader {
	return &reader{ctx: ctx, s: s, key: key}
}

// writer collects one JSON document per element.
type writer struct {
	entries []any
}

func (w *writer) SerializeSeq(length int) (atone.SeqSerializer, error) {
	w.entries = make([]any, 0, atone.CautiousSizeHint(length, length >= 0))
	return w, nil
}

func (w *writer) SerializeElement(v any) error {
	doc, err := json.MarshalElement(v)
	if err != nil {
		return err
	}
	w.entries = append(w.entries, doc)
	return nil
}

func (w *writer) End() error { return nil }

// reader is the Deserializer for one key.
type reader struct {
	ctx context.Context
	s   *Store
	key string
}

func (r *reader) DeserializeSeq(v atone.SeqVisitor) error {
	typ, err := r.s.rdb.Type(r.ctx, r.key).Result()
	if err != nil {
		return errors.Wrap(errors.PhaseDecode, errors.KindIO, err, "redis TYPE "+r.key)
	}

	var length int64
	switch typ {
	case "none":
	case "list":
		length, err = r.s.rdb.LLen(r.ctx, r.key).Result()
		if err != nil {
			return errors.Wrap(errors.PhaseDecode, errors.KindIO, err, "redis LLEN "+r.key)
		}
	default:
		return errors.NotASequence("redis " + typ)
	}

	seq := &seqAccess{r: r, hint: length, exhausted: typ == "none"}
	if err := v.VisitSeq(seq); err != nil {
		return err
	}
	if !seq.done {
		return errors.InvalidData(errors.PhaseDecode, nil, "list not consumed to its end")
	}
	return nil
}

type seqAccess struct {
	r         *reader
	page      []string
	offset    int64 // list index of page[0]
	pos       int
	read      int64
	hint      int64
	exhausted bool
	done      bool
}

// SizeHint is the LLEN observed before reading, less what has been read.
func (s *seqAccess) SizeHint() (int, bool) {
	return int(max(s.hint-s.read, 0)), true
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
	if s.pos == len(s.page) {
		if err := s.fetch(); err != nil {
			return false, err
		}
		if len(s.page) == 0 {
			s.done = true
			return false, nil
		}
	}

	doc := []byte(s.page[s.pos])
	s.pos++
	s.read++

	if inPlace {
		return true, json.UnmarshalElementInPlace(doc, dst)
	}
	return true, json.UnmarshalElement(doc, dst)
}

func (s *seqAccess) fetch() error {
	s.offset += int64(len(s.page))
	s.page, s.pos = nil, 0
	if s.exhausted {
		return nil
	}

	size := s.r.s.pageSize
	page, err := s.r.s.rdb.LRange(s.r.ctx, s.r.key, s.offset, s.offset+size-1).Result()
	if err != nil {
		return errors.Wrap(errors.PhaseDecode, errors.KindIO, err, "redis LRANGE "+s.r.key)
	}
	Logger().Debug("list page fetched",
		zap.String("key", s.r.key),
		zap.Int64("offset", s.offset),
		zap.Int("entries", len(page)))

	s.page = page
	if int64(len(page)) < size {
		s.exhausted = true
	}
	return nil
}
