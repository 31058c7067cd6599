package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-redis/redis/v8"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/atone"
	"github.com/wippyai/atone/format/abi"
	"github.com/wippyai/atone/format/cbor"
	"github.com/wippyai/atone/format/json"
	"github.com/wippyai/atone/format/redislist"
	"github.com/wippyai/atone/format/wire"
	"github.com/wippyai/atone/vc"
)

// codec is a byte-oriented -from/-to format.
type codec struct {
	binary bool
	decode func(data []byte, v atone.Deserializable) error
	encode func(v atone.Serializable) ([]byte, error)
}

var codecs = map[string]codec{
	"json": {decode: json.Unmarshal, encode: json.Marshal},
	"wire": {binary: true, decode: wire.Unmarshal, encode: wire.Marshal},
	"cbor": {binary: true, decode: cbor.Unmarshal, encode: cbor.Marshal},
}

// container is what every -type decodes into.
type container interface {
	atone.Serializable
	atone.Deserializable
	Len() int
}

func newVc[T any]() container { return vc.New[T]() }

// elemType describes one -type value. abiType is nil when the element has
// no canonical ABI form.
type elemType struct {
	abiType wit.Type
	fresh   func() container
}

var typeNames = []string{
	"int", "uint", "float", "string", "bool", "any",
	"list:int", "list:uint", "list:float", "list:string", "list:bool",
}

var elemTypes = map[string]elemType{
	"int":         {wit.S64{}, newVc[int64]},
	"uint":        {wit.U64{}, newVc[uint64]},
	"float":       {wit.F64{}, newVc[float64]},
	"string":      {wit.String{}, newVc[string]},
	"bool":        {wit.Bool{}, newVc[bool]},
	"any":         {nil, newVc[any]},
	"list:int":    {abi.ListOf(wit.S64{}), newVc[vc.Vc[int64]]},
	"list:uint":   {abi.ListOf(wit.U64{}), newVc[vc.Vc[uint64]]},
	"list:float":  {abi.ListOf(wit.F64{}), newVc[vc.Vc[float64]]},
	"list:string": {abi.ListOf(wit.String{}), newVc[vc.Vc[string]]},
	"list:bool":   {abi.ListOf(wit.Bool{}), newVc[vc.Vc[bool]]},
}

type options struct {
	from, to  string
	elem      string
	in, out   string
	redisAddr string
	key       string
	hex       bool
}

// convert loads a sequence from opts.from and writes it to opts.to. It
// returns the number of top-level elements converted.
func convert(ctx context.Context, opts options, stdin io.Reader, stdout io.Writer, tty bool) (int, error) {
	et, ok := elemTypes[opts.elem]
	if !ok {
		return 0, fmt.Errorf("unknown -type %q (one of %s)", opts.elem, strings.Join(typeNames, ", "))
	}

	v := et.fresh()
	if err := load(ctx, opts, v, stdin); err != nil {
		return 0, fmt.Errorf("read %s: %w", opts.from, err)
	}
	if err := store(ctx, opts, et, v, stdout, tty); err != nil {
		return 0, fmt.Errorf("write %s: %w", opts.to, err)
	}
	return v.Len(), nil
}

func load(ctx context.Context, opts options, v container, stdin io.Reader) error {
	if opts.from == "redis" {
		s, closeFn, err := redisStore(opts)
		if err != nil {
			return err
		}
		defer closeFn()
		return s.Load(ctx, opts.key, v)
	}

	c, ok := codecs[opts.from]
	if !ok {
		return fmt.Errorf("unknown format %q", opts.from)
	}

	var (
		data []byte
		err  error
	)
	if opts.in != "" {
		data, err = os.ReadFile(opts.in)
	} else {
		data, err = io.ReadAll(stdin)
	}
	if err != nil {
		return err
	}
	if c.binary && opts.hex {
		if data, err = hex.DecodeString(strings.TrimSpace(string(data))); err != nil {
			return fmt.Errorf("hex input: %w", err)
		}
	}
	if !c.binary {
		data = []byte(strings.TrimSpace(string(data)))
	}
	return c.decode(data, v)
}

func store(ctx context.Context, opts options, et elemType, v container, stdout io.Writer, tty bool) error {
	var out []byte
	switch opts.to {
	case "redis":
		s, closeFn, err := redisStore(opts)
		if err != nil {
			return err
		}
		defer closeFn()
		return s.Save(ctx, opts.key, v)

	case "abi":
		l, err := lowerABI(ctx, et, v)
		if err != nil {
			return err
		}
		out = []byte(l.String())

	default:
		c, ok := codecs[opts.to]
		if !ok {
			return fmt.Errorf("unknown format %q", opts.to)
		}
		data, err := c.encode(v)
		if err != nil {
			return err
		}
		switch {
		case c.binary && (opts.hex || (tty && opts.out == "")):
			out = []byte(hex.EncodeToString(data) + "\n")
		case c.binary:
			out = data
		default:
			out = append(data, '\n')
		}
	}

	if opts.out != "" {
		return os.WriteFile(opts.out, out, 0o644)
	}
	_, err := stdout.Write(out)
	return err
}

func redisStore(opts options) (*redislist.Store, func(), error) {
	if opts.redisAddr == "" || opts.key == "" {
		return nil, nil, fmt.Errorf("redis needs -redis and -key")
	}
	rdb := redis.NewClient(&redis.Options{Addr: opts.redisAddr})
	return redislist.New(rdb, redislist.Options{}), func() { _ = rdb.Close() }, nil
}
