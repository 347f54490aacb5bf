package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"time"

	"bookingengine/internal/app/commands"
	"bookingengine/internal/domain/shared/fault"
)

// IdempotentCommand must be implemented by commands that want idempotency guarantees.
type IdempotentCommand interface {
	commands.Command
	IdempotencyKey() string
	ResultPrototype() any // should match the handler result type
}

type IdempotencyRecord struct {
	Key        string
	Payload    []byte
	Error      string
	ErrorKind  string
	OccurredAt time.Time
}

// IdempotencyStore persists outcomes. Save never replaces a stored success and
// returns ErrIdempotencyKeyTaken instead. A success may replace a stored
// failure: that only happens when duplicates raced and the loser saved first.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (IdempotencyRecord, bool, error)
	Save(ctx context.Context, rec IdempotencyRecord) error
}

var ErrIdempotencyKeyTaken = errors.New("middleware: idempotency key already recorded")

type ResultCodec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, out any) error
}

type JSONResultCodec struct{}

func (JSONResultCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONResultCodec) Decode(data []byte, out any) error {
	return json.Unmarshal(data, out)
}

var errMissingPrototype = errors.New("middleware: idempotent command requires result prototype")

// replayedError reproduces a stored failure with its original kind.
type replayedError struct {
	msg  string
	kind error
}

func (e replayedError) Error() string { return e.msg }
func (e replayedError) Unwrap() error { return e.kind }

// Idempotency replays the stored outcome of a command seen with the same key.
// Outcomes that may change on retry (busy, transient, unavailable) are not stored.
func Idempotency(store IdempotencyStore, codec ResultCodec) CommandMiddleware {
	if store == nil {
		panic("middleware: idempotency store required")
	}
	if codec == nil {
		codec = JSONResultCodec{}
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			idCmd, ok := cmd.(IdempotentCommand)
			if !ok || idCmd.IdempotencyKey() == "" {
				return nextFn(ctx, cmd)
			}
			key := scopedKey(idCmd)
			rec, found, err := store.Get(ctx, key)
			if err != nil {
				return nil, err
			}
			if found {
				return replay(rec, idCmd, codec)
			}
			result, err := nextFn(ctx, cmd)
			if err != nil && !cacheable(err) {
				return nil, err
			}
			record, encErr := newRecord(key, result, err, codec)
			if encErr != nil {
				return nil, encErr
			}
			saveErr := store.Save(ctx, record)
			switch {
			case errors.Is(saveErr, ErrIdempotencyKeyTaken):
				// A concurrent duplicate finished first; its outcome is the answer.
				winner, found, getErr := store.Get(ctx, key)
				if getErr != nil {
					return nil, getErr
				}
				if found {
					return replay(winner, idCmd, codec)
				}
			case saveErr != nil:
				if err != nil {
					return nil, errors.Join(err, saveErr)
				}
				return nil, saveErr
			}
			if err != nil {
				return nil, err
			}
			return result, nil
		})
	}
}

func newRecord(key string, result any, err error, codec ResultCodec) (IdempotencyRecord, error) {
	record := IdempotencyRecord{
		Key:        key,
		OccurredAt: time.Now().UTC(),
	}
	if err != nil {
		record.Error = err.Error()
		record.ErrorKind = string(fault.KindOf(err))
		return record, nil
	}
	if result != nil {
		payload, encErr := codec.Encode(result)
		if encErr != nil {
			return IdempotencyRecord{}, encErr
		}
		record.Payload = payload
	}
	return record, nil
}

func replay(rec IdempotencyRecord, cmd IdempotentCommand, codec ResultCodec) (any, error) {
	if rec.Error != "" {
		kind := fault.Sentinel(fault.Kind(rec.ErrorKind))
		if kind == nil {
			return nil, errors.New(rec.Error)
		}
		return nil, replayedError{msg: rec.Error, kind: kind}
	}
	proto := cmd.ResultPrototype()
	if proto == nil {
		return nil, errMissingPrototype
	}
	if len(rec.Payload) > 0 {
		if err := codec.Decode(rec.Payload, proto); err != nil {
			return nil, err
		}
	}
	return normalizePrototype(proto), nil
}

func cacheable(err error) bool {
	switch fault.KindOf(err) {
	case fault.KindBusy, fault.KindTransient, fault.KindUnavailable, fault.KindInternal:
		return false
	default:
		return true
	}
}

// scopedKey keeps one caller's key from replaying another caller's result.
func scopedKey(cmd IdempotentCommand) string {
	key := cmd.Key() + ":" + cmd.IdempotencyKey()
	if acting, ok := cmd.(Acting); ok {
		key = acting.ActingAs().ID + ":" + key
	}
	return key
}

func normalizePrototype(proto any) any {
	rv := reflect.ValueOf(proto)
	if rv.Kind() == reflect.Ptr && !rv.IsNil() {
		return rv.Interface()
	}
	return proto
}
