package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/refine/internal/db"
)

// casSource writes field/value pairs only while the guard field holds the
// expected value. It replies {swapped, current}.
//
//	KEYS[1]  hash key
//	ARGV[1]  guard field
//	ARGV[2]  expected guard value ("0" matches a missing key)
//	ARGV[3]  ttl in milliseconds, 0 for none
//	ARGV[4:] field/value pairs
const casSource = `
local cur = redis.call('HGET', KEYS[1], ARGV[1])
if not cur then cur = '0' end
if cur ~= ARGV[2] then return {0, cur} end
redis.call('HSET', KEYS[1], unpack(ARGV, 4))
local ttl = tonumber(ARGV[3])
if ttl > 0 then redis.call('PEXPIRE', KEYS[1], ttl) end
return {1, cur}
`

var casScript = rueidis.NewLuaScript(casSource)

// HGetAll returns all fields of a hash. A missing key yields an empty map.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	cmd := s.b().Hgetall().Key(key).Build()
	m, err := s.do(ctx, cmd).AsStrMap()
	if err != nil {
		return nil, &db.Error{Op: db.OpHGetAll, Err: err}
	}
	return m, nil
}

// Del deletes a key.
func (s *Store) Del(ctx context.Context, key string) error {
	cmd := s.b().Del().Key(key).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpDel, Err: err}
	}
	return nil
}

// Exists checks if a key exists.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	cmd := s.b().Exists().Key(key).Build()
	count, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return false, &db.Error{Op: db.OpExists, Err: err}
	}
	return count > 0, nil
}

// LoadScripts caches the compare-and-set script on the server. It doubles as a
// health probe: a server without scripting cannot store sessions.
func (s *Store) LoadScripts(ctx context.Context) error {
	cmd := s.b().ScriptLoad().Script(casSource).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpScriptLoad, Err: err}
	}
	return nil
}

// CompareAndSetHash runs the guarded write atomically on the server.
func (s *Store) CompareAndSetHash(ctx context.Context, req db.CASRequest) (db.CASResult, error) {
	if req.GuardField == "" {
		return db.CASResult{}, fmt.Errorf("guard field is required")
	}
	if len(req.Fields) == 0 {
		return db.CASResult{}, fmt.Errorf("fields are required")
	}

	names := make([]string, 0, len(req.Fields))
	for k := range req.Fields {
		names = append(names, k)
	}
	sort.Strings(names)

	args := make([]string, 0, 3+2*len(names))
	args = append(args, req.GuardField, req.Expected, strconv.FormatInt(req.TTL.Milliseconds(), 10))
	for _, k := range names {
		args = append(args, k, req.Fields[k])
	}

	reply, err := casScript.Exec(ctx, s.client, []string{req.Key}, args).ToArray()
	if err != nil {
		return db.CASResult{}, &db.Error{Op: db.OpEvalSHA, Err: err}
	}
	return parseCASReply(reply)
}

func parseCASReply(reply []rueidis.RedisMessage) (db.CASResult, error) {
	if len(reply) != 2 {
		return db.CASResult{}, &db.Error{Op: db.OpEvalSHA, Err: fmt.Errorf("%w: %d elements", db.ErrBadReply, len(reply))}
	}
	swapped, err := reply[0].AsInt64()
	if err != nil {
		return db.CASResult{}, &db.Error{Op: db.OpEvalSHA, Err: fmt.Errorf("%w: %w", db.ErrBadReply, err)}
	}
	current, err := reply[1].ToString()
	if err != nil {
		return db.CASResult{}, &db.Error{Op: db.OpEvalSHA, Err: fmt.Errorf("%w: %w", db.ErrBadReply, err)}
	}
	return db.CASResult{Swapped: swapped == 1, Current: current}, nil
}
