package callstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"voice-platform/internal/calls"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long a call hash lives after its last update.
const DefaultTTL = 7 * 24 * time.Hour

const keyPrefix = "voice:call:"

// RedisStore keeps one hash per call. Every write is a Lua script so the
// read-check-write on a single call is atomic across API replicas.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) (*RedisStore, error) {
	if rdb == nil {
		return nil, errors.New("callstore: redis client is nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl}, nil
}

// Common prologue: create-or-fill identity fields (a new call starts queued),
// keep the TTL fresh.
const touchLua = `
-- ARGV[1] = call_sid, ARGV[2] = from, ARGV[3] = to, ARGV[4] = direction
-- ARGV[5] = event time (RFC3339Nano), ARGV[6] = ttl_ms
redis.call('HSETNX', KEYS[1], 'call_sid', ARGV[1])
redis.call('HSETNX', KEYS[1], 'start_time', ARGV[5])
redis.call('HSETNX', KEYS[1], 'status', 'queued')
if ARGV[2] ~= '' then redis.call('HSETNX', KEYS[1], 'from', ARGV[2]) end
if ARGV[3] ~= '' then redis.call('HSETNX', KEYS[1], 'to', ARGV[3]) end
if ARGV[4] ~= '' then redis.call('HSETNX', KEYS[1], 'direction', ARGV[4]) end
redis.call('PEXPIRE', KEYS[1], ARGV[6])
`

var applyStatusScript = redis.NewScript(touchLua + `
-- ARGV[7] = status, ARGV[8] = 1 if status is terminal, ARGV[9] = duration seconds
-- A terminal status freezes the record.
if redis.call('HGET', KEYS[1], 'terminal') ~= '1' and ARGV[7] ~= '' then
  if redis.call('HGET', KEYS[1], 'status') ~= ARGV[7] then
    redis.call('HSET', KEYS[1], 'status', ARGV[7])
    if ARGV[8] == '1' then
      redis.call('HSET', KEYS[1], 'terminal', '1', 'end_time', ARGV[5])
      if tonumber(ARGV[9]) > 0 then
        redis.call('HSET', KEYS[1], 'duration', ARGV[9])
      end
    end
  end
end
return redis.call('HGETALL', KEYS[1])
`)

var setFieldsScript = redis.NewScript(touchLua + `
-- ARGV[7..] = field, value pairs
for i = 7, #ARGV, 2 do
  redis.call('HSET', KEYS[1], ARGV[i], ARGV[i + 1])
end
return redis.call('HGETALL', KEYS[1])
`)

func (s *RedisStore) Get(ctx context.Context, callSid string) (calls.CallRecord, error) {
	m, err := s.rdb.HGetAll(ctx, key(callSid)).Result()
	if err != nil {
		return calls.CallRecord{}, fmt.Errorf("callstore: get %s: %w", callSid, err)
	}
	if len(m) == 0 {
		return calls.CallRecord{}, fmt.Errorf("callstore: call %s: %w", callSid, calls.ErrNotFound)
	}
	return fromHash(m), nil
}

func (s *RedisStore) ApplyStatus(ctx context.Context, ev Event, status calls.CallStatus, durationSeconds int) (calls.CallRecord, error) {
	terminal := "0"
	if status.IsTerminal() {
		terminal = "1"
	}
	args := append(s.touchArgs(ev), string(status), terminal, durationSeconds)
	return s.run(ctx, applyStatusScript, ev.CallSid, args)
}

func (s *RedisStore) AttachRecording(ctx context.Context, ev Event, recordingSid, recordingURL string) (calls.CallRecord, error) {
	args := append(s.touchArgs(ev), "recording_sid", recordingSid, "recording_url", recordingURL)
	return s.run(ctx, setFieldsScript, ev.CallSid, args)
}

func (s *RedisStore) AttachTranscription(ctx context.Context, ev Event, text string) (calls.CallRecord, error) {
	args := append(s.touchArgs(ev), "transcription", text)
	return s.run(ctx, setFieldsScript, ev.CallSid, args)
}

func (s *RedisStore) touchArgs(ev Event) []any {
	return []any{
		ev.CallSid,
		ev.From,
		ev.To,
		string(ev.Direction),
		ev.At.UTC().Format(time.RFC3339Nano),
		s.ttl.Milliseconds(),
	}
}

func (s *RedisStore) run(ctx context.Context, script *redis.Script, callSid string, args []any) (calls.CallRecord, error) {
	if callSid == "" {
		return calls.CallRecord{}, errors.New("callstore: call sid is required")
	}
	res, err := script.Run(ctx, s.rdb, []string{key(callSid)}, args...).StringSlice()
	if err != nil {
		return calls.CallRecord{}, fmt.Errorf("callstore: update %s: %w", callSid, err)
	}
	m := make(map[string]string, len(res)/2)
	for i := 0; i+1 < len(res); i += 2 {
		m[res[i]] = res[i+1]
	}
	return fromHash(m), nil
}

func fromHash(m map[string]string) calls.CallRecord {
	r := calls.CallRecord{
		CallSid:       m["call_sid"],
		From:          m["from"],
		To:            m["to"],
		Direction:     calls.CallDirection(m["direction"]),
		Status:        calls.CallStatus(m["status"]),
		RecordingSid:  m["recording_sid"],
		RecordingURL:  m["recording_url"],
		Transcription: m["transcription"],
	}
	if t, err := time.Parse(time.RFC3339Nano, m["start_time"]); err == nil {
		r.StartTime = t
	}
	if t, err := time.Parse(time.RFC3339Nano, m["end_time"]); err == nil {
		r.EndTime = &t
	}
	if d, err := strconv.Atoi(m["duration"]); err == nil {
		r.DurationSeconds = d
	}
	return r
}

func key(callSid string) string { return keyPrefix + callSid }
