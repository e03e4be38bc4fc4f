/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"fixengine/fixerr"
)

// RedisStore is the external key-value Store implementation (spec.md
// §6, "Implementations: ... an external key-value backend"), keyed
// exactly as spec.md §6 "Persisted state layout" describes:
// {connection_name}:{direction}:{seq_num}. Grounded on the
// redis/go-redis/v9 usage in the example pack's cache package
// (wyfcoding-pkg/cache/cache.go), trimmed to the plain client calls
// this store needs without that package's circuit breaker or metrics.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore constructs a RedisStore against an already-configured
// client. The caller owns the client's lifecycle configuration (addr,
// auth, TLS); Close here only closes the client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

type redisRecord struct {
	Raw         []byte    `json:"raw"`
	SendingTime time.Time `json:"sending_time"`
}

func redisKey(connectionName string, dir Direction, seqNum int) string {
	return fmt.Sprintf("%s:%s:%d", connectionName, dir, seqNum)
}

func redisSeqKey(connectionName string, dir Direction) string {
	return fmt.Sprintf("%s:%s:seq", connectionName, dir)
}

func (s *RedisStore) Put(ctx context.Context, connectionName string, dir Direction, seqNum int, raw []byte, sendingTime time.Time) error {
	payload, err := json.Marshal(redisRecord{Raw: raw, SendingTime: sendingTime})
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, redisKey(connectionName, dir, seqNum), payload, 0)
	pipe.SAdd(ctx, redisSeqKey(connectionName, dir), seqNum)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Get(ctx context.Context, connectionName string, dir Direction, seqNum int) (Record, error) {
	payload, err := s.client.Get(ctx, redisKey(connectionName, dir, seqNum)).Bytes()
	if err == redis.Nil {
		return Record{}, fixerr.ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}

	var rec redisRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return Record{}, err
	}
	return Record{SeqNum: seqNum, Raw: rec.Raw, SendingTime: rec.SendingTime}, nil
}

func (s *RedisStore) Range(ctx context.Context, connectionName string, dir Direction, lo, hi int) ([]Record, error) {
	members, err := s.client.SMembers(ctx, redisSeqKey(connectionName, dir)).Result()
	if err != nil {
		return nil, err
	}

	var out []Record
	for _, m := range members {
		seq, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		if seq < lo || (hi != 0 && seq > hi) {
			continue
		}
		rec, err := s.Get(ctx, connectionName, dir, seq)
		if err != nil {
			continue
		}
		out = append(out, rec)
	}

	sortRecords(out)
	return out, nil
}

func (s *RedisStore) CurrentSeq(ctx context.Context, connectionName string, dir Direction) (int, error) {
	members, err := s.client.SMembers(ctx, redisSeqKey(connectionName, dir)).Result()
	if err != nil {
		return 0, err
	}

	max := 0
	for _, m := range members {
		seq, err := strconv.Atoi(m)
		if err == nil && seq > max {
			max = seq
		}
	}
	return max + 1, nil
}

func (s *RedisStore) Reset(ctx context.Context, connectionName string, dir Direction) error {
	members, err := s.client.SMembers(ctx, redisSeqKey(connectionName, dir)).Result()
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(members)+1)
	for _, m := range members {
		seq, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		keys = append(keys, redisKey(connectionName, dir, seq))
	}
	keys = append(keys, redisSeqKey(connectionName, dir))
	return s.client.Del(ctx, keys...).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func sortRecords(recs []Record) {
	for i := 1; i < len(recs); i++ {
		for j := i; j > 0 && recs[j].SeqNum < recs[j-1].SeqNum; j-- {
			recs[j], recs[j-1] = recs[j-1], recs[j]
		}
	}
}
