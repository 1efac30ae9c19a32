package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"audiomark/internal/fingerprint"
)

// RedisIndex is an alternate Index backend grounded on
// original_source/redis_db.py's key scheme, generalized with an algorithm
// segment so distinct algorithms never share a fingerprint set (spec.md §3
// invariant 2):
//
//	ref:path:{file_path}        -> reference_id        (registration dedup)
//	ref:info:{reference_id}     -> JSON{file_path,filename}
//	ref:counter                -> last allocated reference_id
//	ref:algos:{reference_id}    -> SET of algorithms written (IsRegistered)
//	fp:{algorithm}:{hash}       -> SET of "local_time:reference_id"
type RedisIndex struct {
	client *redis.Client
}

func NewRedisIndex(addr string) (*RedisIndex, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &RedisIndex{client: client}, nil
}

type refInfo struct {
	FilePath string `json:"file_path"`
	Filename string `json:"filename"`
}

func (r *RedisIndex) EnsureReference(ctx context.Context, filePath, filename string) (ReferenceId, error) {
	if filename == "" {
		filename = filepath.Base(filePath)
	}

	pathKey := "ref:path:" + filePath
	existing, err := r.client.Get(ctx, pathKey).Result()
	if err == nil {
		id, convErr := strconv.ParseInt(existing, 10, 64)
		if convErr != nil {
			return 0, fmt.Errorf("parsing stored reference id: %w", convErr)
		}
		return ReferenceId(id), nil
	}
	if !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("checking existing reference: %w", err)
	}

	newID, err := r.client.Incr(ctx, "ref:counter").Result()
	if err != nil {
		return 0, fmt.Errorf("allocating reference id: %w", err)
	}

	// another writer may have raced us between the GET miss and the INCR;
	// SetNX loses gracefully and we fall back to whichever id won.
	ok, err := r.client.SetNX(ctx, pathKey, newID, 0).Result()
	if err != nil {
		return 0, fmt.Errorf("registering reference path: %w", err)
	}
	if !ok {
		existing, err := r.client.Get(ctx, pathKey).Result()
		if err != nil {
			return 0, fmt.Errorf("resolving raced reference: %w", err)
		}
		id, convErr := strconv.ParseInt(existing, 10, 64)
		if convErr != nil {
			return 0, fmt.Errorf("parsing raced reference id: %w", convErr)
		}
		return ReferenceId(id), nil
	}

	info := refInfo{FilePath: filePath, Filename: filename}
	payload, err := json.Marshal(info)
	if err != nil {
		return 0, fmt.Errorf("marshaling reference info: %w", err)
	}
	if err := r.client.Set(ctx, fmt.Sprintf("ref:info:%d", newID), payload, 0).Err(); err != nil {
		return 0, fmt.Errorf("storing reference info: %w", err)
	}

	return ReferenceId(newID), nil
}

func (r *RedisIndex) IsRegistered(ctx context.Context, filePath string, algo fingerprint.Algorithm) (bool, error) {
	id, err := r.client.Get(ctx, "ref:path:"+filePath).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking registration: %w", err)
	}

	key := fmt.Sprintf("ref:algos:%s", id)
	return r.client.SIsMember(ctx, key, string(algo)).Result()
}

func (r *RedisIndex) WriteBatch(ctx context.Context, referenceId ReferenceId, algo fingerprint.Algorithm, tuples []fingerprint.Tuple) error {
	if len(tuples) == 0 {
		return nil
	}

	pipe := r.client.TxPipeline()
	for _, tup := range tuples {
		key := fmt.Sprintf("fp:%s:%s", algo, tup.Hash)
		value := fmt.Sprintf("%d:%d", tup.LocalTime, int64(referenceId))
		pipe.SAdd(ctx, key, value)
	}
	pipe.SAdd(ctx, fmt.Sprintf("ref:algos:%d", int64(referenceId)), string(algo))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("writing fingerprint batch: %w", err)
	}
	return nil
}

func (r *RedisIndex) Lookup(ctx context.Context, algo fingerprint.Algorithm, hashes []string) ([]Record, error) {
	if len(hashes) == 0 {
		return nil, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringSliceCmd, len(hashes))
	for i, h := range hashes {
		cmds[i] = pipe.SMembers(ctx, fmt.Sprintf("fp:%s:%s", algo, h))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("bulk lookup: %w", err)
	}

	var out []Record
	for i, cmd := range cmds {
		members, err := cmd.Result()
		if err != nil {
			continue
		}
		for _, m := range members {
			parts := strings.SplitN(m, ":", 2)
			if len(parts) != 2 {
				continue
			}
			localTime, err1 := strconv.Atoi(parts[0])
			refID, err2 := strconv.ParseInt(parts[1], 10, 64)
			if err1 != nil || err2 != nil {
				continue
			}
			out = append(out, Record{Hash: hashes[i], ReferenceId: ReferenceId(refID), LocalTime: localTime})
		}
	}
	return out, nil
}

func (r *RedisIndex) GetReference(ctx context.Context, id ReferenceId) (Reference, error) {
	payload, err := r.client.Get(ctx, fmt.Sprintf("ref:info:%d", int64(id))).Result()
	if errors.Is(err, redis.Nil) {
		return Reference{}, ErrNotFound
	}
	if err != nil {
		return Reference{}, fmt.Errorf("reading reference: %w", err)
	}

	var info refInfo
	if err := json.Unmarshal([]byte(payload), &info); err != nil {
		return Reference{}, fmt.Errorf("decoding reference info: %w", err)
	}
	return Reference{Id: id, FilePath: info.FilePath, Filename: info.Filename}, nil
}

func (r *RedisIndex) ClearAll(ctx context.Context) error {
	return r.client.FlushDB(ctx).Err()
}

func (r *RedisIndex) Close() error { return r.client.Close() }
