package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ── 内存存储 ──

// MemoryStore 仅驻留内存，进程退出即丢失（测试与 --ephemeral 使用）
type MemoryStore struct {
	mu  sync.Mutex
	rec *Record
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Load(_ context.Context) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rec == nil {
		return nil, nil
	}
	cp := *m.rec
	return &cp, nil
}

func (m *MemoryStore) Save(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.rec = &cp
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec = nil
	return nil
}

// ── 文件存储 ──

// FileStore 以 JSON 文件保存会话（权限 0600）
type FileStore struct {
	path string
}

// NewFileStore 创建文件存储
func NewFileStore(path string) *FileStore { return &FileStore{path: path} }

func (f *FileStore) Load(_ context.Context) (*Record, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("读取会话文件失败: %w", err)
	}
	return decodeRecord(data)
}

func (f *FileStore) Save(_ context.Context, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("创建会话目录失败: %w", err)
		}
	}
	return os.WriteFile(f.path, data, 0o600)
}

func (f *FileStore) Clear(_ context.Context) error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// ── Redis 存储 ──

// KV Redis 存储依赖的最小接口（pkg/redis.Client 实现）
type KV interface {
	GetSession(ctx context.Context, key string) ([]byte, bool, error)
	SetSession(ctx context.Context, key string, data []byte, ttl time.Duration) error
	DeleteSession(ctx context.Context, key string) error
}

// RedisStore 将会话保存在 Redis，便于多个终端共享同一登录状态
type RedisStore struct {
	kv  KV
	key string
	ttl time.Duration
}

// NewRedisStore 创建 Redis 存储
func NewRedisStore(kv KV, key string, ttl time.Duration) *RedisStore {
	return &RedisStore{kv: kv, key: key, ttl: ttl}
}

func (r *RedisStore) Load(ctx context.Context) (*Record, error) {
	data, ok, err := r.kv.GetSession(ctx, r.key)
	if err != nil {
		return nil, fmt.Errorf("读取 Redis 会话失败: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return decodeRecord(data)
}

func (r *RedisStore) Save(ctx context.Context, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.kv.SetSession(ctx, r.key, data, r.ttl)
}

func (r *RedisStore) Clear(ctx context.Context) error {
	return r.kv.DeleteSession(ctx, r.key)
}

func decodeRecord(data []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptStore, err)
	}
	if rec.AccessToken == "" {
		return nil, nil
	}
	return &rec, nil
}
