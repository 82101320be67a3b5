package cache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// 💾 磁盘缓存实现
// =============================================================================

const indexFileName = "index.json"

// DiskConfig 磁盘缓存配置
type DiskConfig struct {
	// 缓存目录
	Dir string `yaml:"dir" json:"dir"`
	// 容量上限（字节）
	CapacityBytes int64 `yaml:"capacity_bytes" json:"capacity_bytes"`
	// 默认过期时间
	DefaultTTL time.Duration `yaml:"default_ttl" json:"default_ttl"`
	// 淘汰目标水位（容量的比例），淘汰后用量不超过该水位
	TargetRatio float64 `yaml:"target_ratio" json:"target_ratio"`
}

// DefaultDiskConfig 返回默认磁盘缓存配置
func DefaultDiskConfig() DiskConfig {
	return DiskConfig{
		Dir:           "data/cache",
		CapacityBytes: 100 * 1024 * 1024,
		DefaultTTL:    24 * time.Hour,
		TargetRatio:   0.8,
	}
}

// entryMeta is the persisted per-entry metadata.
type entryMeta struct {
	Key            string    `json:"key"`
	CreatedAt      time.Time `json:"created_at"`
	TTLSeconds     float64   `json:"ttl_seconds"`
	SizeBytes      int64     `json:"size_bytes"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
}

func (m *entryMeta) expired(now time.Time) bool {
	return now.Sub(m.CreatedAt) > time.Duration(m.TTLSeconds*float64(time.Second))
}

// diskIndex is the on-disk metadata index layout.
type diskIndex struct {
	Entries    map[string]*entryMeta `json:"entries"`
	TotalBytes int64                 `json:"total_bytes"`
}

// DiskStore 磁盘缓存
// 条目以不透明文件存放，元数据集中在一个索引文件中。所有元数据
// 变更都在单个存储级锁下进行；淘汰核算的读-改-写竞争是真实的
// 正确性风险。
type DiskStore struct {
	config DiskConfig
	logger *zap.Logger

	mu         sync.Mutex
	entries    map[string]*entryMeta
	totalBytes int64

	hits        int64
	misses      int64
	evictions   int64
	expirations int64
}

// NewDiskStore opens (or creates) a disk cache rooted at config.Dir. A
// missing or corrupt index is treated as an empty cache, never a fatal
// error; stale entry files are reconciled against the index on open.
func NewDiskStore(config DiskConfig, logger *zap.Logger) (*DiskStore, error) {
	if config.Dir == "" {
		config.Dir = DefaultDiskConfig().Dir
	}
	if config.CapacityBytes <= 0 {
		config.CapacityBytes = DefaultDiskConfig().CapacityBytes
	}
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = DefaultDiskConfig().DefaultTTL
	}
	if config.TargetRatio <= 0 || config.TargetRatio > 1 {
		config.TargetRatio = DefaultDiskConfig().TargetRatio
	}

	if err := os.MkdirAll(config.Dir, 0o755); err != nil {
		return nil, err
	}

	s := &DiskStore{
		config:  config,
		logger:  logger.With(zap.String("component", "disk_cache")),
		entries: make(map[string]*entryMeta),
	}
	s.loadIndex()
	s.reconcile()
	s.ClearExpired(context.Background())
	return s, nil
}

// loadIndex reads the metadata index. Corrupt or missing index => empty.
func (s *DiskStore) loadIndex() {
	data, err := os.ReadFile(filepath.Join(s.config.Dir, indexFileName))
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read cache index, starting empty", zap.Error(err))
		}
		return
	}

	var idx diskIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		s.logger.Warn("corrupt cache index, starting empty", zap.Error(err))
		return
	}
	if idx.Entries != nil {
		s.entries = idx.Entries
		s.totalBytes = idx.TotalBytes
	}
}

// reconcile drops metadata for missing files and removes entry files the
// index does not know about, keeping index and directory consistent
// across process restarts.
func (s *DiskStore) reconcile() {
	for key, meta := range s.entries {
		if _, err := os.Stat(s.entryPath(key)); err != nil {
			s.totalBytes -= meta.SizeBytes
			delete(s.entries, key)
		}
	}
	if s.totalBytes < 0 {
		s.totalBytes = 0
	}

	dirEntries, err := os.ReadDir(s.config.Dir)
	if err != nil {
		return
	}
	for _, de := range dirEntries {
		name := de.Name()
		if name == indexFileName || de.IsDir() || !strings.HasSuffix(name, ".bin") {
			continue
		}
		key := strings.TrimSuffix(name, ".bin")
		if _, ok := s.entries[key]; !ok {
			os.Remove(filepath.Join(s.config.Dir, name))
		}
	}
	s.saveIndexLocked()
}

func (s *DiskStore) entryPath(key string) string {
	return filepath.Join(s.config.Dir, key+".bin")
}

// saveIndexLocked persists the index. Callers hold s.mu (or are in the
// constructor before the store is shared).
func (s *DiskStore) saveIndexLocked() {
	idx := diskIndex{Entries: s.entries, TotalBytes: s.totalBytes}
	data, err := json.MarshalIndent(&idx, "", "  ")
	if err != nil {
		s.logger.Warn("failed to encode cache index", zap.Error(err))
		return
	}

	tmp := filepath.Join(s.config.Dir, indexFileName+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		s.logger.Warn("failed to write cache index", zap.Error(err))
		return
	}
	if err := os.Rename(tmp, filepath.Join(s.config.Dir, indexFileName)); err != nil {
		s.logger.Warn("failed to replace cache index", zap.Error(err))
	}
}

// Get implements Store. Expired entries are evicted lazily and count as
// misses; I/O failures degrade to misses.
func (s *DiskStore) Get(_ context.Context, key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, ok := s.entries[key]
	if !ok {
		s.misses++
		return nil, false
	}

	if meta.expired(time.Now()) {
		s.removeLocked(key)
		s.expirations++
		s.misses++
		s.saveIndexLocked()
		return nil, false
	}

	payload, err := os.ReadFile(s.entryPath(key))
	if err != nil {
		s.logger.Warn("cache read failed, treating as miss",
			zap.String("key", shortKey(key)), zap.Error(err))
		s.removeLocked(key)
		s.misses++
		s.saveIndexLocked()
		return nil, false
	}

	meta.LastAccessedAt = time.Now()
	s.hits++
	s.saveIndexLocked()
	return payload, true
}

// Set implements Store. The capacity check runs before the write: the
// store evicts least-recently-accessed entries until usage is back under
// the target buffer, then admits the new entry.
func (s *DiskStore) Set(_ context.Context, key string, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.config.DefaultTTL
	}
	size := int64(len(payload))

	if size > s.config.CapacityBytes {
		s.logger.Warn("payload exceeds cache capacity, skipping",
			zap.String("key", shortKey(key)), zap.Int64("size", size))
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Replacing an entry frees its accounted bytes first; entries are
	// never silently overwritten without accounting.
	if _, ok := s.entries[key]; ok {
		s.removeLocked(key)
	}

	if s.totalBytes+size > s.config.CapacityBytes {
		s.evictLocked(size)
	}

	if err := os.WriteFile(s.entryPath(key), payload, 0o644); err != nil {
		s.logger.Warn("cache write failed, skipping",
			zap.String("key", shortKey(key)), zap.Error(err))
		s.saveIndexLocked()
		return err
	}

	now := time.Now()
	s.entries[key] = &entryMeta{
		Key:            key,
		CreatedAt:      now,
		TTLSeconds:     ttl.Seconds(),
		SizeBytes:      size,
		LastAccessedAt: now,
	}
	s.totalBytes += size
	s.saveIndexLocked()
	return nil
}

// evictLocked removes entries in ascending LastAccessedAt order until
// usage plus the incoming size fits under the target buffer.
func (s *DiskStore) evictLocked(incoming int64) {
	target := int64(float64(s.config.CapacityBytes) * s.config.TargetRatio)

	victims := make([]*entryMeta, 0, len(s.entries))
	for _, meta := range s.entries {
		victims = append(victims, meta)
	}
	sort.Slice(victims, func(i, j int) bool {
		return victims[i].LastAccessedAt.Before(victims[j].LastAccessedAt)
	})

	for _, meta := range victims {
		if s.totalBytes+incoming <= target {
			break
		}
		s.removeLocked(meta.Key)
		s.evictions++
		s.logger.Debug("evicted cache entry", zap.String("key", shortKey(meta.Key)))
	}
}

// removeLocked drops an entry and its file. Callers hold s.mu.
func (s *DiskStore) removeLocked(key string) {
	meta, ok := s.entries[key]
	if !ok {
		return
	}
	if err := os.Remove(s.entryPath(key)); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove cache file",
			zap.String("key", shortKey(key)), zap.Error(err))
	}
	s.totalBytes -= meta.SizeBytes
	if s.totalBytes < 0 {
		s.totalBytes = 0
	}
	delete(s.entries, key)
}

// Delete implements Store.
func (s *DiskStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(key)
	s.saveIndexLocked()
	return nil
}

// ClearExpired implements Store: advisory housekeeping sweep.
func (s *DiskStore) ClearExpired(_ context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var expired []string
	for key, meta := range s.entries {
		if meta.expired(now) {
			expired = append(expired, key)
		}
	}
	for _, key := range expired {
		s.removeLocked(key)
		s.expirations++
	}
	if len(expired) > 0 {
		s.logger.Info("cleared expired cache entries", zap.Int("count", len(expired)))
		s.saveIndexLocked()
	}
	return len(expired)
}

// Stats implements Store.
func (s *DiskStore) Stats(_ context.Context) Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		EntryCount:  len(s.entries),
		TotalBytes:  s.totalBytes,
		Capacity:    s.config.CapacityBytes,
		Utilization: float64(s.totalBytes) / float64(s.config.CapacityBytes),
		Hits:        s.hits,
		Misses:      s.misses,
		Evictions:   s.evictions,
		Expirations: s.expirations,
	}
}

// Close implements Store.
func (s *DiskStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveIndexLocked()
	return nil
}

func shortKey(key string) string {
	if len(key) > 8 {
		return key[:8]
	}
	return key
}
