package cache

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
)

// Store 管理单个扁平缓存目录，所有按 key 的操作都先经 KeyHasher 解析为文件名。
// Store 不持有任何内容索引，也不加进程内锁；并发一致性完全依赖文件系统。
type Store struct {
	dir    string
	hasher KeyHasher
	fs     afero.Fs
	now    func() time.Time
}

// StoreOption 调整 Store 的可注入依赖。
type StoreOption func(*Store)

// WithFs 替换底层文件系统，测试中可注入 MemMapFs 或故障包装。
func WithFs(fsys afero.Fs) StoreOption {
	return func(s *Store) {
		if fsys != nil {
			s.fs = fsys
		}
	}
}

// WithClock 替换 Touch 使用的时钟。
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore 以 dir 为根目录构建磁盘缓存。目录的创建由 EnsureDir 负责。
func NewStore(dir string, hasher KeyHasher, opts ...StoreOption) (*Store, error) {
	if dir == "" {
		return nil, errors.New("cache dir required")
	}
	if hasher == nil {
		return nil, errors.New("key hasher required")
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	s := &Store{
		dir:    abs,
		hasher: hasher,
		fs:     afero.NewOsFs(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// EnsureDir 在启动时创建缓存目录（若不存在）。
func (s *Store) EnsureDir() error {
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return newIOError("mkdir", "", err)
	}
	return nil
}

// Dir 返回缓存目录的绝对路径。
func (s *Store) Dir() string {
	return s.dir
}

// Path 返回 key 对应的完整文件路径。
func (s *Store) Path(key string) string {
	return filepath.Join(s.dir, s.hasher.Hash(key))
}

// Read 读取完整正文；不存在或路径被目录占用时返回 ErrNotFound。
func (s *Store) Read(ctx context.Context, key string) ([]byte, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	filePath := s.Path(key)
	info, err := s.fs.Stat(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, newIOError("read", key, err)
	}
	if info.IsDir() {
		return nil, ErrNotFound
	}

	data, err := afero.ReadFile(s.fs, filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, newIOError("read", key, err)
	}
	return data, nil
}

// Write 通过临时文件 + rename 整体替换条目，保证读者只会看到旧值或完整的新值。
func (s *Store) Write(ctx context.Context, key string, data []byte) ([]byte, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	name := s.hasher.Hash(key)
	filePath := filepath.Join(s.dir, name)
	tempName := filepath.Join(s.dir, tempPrefix+name+"-"+uuid.NewString())

	tempFile, err := s.fs.OpenFile(tempName, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, newIOError("write", key, err)
	}

	_, err = tempFile.Write(data)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		s.fs.Remove(tempName)
		return nil, newIOError("write", key, err)
	}

	if err := s.fs.Rename(tempName, filePath); err != nil {
		s.fs.Remove(tempName)
		return nil, newIOError("write", key, err)
	}
	return data, nil
}

// Touch 把 atime/mtime 刷新为当前时间。文件已被淘汰时静默返回 nil，
// 其余错误以 IOError 返回，由调用方记录日志。
func (s *Store) Touch(ctx context.Context, key string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	now := s.now()
	if err := s.fs.Chtimes(s.Path(key), now, now); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return newIOError("touch", key, err)
	}
	return nil
}

// Delete 删除条目，不存在时返回 ErrNotFound。
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	if err := s.fs.Remove(s.Path(key)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return newIOError("delete", key, err)
	}
	return nil
}

// ResetAll 删除目录下所有条目文件并返回尝试删除的数量。单个文件失败不会中断循环，
// 所有失败汇总为一个 error 仅供日志使用；目录无法列出时返回 (0, err)。
// 子目录与 resetTempGrace 内的写入临时文件会被跳过，不计入数量。
func (s *Store) ResetAll(ctx context.Context) (int, error) {
	infos, err := s.readDir(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := s.now().Add(-resetTempGrace)
	var (
		errs      error
		attempted int
	)
	for _, info := range infos {
		if IsTempName(info.Name()) && !info.ModTime().Before(cutoff) {
			continue
		}
		attempted++
		if rmErr := s.RemoveName(info.Name()); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			errs = multierr.Append(errs, rmErr)
		}
	}
	return attempted, errs
}

// List 返回目录中的全部文件名（含写入中的临时文件），子目录被跳过。
func (s *Store) List(ctx context.Context) ([]string, error) {
	infos, err := s.readDir(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names, nil
}

// IsTemp 供 sweeper 识别写入临时文件。
func (s *Store) IsTemp(name string) bool {
	return IsTempName(name)
}

func (s *Store) readDir(ctx context.Context) ([]os.FileInfo, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	infos, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, newIOError("list", "", err)
	}

	files := infos[:0]
	for _, info := range infos {
		if !info.IsDir() {
			files = append(files, info)
		}
	}
	return files, nil
}

// StatName 按文件名（而非 key）读取文件信息。
func (s *Store) StatName(name string) (os.FileInfo, error) {
	return s.fs.Stat(filepath.Join(s.dir, name))
}

// RemoveName 按文件名（而非 key）删除文件。
func (s *Store) RemoveName(name string) error {
	return s.fs.Remove(filepath.Join(s.dir, name))
}

func checkContext(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
