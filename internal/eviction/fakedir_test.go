package eviction

import (
	"context"
	"io/fs"
	"os"
	"sort"
	"sync"
	"time"
)

// fakeDir 是内存版 Directory，可按文件名注入 stat/remove 失败。
type fakeDir struct {
	mu        sync.Mutex
	files     map[string]fakeInfo
	statErr   map[string]error
	removeErr map[string]error
	listErr   error
	removed   []string
}

func newFakeDir() *fakeDir {
	return &fakeDir{
		files:     map[string]fakeInfo{},
		statErr:   map[string]error{},
		removeErr: map[string]error{},
	}
}

func (d *fakeDir) add(name string, mod time.Time, size int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.files[name] = fakeInfo{name: name, mod: mod, size: size}
}

func (d *fakeDir) addDir(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.files[name] = fakeInfo{name: name, mod: time.Now(), dir: true}
}

func (d *fakeDir) List(context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listErr != nil {
		return nil, d.listErr
	}
	out := make([]string, 0, len(d.files))
	for name := range d.files {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (d *fakeDir) StatName(name string) (os.FileInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.statErr[name]; err != nil {
		return nil, err
	}
	info, ok := d.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
	}
	return info, nil
}

func (d *fakeDir) RemoveName(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.removeErr[name]; err != nil {
		return err
	}
	if _, ok := d.files[name]; !ok {
		return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrNotExist}
	}
	delete(d.files, name)
	d.removed = append(d.removed, name)
	return nil
}

func (d *fakeDir) remaining() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.files))
	for name := range d.files {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

type fakeInfo struct {
	name string
	mod  time.Time
	size int64
	dir  bool
}

func (f fakeInfo) Name() string       { return f.name }
func (f fakeInfo) Size() int64        { return f.size }
func (f fakeInfo) ModTime() time.Time { return f.mod }
func (f fakeInfo) IsDir() bool        { return f.dir }
func (f fakeInfo) Sys() any           { return nil }

func (f fakeInfo) Mode() fs.FileMode {
	if f.dir {
		return fs.ModeDir | 0o755
	}
	return 0o644
}
