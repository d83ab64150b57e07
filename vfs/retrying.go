package vfs

// WithRetries wraps fs so that every storage operation — handle creation,
// the appends and saves on write handles, and the ranged reads on read
// handles — runs under rp's transient-retry loop. This is where the
// "retried with bounded exponential backoff inside the write/read
// helpers" contract lives: workers wrap their FS once at construction and
// never see a transient error that hasn't already exhausted the policy.
func WithRetries(fs FS, rp *RetryPolicy) FS {
	return &retryingFS{fs: fs, rp: rp}
}

type retryingFS struct {
	fs FS
	rp *RetryPolicy
}

func (f *retryingFS) MakeWriteFile(path string) (WriteHandle, error) {
	var h WriteHandle
	err := f.rp.Do(func() error {
		var err error
		h, err = f.fs.MakeWriteFile(path)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &retryingWriteHandle{h: h, rp: f.rp}, nil
}

func (f *retryingFS) MakeReadFile(path string) (RandomReadHandle, error) {
	var h RandomReadHandle
	err := f.rp.Do(func() error {
		var err error
		h, err = f.fs.MakeReadFile(path)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &retryingReadHandle{h: h, rp: f.rp}, nil
}

func (f *retryingFS) Exists(path string) (bool, error) {
	var ok bool
	err := f.rp.Do(func() error {
		var err error
		ok, err = f.fs.Exists(path)
		return err
	})
	return ok, err
}

func (f *retryingFS) Remove(path string) error {
	return f.rp.Do(func() error { return f.fs.Remove(path) })
}

func (f *retryingFS) Rename(oldpath, newpath string) error {
	return f.rp.Do(func() error { return f.fs.Rename(oldpath, newpath) })
}

func (f *retryingFS) MkdirAll(dir string) error {
	return f.rp.Do(func() error { return f.fs.MkdirAll(dir) })
}

type retryingWriteHandle struct {
	h  WriteHandle
	rp *RetryPolicy
}

func (h *retryingWriteHandle) Append(b []byte) error {
	return h.rp.Do(func() error { return h.h.Append(b) })
}

func (h *retryingWriteHandle) Save() error {
	return h.rp.Do(func() error { return h.h.Save() })
}

type retryingReadHandle struct {
	h  RandomReadHandle
	rp *RetryPolicy
}

func (h *retryingReadHandle) Close() error { return h.h.Close() }

func (h *retryingReadHandle) Size() (int64, error) {
	var size int64
	err := h.rp.Do(func() error {
		var err error
		size, err = h.h.Size()
		return err
	})
	return size, err
}

func (h *retryingReadHandle) ReadAt(p []byte, off int64) (int, error) {
	var n int
	err := h.rp.Do(func() error {
		var err error
		n, err = h.h.ReadAt(p, off)
		return err
	})
	return n, err
}
