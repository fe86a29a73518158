package filebak

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gwaylib/errors"
)

const (
	DefaultBackups = 10
	DefaultMaxSize = 1 * SIZE_M
)

// File is an append-only log file that is rotated to name.1 ... name.N
// once it grows past maxSize.
type File struct {
	mutex sync.Mutex
	file  *os.File
	name  string

	backups int
	curSize int64
	maxSize int64
}

func OpenFile(name string, maxSize int64, backups int) (*File, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if backups <= 0 {
		backups = DefaultBackups
	}
	if err := os.MkdirAll(filepath.Dir(name), 0755); err != nil {
		return nil, errors.As(err, name)
	}
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.As(err, name)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.As(err, name)
	}
	return &File{
		file:    f,
		name:    name,
		backups: backups,
		curSize: st.Size(),
		maxSize: maxSize,
	}, nil
}

func (lf *File) Name() string {
	return lf.name
}

func (lf *File) Size() int64 {
	lf.mutex.Lock()
	defer lf.mutex.Unlock()
	return lf.curSize
}

func (lf *File) Write(data []byte) (int, error) {
	lf.mutex.Lock()
	defer lf.mutex.Unlock()

	if lf.file == nil {
		return 0, errors.New("file closed").As(lf.name)
	}
	n, err := lf.file.Write(data)
	lf.curSize += int64(n)
	if err != nil {
		return n, errors.As(err, lf.name)
	}
	if lf.curSize < lf.maxSize {
		return n, nil
	}
	if err := lf.rotate(); err != nil {
		return n, errors.As(err)
	}
	return n, nil
}

func (lf *File) WriteString(s string) (int, error) {
	return lf.Write([]byte(s))
}

// rotate shifts name.i to name.i+1, dropping the oldest backup, and reopens
// an empty file under the original name. When any step fails the original
// name is reopened for append so later writes still land. Caller holds the mutex.
func (lf *File) rotate() (err error) {
	defer func() {
		if lf.file == nil {
			lf.reopen()
		}
	}()

	closeErr := lf.file.Close()
	lf.file = nil
	if closeErr != nil {
		return errors.As(closeErr, lf.name)
	}

	if err := os.RemoveAll(fmt.Sprintf("%s.%d", lf.name, lf.backups)); err != nil {
		return errors.As(err)
	}
	for i := lf.backups - 1; i > 0; i-- {
		if err := move(fmt.Sprintf("%s.%d", lf.name, i), fmt.Sprintf("%s.%d", lf.name, i+1)); err != nil {
			return errors.As(err)
		}
	}
	if err := move(lf.name, lf.name+".1"); err != nil {
		return errors.As(err)
	}

	f, err := os.OpenFile(lf.name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return errors.As(err, lf.name)
	}
	lf.file = f
	lf.curSize = 0
	return nil
}

// reopen appends to the original name after a failed rotation.
func (lf *File) reopen() {
	f, err := os.OpenFile(lf.name, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return
	}
	lf.file = f
	if st, err := f.Stat(); err == nil {
		lf.curSize = st.Size()
	}
}

func (lf *File) Close() error {
	lf.mutex.Lock()
	defer lf.mutex.Unlock()
	if lf.file == nil {
		return nil
	}
	err := lf.file.Close()
	lf.file = nil
	return errors.As(err, lf.name)
}

// replaced in tests
var rename = os.Rename

func move(from, to string) error {
	if err := rename(from, to); err != nil && !os.IsNotExist(err) {
		return errors.As(err, from, to)
	}
	return nil
}
