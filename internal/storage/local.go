package storage

import (
	"os"
	"path/filepath"
	"strings"
)

// LocalProvider serves archives from a directory on the same machine,
// e.g. an NFS mount shared with the studio.
type LocalProvider struct {
	RootPath string
}

func NewLocalProvider(root string) *LocalProvider {
	_ = os.MkdirAll(root, 0755)
	return &LocalProvider{RootPath: root}
}

func (l *LocalProvider) List(prefix string) ([]string, error) {
	var keys []string

	err := filepath.Walk(l.RootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		rel, _ := filepath.Rel(l.RootPath, path)
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})

	return keys, err
}

func (l *LocalProvider) Get(key string) (*FileObject, error) {
	f, err := os.Open(filepath.Join(l.RootPath, key))
	if err != nil {
		return nil, err
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	return &FileObject{
		Body:          f,
		ContentLength: stat.Size(),
		LastModified:  stat.ModTime(),
	}, nil
}
