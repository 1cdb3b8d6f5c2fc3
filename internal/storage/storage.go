package storage

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"

	"github.com/lordblackfox/aircox/internal/config"
)

// Client mirrors sound archives from a backend onto the station's
// disk, where the engine can read them. Playlists only ever reference
// local paths.
type Client struct {
	backend Provider
}

func New(cfg *config.Config) *Client {
	var backend Provider

	if cfg.Storage.Provider == "local" {
		backend = NewLocalProvider(cfg.Storage.ArchiveDir)
	} else {
		s3Config := &aws.Config{
			Credentials:      credentials.NewStaticCredentials(cfg.Storage.KeyID, cfg.Storage.AppKey, ""),
			Endpoint:         aws.String(cfg.Storage.Endpoint),
			Region:           aws.String(cfg.Storage.Region),
			S3ForcePathStyle: aws.Bool(true),
		}
		sess := session.Must(session.NewSession(s3Config))
		backend = NewS3Provider(sess, cfg.Storage.Bucket)
	}

	return &Client{backend: backend}
}

// NewWithProvider builds a client on an explicit backend, for tests.
func NewWithProvider(backend Provider) *Client {
	return &Client{backend: backend}
}

// SyncProgram downloads the archives under the program's prefix that
// are missing (or truncated) in destDir. It returns how many files
// were fetched.
func (c *Client) SyncProgram(programSlug, destDir string) (int, error) {
	keys, err := c.backend.List(programSlug + "/")
	if err != nil {
		return 0, err
	}

	fetched := 0
	for _, key := range keys {
		dest := filepath.Join(destDir, filepath.FromSlash(key))

		obj, err := c.backend.Get(key)
		if err != nil {
			return fetched, err
		}

		if stat, err := os.Stat(dest); err == nil && stat.Size() == obj.ContentLength {
			obj.Body.Close()
			continue
		}

		if err := writeFile(dest, obj.Body); err != nil {
			obj.Body.Close()
			return fetched, err
		}
		obj.Body.Close()
		fetched++
		log.Printf("⬇️  Synced %s", key)
	}
	return fetched, nil
}

func writeFile(dest string, body io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}

	tmp := dest + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, dest)
}
