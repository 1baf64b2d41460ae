package session

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"murmur/internal/config"
	"murmur/internal/core"
)

// File stores every profile as a json file under Config.SessionDir.
type File struct {
	Config *config.Config
}

func (f *File) Init(context.Context) error {
	if f.Config.SessionDir == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return err
		}
		f.Config.SessionDir = filepath.Join(dir, "murmur")
	}
	return os.MkdirAll(f.Config.SessionDir, 0o700)
}

func (f *File) path() string {
	return filepath.Join(f.Config.SessionDir, key(f.Config.Profile)+".json")
}

func (f *File) Get(context.Context) (core.Session, error) {
	data, err := os.ReadFile(f.path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return core.Session{}, core.ErrNoSession
		}
		return core.Session{}, err
	}
	return decode(data)
}

func (f *File) Put(_ context.Context, s core.Session) error {
	data, err := encode(s)
	if err != nil {
		return err
	}

	tmp := f.path() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path())
}

func (f *File) Delete(context.Context) error {
	err := os.Remove(f.path())
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
