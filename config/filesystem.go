package config

import (
	"os"
)

// FileSystem abstracts the filesystem calls the loader makes, so tests can
// run against MemFileSystem.
type FileSystem interface {
	ReadFile(filename string) ([]byte, error)
	Stat(filename string) (os.FileInfo, error)
	UserHomeDir() (string, error)
	UserConfigDir() (string, error)
	Getwd() (string, error)
}

// OsFileSystem implements FileSystem using the real operating system.
type OsFileSystem struct{}

func (fs *OsFileSystem) ReadFile(filename string) ([]byte, error) {
	return os.ReadFile(filename) // #nosec G304 -- path comes from search paths or --config
}

func (fs *OsFileSystem) Stat(filename string) (os.FileInfo, error) {
	return os.Stat(filename)
}

func (fs *OsFileSystem) UserHomeDir() (string, error) {
	return os.UserHomeDir()
}

func (fs *OsFileSystem) UserConfigDir() (string, error) {
	return os.UserConfigDir()
}

func (fs *OsFileSystem) Getwd() (string, error) {
	return os.Getwd()
}
