package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/BurntSushi/toml"
)

// FileName is the optional per-workspace configuration file.
const FileName = "organvm.toml"

// File is the on-disk shape of organvm.toml.
//
//	workspace = "~/Workspace"
//	restricted_levels = [1, 2, 3]
//
//	[paths]
//	corpus = "~/Workspace/meta-organvm/organvm-corpvs-testamentvm"
//
//	[remote]
//	orgs = ["ivviiviivvi"]
//
//	[[organ]]
//	key = "I"
//	dir = "organvm-i-theoria"
//	org = "ivviiviivvi"
//	level = 1
type File struct {
	Workspace        string          `toml:"workspace"`
	RestrictedLevels []int           `toml:"restricted_levels"`
	Paths            FilePaths       `toml:"paths"`
	Remote           FileRemote      `toml:"remote"`
	Organs           []OrganOverride `toml:"organ"`
}

type FilePaths struct {
	Corpus   string `toml:"corpus"`
	Registry string `toml:"registry"`
	Rules    string `toml:"rules"`
}

type FileRemote struct {
	Orgs []string `toml:"orgs"`
	Ref  string   `toml:"ref"`
}

// OrganOverride has the same fields as organ.Def.
type OrganOverride struct {
	Key         string `toml:"key"`
	Dir         string `toml:"dir"`
	RegistryKey string `toml:"registry_key"`
	Org         string `toml:"org"`
	Level       int    `toml:"level"`
	Personal    bool   `toml:"personal"`
}

// ReadFile decodes path. A missing file returns (nil, nil) unless required.
func ReadFile(path string, required bool) (*File, error) {
	var f File
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("read config %s: unknown key %q", path, undecoded[0].String())
	}
	return &f, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
