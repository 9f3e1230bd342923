// Package bundle stores IR programs as msgpack files.
package bundle

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"mirvm/internal/mir"
	"mirvm/internal/types"
)

// SchemaVersion is bumped whenever the encoded form of the IR changes.
const SchemaVersion uint16 = 1

const magic = "mirvm-bundle"

// Ext is the conventional file extension of bundles.
const Ext = ".mp"

// ErrSchema reports a bundle written by an incompatible version.
var ErrSchema = errors.New("bundle: unsupported schema version")

type file struct {
	Magic   string       `msgpack:"magic"`
	Schema  uint16       `msgpack:"schema"`
	Types   *types.Table `msgpack:"types"`
	Program *mir.Program `msgpack:"program"`
}

// Encode writes prog and its type table to w.
func Encode(w io.Writer, prog *mir.Program) error {
	if prog == nil || prog.Types == nil {
		return errors.New("bundle: program without types")
	}
	enc := msgpack.NewEncoder(w)
	return enc.Encode(&file{
		Magic:   magic,
		Schema:  SchemaVersion,
		Types:   prog.Types.Export(),
		Program: prog,
	})
}

// Decode reads a bundle and returns the validated program.
func Decode(r io.Reader) (*mir.Program, error) {
	var f file
	if err := msgpack.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("bundle: decode: %w", err)
	}
	if f.Magic != magic {
		return nil, fmt.Errorf("bundle: not a mirvm bundle")
	}
	if f.Schema != SchemaVersion {
		return nil, fmt.Errorf("%w %d (expected %d)", ErrSchema, f.Schema, SchemaVersion)
	}
	if f.Program == nil {
		return nil, fmt.Errorf("bundle: missing program")
	}
	in, err := types.Import(f.Types)
	if err != nil {
		return nil, fmt.Errorf("bundle: %w", err)
	}
	f.Program.Types = in
	if err := mir.Validate(f.Program); err != nil {
		return nil, fmt.Errorf("bundle: invalid program: %w", err)
	}
	return f.Program, nil
}

// WriteFile encodes prog into path, replacing it atomically.
func WriteFile(path string, prog *mir.Program) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "tmp-*"+Ext)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()
	if err := Encode(tmp, prog); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// ReadFile decodes the bundle stored at path.
func ReadFile(path string) (*mir.Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	prog, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return prog, nil
}
