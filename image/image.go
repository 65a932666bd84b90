// Package image implements the on-disk program format: the constant pool
// and class definitions of a program, encoded as canonical CBOR.
package image

import (
	"errors"
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"
)

// Version is the image format version written by this package.
const Version = 1

// ErrVersion is returned when an image has an unsupported version.
var ErrVersion = errors.New("image: unsupported version")

// Image is a serialized program.
type Image struct {
	Version    uint16      `cbor:"1,keyasint"`
	Strings    []string    `cbor:"2,keyasint,omitempty"`
	Types      []string    `cbor:"3,keyasint,omitempty"`
	FieldRefs  []FieldRef  `cbor:"4,keyasint,omitempty"`
	MethodRefs []MethodRef `cbor:"5,keyasint,omitempty"`
	Classes    []ClassDef  `cbor:"6,keyasint,omitempty"`
}

// FieldRef is a field entry of the constant pool.
type FieldRef struct {
	Class string `cbor:"1,keyasint"`
	Name  string `cbor:"2,keyasint"`
	Type  string `cbor:"3,keyasint"`
}

// MethodRef is a method entry of the constant pool.
type MethodRef struct {
	Class     string `cbor:"1,keyasint"`
	Name      string `cbor:"2,keyasint"`
	Signature string `cbor:"3,keyasint"`
}

// ClassDef defines one class. Super and Interfaces are descriptors of
// classes in the image or built into the runtime.
type ClassDef struct {
	Descriptor     string      `cbor:"1,keyasint"`
	AccessFlags    uint32      `cbor:"2,keyasint,omitempty"`
	Super          string      `cbor:"3,keyasint,omitempty"`
	Interfaces     []string    `cbor:"4,keyasint,omitempty"`
	Fields         []FieldDef  `cbor:"5,keyasint,omitempty"`
	StaticFields   []FieldDef  `cbor:"6,keyasint,omitempty"`
	DirectMethods  []MethodDef `cbor:"7,keyasint,omitempty"`
	VirtualMethods []MethodDef `cbor:"8,keyasint,omitempty"`
}

// FieldDef declares a field. Value is the initial raw value of a static
// field.
type FieldDef struct {
	Name        string `cbor:"1,keyasint"`
	Type        string `cbor:"2,keyasint"`
	AccessFlags uint32 `cbor:"3,keyasint,omitempty"`
	Value       uint64 `cbor:"4,keyasint,omitempty"`
}

// MethodDef declares a method and its code item. Native and abstract
// methods carry no code.
type MethodDef struct {
	Name        string   `cbor:"1,keyasint"`
	Signature   string   `cbor:"2,keyasint"`
	AccessFlags uint32   `cbor:"3,keyasint,omitempty"`
	Registers   int      `cbor:"4,keyasint,omitempty"`
	Ins         int      `cbor:"5,keyasint,omitempty"`
	Outs        int      `cbor:"6,keyasint,omitempty"`
	Code        []uint16 `cbor:"7,keyasint,omitempty"`
	Tries       []TryDef `cbor:"8,keyasint,omitempty"`
}

// TryDef covers code units [Start, End).
type TryDef struct {
	Start    int          `cbor:"1,keyasint"`
	End      int          `cbor:"2,keyasint"`
	Handlers []HandlerDef `cbor:"3,keyasint"`
}

// HandlerDef is one catch clause. An empty Type catches everything.
type HandlerDef struct {
	Type string `cbor:"1,keyasint,omitempty"`
	Addr int    `cbor:"2,keyasint"`
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("image: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Marshal encodes an image. A zero Version is written as the current one.
func Marshal(img *Image) ([]byte, error) {
	if img.Version == 0 {
		cp := *img
		cp.Version = Version
		img = &cp
	}
	return cborEncMode.Marshal(img)
}

// Unmarshal decodes an image and checks its version.
func Unmarshal(data []byte) (*Image, error) {
	var img Image
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("image: unmarshal: %w", err)
	}
	if img.Version != Version {
		return nil, fmt.Errorf("%w %d", ErrVersion, img.Version)
	}
	return &img, nil
}

// ReadFile loads an image from disk.
func ReadFile(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}

// WriteFile writes an image to disk.
func WriteFile(path string, img *Image) error {
	data, err := Marshal(img)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
