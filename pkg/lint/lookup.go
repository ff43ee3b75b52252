package lint

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const schemaExtension = "schema.json"

// LookupStatus tells apart a missing schema from a broken one.
type LookupStatus int

const (
	NotFound LookupStatus = iota
	Found
	ParseError
)

func (s LookupStatus) String() string {
	switch s {
	case Found:
		return "found"
	case ParseError:
		return "parse error"
	default:
		return "not found"
	}
}

// Lookup is the outcome of loading the schema that sits next to a policy
// source file.
type Lookup struct {
	Path   string
	Status LookupStatus
	Schema *Schema
	// Raw is the file content, kept so the full document can be embedded in
	// a ConstraintTemplate.
	Raw []byte
	Err error
}

// Available returns the schema, or nil when it is missing or unparseable.
func (l Lookup) Available() *Schema {
	if l.Status != Found {
		return nil
	}
	return l.Schema
}

// SchemaPath derives the schema location for a policy source file by
// replacing its final extension: policy.rego -> policy.schema.json.
func SchemaPath(sourcePath string) string {
	ext := filepath.Ext(sourcePath)
	base := strings.TrimSuffix(sourcePath, ext)
	return base + "." + schemaExtension
}

// Loader reads schema documents. The zero value reads from the local
// filesystem.
type Loader struct {
	ReadFile func(path string) ([]byte, error)
}

var defaultLoader = Loader{}

// Load reads and parses the schema at path. It never panics and never
// returns an error directly; failures are reported through the status.
func (l Loader) Load(path string) (result Lookup) {
	result = Lookup{Path: path, Status: NotFound}
	defer func() {
		if r := recover(); r != nil {
			result = Lookup{Path: path, Status: ParseError, Err: fmt.Errorf("reading schema %s: %v", path, r)}
		}
	}()

	readFile := l.ReadFile
	if readFile == nil {
		readFile = os.ReadFile
	}

	data, err := readFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return result
		}
		// Unreadable files are as good as missing for linting purposes, but
		// keep the cause for callers that want to report it.
		result.Err = fmt.Errorf("reading schema %s: %w", path, err)
		return result
	}

	schema, err := ParseSchema(data)
	if err != nil {
		return Lookup{Path: path, Status: ParseError, Raw: data, Err: fmt.Errorf("parsing schema %s: %w", path, err)}
	}

	return Lookup{Path: path, Status: Found, Schema: schema, Raw: data}
}

// ForSource loads the schema associated with a policy source file.
func (l Loader) ForSource(sourcePath string) Lookup {
	return l.Load(SchemaPath(sourcePath))
}

// LoadSchema loads a schema from the local filesystem.
func LoadSchema(path string) Lookup {
	return defaultLoader.Load(path)
}

// AssociatedSchema returns the schema next to sourcePath, or nil if there is
// no usable one.
func AssociatedSchema(sourcePath string) *Schema {
	return defaultLoader.ForSource(sourcePath).Available()
}
