// SPDX-License-Identifier: MPL-2.0

package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// RecordFileName is the name of the record file inside a state directory.
	RecordFileName = "app_state.json"

	// DefaultCWLDirName is the artifact subdirectory created under the state directory.
	DefaultCWLDirName = "cwl"

	tempFilePattern = ".app_state-*.tmp"
	tempFilePrefix  = ".app_state-"
)

var (
	// ErrStateCorrupt is the sentinel error wrapped by CorruptionError.
	ErrStateCorrupt = errors.New("application state is corrupt")
	// ErrMissingRequired is returned when a new store is requested without the
	// fields that can only be supplied at creation.
	ErrMissingRequired = errors.New("required state value missing")
	// ErrNotInitialized is returned by Open when no record exists.
	ErrNotInitialized = errors.New("application state not initialized")
)

type (
	// Record is the persisted pipeline state. Optional values are nil until
	// their stage has run; an empty string is a real value (for example an
	// image reference without a namespace).
	//
	// Fields are declared in key order so the encoded file is sorted.
	Record struct {
		AppBasePath           string  `json:"app_base_path"`
		AppRegistryID         *string `json:"app_registry_id"`
		CWLOutputPath         *string `json:"cwl_output_path"`
		DockerImageNamespace  *string `json:"docker_image_namespace"`
		DockerImageReference  *string `json:"docker_image_reference"`
		DockerImageRepository *string `json:"docker_image_repository"`
		DockerImageTag        *string `json:"docker_image_tag"`
		DockerURL             *string `json:"docker_url"`
		SourceRepository      string  `json:"source_repository"`
	}

	// CorruptionError reports a state directory whose record cannot be trusted.
	// It wraps ErrStateCorrupt for errors.Is() compatibility.
	CorruptionError struct {
		Path   string
		Reason string
		Cause  error
	}

	// Store is the durable, file-backed state of one pipeline.
	Store struct {
		dir    string
		path   string
		record Record
	}
)

// Error implements the error interface.
func (e *CorruptionError) Error() string {
	msg := fmt.Sprintf("application state %s: %s", e.Path, e.Reason)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns ErrStateCorrupt and the underlying cause.
func (e *CorruptionError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrStateCorrupt}
	}
	return []error{ErrStateCorrupt, e.Cause}
}

// RecordPath returns the record file location for a state directory.
func RecordPath(dir string) string {
	return filepath.Join(dir, RecordFileName)
}

// Exists reports whether a record file is present in dir.
func Exists(dir string) bool {
	info, err := os.Stat(RecordPath(dir))
	return err == nil && !info.IsDir()
}

// Open loads an existing store. It returns ErrNotInitialized when dir holds no
// record and a *CorruptionError when the record cannot be read back.
func Open(dir string) (*Store, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve state directory: %w", err)
	}

	if !Exists(absDir) {
		initialized, err := hasOtherEntries(absDir)
		if err != nil {
			return nil, err
		}
		if initialized {
			return nil, &CorruptionError{Path: RecordPath(absDir), Reason: "record file is missing from an initialized state directory"}
		}
		return nil, fmt.Errorf("%w: %s", ErrNotInitialized, absDir)
	}

	s := &Store{dir: absDir, path: RecordPath(absDir)}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenOrCreate loads the store in dir or, when none exists, creates one.
// appBasePath and sourceRepository are only used for a new store; both are
// required in that case. A new store is written to disk before it is returned.
func OpenOrCreate(dir, appBasePath, sourceRepository string) (*Store, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve state directory: %w", err)
	}

	if Exists(absDir) {
		return Open(absDir)
	}

	initialized, err := hasOtherEntries(absDir)
	if err != nil {
		return nil, err
	}
	if initialized {
		return nil, &CorruptionError{Path: RecordPath(absDir), Reason: "record file is missing from an initialized state directory"}
	}

	if strings.TrimSpace(appBasePath) == "" {
		return nil, fmt.Errorf("%w: %s must be supplied when %s does not exist", ErrMissingRequired, FieldAppBasePath, RecordPath(absDir))
	}
	if strings.TrimSpace(sourceRepository) == "" {
		return nil, fmt.Errorf("%w: %s must be supplied when %s does not exist", ErrMissingRequired, FieldSourceRepository, RecordPath(absDir))
	}

	parent := filepath.Dir(absDir)
	if _, err := os.Stat(parent); err != nil {
		return nil, fmt.Errorf("cannot create %s since parent directory %s does not exist: %w", absDir, parent, err)
	}
	if err := os.MkdirAll(absDir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	basePath, err := filepath.Abs(appBasePath)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", FieldAppBasePath, err)
	}

	cwlPath := filepath.Join(absDir, DefaultCWLDirName)
	s := &Store{
		dir:  absDir,
		path: RecordPath(absDir),
		record: Record{
			AppBasePath:      basePath,
			SourceRepository: normalizeSource(sourceRepository),
			CWLOutputPath:    &cwlPath,
		},
	}
	if err := s.Save(); err != nil {
		return nil, err
	}
	return s, nil
}

// Dir returns the absolute state directory.
func (s *Store) Dir() string { return s.dir }

// Path returns the absolute record file path.
func (s *Store) Path() string { return s.path }

// Snapshot returns a copy of the current record.
func (s *Store) Snapshot() Record {
	r := s.record
	r.AppRegistryID = clonePtr(r.AppRegistryID)
	r.CWLOutputPath = clonePtr(r.CWLOutputPath)
	r.DockerImageNamespace = clonePtr(r.DockerImageNamespace)
	r.DockerImageReference = clonePtr(r.DockerImageReference)
	r.DockerImageRepository = clonePtr(r.DockerImageRepository)
	r.DockerImageTag = clonePtr(r.DockerImageTag)
	r.DockerURL = clonePtr(r.DockerURL)
	return r
}

// Get returns the value of field, nil when unset.
func (s *Store) Get(field Field) (*string, error) {
	if err := field.Validate(); err != nil {
		return nil, err
	}
	switch field {
	case FieldAppBasePath:
		return ptr(s.record.AppBasePath), nil
	case FieldSourceRepository:
		return ptr(s.record.SourceRepository), nil
	default:
		return clonePtr(*s.record.slot(field)), nil
	}
}

// Set assigns field and persists the whole record before returning.
// A nil value clears an optional field.
func (s *Store) Set(field Field, value *string) error {
	if err := field.Validate(); err != nil {
		return err
	}
	if field.Immutable() {
		return fmt.Errorf("%w: %s", ErrImmutableField, field)
	}
	return s.commit(func(r *Record) { *r.slot(field) = clonePtr(value) })
}

// commit applies mutate to the record and saves it. The previous record is
// restored when the write fails, so memory never runs ahead of the file.
func (s *Store) commit(mutate func(*Record)) error {
	prev := s.record
	mutate(&s.record)
	if err := s.Save(); err != nil {
		s.record = prev
		return err
	}
	return nil
}

// slot returns the storage of an optional field. field must be valid and mutable.
func (r *Record) slot(field Field) **string {
	switch field {
	case FieldAppRegistryID:
		return &r.AppRegistryID
	case FieldCWLOutputPath:
		return &r.CWLOutputPath
	case FieldDockerImageNamespace:
		return &r.DockerImageNamespace
	case FieldDockerImageReference:
		return &r.DockerImageReference
	case FieldDockerImageRepository:
		return &r.DockerImageRepository
	case FieldDockerImageTag:
		return &r.DockerImageTag
	case FieldDockerURL:
		return &r.DockerURL
	default:
		panic("state: no slot for field " + string(field))
	}
}

// Save writes the entire record to a temporary file next to the record and
// renames it into place.
func (s *Store) Save() error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	if err := enc.Encode(s.record); err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	return writeFileAtomic(s.path, buf.Bytes(), 0o644)
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return &CorruptionError{Path: s.path, Reason: "record file is unreadable", Cause: err}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return &CorruptionError{Path: s.path, Reason: "record file is malformed", Cause: err}
	}
	if rec.AppBasePath == "" {
		return &CorruptionError{Path: s.path, Reason: fmt.Sprintf("record has no %s", FieldAppBasePath)}
	}
	if rec.SourceRepository == "" {
		return &CorruptionError{Path: s.path, Reason: fmt.Sprintf("record has no %s", FieldSourceRepository)}
	}

	s.record = rec
	return nil
}

// hasOtherEntries reports whether dir exists and contains anything besides
// leftovers of an interrupted write.
func hasOtherEntries(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read state directory: %w", err)
	}
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), tempFilePrefix) {
			return true, nil
		}
	}
	return false, nil
}

// normalizeSource makes local repository paths absolute and leaves URLs alone.
func normalizeSource(source string) string {
	if _, err := os.Stat(source); err != nil {
		return source
	}
	abs, err := filepath.Abs(source)
	if err != nil {
		return source
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

func ptr(v string) *string { return &v }

func clonePtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
