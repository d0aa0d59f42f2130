package eventstore

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/OCAP2/turnkernel/pkg/core"
)

// Persist writes the whole log as a JSON array in application order.
func (s *Store) Persist(w io.Writer) error {
	events := s.All()
	if events == nil {
		events = []core.Event{}
	}
	enc := json.NewEncoder(w)
	if err := enc.Encode(events); err != nil {
		return fmt.Errorf("failed to encode event log: %w", err)
	}
	return nil
}

// PersistFile writes the log to path, gzip-compressed when compress is set. The log
// is written to a temporary file in the same directory and renamed over path, so
// path holds either the previous log or the complete new one.
func (s *Store) PersistFile(path string, compress bool) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create event log: %w", err)
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(f.Name())
		}
	}()

	if compress {
		gz := gzip.NewWriter(f)
		if err := s.Persist(gz); err != nil {
			return err
		}
		if err := gz.Close(); err != nil {
			return fmt.Errorf("failed to close gzip writer: %w", err)
		}
	} else if err := s.Persist(f); err != nil {
		return err
	}

	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync event log: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close event log: %w", err)
	}
	if err := os.Chmod(f.Name(), 0644); err != nil {
		return fmt.Errorf("failed to set event log mode: %w", err)
	}
	if err := os.Rename(f.Name(), path); err != nil {
		return fmt.Errorf("failed to move event log into place: %w", err)
	}
	return nil
}

// Restore reads a log written by Persist. The events must be strictly increasing by
// (turn, time, id) with unique ids; anything else fails with ErrCorruptLog and no
// partial store is returned.
func Restore(r io.Reader) (*Store, error) {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		return nil, &CorruptLogError{Index: 0, Reason: "unreadable header", Err: err}
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, &CorruptLogError{Index: 0, Reason: "expected a JSON array"}
	}

	s := New()
	ids := make(map[core.EventID]struct{})
	var prev core.Event
	for i := 0; dec.More(); i++ {
		var e core.Event
		if err := dec.Decode(&e); err != nil {
			return nil, &CorruptLogError{Index: i, Reason: "undecodable event", Err: err}
		}
		if err := checkEvent(e); err != nil {
			return nil, &CorruptLogError{Index: i, Reason: "invalid event", Err: err}
		}
		if e.ID == 0 {
			return nil, &CorruptLogError{Index: i, Reason: "missing id"}
		}
		if _, dup := ids[e.ID]; dup {
			return nil, &CorruptLogError{Index: i, Reason: fmt.Sprintf("duplicate id %d", e.ID)}
		}
		if i > 0 && !prev.Less(e) {
			return nil, &CorruptLogError{Index: i, Reason: fmt.Sprintf("%s is not after %s", e, prev)}
		}
		ids[e.ID] = struct{}{}
		s.insert(e)
		if e.ID >= s.nextID {
			s.nextID = e.ID + 1
		}
		prev = e
	}
	if _, err := dec.Token(); err != nil {
		return nil, &CorruptLogError{Index: len(s.events), Reason: "truncated log", Err: err}
	}
	return s, nil
}

// LoadFile restores a log from path, detecting gzip compression from the content.
func LoadFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var r io.Reader = br
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, &CorruptLogError{Reason: "bad gzip stream", Err: err}
		}
		defer gz.Close()
		r = gz
	} else if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}
	return Restore(r)
}
