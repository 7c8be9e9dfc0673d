package inmem

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dekarrin/rezi/v2"
)

// Open creates a new Store that will persist itself to the given data file.
// If the file already exists, its entire contents are loaded into a new
// *Store which is then returned. If the file does not exist, it will be
// created.
//
// The returned Store does not automatically save its contents to disk;
// [Store.Persist] or [Store.Close] must be called to flush it.
//
// If file is the empty string, the Store is opened in in-memory mode and
// calls to Persist and Close will not write to disk.
func Open(file string) (*Store, error) {
	s := &Store{}
	if file == "" {
		return s, nil
	}

	dbData, err := os.ReadFile(file)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read file: %w", err)
	}

	if err == nil {
		s, err = Import(dbData)
		if err != nil {
			return nil, fmt.Errorf("load data: %w", err)
		}
	} else {
		// quick check that later persisting would not fail on permissions
		f, err := os.Create(file)
		if err != nil {
			return nil, fmt.Errorf("create new: %w", err)
		}
		f.Close()
	}

	s.DataFile = file
	return s, nil
}

// Import creates a Store from bytes previously produced by [Store.Export].
func Import(data []byte) (*Store, error) {
	s := &Store{}
	if len(data) == 0 {
		return s, nil
	}
	if _, err := rezi.Dec(data, s); err != nil {
		return nil, err
	}
	return s, nil
}

// ImportFile reads the bytes in the given file and returns the result of
// calling [Import] on the read bytes.
func ImportFile(file string) (*Store, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return Import(data)
}

// MarshalBinary converts the store to a binary bytes representation of
// itself. Row and change-log payloads are JSON documents inside the binary
// framing, since field values are schema-cleaned JSON-encodable values.
//
// This function is not concurrent safe; users of Store should prefer calling
// [Store.Export] or [Store.Persist], which obtain the needed lock.
func (s *Store) MarshalBinary() ([]byte, error) {
	if s == nil {
		return []byte{}, nil
	}

	tables := make(map[string][]byte, len(s.tables))
	for tk, rows := range s.tables {
		data, err := json.Marshal(rows)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", tk, err)
		}
		tables[tk] = data
	}

	changes := make(map[string][]byte, len(s.changes))
	for tk, rows := range s.changes {
		data, err := json.Marshal(rows)
		if err != nil {
			return nil, fmt.Errorf("changes of %s: %w", tk, err)
		}
		changes[tk] = data
	}

	var enc []byte
	enc = append(enc, rezi.MustEnc(tables)...)
	enc = append(enc, rezi.MustEnc(s.seqs)...)
	enc = append(enc, rezi.MustEnc(changes)...)

	return enc, nil
}

// UnmarshalBinary converts a binary byte representation of a Store located
// at the start of data and uses it to set the values on the Store.
//
// This function is not concurrent safe; users of Store should prefer calling
// [Open] or [Import] to create a Store from bytes.
func (s *Store) UnmarshalBinary(data []byte) error {
	if s == nil {
		return fmt.Errorf("cannot unmarshal to nil Store")
	}

	rr, err := rezi.NewReader(bytes.NewBuffer(data), nil)
	if err != nil {
		return err
	}

	var tables map[string][]byte
	if err := rr.Dec(&tables); err != nil {
		return rezi.Wrapf(0, "tables: %s", err)
	}

	var seqs map[string]int64
	if err := rr.Dec(&seqs); err != nil {
		return rezi.Wrapf(0, "seqs: %s", err)
	}

	var changes map[string][]byte
	if err := rr.Dec(&changes); err != nil {
		return rezi.Wrapf(0, "changes: %s", err)
	}

	s.tables = make(map[string]map[string]map[string]any, len(tables))
	for tk, payload := range tables {
		var rows map[string]map[string]any
		if err := json.Unmarshal(payload, &rows); err != nil {
			return fmt.Errorf("table %s: %w", tk, err)
		}
		s.tables[tk] = rows
	}

	s.seqs = seqs

	s.changes = make(map[string][]changeRow, len(changes))
	for tk, payload := range changes {
		var rows []changeRow
		if err := json.Unmarshal(payload, &rows); err != nil {
			return fmt.Errorf("changes of %s: %w", tk, err)
		}
		s.changes[tk] = rows
	}

	return nil
}

// Export exports all data to bytes that can be later loaded with [Import].
func (s *Store) Export() ([]byte, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	return s.exportUnsafe()
}

func (s *Store) exportUnsafe() ([]byte, error) {
	if s.closed {
		return nil, fmt.Errorf("operation called on closed *Store")
	}

	return rezi.Enc(s)
}

// Persist saves the store's data to its DataFile. If DataFile is the empty
// string, Persist does nothing.
//
// Persist is not automatically called; the user must do so themselves at the
// correct frequency, generally after each logical batch of operations.
func (s *Store) Persist() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	return s.persistUnsafe()
}

func (s *Store) persistUnsafe() error {
	if s.closed {
		return fmt.Errorf("operation called on closed *Store")
	}
	if s.DataFile == "" {
		return nil
	}

	dataBytes, err := s.exportUnsafe()
	if err != nil {
		return fmt.Errorf("get data bytes: %w", err)
	}

	wf, err := os.Create(s.DataFile)
	if err != nil {
		return fmt.Errorf("create data file: %w", err)
	}
	defer wf.Close()

	w := bufio.NewWriter(wf)
	if _, err := w.Write(dataBytes); err != nil {
		return fmt.Errorf("write data file: %w", err)
	}
	return w.Flush()
}
