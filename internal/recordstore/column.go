package recordstore

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/loqalabs/loqa-minutes/internal/envelope"
)

// column is a stored result value, classified before it is interpreted.
type column interface {
	isColumn()
}

type sealedColumn struct {
	blob envelope.Blob
}

type plainColumn struct {
	raw json.RawMessage
}

func (sealedColumn) isColumn() {}
func (plainColumn) isColumn()  {}

// decodeColumn classifies a stored value. NULL yields nil.
func decodeColumn(v sql.NullString) column {
	if !v.Valid {
		return nil
	}
	if blob, ok := envelope.Unwrap([]byte(v.String)); ok {
		return sealedColumn{blob: blob}
	}
	return plainColumn{raw: json.RawMessage(v.String)}
}

func (s *Store) interpret(name string, col column, dst any) error {
	var payload []byte
	switch c := col.(type) {
	case sealedColumn:
		if s.passphrase == "" {
			return fmt.Errorf("%w: %s is encrypted; configure storage.passphrase to read it", ErrPassphraseRequired, name)
		}
		plaintext, err := envelope.Open(c.blob, s.passphrase)
		if err != nil {
			return fmt.Errorf("open %s: %w", name, err)
		}
		payload = []byte(plaintext)
	case plainColumn:
		payload = c.raw
	default:
		return fmt.Errorf("decode %s: unknown column kind %T", name, col)
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

func (s *Store) encodeColumn(v any) (sql.NullString, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	if s.passphrase == "" {
		return sql.NullString{String: string(data), Valid: true}, nil
	}
	blob, err := envelope.Seal(string(data), s.passphrase)
	if err != nil {
		return sql.NullString{}, err
	}
	wrapped, err := envelope.Wrap(blob)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(wrapped), Valid: true}, nil
}
