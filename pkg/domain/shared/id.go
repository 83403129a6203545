package shared

import (
	"database/sql/driver"
	"fmt"

	"github.com/google/uuid"
)

// ID represents a unique identifier for domain entities.
type ID struct {
	value uuid.UUID
}

// NewID creates a new random ID.
func NewID() ID {
	return ID{value: uuid.New()}
}

// IDFromString creates an ID from a string.
func IDFromString(s string) (ID, error) {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return ID{}, fmt.Errorf("invalid id format: %w", err)
	}
	return ID{value: parsed}, nil
}

// MustIDFromString creates an ID from a string, panics on error.
func MustIDFromString(s string) ID {
	id, err := IDFromString(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the string representation of the ID.
func (id ID) String() string {
	return id.value.String()
}

// IsZero returns true if the ID is empty.
func (id ID) IsZero() bool {
	return id.value == uuid.Nil
}

// Equals checks if two IDs are equal.
func (id ID) Equals(other ID) bool {
	return id.value == other.value
}

// Value implements driver.Valuer for database serialization.
func (id ID) Value() (driver.Value, error) {
	return id.value.String(), nil
}

// Scan implements sql.Scanner for database deserialization.
func (id *ID) Scan(src any) error {
	switch v := src.(type) {
	case string:
		parsed, err := uuid.Parse(v)
		if err != nil {
			return fmt.Errorf("invalid id format: %w", err)
		}
		id.value = parsed
		return nil
	case []byte:
		parsed, err := uuid.Parse(string(v))
		if err != nil {
			return fmt.Errorf("invalid id format: %w", err)
		}
		id.value = parsed
		return nil
	case nil:
		id.value = uuid.Nil
		return nil
	default:
		return fmt.Errorf("cannot scan %T into ID", src)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.value.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(data []byte) error {
	parsed, err := uuid.Parse(string(data))
	if err != nil {
		return fmt.Errorf("invalid id format: %w", err)
	}
	id.value = parsed
	return nil
}
