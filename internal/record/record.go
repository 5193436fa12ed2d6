package record

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strconv"
)

const (
	// MinTimestamp and MaxTimestamp bound generated timestamps; MaxTimestamp is exclusive.
	MinTimestamp uint64 = 15000000000
	MaxTimestamp uint64 = 19000000000

	// MaxIdentifier is the exclusive upper bound of the numeric identifier.
	MaxIdentifier = 100000000

	// Payload marks every record as synthetic.
	Payload = "testdata"
)

// Record is one unit of synthetic test data.
type Record struct {
	Timestamp  uint64 `json:"ts"`
	Identifier string `json:"user_id"`
	Payload    string `json:"data"`
}

// EntryName returns the archive entry name for the record.
// Names are not unique: two records drawing the same identifier and
// timestamp produce the same name.
func (r Record) EntryName() string {
	return r.Identifier + "_" + strconv.FormatUint(r.Timestamp, 10) + ".json"
}

// Validate checks that every field lies in its generated range.
func (r Record) Validate() error {
	if r.Timestamp < MinTimestamp || r.Timestamp >= MaxTimestamp {
		return fmt.Errorf("%w: ts %d outside [%d, %d)", ErrOutOfRange, r.Timestamp, MinTimestamp, MaxTimestamp)
	}

	id, err := strconv.ParseUint(r.Identifier, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: user_id %q: %w", ErrOutOfRange, r.Identifier, err)
	}
	if id >= MaxIdentifier || strconv.FormatUint(id, 10) != r.Identifier {
		return fmt.Errorf("%w: user_id %q outside [0, %d)", ErrOutOfRange, r.Identifier, MaxIdentifier)
	}

	if r.Payload != Payload {
		return fmt.Errorf("%w: data %q, want %q", ErrOutOfRange, r.Payload, Payload)
	}

	return nil
}

// Generator produces random records from its own source.
// A Generator is not safe for concurrent use; give each worker its own.
type Generator struct {
	rand *rand.Rand
}

// NewGenerator returns a generator drawing from r.
func NewGenerator(r *rand.Rand) *Generator {
	return &Generator{rand: r}
}

// NewRandomGenerator returns a generator with an independently seeded PCG source.
func NewRandomGenerator() *Generator {
	return NewGenerator(rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))
}

// Next draws a new record.
func (g *Generator) Next() Record {
	return Record{
		Timestamp:  MinTimestamp + g.rand.Uint64N(MaxTimestamp-MinTimestamp),
		Identifier: strconv.Itoa(g.rand.IntN(MaxIdentifier)),
		Payload:    Payload,
	}
}

// Encode serializes a record to compact JSON.
func Encode(r Record) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}

	return data, nil
}

// Decode parses a record encoded by Encode.
func Decode(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	return r, nil
}
