package repositories

import (
	"encoding/binary"
	stderrors "errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"

	"collabhub/errors"
)

// Values are CBOR with Core Deterministic Encoding: the same logical record
// always produces identical bytes, which keeps storage-level comparisons and
// debugging sane.
var encMode cbor.EncMode

func init() {
	var err error
	options := cbor.CoreDetEncOptions()
	// Timestamps feed ordering keys; second-precision epoch encoding would
	// truncate them. RFC3339Nano keeps the full nanosecond.
	options.Time = cbor.TimeRFC3339Nano
	encMode, err = options.EncMode()
	if err != nil {
		panic("repositories: CBOR encoder initialization failed: " + err.Error())
	}
}

func marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

func unmarshal(data []byte, v any) error {
	return cbor.Unmarshal(data, v)
}

func encodeCount(n uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, n)
	return buf
}

func decodeCount(data []byte) (uint64, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("counter value has %d bytes, want 8", len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

// runUpdate retries the closure for as long as its transaction loses a
// serializable-snapshot conflict. The closure re-reads everything it
// depends on at each attempt, so this is a compare-and-swap loop over
// current state, never a blind replay of a stale decision.
func runUpdate(db *badger.DB, fn func(txn *badger.Txn) error) error {
	for {
		err := db.Update(fn)
		if !stderrors.Is(err, badger.ErrConflict) {
			return err
		}
	}
}

// domainSentinels lists errors that pass through storage untouched. Anything
// else coming out of a transaction is a storage fault and is reported as
// Unavailable so the caller knows a retry is safe.
var domainSentinels = []error{
	errors.ErrValidation,
	errors.ErrNotFound,
	errors.ErrForbidden,
	errors.ErrConflict,
	errors.ErrInvalidTransition,
	errors.ErrPostNotOpen,
	errors.ErrChatClosed,
	errors.ErrNotParticipant,
}

func storageErr(err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range domainSentinels {
		if stderrors.Is(err, sentinel) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", errors.ErrUnavailable, err)
}
