package jelrec

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Revision is an optimistic-concurrency token of the form
// "<version>-<md5 hex of the record excluding the revision field>". The
// version starts at 1 on first insert and increments by exactly one on every
// save that actually changes content.
type Revision string

// Version returns the integer prefix of the revision, or 0 if the token is
// malformed.
func (r Revision) Version() int {
	pre, _, ok := strings.Cut(string(r), "-")
	if !ok {
		return 0
	}
	v, err := strconv.Atoi(pre)
	if err != nil {
		return 0
	}
	return v
}

// Hash returns the content-hash suffix of the revision.
func (r Revision) Hash() string {
	_, suf, _ := strings.Cut(string(r), "-")
	return suf
}

// hashRecord hashes the record's current content, excluding the revision
// field itself and the primary key. The key must not contribute: records
// with backend-generated keys hash their first revision before the key
// exists. Serialization is JSON with map keys in sorted order, so the same
// content always hashes identically.
func hashRecord(rec map[string]any, revField, primary string) string {
	trimmed := make(map[string]any, len(rec))
	for k, v := range rec {
		if k == revField || k == primary {
			continue
		}
		trimmed[k] = v
	}

	// encoding/json writes map keys sorted, which is exactly the stable
	// ordering the hash needs.
	data, err := json.Marshal(trimmed)
	if err != nil {
		// records hold only cleaned, schema-approved values, all of which
		// are JSON-encodable.
		panic(fmt.Sprintf("record content not encodable: %v", err))
	}

	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// firstRevision computes the revision token for a record's first insert.
func firstRevision(rec map[string]any, revField, primary string) Revision {
	return Revision("1-" + hashRecord(rec, revField, primary))
}

// nextRevision computes the successor of cur for the record's current
// content. If the content hash is unchanged, changed is false and the
// current revision is returned as-is: the record is semantically identical
// and no write is needed.
func nextRevision(cur Revision, rec map[string]any, revField, primary string) (next Revision, changed bool) {
	h := hashRecord(rec, revField, primary)
	if h == cur.Hash() {
		return cur, false
	}

	return Revision(strconv.Itoa(cur.Version()+1) + "-" + h), true
}
