/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package keystore

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orgvault/orgvault-go/pkg/storage/mem"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(mem.NewProvider())
	require.NoError(t, err)

	return store
}

func testRecord(userID, org string) *Record {
	return &Record{
		ID:               CompositeID(userID, org),
		Encrypted:        ByteSeq{1, 2, 3, 4},
		Salt:             ByteSeq{5, 6, 7, 8},
		IV:               ByteSeq{9, 10, 11, 12},
		Timestamp:        time.Date(2023, time.March, 14, 15, 9, 26, 0, time.UTC),
		OrganizationName: org,
		UserID:           userID,
	}
}

func TestCompositeID(t *testing.T) {
	require.Equal(t, "u1_acme_privateKey", CompositeID("u1", "acme"))
}

func TestPutGet(t *testing.T) {
	store := openTestStore(t)

	record := testRecord("u1", "acme")

	require.NoError(t, store.Put(record))

	got, err := store.Get("u1_acme_privateKey")
	require.NoError(t, err)
	require.Equal(t, record, got)

	t.Run("Overwrite replaces the record", func(t *testing.T) {
		updated := testRecord("u1", "acme")
		updated.Encrypted = ByteSeq{42}

		require.NoError(t, store.Put(updated))

		got, err := store.Get("u1_acme_privateKey")
		require.NoError(t, err)
		require.Equal(t, ByteSeq{42}, got.Encrypted)
	})

	t.Run("Missing record", func(t *testing.T) {
		got, err := store.Get("u2_acme_privateKey")
		require.ErrorIs(t, err, ErrNotFound)
		require.Nil(t, got)
	})

	t.Run("Nil record", func(t *testing.T) {
		err := store.Put(nil)

		storageErr := &StorageError{}
		require.ErrorAs(t, err, &storageErr)
	})
}

func TestDelete(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Put(testRecord("u1", "acme")))
	require.NoError(t, store.Delete("u1_acme_privateKey"))

	_, err := store.Get("u1_acme_privateKey")
	require.ErrorIs(t, err, ErrNotFound)

	// deleting an absent record is a no-op
	require.NoError(t, store.Delete("u1_acme_privateKey"))
}

func TestRekey(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		store := openTestStore(t)

		record := testRecord("pending-1234", "acme")
		require.NoError(t, store.Put(record))

		require.NoError(t, store.Rekey("pending-1234_acme_privateKey", "u1_acme_privateKey"))

		_, err := store.Get("pending-1234_acme_privateKey")
		require.ErrorIs(t, err, ErrNotFound)

		got, err := store.Get("u1_acme_privateKey")
		require.NoError(t, err)
		require.Equal(t, "u1_acme_privateKey", got.ID)
		require.Equal(t, record.Encrypted, got.Encrypted)
		require.Equal(t, record.Salt, got.Salt)
		require.Equal(t, record.IV, got.IV)
	})

	t.Run("Missing source leaves store unchanged", func(t *testing.T) {
		store := openTestStore(t)

		require.NoError(t, store.Put(testRecord("u1", "acme")))

		err := store.Rekey("missing_acme_privateKey", "u2_acme_privateKey")
		require.ErrorIs(t, err, ErrNotFound)

		_, err = store.Get("u2_acme_privateKey")
		require.ErrorIs(t, err, ErrNotFound)

		_, err = store.Get("u1_acme_privateKey")
		require.NoError(t, err)
	})
}

func TestListByUser(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Put(testRecord("u1", "acme")))
	require.NoError(t, store.Put(testRecord("u1", "globex")))
	require.NoError(t, store.Put(testRecord("u2", "acme")))

	records, err := store.ListByUser("u1")
	require.NoError(t, err)
	require.Len(t, records, 2)

	orgs := []string{records[0].OrganizationName, records[1].OrganizationName}
	require.Contains(t, orgs, "acme")
	require.Contains(t, orgs, "globex")

	records, err = store.ListByUser("u3")
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestClearAllForUser(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Put(testRecord("u1", "acme")))
	require.NoError(t, store.Put(testRecord("u1", "globex")))
	require.NoError(t, store.Put(testRecord("u2", "acme")))

	require.NoError(t, store.ClearAllForUser("u1"))

	records, err := store.ListByUser("u1")
	require.NoError(t, err)
	require.Empty(t, records)

	// other users' records survive
	_, err = store.Get("u2_acme_privateKey")
	require.NoError(t, err)

	// clearing a user with no records is a no-op
	require.NoError(t, store.ClearAllForUser("u1"))
}

func TestByteSeqJSON(t *testing.T) {
	t.Run("Marshals to an integer array", func(t *testing.T) {
		data, err := json.Marshal(ByteSeq{0, 127, 255})
		require.NoError(t, err)
		require.JSONEq(t, "[0,127,255]", string(data))
	})

	t.Run("Round trip through a record", func(t *testing.T) {
		record := testRecord("u1", "acme")

		data, err := json.Marshal(record)
		require.NoError(t, err)
		require.Contains(t, string(data), `"encrypted":[1,2,3,4]`)
		require.Contains(t, string(data), `"userId":"u1"`)
		require.Contains(t, string(data), `"organizationName":"acme"`)

		decoded := &Record{}
		require.NoError(t, json.Unmarshal(data, decoded))
		require.Equal(t, record, decoded)
	})

	t.Run("Rejects out-of-range elements", func(t *testing.T) {
		var b ByteSeq

		require.Error(t, json.Unmarshal([]byte("[256]"), &b))
		require.Error(t, json.Unmarshal([]byte("[-1]"), &b))
		require.Error(t, json.Unmarshal([]byte(`"not an array"`), &b))
	})
}

func TestStorageErrorUnwrap(t *testing.T) {
	cause := errors.New("disk on fire")
	err := &StorageError{Op: "put", Err: cause}

	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "put")
	require.Contains(t, err.Error(), "disk on fire")
}
