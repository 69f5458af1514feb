package store

import (
	"encoding/json"
	"time"
)

// record is the persisted form of an entry.
type record[T any] struct {
	Value     T         `json:"value"`
	FetchedAt time.Time `json:"fetched_at"`
}

func toRecord[T any](e entry[T]) record[T] {
	return record[T]{Value: e.value, FetchedAt: e.fetchedAt}
}

// decodeEntry reads a record. Blobs holding only the bare value (written by other
// tools, or before fetch times were kept) hydrate without a fetch time: fresh for
// stores without TTL, stale for the others.
func decodeEntry[T any](raw []byte) (entry[T], error) {
	var r struct {
		Value     json.RawMessage `json:"value"`
		FetchedAt *time.Time      `json:"fetched_at"`
	}
	if json.Unmarshal(raw, &r) == nil && r.Value != nil && r.FetchedAt != nil {
		var v T
		if err := json.Unmarshal(r.Value, &v); err != nil {
			return entry[T]{}, err
		}
		return entry[T]{value: v, fetchedAt: *r.FetchedAt}, nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return entry[T]{}, err
	}
	return entry[T]{value: v}, nil
}
