package storage

import (
	"github.com/pgvector/pgvector-go"
)

// vectorArg returns the query argument for an optional vector column; an
// empty vector is stored as NULL.
func vectorArg(v []float32) interface{} {
	if len(v) == 0 {
		return nil
	}
	return pgvector.NewVector(v)
}

// vectorValue unwraps a scanned nullable vector column.
func vectorValue(v *pgvector.Vector) []float32 {
	if v == nil {
		return nil
	}
	if s := v.Slice(); len(s) > 0 {
		return s
	}
	return nil
}
