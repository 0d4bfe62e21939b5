// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package payload

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// maxExactFloat is the largest float64 that still maps onto a unique int64.
const maxExactFloat = 1 << 53

// positiveInt applies the "parse as number, require finite, positive and
// integral" rule. Booleans and nil are never numbers here.
func positiveInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), n > 0
	case int8:
		return int64(n), n > 0
	case int16:
		return int64(n), n > 0
	case int32:
		return int64(n), n > 0
	case int64:
		return n, n > 0
	case uint:
		return checkedUint(uint64(n))
	case uint8:
		return int64(n), n > 0
	case uint16:
		return int64(n), n > 0
	case uint32:
		return int64(n), n > 0
	case uint64:
		return checkedUint(n)
	case float32:
		return positiveFloat(float64(n))
	case float64:
		return positiveFloat(n)
	case json.Number:
		return parsePositive(string(n))
	case string:
		return parsePositive(n)
	default:
		return 0, false
	}
}

func checkedUint(n uint64) (int64, bool) {
	if n == 0 || n > math.MaxInt64 {
		return 0, false
	}
	return int64(n), true
}

func positiveFloat(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 || f != math.Trunc(f) || f > maxExactFloat {
		return 0, false
	}
	return int64(f), true
}

func parsePositive(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, n > 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return positiveFloat(f)
}

// truthy reports the boolean coercion of a loosely-typed value: zero
// numbers, NaN, empty strings and nil are false, everything else is true.
func truthy(v any) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	case string:
		return b != ""
	case json.Number:
		f, err := b.Float64()
		return err == nil && f != 0 && !math.IsNaN(f)
	case float64:
		return b != 0 && !math.IsNaN(b)
	case float32:
		return b != 0 && !math.IsNaN(float64(b))
	case int:
		return b != 0
	case int64:
		return b != 0
	case int32:
		return b != 0
	case uint:
		return b != 0
	case uint64:
		return b != 0
	default:
		return true
	}
}
