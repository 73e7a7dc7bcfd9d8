package extraction

// RepairJSONArray recovers a usable array from truncated JSON: it locates
// the first '[' and keeps every complete top-level element before the
// truncation point, then closes the array. Returns false when no complete
// element can be recovered.
func RepairJSONArray(raw []byte) ([]byte, bool) {
	start := -1
	for i, b := range raw {
		if b == '[' {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, false
	}

	depth := 0
	inString := false
	escaped := false
	lastComplete := -1 // index just past the last complete top-level element

	for i := start; i < len(raw); i++ {
		b := raw[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case b == '\\':
				escaped = true
			case b == '"':
				inString = false
			}
			continue
		}

		switch b {
		case '"':
			inString = true
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth == 1 {
				// An element of the outer array just closed.
				lastComplete = i + 1
			}
			if depth == 0 {
				// The outer array closed cleanly: nothing to repair.
				return raw[start : i+1], true
			}
		case ',':
			// Scalar elements complete at a depth-1 comma.
			if depth == 1 && lastComplete < i {
				lastComplete = i
			}
		}
	}

	if lastComplete <= start {
		return nil, false
	}

	repaired := make([]byte, 0, lastComplete-start+1)
	repaired = append(repaired, raw[start:lastComplete]...)
	repaired = append(repaired, ']')
	return repaired, true
}
