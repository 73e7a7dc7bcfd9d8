package extraction

import (
	"encoding/json"
	"testing"
)

func TestRepairJSONArray(t *testing.T) {
	cases := []struct {
		name      string
		raw       string
		wantOK    bool
		wantElems int
	}{
		{
			name:      "clean array passes through",
			raw:       `[{"q":"one"},{"q":"two"}]`,
			wantOK:    true,
			wantElems: 2,
		},
		{
			name:      "truncated mid-object drops the partial element",
			raw:       `[{"q":"one"},{"q":"two"},{"q":"thr`,
			wantOK:    true,
			wantElems: 2,
		},
		{
			name:      "truncated right after a complete element",
			raw:       `[{"q":"one"},{"q":"two"}`,
			wantOK:    true,
			wantElems: 2,
		},
		{
			name:      "leading prose before the array",
			raw:       "Here are the questions:\n[{\"q\":\"one\"},{\"q\":\"tw",
			wantOK:    true,
			wantElems: 1,
		},
		{
			name:      "bracket inside a string does not confuse the scanner",
			raw:       `[{"q":"a ] tricky [ one"},{"q":"tw`,
			wantOK:    true,
			wantElems: 1,
		},
		{
			name:      "escaped quote inside a string",
			raw:       `[{"q":"say \"hi\""},{"q":"tw`,
			wantOK:    true,
			wantElems: 1,
		},
		{
			name:      "nested arrays stay with their element",
			raw:       `[{"options":["a","b"]},{"options":["c`,
			wantOK:    true,
			wantElems: 1,
		},
		{
			name:   "no array at all",
			raw:    `the model returned prose instead of JSON`,
			wantOK: false,
		},
		{
			name:   "no complete element",
			raw:    `[{"q":"one`,
			wantOK: false,
		},
		{
			name:   "bare open bracket",
			raw:    `[`,
			wantOK: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repaired, ok := RepairJSONArray([]byte(tc.raw))
			if ok != tc.wantOK {
				t.Fatalf("RepairJSONArray ok = %v, want %v (got %q)", ok, tc.wantOK, repaired)
			}
			if !ok {
				return
			}

			var elems []json.RawMessage
			if err := json.Unmarshal(repaired, &elems); err != nil {
				t.Fatalf("Repaired output is not valid JSON: %v (%q)", err, repaired)
			}
			if len(elems) != tc.wantElems {
				t.Errorf("Expected %d elements, got %d (%q)", tc.wantElems, len(elems), repaired)
			}
		})
	}
}
