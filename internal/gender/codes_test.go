package gender

import "testing"

func TestCanonicalValid(t *testing.T) {
	tests := []struct {
		value    Canonical
		expected bool
	}{
		{Male, true},
		{Female, true},
		{Other, true},
		{Unknown, true},
		{Canonical("banana"), false},
		{Canonical(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.value), func(t *testing.T) {
			if tt.value.Valid() != tt.expected {
				t.Errorf("Expected Valid() = %v for '%s'", tt.expected, tt.value)
			}
		})
	}
}

func TestRoundTripAllTables(t *testing.T) {
	nodes := []string{"general", "lakeside", "stmarys"}

	for _, node := range nodes {
		table := TableFor(node)
		for _, c := range Canonicals {
			t.Run(node+"/"+string(c), func(t *testing.T) {
				local := table.Local(c)
				back := table.Canonical(local)
				if back != c {
					t.Errorf("Expected round trip %s -> %s -> %s, got %s", c, local, c, back)
				}
			})
		}
	}
}

func TestGeneralTableCodes(t *testing.T) {
	table := TableFor("general")

	tests := []struct {
		local    string
		expected Canonical
	}{
		{"M", Male},
		{"F", Female},
		{"O", Other},
		{"U", Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.local, func(t *testing.T) {
			if got := table.Canonical(tt.local); got != tt.expected {
				t.Errorf("Expected '%s' for local code '%s', got '%s'", tt.expected, tt.local, got)
			}
		})
	}
}

func TestLakesideNumericCodes(t *testing.T) {
	table := TableFor("lakeside")

	if got := table.Canonical("1"); got != Male {
		t.Errorf("Expected male for code '1', got '%s'", got)
	}
	if got := table.Canonical("2"); got != Female {
		t.Errorf("Expected female for code '2', got '%s'", got)
	}
	if got := table.Local(Other); got != "9" {
		t.Errorf("Expected '9' for other, got '%s'", got)
	}
}

func TestUnrecognizedLocalCodeMapsToUnknown(t *testing.T) {
	for _, node := range []string{"general", "lakeside", "stmarys"} {
		table := TableFor(node)
		if got := table.Canonical("does-not-exist"); got != Unknown {
			t.Errorf("Expected unknown for unrecognized code on node %s, got '%s'", node, got)
		}
	}
}

func TestInvalidCanonicalMapsToUnknownCode(t *testing.T) {
	table := TableFor("general")
	if got := table.Local(Canonical("bogus")); got != "U" {
		t.Errorf("Expected 'U' for invalid canonical value, got '%s'", got)
	}
}

func TestTableForUnknownNodeFallsBack(t *testing.T) {
	table := TableFor("no-such-hospital")
	if got := table.Canonical("M"); got != Male {
		t.Errorf("Expected fallback table to use general codes, got '%s'", got)
	}
}
