package facematch

import "testing"

func TestRemoveDiacritics(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Honza", "Honza"},
		{"Jiří", "Jiri"},
		{"café", "cafe"},
		{"naïve", "naive"},
		{"hello", "hello"},
		{"Žluťoučký kůň", "Zlutoucky kun"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := RemoveDiacritics(tt.input)
			if result != tt.expected {
				t.Errorf("RemoveDiacritics(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNormalizePersonName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Jan Novák", "jan novak"},
		{"jan-novak", "jan novak"},
		{"JOHN DOE", "john doe"},
		{"jan-novák", "jan novak"},
		{"  Sarah   Connor ", "sarah connor"},
		{"mary_ann", "mary ann"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := NormalizePersonName(tt.input)
			if result != tt.expected {
				t.Errorf("NormalizePersonName(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNameMatches(t *testing.T) {
	tests := []struct {
		query    string
		name     string
		expected bool
	}{
		{"sarah", "Sarah Johnson", true},
		{"SAR", "Sarah Johnson", true},
		{"johnson", "Sarah Johnson", true},
		{"sarah johnson", "Sarah Johnson", true},
		{"jiri", "Jiří Novák", true},
		{"novak", "Jiří Novák", true},
		{"ohn", "Sarah Johnson", false},
		{"mike", "Sarah Johnson", false},
		{"", "Sarah Johnson", false},
		{"   ", "Sarah Johnson", false},
	}

	for _, tt := range tests {
		t.Run(tt.query+"/"+tt.name, func(t *testing.T) {
			if got := NameMatches(tt.query, tt.name); got != tt.expected {
				t.Errorf("NameMatches(%q, %q) = %v, want %v", tt.query, tt.name, got, tt.expected)
			}
		})
	}
}
