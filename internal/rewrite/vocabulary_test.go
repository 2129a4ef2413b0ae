package rewrite

import (
	"reflect"
	"testing"
)

func TestParseUserVocabulary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{
			name: "commas and newlines",
			raw:  "Kubernetes, PostgreSQL\nGrafana",
			want: []string{"Kubernetes", "PostgreSQL", "Grafana"},
		},
		{
			name: "semicolons with stray whitespace",
			raw:  "  Aanya ;  Deep Thought ;;",
			want: []string{"Aanya", "Deep Thought"},
		},
		{
			name: "empty input",
			raw:  "  \n  ",
			want: []string{},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ParseUserVocabulary(tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseUserVocabulary(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestExtractContextNames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		context string
		want    []string
	}{
		{
			name:    "recipients cue with and",
			context: "Writing an email, recipients: Aanya Shah and Deep Thought.",
			want:    []string{"Aanya Shah", "Deep Thought"},
		},
		{
			name:    "lowercase candidates are skipped",
			context: "addressing the whole team and bob",
			want:    nil,
		},
		{
			name:    "no cue",
			context: "Taking meeting notes about the quarterly roadmap",
			want:    nil,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ExtractContextNames(tt.context)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractContextNames(%q) = %v, want %v", tt.context, got, tt.want)
			}
		})
	}
}

func TestAssembleVocabulary(t *testing.T) {
	t.Parallel()

	got := AssembleVocabulary(
		"Aanya, Deep Thought",
		"Writing an email, recipients: Aanya Shah and Deep Thought.",
	)

	// Longest first so phrases outrank their fragments, ties alphabetical,
	// deduplicated case-insensitively.
	want := []string{"Deep Thought", "Aanya Shah", "Thought", "Aanya", "Deep", "Shah"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("AssembleVocabulary() = %v, want %v", got, want)
	}
}

func TestAssembleVocabularyDedupKeepsFirstCasing(t *testing.T) {
	t.Parallel()

	got := AssembleVocabulary("PostgreSQL, postgresql", "")
	want := []string{"PostgreSQL"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("AssembleVocabulary() = %v, want %v (first-seen casing wins)", got, want)
	}
}

func TestAssembleVocabularyEmptyInputs(t *testing.T) {
	t.Parallel()

	if got := AssembleVocabulary("", ""); len(got) != 0 {
		t.Errorf("AssembleVocabulary(\"\", \"\") = %v, want empty", got)
	}
}
