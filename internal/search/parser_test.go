package search

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func utcDate(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func timePtr(v time.Time) *time.Time { return &v }

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  Query
	}{
		// Basic operators
		{
			name:  "from operator",
			query: "from:Alice@Example.com",
			want:  Query{FromAddrs: []string{"alice@example.com"}},
		},
		{
			name:  "from prefix",
			query: "from:alice@",
			want:  Query{FromAddrs: []string{"alice@"}},
		},
		{
			name:  "to operator",
			query: "to:bob@example.com",
			want:  Query{ToAddrs: []string{"bob@example.com"}},
		},
		{
			name:  "folder operator trims slashes",
			query: "folder:/lists/go-nuts/",
			want:  Query{Folders: []string{"lists/go-nuts"}},
		},
		{
			name:  "bare text",
			query: "hello world",
			want:  Query{TextTerms: []string{"hello", "world"}},
		},
		{
			name:  "quoted phrase",
			query: `"hello world"`,
			want:  Query{TextTerms: []string{"hello world"}},
		},
		{
			name:  "mixed operators and text",
			query: "from:alice@example.com meeting notes",
			want: Query{
				FromAddrs: []string{"alice@example.com"},
				TextTerms: []string{"meeting", "notes"},
			},
		},
		{
			name:  "tabs separate tokens",
			query: "alpha\tbeta",
			want:  Query{TextTerms: []string{"alpha", "beta"}},
		},

		// Quoted operator values
		{
			name:  "subject with quoted phrase",
			query: `subject:"meeting notes"`,
			want:  Query{SubjectTerms: []string{"meeting notes"}},
		},
		{
			name:  "subject with single-quoted phrase",
			query: `subject:'status report'`,
			want:  Query{SubjectTerms: []string{"status report"}},
		},
		{
			name:  "mixed quoted and unquoted",
			query: `subject:urgent subject:"very important" search term`,
			want: Query{
				SubjectTerms: []string{"urgent", "very important"},
				TextTerms:    []string{"search", "term"},
			},
		},

		// Quoted phrases with colons are not operators
		{
			name:  "quoted phrase with time",
			query: `"meeting at 10:30"`,
			want:  Query{TextTerms: []string{"meeting at 10:30"}},
		},
		{
			name:  "quoted colon phrase mixed with real operator",
			query: `from:alice@example.com "subject:not an operator"`,
			want: Query{
				FromAddrs: []string{"alice@example.com"},
				TextTerms: []string{"subject:not an operator"},
			},
		},

		// Unknown or empty operators fall through as text
		{
			name:  "unknown operator",
			query: "label:inbox",
			want:  Query{TextTerms: []string{"label:inbox"}},
		},
		{
			name:  "empty operator value",
			query: "from:",
			want:  Query{TextTerms: []string{"from:"}},
		},

		// Dates
		{
			name:  "after and before dates",
			query: "after:2024-01-15 before:2024/06/30",
			want: Query{
				AfterDate:  timePtr(utcDate(2024, 1, 15)),
				BeforeDate: timePtr(utcDate(2024, 6, 30)),
			},
		},
		{
			name:  "invalid date ignored",
			query: "after:yesterday",
			want:  Query{},
		},
		{
			name:  "newer month",
			query: "newer:2019-03",
			want:  Query{AfterDate: timePtr(utcDate(2019, 3, 1))},
		},
		{
			name:  "older month covers the whole month",
			query: "older:2019-12",
			want:  Query{BeforeDate: timePtr(utcDate(2020, 1, 1))},
		},

		// Complex query
		{
			name:  "complex query",
			query: `from:alice@example.com to:bob@example.com subject:meeting folder:Inbox after:2024-01-01 "project report"`,
			want: Query{
				FromAddrs:    []string{"alice@example.com"},
				ToAddrs:      []string{"bob@example.com"},
				SubjectTerms: []string{"meeting"},
				Folders:      []string{"Inbox"},
				TextTerms:    []string{"project report"},
				AfterDate:    timePtr(utcDate(2024, 1, 1)),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.query)
			assertQueryEqual(t, *got, tt.want)
		})
	}
}

func TestParse_RelativeDates(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	p := &Parser{Now: func() time.Time { return now }}

	tests := []struct {
		query string
		want  Query
	}{
		{"newer_than:7d", Query{AfterDate: timePtr(now.AddDate(0, 0, -7))}},
		{"newer_than:2w", Query{AfterDate: timePtr(now.AddDate(0, 0, -14))}},
		{"older_than:1m", Query{BeforeDate: timePtr(now.AddDate(0, -1, 0))}},
		{"older_than:1Y", Query{BeforeDate: timePtr(now.AddDate(-1, 0, 0))}},
		{"older_than:soon", Query{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assertQueryEqual(t, *p.Parse(tt.query), tt.want)
		})
	}
}

func TestTokenize(t *testing.T) {
	got := tokenize(`  from:a  "x y"subject:"p q" z `)
	want := []string{"from:a", `"x y"`, `subject:"p q"`, "z"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("tokenize mismatch (-want +got):\n%s", diff)
	}
}

func TestQuery_IsEmpty(t *testing.T) {
	tests := []struct {
		query   string
		isEmpty bool
	}{
		{"", true},
		{"   ", true},
		{"from:alice@example.com", false},
		{"hello", false},
		{"folder:Inbox", false},
		{"newer:2020-01", false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			q := Parse(tt.query)
			if q.IsEmpty() != tt.isEmpty {
				t.Errorf("IsEmpty(%q): got %v, want %v", tt.query, q.IsEmpty(), tt.isEmpty)
			}
		})
	}
}
