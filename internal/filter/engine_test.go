package filter

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"release_bot/internal/model"
)

func TestNormalizeKeywords(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "lowercases and trims",
			in:   []string{" CUDA ", "Linux"},
			want: []string{"cuda", "linux"},
		},
		{
			name: "drops empties",
			in:   []string{"", "  ", "opencl"},
			want: []string{"opencl"},
		},
		{
			name: "all empty yields nil",
			in:   []string{"", "   "},
			want: nil,
		},
		{
			name: "nil input",
			in:   nil,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeKeywords(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("keywords mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMatches(t *testing.T) {
	release := &model.Release{
		RepoName: "alice/tool",
		Tag:      "v2.1.0",
		Name:     "Tool v2.1.0",
		Body:     "CUDA support added, minor Linux fixes",
	}

	tests := []struct {
		name     string
		release  *model.Release
		keywords []string
		want     bool
	}{
		{
			name:     "empty keywords always match",
			release:  release,
			keywords: nil,
			want:     true,
		},
		{
			name:     "single keyword in body, case-insensitive",
			release:  release,
			keywords: []string{"cuda"},
			want:     true,
		},
		{
			name:     "keyword in tag",
			release:  release,
			keywords: []string{"v2.1"},
			want:     true,
		},
		{
			name:     "all keywords must match",
			release:  release,
			keywords: []string{"cuda", "linux"},
			want:     true,
		},
		{
			name:     "one missing keyword fails",
			release:  release,
			keywords: []string{"cuda", "opencl"},
			want:     false,
		},
		{
			name:     "absent keyword fails",
			release:  release,
			keywords: []string{"opencl"},
			want:     false,
		},
		{
			name:     "substring containment, no tokenization",
			release:  release,
			keywords: []string{"uppor"},
			want:     true,
		},
		{
			name: "matches across empty optional fields",
			release: &model.Release{
				RepoName: "alice/tool",
				Tag:      "v1.0",
			},
			keywords: []string{"v1.0"},
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(tt.release, tt.keywords); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}
