package arxiv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanID(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"2504.02828", "2504.02828"},
		{"2504.02828.pdf", "2504.02828"},
		{"  2504.02828  ", "2504.02828"},
		{"2504.02828v2", "2504.02828v2"},
		{"https://arxiv.org/abs/2504.02828", "2504.02828"},
		{"https://arxiv.org/abs/2504.02828/", "2504.02828"},
		{"https://arxiv.org/pdf/2504.02828.pdf", "2504.02828"},
		{"https://arxiv.org/pdf/2504.02828v1", "2504.02828v1"},
		{"https://arxiv.org/abs/2504.02828?context=cs", "2504.02828"},
		{"http://export.arxiv.org/abs/hep-th/9901001", "hep-th/9901001"},
		{"hep-th/9901001", "hep-th/9901001"},
		{"arxiv.org/2504.02828", "2504.02828"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanID(tt.input), "CleanID(%q)", tt.input)
	}
}

func TestCleanID_Idempotent(t *testing.T) {
	inputs := []string{
		"2504.02828",
		"https://arxiv.org/abs/2504.02828",
		"https://arxiv.org/pdf/2504.02828.pdf",
		"hep-th/9901001",
		"https://arxiv.org/abs/math.GT/0309136",
	}

	for _, in := range inputs {
		once := CleanID(in)
		assert.Equal(t, once, CleanID(once), "CleanID not idempotent for %q", in)
	}
}

func TestCacheFileName(t *testing.T) {
	assert.Equal(t, "2504.02828.pdf", CacheFileName("2504.02828"))
	assert.Equal(t, "hep-th_9901001.pdf", CacheFileName("hep-th/9901001"))
}
