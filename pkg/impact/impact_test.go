package impact

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/matzehuels/depviz/pkg/closure"
)

func TestSummarize(t *testing.T) {
	causes := closure.Map{
		"a": closure.NewSet(),
		"b": closure.NewSet("a"),
		"c": closure.NewSet("a", "b"),
	}
	got := Summarize(causes)

	assert.Equal(t, GetsRecompiledMap{"a": 0, "b": 1, "c": 2}, got)
	assert.Equal(t, 3, TotalFiles(got))
	for id, s := range causes {
		assert.Equal(t, s.Len(), got[id])
	}
}

func TestSummarize_Empty(t *testing.T) {
	got := Summarize(closure.Map{})
	assert.NotNil(t, got)
	assert.Zero(t, TotalFiles(got))
}

func TestTopCauseRecompile(t *testing.T) {
	causes := closure.Map{
		"z": closure.NewSet("a", "b"),
		"y": closure.NewSet("a", "b"),
		"x": closure.NewSet("a"),
		"w": closure.NewSet(),
	}
	tests := []struct {
		name string
		n    int
		want []Entry
	}{
		{"top two ties broken by id", 2, []Entry{{"y", 2}, {"z", 2}}},
		{"all", 0, []Entry{{"y", 2}, {"z", 2}, {"x", 1}, {"w", 0}}},
		{"more than available", 10, []Entry{{"y", 2}, {"z", 2}, {"x", 1}, {"w", 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TopCauseRecompile(causes, tt.n))
		})
	}
}

func TestTopGetsRecompiled(t *testing.T) {
	deps := closure.Map{"app": closure.NewSet("lib", "core"), "lib": closure.NewSet("core"), "core": closure.NewSet()}
	assert.Equal(t, []Entry{{"app", 2}}, TopGetsRecompiled(deps, 1))
}

func TestDescribe(t *testing.T) {
	st := Describe(closure.Map{"a": closure.NewSet(), "b": closure.NewSet("a"), "c": closure.NewSet("a", "b", "d"), "d": closure.NewSet()})
	assert.Equal(t, 4, st.TotalFiles)
	assert.Equal(t, 3, st.MaxCauseRecompile)
	assert.InDelta(t, 1.0, st.MeanCauseRecompile, 1e-9)

	assert.Equal(t, Stats{}, Describe(nil))
}
