package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandSpecArgvOrdering(t *testing.T) {
	spec := CommandSpec{
		Program: "ffmpeg",
		Flags: []FlagPair{
			{Name: "-i", Value: "in.wav"},
			{Name: "-ar", Value: "44100"},
		},
		Args: []string{"out.wav"},
	}
	assert.Equal(t, []string{"ffmpeg", "-i", "in.wav", "-ar", "44100", "out.wav"}, spec.Argv())
}

func TestCompositeNameStability(t *testing.T) {
	flagsA := []FlagPair{{Name: "-i", Value: "a.wav"}}
	flagsB := []FlagPair{{Name: "-i", Value: "a.wav"}}
	nameA := CompositeName(1, "svcX", "progY", flagsA)
	nameB := CompositeName(1, "svcX", "progY", flagsB)
	assert.Equal(t, nameA, nameB, "identical (order, service, program, flags) must produce identical composite names")

	flagsC := []FlagPair{{Name: "-i", Value: "b.wav"}}
	nameC := CompositeName(1, "svcX", "progY", flagsC)
	assert.NotEqual(t, nameA, nameC, "changing a flag value must change the hash suffix")
	assert.Equal(t, "001_svcX_progY", nameC[:len("001_svcX_progY")])
}

func TestParamsHashOrderIndependent(t *testing.T) {
	// ParamsHash canonicalizes by sorted key, so declaration order of the
	// flag slice must not affect the resulting hash.
	h1 := ParamsHash([]FlagPair{{Name: "b", Value: "2"}, {Name: "a", Value: "1"}})
	h2 := ParamsHash([]FlagPair{{Name: "a", Value: "1"}, {Name: "b", Value: "2"}})
	assert.Equal(t, h1, h2)
}

func TestCommandSpecJSONRoundTrip(t *testing.T) {
	spec := CommandSpec{
		Program: "sox",
		Flags: []FlagPair{
			{Name: "-r", Value: float64(44100)},
			{Name: "-b", Value: "16"},
		},
		Args: []string{"{{in}}", "{{out}}"},
	}
	data, err := json.Marshal(spec)
	require.NoError(t, err)

	var decoded CommandSpec
	require.NoError(t, json.Unmarshal(data, &decoded))

	require.Len(t, decoded.Flags, 2)
	assert.Equal(t, "-r", decoded.Flags[0].Name)
	assert.Equal(t, "-b", decoded.Flags[1].Name)
	assert.Equal(t, []string{"{{in}}", "{{out}}"}, decoded.Args)
}

func TestCommandSpecCloneIsDeep(t *testing.T) {
	spec := CommandSpec{Program: "p", Flags: []FlagPair{{Name: "-x", Value: "1"}}, Args: []string{"a"}}
	clone := spec.Clone()
	clone.Flags[0].Value = "changed"
	clone.Args[0] = "changed"
	assert.Equal(t, "1", spec.Flags[0].Value)
	assert.Equal(t, "a", spec.Args[0])
}
