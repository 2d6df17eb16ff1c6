package phase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Phase
		wantErr bool
	}{
		{in: "create", want: Create},
		{in: "MIGRATE", want: Migrate},
		{in: " Build ", want: Build},
		{in: "verify", want: Verify},
		{in: "truncate", want: Truncate},
		{in: "Destroy", want: Destroy},
		{in: "deploy", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOrdering(t *testing.T) {
	all := All()
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1], all[i])
	}
	assert.Equal(t, "build", Build.String())
	assert.False(t, Phase(42).Valid())
}

func TestExpand(t *testing.T) {
	tests := []struct {
		name        string
		requested   Phase
		noLifecycle bool
		want        []Phase
	}{
		{"create", Create, false, []Phase{Create}},
		{"migrate", Migrate, false, []Phase{Create, Migrate}},
		{"build", Build, false, []Phase{Create, Migrate, Build}},
		{"verify", Verify, false, []Phase{Create, Migrate, Build, Verify}},
		{"truncate is never implied", Truncate, false, []Phase{Truncate}},
		{"destroy is never implied", Destroy, false, []Phase{Destroy}},
		{"build without lifecycle", Build, true, []Phase{Build}},
		{"verify without lifecycle", Verify, true, []Phase{Verify}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Expand(tt.requested, tt.noLifecycle))
		})
	}
}

func TestExpandProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := rapid.SampledFrom(All()).Draw(t, "phase")
		noLifecycle := rapid.Bool().Draw(t, "noLifecycle")
		got := Expand(p, noLifecycle)

		if len(got) == 0 || got[len(got)-1] != p {
			t.Fatalf("Expand(%s) = %v does not end with the requested phase", p, got)
		}
		for i := 1; i < len(got); i++ {
			if got[i-1] >= got[i] {
				t.Fatalf("Expand(%s) = %v is not strictly increasing", p, got)
			}
		}
		for _, e := range got[:len(got)-1] {
			if e.IsTeardown() {
				t.Fatalf("Expand(%s) implied teardown phase %s", p, e)
			}
		}
		if noLifecycle && len(got) != 1 {
			t.Fatalf("Expand(%s, true) = %v", p, got)
		}
	})
}

func TestExpandPrefixMonotonic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.SampledFrom(lifecycle).Draw(t, "a")
		b := rapid.SampledFrom(lifecycle).Draw(t, "b")
		if a > b {
			a, b = b, a
		}
		ea, eb := Expand(a, false), Expand(b, false)
		if len(ea) > len(eb) {
			t.Fatalf("Expand(%s) longer than Expand(%s)", a, b)
		}
		for i := range ea {
			if ea[i] != eb[i] {
				t.Fatalf("Expand(%s) = %v is not a prefix of Expand(%s) = %v", a, ea, b, eb)
			}
		}
	})
}

func TestSet(t *testing.T) {
	s := NewSet(Build, Create, Verify)

	assert.True(t, s.Contains(Create))
	assert.True(t, s.Contains(Build))
	assert.False(t, s.Contains(Destroy))
	assert.Equal(t, []Phase{Create, Build, Verify}, s.Slice())
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, "{create,build,verify}", s.String())

	s2 := s.With(Destroy)
	assert.True(t, s2.Contains(Destroy))
	assert.False(t, s.Contains(Destroy), "With must not modify the receiver")

	assert.True(t, Set(0).IsEmpty())
	assert.Equal(t, 6, AllSet().Len())
}

func TestParseSet(t *testing.T) {
	s, err := ParseSet([]string{"build", "VERIFY"})
	require.NoError(t, err)
	assert.Equal(t, NewSet(Build, Verify), s)

	_, err = ParseSet([]string{"build", "ship"})
	assert.Error(t, err)
}

func TestTextMarshalling(t *testing.T) {
	var p Phase
	require.NoError(t, p.UnmarshalText([]byte("Truncate")))
	assert.Equal(t, Truncate, p)

	text, err := Migrate.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "migrate", string(text))

	_, err = Phase(9).MarshalText()
	assert.Error(t, err)
}
