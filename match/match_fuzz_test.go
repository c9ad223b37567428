package match

// Fuzz patterns and objects.  Compare and then verify the results
// that can be verified independently.

import (
	"math/rand"
	"testing"

	. "github.com/Comcast/arbor/util/testutil"
)

// Fuzz has parameters used to generate random patterns and objects.
type Fuzz struct {
	MapWidth    int
	ArrayWidth  int
	Alphabet    string
	StringWidth int
	MaxNumber   float64

	Nils    float64
	Strings float64
	Bools   float64
	Numbers float64
	Arrays  float64
	Maps    float64

	// generated counts the number of atomic values generated.
	generated int64
}

// NoArrays sets Arrays to zero.  An array in a pattern is a
// membership test, so a pattern without arrays always matches
// itself.
func (f *Fuzz) NoArrays() {
	f.Arrays = 0
}

// NewFuzz returns a reasonable, general-purpose Fuzz.
func NewFuzz() *Fuzz {
	return &Fuzz{
		MapWidth:    4,
		ArrayWidth:  4,
		Alphabet:    "abc",
		StringWidth: 3,
		MaxNumber:   5,

		Nils:    1,
		Strings: 3,
		Bools:   1,
		Numbers: 3,
		Arrays:  2,
		Maps:    3,
	}
}

// Gen generates a random value.
func (f *Fuzz) Gen(r *rand.Rand, d int) interface{} {
	f.generated++

	m := f.Strings + f.Bools + f.Numbers + f.Nils
	if 0 < d {
		m += f.Arrays + f.Maps
	}

	t := r.Float64() * m
	if t < f.Strings {
		return f.genString(r)
	} else if t < f.Strings+f.Bools {
		return r.Intn(2) == 0
	} else if t < f.Strings+f.Bools+f.Numbers {
		return float64(r.Intn(int(f.MaxNumber)))
	} else if t < f.Strings+f.Bools+f.Numbers+f.Nils {
		return nil
	} else if t < f.Strings+f.Bools+f.Numbers+f.Nils+f.Arrays {
		return f.genArray(r, d-1)
	} else {
		return f.genMap(r, d-1)
	}
}

func (f *Fuzz) genString(r *rand.Rand) string {
	n := r.Intn(f.StringWidth-1) + 1
	s := make([]byte, n)
	for i := range s {
		s[i] = f.Alphabet[r.Intn(len(f.Alphabet))]
	}
	return string(s)
}

func (f *Fuzz) genArray(r *rand.Rand, d int) interface{} {
	xs := make([]interface{}, r.Intn(f.ArrayWidth))
	for i := range xs {
		xs[i] = f.Gen(r, d)
	}
	return xs
}

func (f *Fuzz) genMap(r *rand.Rand, d int) map[string]interface{} {
	n := r.Intn(f.MapWidth)
	m := make(map[string]interface{}, n)
	for i := 0; i < n; i++ {
		m[f.genString(r)] = f.Gen(r, d)
	}
	return m
}

// TestCompareFuzz compares a bunch of patterns against a bunch of
// objects.
func TestCompareFuzz(t *testing.T) {
	var (
		pats       = 500
		objsPerPat = 500

		d = 3
		r = rand.New(rand.NewSource(42))
		p = NewFuzz()
		o = NewFuzz()

		matched = 0
	)
	p.NoArrays()

	for i := 0; i < pats; i++ {
		pat := p.genMap(r, d)
		if !Compare(pat, pat) {
			t.Fatalf("%s didn't match itself", JS(pat))
		}
		for j := 0; j < objsPerPat; j++ {
			obj := o.Gen(r, d)
			if !Compare(obj, pat) {
				continue
			}
			matched++
			// Every pattern property must be present in the object.
			m, is := obj.(map[string]interface{})
			if !is {
				if len(pat) != 0 {
					t.Fatalf("%v matched %s but isn't a map", obj, JS(pat))
				}
				continue
			}
			for k := range pat {
				if _, have := m[k]; !have {
					t.Fatalf("%s matched %s without %q", JS(m), JS(pat), k)
				}
			}
		}
	}

	if matched == 0 {
		t.Fatal("nothing matched")
	}
}
