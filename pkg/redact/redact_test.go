package redact

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPerson() map[string]any {
	return map[string]any{
		"name": "ciaran",
		"person": map[string]any{
			"gender":      "M",
			"dateOfBirth": "2020-01-01",
			"passports": []any{
				map[string]any{"number": 123},
				map[string]any{"number": 456},
			},
			"phones": []any{1423, 1515},
		},
	}
}

func TestRedact_NoIgnoreFields(t *testing.T) {
	r := New(nil)
	in := map[string]any{"name": "ian"}
	assert.Equal(t, map[string]any{"name": "ian"}, r.Redact(in))
	assert.True(t, r.Empty())
}

func TestRedact_NestedObjects(t *testing.T) {
	r := New([]string{"first_name", "person.gender", "number", "phones"})
	out := r.Redact(testPerson())
	assert.Equal(t, map[string]any{
		"name": "ciaran",
		"person": map[string]any{
			"dateOfBirth": "2020-01-01",
			"passports":   []any{map[string]any{}, map[string]any{}},
		},
	}, out)
}

func TestRedact_ArrayOfObjectsIgnored(t *testing.T) {
	r := New([]string{"person_profiles"})
	out := r.Redact(map[string]any{
		"person_profiles": []any{map[string]any{"name": "Hehe"}},
	})
	assert.Equal(t, map[string]any{}, out)
}

func TestRedact_ArrayOfObjectsKept(t *testing.T) {
	r := New([]string{})
	in := map[string]any{
		"persons": []any{map[string]any{"name": "Hehe"}},
	}
	assert.Equal(t, map[string]any{
		"persons": []any{map[string]any{"name": "Hehe"}},
	}, r.Redact(in))
}

func TestRedact_LastSegmentMatchesEverywhere(t *testing.T) {
	r := New([]string{"passports.number"})
	out := r.Redact(map[string]any{
		"number":    1,
		"passports": []any{map[string]any{"number": 2, "country": "IE"}},
		"address":   map[string]any{"number": "7b"},
	})
	assert.Equal(t, map[string]any{
		"passports": []any{map[string]any{"country": "IE"}},
		"address":   map[string]any{},
	}, out)
}

func TestRedact_LiteralDottedKey(t *testing.T) {
	r := New([]string{"person.gender"}, WithFullPathMatching(true))
	out := r.Redact(map[string]any{
		"person.gender": "M",
		"person":        map[string]any{"gender": "F", "age": 3},
	})
	assert.Equal(t, map[string]any{
		"person": map[string]any{"age": 3},
	}, out)
}

func TestRedact_FullPathMatching(t *testing.T) {
	r := New([]string{"passports.number", "phones"}, WithFullPathMatching(true))
	out := r.Redact(map[string]any{
		"number":    1,
		"phones":    []any{1, 2},
		"passports": []any{map[string]any{"number": 2, "country": "IE"}},
		"address":   map[string]any{"number": "7b", "phones": "kept"},
	})
	assert.Equal(t, map[string]any{
		"number":    1,
		"passports": []any{map[string]any{"country": "IE"}},
		"address":   map[string]any{"number": "7b", "phones": "kept"},
	}, out)
}

func TestRedact_DoesNotMutateInput(t *testing.T) {
	in := testPerson()
	before := DeepCopy(in)
	_ = New([]string{"gender", "number", "phones"}).Redact(in)
	assert.Equal(t, before, in)
}

func TestRedact_Nil(t *testing.T) {
	assert.Nil(t, New([]string{"a"}).Redact(nil))
}

func TestRedact_TypedSliceOfMaps(t *testing.T) {
	r := New([]string{"secret"})
	out := r.Redact(map[string]any{
		"items": []map[string]any{{"secret": 1, "id": "a"}},
	})
	assert.Equal(t, map[string]any{
		"items": []any{map[string]any{"id": "a"}},
	}, out)
}

func TestRedact_TypedContainers(t *testing.T) {
	type passport struct {
		Number  int    `json:"number"`
		Country string `json:"country"`
	}
	r := New([]string{"person.gender", "number"})
	out := r.Redact(map[string]any{
		"person":    map[string]string{"gender": "M", "name": "ciaran"},
		"flags":     map[string]bool{"gender": true, "admin": false},
		"passports": []passport{{Number: 123, Country: "IE"}},
		"scores":    [2]int{1, 2},
	})
	assert.Equal(t, map[string]any{
		"person":    map[string]any{"name": "ciaran"},
		"flags":     map[string]any{"admin": false},
		"passports": []any{map[string]any{"country": "IE"}},
		"scores":    []any{1, 2},
	}, out)
}

func TestDeepCopy_TypedContainers(t *testing.T) {
	type gender string
	var nilMap map[string]string

	assert.Equal(t, map[string]any{"gender": gender("M")}, DeepCopy(map[gender]gender{"gender": "M"}))
	assert.Equal(t, []any{map[string]any{"a": 1}}, DeepCopy([]map[string]int{{"a": 1}}))
	assert.Equal(t, map[string]any{"1": "one"}, DeepCopy(map[int]string{1: "one"}))
	assert.Nil(t, DeepCopy(nilMap))
	assert.Nil(t, DeepCopy((*struct{})(nil)))
	assert.Equal(t, []byte("raw"), DeepCopy([]byte("raw")))

	ch := make(chan int)
	assert.Equal(t, ch, DeepCopy(ch))
}

func TestLastSegment(t *testing.T) {
	assert.Equal(t, "gender", LastSegment("person.gender"))
	assert.Equal(t, "name", LastSegment("name"))
	assert.Equal(t, "", LastSegment("person."))
}

func TestOmit(t *testing.T) {
	m := map[string]any{"a": 1, "b.c": 2, "b": map[string]any{"c": 3}}
	Omit(m, []string{"b.c", "missing"})
	assert.Equal(t, map[string]any{"a": 1, "b": map[string]any{"c": 3}}, m)
}

func TestDeepCopy(t *testing.T) {
	in := testPerson()
	out, ok := DeepCopy(in).(map[string]any)
	require.True(t, ok)
	out["person"].(map[string]any)["gender"] = "F"
	out["person"].(map[string]any)["passports"].([]any)[0].(map[string]any)["number"] = 0
	assert.Equal(t, "M", in["person"].(map[string]any)["gender"])
	assert.Equal(t, 123, in["person"].(map[string]any)["passports"].([]any)[0].(map[string]any)["number"])
}

// ------------------------------------------------------------------------------------------------
// ~ Properties
// ------------------------------------------------------------------------------------------------

var testKeys = []string{"name", "number", "phones", "gender", "values", "id", "items"}

func randomTree(rnd *rand.Rand, depth int) any {
	if depth <= 0 {
		return rnd.Intn(100)
	}
	switch rnd.Intn(4) {
	case 0:
		return fmt.Sprint(rnd.Intn(100))
	case 1:
		n := rnd.Intn(3)
		out := make([]any, n)
		for i := range out {
			out[i] = randomTree(rnd, depth-1)
		}
		return out
	default:
		n := rnd.Intn(4)
		out := make(map[string]any, n)
		for i := 0; i < n; i++ {
			out[testKeys[rnd.Intn(len(testKeys))]] = randomTree(rnd, depth-1)
		}
		return out
	}
}

func collectKeys(v any, keys map[string]struct{}) {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			keys[k] = struct{}{}
			collectKeys(child, keys)
		}
	case []any:
		for _, child := range t {
			collectKeys(child, keys)
		}
	}
}

func TestRedact_Properties(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	ignore := []string{"person.number", "phones"}
	r := New(ignore)

	for i := 0; i < 200; i++ {
		tree := map[string]any{
			"values": randomTree(rnd, 5),
			"items":  randomTree(rnd, 5),
		}
		once := r.Redact(tree)

		keys := map[string]struct{}{}
		collectKeys(once, keys)
		assert.NotContains(t, keys, "number")
		assert.NotContains(t, keys, "phones")

		assert.Equal(t, once, r.Redact(once))
	}
}
