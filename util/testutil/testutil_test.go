package testutil

import (
	"reflect"
	"testing"
)

type Person struct {
	Name string
	Age  int
}

func TestJS(t *testing.T) {
	tests := []struct {
		name string
		arg  interface{}
		want string
	}{
		{
			name: "simple struct",
			arg:  Person{"John Doe", 30},
			want: `{"Name":"John Doe","Age":30}`,
		},
		{
			name: "path",
			arg:  []interface{}{"a", 1},
			want: `["a",1]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := JS(tt.arg); got != tt.want {
				t.Errorf("JS() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDwimjs(t *testing.T) {
	tests := []struct {
		name string
		arg  interface{}
		want interface{}
	}{
		{
			name: "valid JSON string",
			arg:  `{"name":"John Doe","age":30}`,
			want: map[string]interface{}{"name": "John Doe", "age": float64(30)},
		},
		{
			name: "valid JSON bytes",
			arg:  []byte(`{"name":"Jane Doe","age":25}`),
			want: map[string]interface{}{"name": "Jane Doe", "age": float64(25)},
		},
		{
			name: "non-JSON string",
			arg:  "hello world",
			want: "hello world",
		},
		{
			name: "non-string",
			arg:  12345,
			want: 12345,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Dwimjs(tt.arg); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Dwimjs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanonical(t *testing.T) {
	got := Canonical(Person{"Ada", 36})
	want := map[string]interface{}{"Name": "Ada", "Age": float64(36)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v", got)
	}
}

func TestYAML(t *testing.T) {
	got := YAML("user:\n  name: Ada\n  tags: [a, b]\n")
	m, is := got.(map[string]interface{})
	if !is {
		t.Fatalf("got a %T", got)
	}
	user, is := m["user"].(map[string]interface{})
	if !is {
		t.Fatalf("user is a %T", m["user"])
	}
	if user["name"] != "Ada" {
		t.Fatalf("name %#v", user["name"])
	}
	if tags, is := user["tags"].([]interface{}); !is || len(tags) != 2 {
		t.Fatalf("tags %#v", user["tags"])
	}
}
