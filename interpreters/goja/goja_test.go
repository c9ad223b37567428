package goja

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Comcast/arbor/core"
	. "github.com/Comcast/arbor/util/testutil"
)

func exec(t *testing.T, i *Interpreter, env map[string]interface{}, code interface{}) interface{} {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	compiled, err := i.Compile(ctx, code)
	if err != nil {
		t.Fatal(err)
	}

	x, err := i.Exec(ctx, env, code, compiled)
	if err != nil {
		t.Fatal(err)
	}
	return x
}

func TestGetterSimple(t *testing.T) {
	x := exec(t, NewInterpreter(), nil, `return {likes:"chips"};`)
	if JS(x) != `{"likes":"chips"}` {
		t.Fatalf("got %s", JS(x))
	}
}

func TestGetterDeps(t *testing.T) {
	env := map[string]interface{}{
		"deps": map[string]interface{}{
			"xs": []interface{}{1, 2, 3},
		},
	}
	x := exec(t, NewInterpreter(), env,
		`return _.deps.xs.reduce(function(acc, x) { return acc + x; }, 0);`)
	if n, is := x.(float64); !is || n != 6 {
		t.Fatalf("got %#v", x)
	}
}

func TestGetterArgs(t *testing.T) {
	env := map[string]interface{}{
		"args": []interface{}{"ada", "lovelace"},
	}
	x := exec(t, NewInterpreter(), env, `return _.args.join(" ");`)
	if x != "ada lovelace" {
		t.Fatalf("got %#v", x)
	}
}

func TestGetterUndefined(t *testing.T) {
	if x := exec(t, NewInterpreter(), nil, `var x = 1;`); x != nil {
		t.Fatalf("got %#v", x)
	}
}

func TestGetterTimeout(t *testing.T) {
	code := `for (;;) { sleep(10); } return null;`

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	i := NewInterpreter()
	i.Testing = true
	compiled, err := i.Compile(ctx, code)
	if err != nil {
		t.Fatal(err)
	}

	if _, err = i.Exec(ctx, nil, code, compiled); err == nil {
		t.Fatal("didn't timeout")
	}
	if err != Interrupted {
		t.Fatalf("surprised by \"%s\"", err)
	}
}

func TestGetterError(t *testing.T) {
	code := `return likes + tacos;`

	ctx := context.Background()
	i := NewInterpreter()
	compiled, err := i.Compile(ctx, code)
	if err != nil {
		t.Fatal(err)
	}

	if _, err = i.Exec(ctx, nil, code, compiled); err == nil {
		t.Fatal("didn't protest")
	}
}

func TestCompileError(t *testing.T) {
	if _, err := NewInterpreter().Compile(context.Background(), `return {`); err == nil {
		t.Fatal("didn't protest")
	}
}

func TestExecWithoutCompile(t *testing.T) {
	x, err := NewInterpreter().Exec(context.Background(), nil, `return 1 + 1;`, nil)
	if err != nil {
		t.Fatal(err)
	}
	if x != float64(2) {
		t.Fatalf("got %#v", x)
	}
}

func TestCronNext(t *testing.T) {
	x := exec(t, NewInterpreter(), nil, `return _.cronNext("* 0 * * *");`)
	s, is := x.(string)
	if !is {
		t.Fatalf("got %#v", x)
	}
	if _, err := time.Parse(time.RFC3339Nano, s); err != nil {
		t.Fatal(err)
	}
}

func TestCronNextBad(t *testing.T) {
	code := `return _.cronNext("bad");`
	ctx := context.Background()
	if _, err := NewInterpreter().Exec(ctx, nil, code, nil); err == nil {
		t.Fatal("didn't protest")
	}
}

func TestUtilities(t *testing.T) {
	env := map[string]interface{}{
		"deps": map[string]interface{}{
			"user": map[string]interface{}{"name": "ada", "age": 36},
		},
	}
	code := `
var u = _.deps.user;
return {
  adult: _.match({age: [36, 37]}, u),
  child: _.match({age: 7}, u),
  q: _.esc("a b&c"),
  id: _.gensym().length
};`
	x := exec(t, NewInterpreter(), env, code)
	if got, want := JS(x), `{"adult":true,"child":false,"id":26,"q":"a+b%26c"}`; got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestRequireMap(t *testing.T) {
	code := map[string]interface{}{
		"requires": []interface{}{"foo", "bar"},
		"code":     `return {likes: foo(), with: bar()};`,
	}

	i := NewInterpreter()
	i.LibraryProvider = MakeMapLibraryProvider(map[string]string{
		"foo": `function foo() { return "chips"; }`,
		"bar": `function bar() { return "queso"; }`,
	})

	x := exec(t, i, nil, code)
	if got, want := JS(x), `{"likes":"chips","with":"queso"}`; got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestRequireMissing(t *testing.T) {
	i := NewInterpreter()
	i.LibraryProvider = MakeMapLibraryProvider(map[string]string{})
	code := map[string]interface{}{
		"requires": "nope",
		"code":     `return 1;`,
	}
	if _, err := i.Compile(context.Background(), code); err == nil {
		t.Fatal("didn't protest")
	}
}

func TestRequireFile(t *testing.T) {
	dir := t.TempDir()
	lib := `function double(x) { return 2 * x; }`
	if err := os.WriteFile(filepath.Join(dir, "double.js"), []byte(lib), 0644); err != nil {
		t.Fatal(err)
	}

	i := NewInterpreter()
	i.LibraryProvider = MakeFileLibraryProvider(dir)

	code := map[string]interface{}{
		"requires": []interface{}{"file://double.js"},
		"code":     `return double(_.args[0]);`,
	}
	x := exec(t, i, map[string]interface{}{"args": []interface{}{21}}, code)
	if x != float64(42) {
		t.Fatalf("got %#v", x)
	}

	escape := map[string]interface{}{
		"requires": "file://../etc/passwd",
		"code":     `return 1;`,
	}
	if _, err := i.Compile(context.Background(), escape); err == nil {
		t.Fatal("didn't protest")
	}
}

func TestRequireHTTP(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `function foo() { return "queso"; }`)
	})
	server := httptest.NewServer(handler)
	defer server.Close()

	code := map[string]interface{}{
		"requires": []interface{}{server.URL},
		"code":     `return {wants: foo()};`,
	}

	x := exec(t, NewInterpreter(), nil, code)
	if got, want := JS(x), `{"wants":"queso"}`; got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestScriptMonkey(t *testing.T) {
	data := Dwimjs(`{
  "items": [{"price": 2}, {"price": 3}],
  "total": {"$monkey": {
    "cursors": {"items": "/items"},
    "get": {"interpreter": "goja",
            "source": "return _.deps.items.reduce(function(acc, x) { return acc + x.price; }, 0);"}
  }}
}`)

	ctx := context.Background()
	is := core.InterpretersMap{"goja": NewInterpreter()}
	decoded, err := core.DecodeDefinitions(ctx, data, is)
	if err != nil {
		t.Fatal(err)
	}

	opts := core.DefaultOptions()
	opts.Asynchronous = false
	tree, err := core.New(decoded, opts)
	if err != nil {
		t.Fatal(err)
	}
	defer tree.Release()

	if x := tree.Get(core.Path{"total"}); x != float64(5) {
		t.Fatalf("total %#v", x)
	}
	if err = tree.Push(core.Path{"items"}, map[string]interface{}{"price": 10}); err != nil {
		t.Fatal(err)
	}
	if x := tree.Get(core.Path{"total"}); x != Canonical(15) {
		t.Fatalf("total %#v", x)
	}
}

func TestScriptValidator(t *testing.T) {
	src := &core.Source{
		Interpreter: "goja",
		Source:      `return _.current.n > 3 ? "n too big" : "";`,
	}
	ctx := context.Background()
	v, err := core.ScriptValidator(ctx, src, core.InterpretersMap{"goja": NewInterpreter()})
	if err != nil {
		t.Fatal(err)
	}

	if err = v(nil, map[string]interface{}{"n": 1}, nil); err != nil {
		t.Fatal(err)
	}
	err = v(nil, map[string]interface{}{"n": 4}, []core.Path{{"n"}})
	if err == nil || err.Error() != "n too big" {
		t.Fatalf("got %v", err)
	}
}
