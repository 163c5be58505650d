package web

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/JonMunkholm/datagrid/internal/core"
)

// maxBodyBytes bounds request bodies of view mutations.
const maxBodyBytes = 1 << 20

// input is a request body flattened to string lists so HTMX form posts and
// JSON API calls share one code path. JSON arrays become lists, scalars
// become one-element lists.
type input map[string][]string

func readInput(w http.ResponseWriter, r *http.Request) (input, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct != "application/json" {
		if err := r.ParseForm(); err != nil {
			return nil, &core.ValidationError{Message: "unreadable form body"}
		}
		return input(r.Form), nil
	}

	var raw map[string]any
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, &core.ValidationError{Message: "request body must be a JSON object"}
	}

	in := make(input, len(raw))
	for k, v := range raw {
		switch t := v.(type) {
		case nil:
		case []any:
			for _, item := range t {
				in[k] = append(in[k], fmt.Sprint(item))
			}
		default:
			in[k] = []string{fmt.Sprint(t)}
		}
	}
	for k, vs := range r.URL.Query() {
		if _, ok := in[k]; !ok {
			in[k] = vs
		}
	}
	return in, nil
}

func (in input) get(key string) string {
	if vs := in[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

func (in input) has(key string) bool {
	_, ok := in[key]
	return ok
}

// list returns every value of key, splitting comma-separated form values.
func (in input) list(key string) []string {
	var out []string
	for _, v := range in[key] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// bool reports whether key holds a true value such as "true" or the "on"
// of a checked checkbox.
func (in input) bool(key string) bool {
	b, _ := core.ParseBool(in.get(key))
	return b
}
