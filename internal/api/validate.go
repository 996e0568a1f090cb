package api

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const maxRequestBodySize = 1 << 20 // 1MB

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	schemaOnce sync.Once
	schemas    map[string]*jsonschema.Schema
	schemaErr  error
)

func compileSchemas() {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		schemaErr = err
		return
	}
	c := jsonschema.NewCompiler()
	out := make(map[string]*jsonschema.Schema, len(entries))
	for _, e := range entries {
		data, err := schemaFS.ReadFile("schemas/" + e.Name())
		if err != nil {
			schemaErr = err
			return
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
		if err != nil {
			schemaErr = fmt.Errorf("parsing schema %s: %w", e.Name(), err)
			return
		}
		url := "schema://" + e.Name()
		if err := c.AddResource(url, doc); err != nil {
			schemaErr = fmt.Errorf("adding schema %s: %w", e.Name(), err)
			return
		}
		compiled, err := c.Compile(url)
		if err != nil {
			schemaErr = fmt.Errorf("compiling schema %s: %w", e.Name(), err)
			return
		}
		out[e.Name()] = compiled
	}
	schemas = out
}

func schemaFor(name string) (*jsonschema.Schema, error) {
	schemaOnce.Do(compileSchemas)
	if schemaErr != nil {
		return nil, schemaErr
	}
	s, ok := schemas[name+".json"]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", name)
	}
	return s, nil
}

// requestError is a client mistake reported as 400.
type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }

// decodeBody reads at most 1MB of JSON, validates it against the named
// schema and decodes it into v.
func decodeBody(w http.ResponseWriter, r *http.Request, schema string, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &requestError{msg: "request body too large"}
		}
		return &requestError{msg: fmt.Sprintf("reading request body: %v", err)}
	}
	return validateJSON(data, schema, v)
}

// formValue reads a form-encoded body under the same size cap as
// decodeBody and returns the named field.
func formValue(w http.ResponseWriter, r *http.Request, key string) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		err = r.ParseMultipartForm(maxRequestBodySize)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", &requestError{msg: "request body too large"}
		}
		return "", &requestError{msg: fmt.Sprintf("invalid form body: %v", err)}
	}
	return r.PostFormValue(key), nil
}

func validateJSON(data []byte, schema string, v any) error {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return &requestError{msg: fmt.Sprintf("invalid request body: %v", err)}
	}
	s, err := schemaFor(schema)
	if err != nil {
		return err
	}
	if err := s.Validate(doc); err != nil {
		return &requestError{msg: fmt.Sprintf("invalid request: %v", err)}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &requestError{msg: fmt.Sprintf("invalid request body: %v", err)}
	}
	return nil
}

// flexID accepts a JSON string or number.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return fmt.Errorf("questionId: %w", err)
	}
	*f = flexID(n.String())
	return nil
}
