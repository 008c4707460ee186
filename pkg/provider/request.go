package provider

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// ErrInvalidRequest is returned when a request does not satisfy its schema.
var ErrInvalidRequest = errors.New("invalid provider request")

// Field describes one parameter a provider endpoint accepts.
type Field struct {
	Name     string
	Required bool
	Default  string // applied when the field is optional and unset
}

// Schema is the set of parameters an endpoint accepts.
type Schema struct {
	Name   string
	Fields []Field
}

func (s Schema) field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

var (
	consentSchema = Schema{
		Name: "consent",
		Fields: []Field{
			{Name: "client_id", Required: true},
			{Name: "redirect_uri", Required: true},
			{Name: "scope", Required: true},
			{Name: "state", Required: true},
			{Name: "response_type", Default: "code"},
			{Name: "access_type", Default: "offline"},
			{Name: "include_granted_scopes", Default: "true"},
		},
	}

	tokenSchema = Schema{
		Name: "token exchange",
		Fields: []Field{
			{Name: "code", Required: true},
			{Name: "state", Required: true},
			{Name: "redirect_uri", Required: true},
			{Name: "client_id", Required: true},
			{Name: "client_secret", Required: true},
			{Name: "grant_type", Default: "authorization_code"},
		},
	}

	initiateSchema = Schema{
		Name: "archive initiate",
		Fields: []Field{
			{Name: "resources", Required: true},
			{Name: "alt", Default: "json"},
		},
	}

	archiveStateSchema = Schema{
		Name: "archive state",
		Fields: []Field{
			{Name: "alt", Default: "json"},
		},
	}

	resetSchema = Schema{
		Name: "authorization reset",
		Fields: []Field{
			{Name: "alt", Default: "json"},
		},
	}
)

// Request is a provider call descriptor: an endpoint plus parameters,
// checked against the endpoint's schema before it is sent.
type Request struct {
	Method   string
	Endpoint string
	Bearer   string // access token, if the call is authorized

	schema Schema
	values map[string]string
}

// NewRequest starts a descriptor for method/endpoint validated against schema.
func NewRequest(method, endpoint string, schema Schema) *Request {
	return &Request{
		Method:   method,
		Endpoint: endpoint,
		schema:   schema,
		values:   make(map[string]string),
	}
}

// With sets a parameter.  Unknown names are caught by Values.
func (r *Request) With(name, value string) *Request {
	r.values[name] = value
	return r
}

// WithBearer authorizes the request with an access token.
func (r *Request) WithBearer(token string) *Request {
	r.Bearer = token
	return r
}

// Values validates the parameters against the schema and applies defaults.
func (r *Request) Values() (url.Values, error) {

	if r.Endpoint == "" {
		return nil, fmt.Errorf("%w: %s endpoint not set", ErrInvalidRequest, r.schema.Name)
	}

	var unknown []string
	for name := range r.values {
		if _, ok := r.schema.field(name); !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("%w: %s does not accept %s", ErrInvalidRequest, r.schema.Name, strings.Join(unknown, ", "))
	}

	out := url.Values{}
	for _, f := range r.schema.Fields {
		v, ok := r.values[f.Name]
		switch {
		case ok && v != "":
			out.Set(f.Name, v)
		case f.Required:
			return nil, fmt.Errorf("%w: %s requires %s", ErrInvalidRequest, r.schema.Name, f.Name)
		case f.Default != "":
			out.Set(f.Name, f.Default)
		}
	}

	return out, nil
}

// Url renders the endpoint with the validated parameters as its query string.
func (r *Request) Url() (string, error) {

	values, err := r.Values()
	if err != nil {
		return "", err
	}

	u, err := url.Parse(r.Endpoint)
	if err != nil {
		return "", fmt.Errorf("%w: %s endpoint %q: %v", ErrInvalidRequest, r.schema.Name, r.Endpoint, err)
	}

	// keep any query already on the endpoint
	q := u.Query()
	for k, vs := range values {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}
