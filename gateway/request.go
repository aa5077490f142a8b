package gateway

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-storefront-gateway/credentials"
	"github.com/tidwall/gjson"
)

// Request describes one logical call to the backend. It is built per call and never stored.
type Request struct {
	// Path is relative to the client's base URL and may carry a query string.
	// Its prefix selects the credential realm.
	Path string
	// Method defaults to GET
	Method string
	// Body is JSON encoded unless it is already []byte, json.RawMessage or string,
	// which are sent as is and must hold JSON text
	Body any
	// RequiresAuth makes the call fail with AuthRequired when the realm has no token
	RequiresAuth bool
	Header       http.Header
}

// Realm is the credential realm inferred from the path prefix
func (r Request) Realm() credentials.Realm {
	return RealmFor(r.Path)
}

func (r Request) normalised() Request {
	r.Method = strings.ToUpper(strings.TrimSpace(r.Method))
	if r.Method == "" {
		r.Method = http.MethodGet
	}
	if !strings.HasPrefix(r.Path, "/") {
		r.Path = "/" + r.Path
	}
	return r
}

func (r Request) encodeBody() (io.Reader, error) {
	switch b := r.Body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return bytes.NewReader(b), nil
	case json.RawMessage:
		return bytes.NewReader(b), nil
	case string:
		return strings.NewReader(b), nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, err
		}
		return bytes.NewReader(data), nil
	}
}

// Response is a successful (or offline substitute) backend reply. The body has
// already been read in full.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// IsJSON is true when the content type declared JSON
	IsJSON bool
	// FromFallback marks content served by the offline provider
	FromFallback bool
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Get reads a gjson path from the body.
func (r *Response) Get(path string) gjson.Result {
	return gjson.GetBytes(r.Body, path)
}

// Data returns the payload of a {success, data} envelope, or the whole body when
// the backend answered with raw JSON.
func (r *Response) Data() gjson.Result {
	root := gjson.ParseBytes(r.Body)
	if root.Get("success").Exists() && root.Get("data").Exists() {
		return root.Get("data")
	}
	return root
}

func (r *Response) Text() string {
	return string(r.Body)
}

func (r *Response) ok() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func isJSONContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
