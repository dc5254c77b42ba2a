package apimanager

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const (
	contentTypeJSON = "application/json;charset=utf-8"
	contentTypeForm = "application/x-www-form-urlencoded"
)

// Request is the immutable description of one outgoing call.
type Request struct {
	Identity    Identity
	URL         string
	Kind        ContentKind
	ContentType string
	Body        []byte
	Header      http.Header
}

// BuildRequest encodes payload according to api's content kind and merges the
// given headers. base resolves relative API paths.
func BuildRequest(api API, payload any, base *url.URL, header http.Header) (*Request, error) {
	if api == nil || api.Identity() == "" || api.Path() == "" {
		return nil, ErrInvalidAPI
	}

	target, err := resolveURL(base, api.Path())
	if err != nil {
		return nil, err
	}

	req := &Request{
		Identity: api.Identity(),
		URL:      target,
		Kind:     api.ContentKind(),
		Header:   header.Clone(),
	}
	if req.Header == nil {
		req.Header = http.Header{}
	}

	switch req.Kind {
	case ContentEmpty:
		req.Body = []byte{}
	case ContentJSON:
		if payload == nil {
			return nil, fmt.Errorf("%w: %s is a json api", ErrPayloadRequired, req.Identity)
		}
		body, err := encodeJSON(payload)
		if err != nil {
			return nil, err
		}
		req.Body = body
		req.ContentType = contentTypeJSON
	case ContentForm:
		if payload == nil {
			return nil, fmt.Errorf("%w: %s is a form api", ErrPayloadRequired, req.Identity)
		}
		values, err := formValues(payload)
		if err != nil {
			return nil, err
		}
		req.Body = []byte(values.Encode())
		req.ContentType = contentTypeForm
	default:
		return nil, fmt.Errorf("%w: kind %d", ErrUnsupportedContent, req.Kind)
	}

	if req.ContentType != "" {
		req.Header.Set(HeaderContentType, req.ContentType)
	}
	return req, nil
}

// HTTPRequest converts r into a POST bound to ctx.
func (r *Request) HTTPRequest(ctx context.Context) (*http.Request, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(r.Body))
	if err != nil {
		return nil, err
	}
	httpReq.Header = r.Header.Clone()
	return httpReq, nil
}

func encodeJSON(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case json.RawMessage:
		return p, nil
	case []byte:
		return p, nil
	}
	return json.Marshal(payload)
}

func formValues(payload any) (url.Values, error) {
	switch p := payload.(type) {
	case url.Values:
		return p, nil
	case map[string]string:
		values := url.Values{}
		for k, v := range p {
			values.Set(k, v)
		}
		return values, nil
	case map[string][]string:
		return url.Values(p), nil
	default:
		return nil, fmt.Errorf("%w: form api got %T", ErrUnsupportedContent, payload)
	}
}

func resolveURL(base *url.URL, path string) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAPI, err)
	}
	if ref.IsAbs() || base == nil {
		return ref.String(), nil
	}
	// Keep the base path: "https://h/v1" + "items" is "https://h/v1/items".
	b := *base
	if !strings.HasSuffix(b.Path, "/") {
		b.Path += "/"
	}
	return b.ResolveReference(&url.URL{
		Path:     strings.TrimPrefix(ref.Path, "/"),
		RawQuery: ref.RawQuery,
	}).String(), nil
}
