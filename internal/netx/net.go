// Package netx holds small HTTP helpers shared by filevault clients.
package netx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
)

// PostForm sends fields url-encoded to target.
func PostForm(ctx context.Context, client *http.Client, target string, header http.Header, fields url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(fields.Encode()))
	if err != nil {
		return nil, err
	}
	copyHeader(req.Header, header)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return client.Do(req)
}

// PostMultipart sends fields plus one file part named fileField holding data.
func PostMultipart(ctx context.Context, client *http.Client, target string, header http.Header, fields url.Values, fileField string, data []byte) (*http.Response, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, values := range fields {
		for _, v := range values {
			if err := mw.WriteField(name, v); err != nil {
				return nil, err
			}
		}
	}
	part, err := mw.CreateFormFile(fileField, fileField)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, &buf)
	if err != nil {
		return nil, err
	}
	copyHeader(req.Header, header)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return client.Do(req)
}

// ReadError drains a non-2xx response into an error carrying its status
// and body.
func ReadError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	return fmt.Errorf("request failed: %s; body: %s", resp.Status, strings.TrimSpace(string(b)))
}

func copyHeader(dst, src http.Header) {
	for k, vs := range src {
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}
