package s3

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const (
	mockBucket   = "mock-bucket"
	mockEndpoint = "https://mock.s3.local"
	noSuchKeyXML = `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`
)

// NewMockForTests returns a Store whose client talks to an in-process bucket.
// Only GetObject, PutObject and DeleteObject are understood.
func NewMockForTests() *Store {
	store, _ := newMock()
	return store
}

func newMock() (*Store, *fakeBucket) {
	bucket := &fakeBucket{objects: map[string][]byte{}}
	cfg, _ := config.LoadDefaultConfig(context.Background(),
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: bucket}
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String(mockEndpoint)
	})
	return &Store{client: client, bucket: mockBucket, prefix: "voltschool/"}, bucket
}

// fakeBucket serves path-style object requests from memory.
type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (b *fakeBucket) keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.objects))
	for k := range b.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (b *fakeBucket) RoundTrip(req *http.Request) (*http.Response, error) {
	key := strings.TrimPrefix(req.URL.Path, "/"+mockBucket+"/")
	b.mu.Lock()
	defer b.mu.Unlock()
	switch req.Method {
	case http.MethodPut:
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		b.objects[key] = unchunk(body)
		return reply(http.StatusOK, nil, http.Header{"ETag": {`"mock"`}}), nil
	case http.MethodGet:
		body, ok := b.objects[key]
		if !ok {
			return reply(http.StatusNotFound, []byte(noSuchKeyXML), http.Header{"Content-Type": {"application/xml"}}), nil
		}
		return reply(http.StatusOK, body, http.Header{
			"Content-Length": {strconv.Itoa(len(body))},
			"Content-Type":   {"application/json"},
			"Last-Modified":  {time.Now().UTC().Format(http.TimeFormat)},
			"ETag":           {`"mock"`},
		}), nil
	case http.MethodDelete:
		delete(b.objects, key)
		return reply(http.StatusNoContent, nil, nil), nil
	default:
		return reply(http.StatusNotImplemented, nil, nil), nil
	}
}

func reply(status int, body []byte, header http.Header) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{StatusCode: status, Header: header, Body: io.NopCloser(bytes.NewReader(body))}
}

// unchunk strips single-chunk aws-chunked framing ("<hex>\r\n<data>\r\n0\r\n...")
// added when the SDK streams a trailing checksum. Other bodies pass through.
func unchunk(body []byte) []byte {
	size, rest, ok := bytes.Cut(body, []byte("\r\n"))
	if !ok {
		return body
	}
	n, err := strconv.ParseInt(string(size), 16, 64)
	if err != nil || n <= 0 || int64(len(rest)) < n+2 {
		return body
	}
	data, tail := rest[:n], rest[n:]
	if !bytes.HasPrefix(tail, []byte("\r\n0\r\n")) {
		return body
	}
	return bytes.Clone(data)
}
