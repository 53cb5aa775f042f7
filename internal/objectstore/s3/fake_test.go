package s3

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeS3 is a minimal path-style S3 endpoint: PutObject (with If-None-Match),
// GetObject, HeadObject and ListObjectsV2 for a single bucket.
type fakeS3 struct {
	t      *testing.T
	bucket string

	mu       sync.Mutex
	objects  map[string]fakeObject
	denyPuts bool
}

type fakeObject struct {
	data        []byte
	contentType string
	metadata    map[string]string
	modified    time.Time
}

func newFakeS3(t *testing.T, bucket string) (*fakeS3, *httptest.Server) {
	f := &fakeS3{t: t, bucket: bucket, objects: make(map[string]fakeObject)}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")
	bucket, key, _ := strings.Cut(path, "/")
	if bucket != f.bucket {
		writeS3Error(w, http.StatusNotFound, "NoSuchBucket")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case key == "" && r.Method == http.MethodGet:
		f.list(w, r.URL.Query().Get("prefix"))
	case r.Method == http.MethodPut:
		f.put(w, r, key)
	case r.Method == http.MethodGet:
		f.get(w, key, true)
	case r.Method == http.MethodHead:
		f.get(w, key, false)
	default:
		writeS3Error(w, http.StatusMethodNotAllowed, "MethodNotAllowed")
	}
}

func (f *fakeS3) put(w http.ResponseWriter, r *http.Request, key string) {
	if f.denyPuts {
		writeS3Error(w, http.StatusForbidden, "AccessDenied")
		return
	}
	if r.Header.Get("If-None-Match") == "*" {
		if _, ok := f.objects[key]; ok {
			writeS3Error(w, http.StatusPreconditionFailed, "PreconditionFailed")
			return
		}
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		f.t.Errorf("fake s3: read body: %v", err)
		writeS3Error(w, http.StatusInternalServerError, "InternalError")
		return
	}
	meta := make(map[string]string)
	for name, values := range r.Header {
		lower := strings.ToLower(name)
		if strings.HasPrefix(lower, "x-amz-meta-") {
			meta[strings.TrimPrefix(lower, "x-amz-meta-")] = values[0]
		}
	}
	f.objects[key] = fakeObject{
		data:        data,
		contentType: r.Header.Get("Content-Type"),
		metadata:    meta,
		modified:    time.Now().UTC().Truncate(time.Second),
	}
	w.Header().Set("ETag", `"fake-etag"`)
	w.WriteHeader(http.StatusOK)
}

func (f *fakeS3) get(w http.ResponseWriter, key string, body bool) {
	obj, ok := f.objects[key]
	if !ok {
		if body {
			writeS3Error(w, http.StatusNotFound, "NoSuchKey")
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
		return
	}
	h := w.Header()
	h.Set("Content-Length", strconv.Itoa(len(obj.data)))
	h.Set("Content-Type", obj.contentType)
	h.Set("ETag", `"fake-etag"`)
	h.Set("Last-Modified", obj.modified.Format(http.TimeFormat))
	for k, v := range obj.metadata {
		h.Set("x-amz-meta-"+k, v)
	}
	w.WriteHeader(http.StatusOK)
	if body {
		_, _ = w.Write(obj.data)
	}
}

type listResult struct {
	XMLName     xml.Name      `xml:"http://s3.amazonaws.com/doc/2006-03-01/ ListBucketResult"`
	Name        string        `xml:"Name"`
	Prefix      string        `xml:"Prefix"`
	KeyCount    int           `xml:"KeyCount"`
	MaxKeys     int           `xml:"MaxKeys"`
	IsTruncated bool          `xml:"IsTruncated"`
	Contents    []listContent `xml:"Contents"`
}

type listContent struct {
	Key          string `xml:"Key"`
	LastModified string `xml:"LastModified"`
	ETag         string `xml:"ETag"`
	Size         int64  `xml:"Size"`
	StorageClass string `xml:"StorageClass"`
}

func (f *fakeS3) list(w http.ResponseWriter, prefix string) {
	res := listResult{Name: f.bucket, Prefix: prefix, MaxKeys: 1000}
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		obj := f.objects[k]
		res.Contents = append(res.Contents, listContent{
			Key:          k,
			LastModified: obj.modified.Format("2006-01-02T15:04:05.000Z"),
			ETag:         `"fake-etag"`,
			Size:         int64(len(obj.data)),
			StorageClass: "STANDARD",
		})
	}
	res.KeyCount = len(res.Contents)

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, xml.Header)
	_ = xml.NewEncoder(w).Encode(res)
}

func writeS3Error(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>%s</Code><Message>%s</Message><RequestId>fake</RequestId></Error>`, code, code)
}
