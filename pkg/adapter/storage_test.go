package adapter_test

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/querymem/pkg/adapter"
)

func TestStorage(t *testing.T) {
	bucket := os.Getenv("TEST_STORAGE_BUCKET")
	if bucket == "" {
		t.Skip("TEST_STORAGE_BUCKET is not set")
	}

	ctx := context.Background()
	s, err := adapter.NewStorage(ctx, bucket)
	gt.NoError(t, err)

	prefix := "querymem-test/" + time.Now().Format("20060102T150405.000000000") + "/"
	key := prefix + "object.bin"

	w, err := s.Put(ctx, key)
	gt.NoError(t, err)
	_, err = w.Write([]byte("payload"))
	gt.NoError(t, err)
	gt.NoError(t, w.Close())

	r, err := s.Get(ctx, key)
	gt.NoError(t, err)
	data, err := io.ReadAll(r)
	gt.NoError(t, err)
	gt.NoError(t, r.Close())
	gt.Equal(t, string(data), "payload")

	keys, err := s.List(ctx, prefix)
	gt.NoError(t, err)
	gt.Equal(t, keys, []string{key})
}
