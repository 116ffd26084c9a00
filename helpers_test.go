package medialib_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	medialib "github.com/shoraid/go-medialib"
	"github.com/shoraid/go-medialib/drivers/memory"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeConverter writes "{name}:{width}:{original}" for every conversion.
type fakeConverter struct {
	mu      sync.Mutex
	fail    map[string]bool
	panicOn string
	calls   int
}

func (c *fakeConverter) Supports(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/") && mimeType != "image/svg+xml"
}

func (c *fakeConverter) Convert(ctx context.Context, srcPath, mimeType string, conv medialib.Conversion, dst io.Writer) (string, error) {
	c.mu.Lock()
	c.calls++
	fail := c.fail[conv.Name]
	c.mu.Unlock()

	if conv.Name == c.panicOn {
		panic("decoder exploded")
	}
	if fail {
		return "", errors.New("render failed")
	}

	data, err := os.ReadFile(srcPath)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(dst, "%s:%d:%s", conv.Name, conv.Width, data)
	return mimeType, nil
}

func (c *fakeConverter) setFail(names ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail = map[string]bool{}
	for _, n := range names {
		c.fail[n] = true
	}
}

type envConfig struct {
	cfg        medialib.Config
	visibility medialib.Visibility
	noConvert  bool
	wrapStore  func(medialib.MediaStore) medialib.MediaStore
	wrapDisk   func(medialib.StorageDriver) medialib.StorageDriver
}

type testEnv struct {
	svc   *medialib.Service
	store *memory.MediaStore
	disk  *memory.ObjectStorage
	conv  *fakeConverter
	clock *testClock
	cfg   medialib.Config
}

func newTestEnv(t *testing.T, tweaks ...func(*envConfig)) *testEnv {
	t.Helper()

	ec := envConfig{cfg: medialib.DefaultConfig(), visibility: medialib.VisibilityPublic}
	ec.cfg.ScratchDir = t.TempDir()
	for _, tweak := range tweaks {
		tweak(&ec)
	}

	clock := &testClock{now: testNow}
	disk := memory.NewObjectStorage("https://cdn.test", ec.visibility)
	store := memory.NewMediaStore(memory.WithClock(clock.Now))
	conv := &fakeConverter{}

	var driver medialib.StorageDriver = disk
	if ec.wrapDisk != nil {
		driver = ec.wrapDisk(disk)
	}
	var mediaStore medialib.MediaStore = store
	if ec.wrapStore != nil {
		mediaStore = ec.wrapStore(store)
	}

	mgr, err := medialib.NewManager(ec.cfg.Disk, map[string]medialib.StorageDriver{ec.cfg.Disk: driver})
	require.NoError(t, err, "expected manager to be created")

	opts := []medialib.Option{
		medialib.WithLogger(zerolog.Nop()),
		medialib.WithClock(clock.Now),
		medialib.WithIDGenerator(func() string { return "rand" }),
	}
	if !ec.noConvert {
		opts = append(opts, medialib.WithConverter(conv))
	}

	svc, err := medialib.New(ec.cfg, mediaStore, mgr, opts...)
	require.NoError(t, err, "expected service to be created")

	return &testEnv{svc: svc, store: store, disk: disk, conv: conv, clock: clock, cfg: svc.Config()}
}

// seed stores m directly and, when original is non-nil, its original object.
func (e *testEnv) seed(t *testing.T, m medialib.Media, original []byte) *medialib.Media {
	t.Helper()
	ctx := context.Background()

	if m.Disk == "" {
		m.Disk = e.cfg.Disk
	}
	if m.FileName == "" {
		m.FileName = "photo.jpg"
	}
	if m.MimeType == "" {
		m.MimeType = "image/jpeg"
	}
	if m.Name == "" {
		m.Name = m.FileName
	}
	if m.CollectionName == "" {
		m.CollectionName = medialib.DefaultCollection
	}
	if m.Status == "" {
		m.Status = medialib.StatusDone
	}
	m.Size = int64(len(original))

	require.NoError(t, e.store.Create(ctx, &m), "expected seed record to be stored")
	if original != nil {
		require.NoError(t, e.disk.Put(ctx, m.OriginalKey(), bytes.NewReader(original), m.MimeType), "expected original to be stored")
	}
	return &m
}

func (e *testEnv) putTemp(t *testing.T, key string, data []byte, contentType string) {
	t.Helper()
	require.NoError(t, e.disk.Put(context.Background(), key, bytes.NewReader(data), contentType), "expected temp upload to be stored")
}

func (e *testEnv) object(t *testing.T, key string) string {
	t.Helper()
	rc, err := e.disk.Get(context.Background(), key)
	require.NoError(t, err, "expected object %s to exist", key)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func (e *testEnv) exists(t *testing.T, key string) bool {
	t.Helper()
	ok, err := e.disk.Exists(context.Background(), key)
	require.NoError(t, err)
	return ok
}

func (e *testEnv) find(t *testing.T, id int64) *medialib.Media {
	t.Helper()
	m, err := e.store.FindByID(context.Background(), id)
	require.NoError(t, err, "expected record %d to exist", id)
	return m
}

func withConfig(fn func(*medialib.Config)) func(*envConfig) {
	return func(ec *envConfig) { fn(&ec.cfg) }
}

func withVisibility(v medialib.Visibility) func(*envConfig) {
	return func(ec *envConfig) { ec.visibility = v }
}

func withDisk(wrap func(medialib.StorageDriver) medialib.StorageDriver) func(*envConfig) {
	return func(ec *envConfig) { ec.wrapDisk = wrap }
}

func withStore(wrap func(medialib.MediaStore) medialib.MediaStore) func(*envConfig) {
	return func(ec *envConfig) { ec.wrapStore = wrap }
}

// faultyDisk fails selected operations of the wrapped driver.
type faultyDisk struct {
	medialib.StorageDriver
	copyErr   error
	getErr    error
	deleteErr error
	urlErr    error
}

func (d *faultyDisk) Copy(ctx context.Context, srcKey, dstKey string) error {
	if d.copyErr != nil {
		return d.copyErr
	}
	return d.StorageDriver.Copy(ctx, srcKey, dstKey)
}

func (d *faultyDisk) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if d.getErr != nil {
		return nil, d.getErr
	}
	return d.StorageDriver.Get(ctx, key)
}

func (d *faultyDisk) Delete(ctx context.Context, key string) error {
	if d.deleteErr != nil {
		return d.deleteErr
	}
	return d.StorageDriver.Delete(ctx, key)
}

func (d *faultyDisk) GetURL(ctx context.Context, key string) (string, error) {
	if d.urlErr != nil {
		return "", d.urlErr
	}
	return d.StorageDriver.GetURL(ctx, key)
}

func (d *faultyDisk) GetSignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if d.urlErr != nil {
		return "", d.urlErr
	}
	return d.StorageDriver.GetSignedURL(ctx, key, expiry)
}

func statusPtr(s medialib.Status) *medialib.Status {
	return &s
}
