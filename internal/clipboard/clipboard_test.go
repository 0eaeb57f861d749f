package clipboard

import (
	"image"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"go.klb.dev/xfer/internal/bridge"
	"go.klb.dev/xfer/internal/logging"
	"go.klb.dev/xfer/internal/loop"
	"go.klb.dev/xfer/internal/platform"
	"go.klb.dev/xfer/internal/platform/memboard"
	"go.klb.dev/xfer/internal/platform/mocks"
	"go.klb.dev/xfer/internal/registry"
	"go.klb.dev/xfer/internal/selection"
	"go.klb.dev/xfer/internal/transfer"
)

const waitFor = 2 * time.Second

type fixture struct {
	m      *loop.Manual
	reg    *registry.Registry
	codecs *transfer.Set
	d      *memboard.Display
	a, b   *Clipboard
}

func newFixture(t *testing.T, mode memboard.Mode, opts ...Option) *fixture {
	t.Helper()
	reg := registry.New(nil)
	m := loop.NewManual(time.Unix(0, 0))
	d := memboard.New(memboard.WithRegistry(reg), memboard.WithMode(mode))
	opts = append([]Option{WithRegistry(reg)}, opts...)
	return &fixture{
		m:      m,
		reg:    reg,
		codecs: transfer.NewSet(reg),
		d:      d,
		a:      New(m, d.Connect(m), opts...),
		b:      New(m, d.Connect(m), opts...),
	}
}

func await[T any](t *testing.T, m *loop.Manual, f *loop.Future[T]) (T, error) {
	t.Helper()
	require.True(t, m.RunUntil(f.Done(), waitFor), "future did not complete")
	return f.Result()
}

func mockClipboard(t *testing.T, opts ...Option) (*Clipboard, *mocks.MockClipboardBackend, *loop.Manual, *registry.Registry) {
	t.Helper()
	ctrl := gomock.NewController(t)
	mb := mocks.NewMockClipboardBackend(ctrl)
	mb.EXPECT().Name().Return("mock").AnyTimes()
	reg := registry.New(nil)
	m := loop.NewManual(time.Unix(0, 0))
	return New(m, mb, append([]Option{WithRegistry(reg)}, opts...)...), mb, m, reg
}

func TestCopyPasteBetweenClients(t *testing.T) {
	fx := newFixture(t, memboard.ModeDirect)
	text := fx.codecs.Text

	require.NoError(t, fx.a.SetContents(platform.Clipboard, selection.Entry{Codec: text, Value: "hello"}))
	assert.True(t, fx.a.Owns(platform.Clipboard))

	v, err := fx.b.GetContents(text, platform.Clipboard)
	require.NoError(t, err)
	assert.Equal(t, "hello", v)

	v, err = fx.a.GetContents(text, platform.Clipboard)
	require.NoError(t, err)
	assert.Equal(t, "hello", v)

	v, err = fx.b.GetContents(fx.codecs.Image, platform.Clipboard)
	require.NoError(t, err)
	assert.Nil(t, v, "no image format offered")

	v, err = fx.b.GetContents(text, platform.Primary)
	require.NoError(t, err)
	assert.Nil(t, v)
}

type logBuffer struct {
	mu sync.Mutex
	b  strings.Builder
}

func (l *logBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}

func (l *logBuffer) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.String()
}

func captureLogs(t *testing.T, level slog.Level) *logBuffer {
	t.Helper()
	logs := &logBuffer{}
	prev := slog.Default()
	slog.SetDefault(slog.New(logging.NewHandler(logs, logging.FormatJSON, level)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return logs
}

func TestReadsAreLogged(t *testing.T) {
	logs := captureLogs(t, slog.LevelDebug)
	fx := newFixture(t, memboard.ModeDirect)
	text := fx.codecs.Text
	require.NoError(t, fx.a.SetContents(platform.Clipboard, selection.Entry{Codec: text, Value: "hello"}))

	v, err := fx.b.GetContents(text, platform.Clipboard)
	require.NoError(t, err)
	assert.Equal(t, "hello", v)

	out := logs.String()
	assert.Contains(t, out, `"msg":"clipboard read"`)
	assert.Contains(t, out, `"selection":"clipboard"`)
	assert.Contains(t, out, `"preview":"hello"`)

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	require.NoError(t, fx.a.SetContents(platform.Clipboard, selection.Entry{Codec: fx.codecs.Image, Value: img}))
	_, err = await(t, fx.m, fx.b.GetContentsAsync(fx.codecs.Image, platform.Clipboard))
	require.NoError(t, err)
	assert.Contains(t, logs.String(), `"format":"image/png"`)
	assert.Contains(t, logs.String(), `"size":"`)
}

func TestSetContentsOffersEveryEntry(t *testing.T) {
	fx := newFixture(t, memboard.ModeDirect)
	require.NoError(t, fx.a.SetContents(platform.Clipboard,
		selection.Entry{Codec: fx.codecs.Text, Value: "hello"},
		selection.Entry{Codec: fx.codecs.HTML, Value: "<b>hello</b>"},
	))

	names, err := fx.b.AvailableTypeNames(platform.Clipboard)
	require.NoError(t, err)
	assert.Subset(t, names, fx.codecs.Text.TypeNames())
	assert.Subset(t, names, fx.codecs.HTML.TypeNames())

	v, err := fx.b.GetContents(fx.codecs.HTML, platform.Clipboard)
	require.NoError(t, err)
	assert.Equal(t, "<b>hello</b>", v)
}

func TestSetContentsWithoutEntriesIsNoop(t *testing.T) {
	c, _, _, _ := mockClipboard(t)
	require.NoError(t, c.SetContents(platform.Clipboard))
	assert.False(t, c.Owns(platform.Clipboard))
}

func TestSetContentsValidatesEntries(t *testing.T) {
	c, _, _, reg := mockClipboard(t)
	text := transfer.NewText(reg)

	err := c.SetContents(platform.Clipboard, selection.Entry{Codec: text, Value: "ok"}, selection.Entry{Value: "x"})
	require.ErrorIs(t, err, ErrNilCodec)

	err = c.SetContents(platform.Clipboard, selection.Entry{Codec: text, Value: 42})
	require.ErrorIs(t, err, ErrInvalidArgument)

	err = c.SetContents(platform.Clipboard, selection.Entry{Codec: text, Value: ""})
	require.ErrorIs(t, err, ErrInvalidArgument)
	assert.False(t, c.Owns(platform.Clipboard))
}

func TestSetContentsReportsRefusedOwnership(t *testing.T) {
	c, mb, _, reg := mockClipboard(t)
	mb.EXPECT().AssertOwnership(platform.Clipboard, gomock.Any(), gomock.Any(), gomock.Any()).Return(false)

	err := c.SetContents(platform.Clipboard, selection.Entry{Codec: transfer.NewText(reg), Value: "hello"})
	require.ErrorIs(t, err, ErrCannotSet)
	assert.False(t, c.Owns(platform.Clipboard))
}

func TestLocalReadReturnsDistinctValue(t *testing.T) {
	fx := newFixture(t, memboard.ModeDirect)
	rec := transfer.NewProto(fx.reg, &structpb.Struct{})
	orig, err := structpb.NewStruct(map[string]any{"name": "report", "pages": 3})
	require.NoError(t, err)

	require.NoError(t, fx.a.SetContents(platform.Clipboard, selection.Entry{Codec: rec, Value: orig}))
	v, err := fx.a.GetContents(rec, platform.Clipboard)
	require.NoError(t, err)

	got, ok := v.(*structpb.Struct)
	require.True(t, ok)
	assert.NotSame(t, orig, got)
	assert.True(t, proto.Equal(orig, got))

	got.Fields["name"] = structpb.NewStringValue("changed")
	again, err := fx.a.GetContents(rec, platform.Clipboard)
	require.NoError(t, err)
	assert.True(t, proto.Equal(orig, again.(*structpb.Struct)), "owner value must not be shared")
}

func TestOwnershipLossClearsStore(t *testing.T) {
	fx := newFixture(t, memboard.ModeDirect)
	text := fx.codecs.Text

	require.NoError(t, fx.a.SetContents(platform.Clipboard, selection.Entry{Codec: text, Value: "from a"}))
	require.NoError(t, fx.b.SetContents(platform.Clipboard, selection.Entry{Codec: text, Value: "from b"}))
	fx.m.Drain()

	assert.False(t, fx.a.Owns(platform.Clipboard))
	assert.True(t, fx.b.Owns(platform.Clipboard))

	v, err := fx.a.GetContents(text, platform.Clipboard)
	require.NoError(t, err)
	assert.Equal(t, "from b", v)
}

func TestStaleOwnershipLostIsIgnored(t *testing.T) {
	c, mb, _, reg := mockClipboard(t)
	text := transfer.NewText(reg)
	var lost []func()
	mb.EXPECT().AssertOwnership(platform.Clipboard, gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ platform.Selection, _ []registry.TypeID, _ platform.Provider, onLost func()) bool {
			lost = append(lost, onLost)
			return true
		}).Times(2)

	require.NoError(t, c.SetContents(platform.Clipboard, selection.Entry{Codec: text, Value: "one"}))
	require.NoError(t, c.SetContents(platform.Clipboard, selection.Entry{Codec: text, Value: "two"}))
	require.Len(t, lost, 2)

	lost[0]()
	assert.True(t, c.Owns(platform.Clipboard), "callback for replaced contents is stale")

	lost[1]()
	assert.False(t, c.Owns(platform.Clipboard))
}

func TestReplacedProviderStopsServing(t *testing.T) {
	c, mb, _, reg := mockClipboard(t)
	text := transfer.NewText(reg)
	var providers []platform.Provider
	mb.EXPECT().AssertOwnership(platform.Clipboard, gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ platform.Selection, _ []registry.TypeID, p platform.Provider, _ func()) bool {
			providers = append(providers, p)
			return true
		}).Times(2)

	require.NoError(t, c.SetContents(platform.Clipboard, selection.Entry{Codec: text, Value: "one"}))
	require.NoError(t, c.SetContents(platform.Clipboard, selection.Entry{Codec: text, Value: "two"}))

	utf8, _ := reg.Lookup(transfer.FormatUTF8String)
	assert.False(t, providers[0].Provide(utf8).OK())
	d := providers[1].Provide(utf8)
	require.True(t, d.OK())
	assert.Equal(t, "two", string(d.Buffer))
}

func TestClearReleasesOwnership(t *testing.T) {
	c, mb, _, reg := mockClipboard(t)
	mb.EXPECT().AssertOwnership(platform.Primary, gomock.Any(), gomock.Any(), gomock.Any()).Return(true)
	mb.EXPECT().ReleaseOwnership(platform.Primary)

	require.NoError(t, c.Clear(platform.Primary), "clearing an unowned selection is a no-op")
	require.NoError(t, c.SetContents(platform.Primary, selection.Entry{Codec: transfer.NewText(reg), Value: "x"}))
	require.NoError(t, c.Clear(platform.Primary))
	assert.False(t, c.Owns(platform.Primary))
}

func TestAvailableTypesFromBackend(t *testing.T) {
	c, mb, _, reg := mockClipboard(t)
	png := reg.Register("image/png")
	mb.EXPECT().OwnedTypes(platform.Clipboard).Return([]registry.TypeID{png})

	names, err := c.AvailableTypeNames(platform.Clipboard)
	require.NoError(t, err)
	assert.Equal(t, []string{"image/png"}, names)
}

func TestGetContentsAsync(t *testing.T) {
	for _, mode := range []memboard.Mode{memboard.ModeDirect, memboard.ModeStream} {
		t.Run(mode.String(), func(t *testing.T) {
			fx := newFixture(t, mode)
			text := fx.codecs.Text
			require.NoError(t, fx.a.SetContents(platform.Clipboard, selection.Entry{Codec: text, Value: "héllo wörld"}))

			v, err := await(t, fx.m, fx.b.GetContentsAsync(text, platform.Clipboard))
			require.NoError(t, err)
			assert.Equal(t, "héllo wörld", v)

			v, err = await(t, fx.m, fx.b.GetContentsAsync(fx.codecs.URL, platform.Clipboard))
			require.NoError(t, err)
			assert.Nil(t, v)

			v, err = await(t, fx.m, fx.a.GetContentsAsync(text, platform.Clipboard))
			require.NoError(t, err)
			assert.Equal(t, "héllo wörld", v)
		})
	}
}

func TestGetContentsAsyncRejectsOversizedStream(t *testing.T) {
	fx := newFixture(t, memboard.ModeStream, WithMaxTransferSize(8))
	require.NoError(t, fx.a.SetContents(platform.Clipboard,
		selection.Entry{Codec: fx.codecs.Text, Value: strings.Repeat("x", 64)}))

	_, err := await(t, fx.m, fx.b.GetContentsAsync(fx.codecs.Text, platform.Clipboard))
	require.ErrorIs(t, err, bridge.ErrTooLarge)
}

func TestGetContentsRejectsNilCodec(t *testing.T) {
	c, _, _, _ := mockClipboard(t)
	_, err := c.GetContents(nil, platform.Clipboard)
	require.ErrorIs(t, err, ErrNilCodec)
	_, err = c.GetContentsAsync(nil, platform.Clipboard).Result()
	require.ErrorIs(t, err, ErrNilCodec)
}

func TestDisposeWaitsForEveryConfirmation(t *testing.T) {
	c, mb, m, reg := mockClipboard(t)
	text := transfer.NewText(reg)
	clip, primary := loop.NewFuture[struct{}](), loop.NewFuture[struct{}]()
	mb.EXPECT().AssertOwnership(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(true).Times(2)
	mb.EXPECT().PersistOwnership(platform.Clipboard).Return(clip)
	mb.EXPECT().PersistOwnership(platform.Primary).Return(primary)

	require.NoError(t, c.SetContents(platform.Clipboard, selection.Entry{Codec: text, Value: "a"}))
	require.NoError(t, c.SetContents(platform.Primary, selection.Entry{Codec: text, Value: "b"}))

	done := c.Dispose()
	assert.Same(t, done, c.Dispose(), "dispose is idempotent")
	require.ErrorIs(t, c.SetContents(platform.Clipboard, selection.Entry{Codec: text, Value: "c"}), ErrDisposed)

	clip.Resolve(struct{}{})
	assert.False(t, m.RunUntil(done.Done(), 50*time.Millisecond), "one confirmation is outstanding")
	assert.False(t, c.Disposed())

	primary.Resolve(struct{}{})
	_, err := await(t, m, done)
	require.NoError(t, err)
	assert.True(t, c.Disposed())
	assert.False(t, c.Owns(platform.Clipboard))
	assert.False(t, c.Owns(platform.Primary))
}

func TestDisposeWithoutOwnershipFinalizesImmediately(t *testing.T) {
	c, _, _, _ := mockClipboard(t)
	done := c.Dispose()
	assert.True(t, done.Completed())
	assert.True(t, c.Disposed())
}

func TestDisposeTimesOut(t *testing.T) {
	c, mb, m, reg := mockClipboard(t, WithDisposeTimeout(time.Second))
	mb.EXPECT().AssertOwnership(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(true)
	mb.EXPECT().PersistOwnership(platform.Clipboard).Return(loop.NewFuture[struct{}]())

	require.NoError(t, c.SetContents(platform.Clipboard, selection.Entry{Codec: transfer.NewText(reg), Value: "a"}))
	done := c.Dispose()

	m.Advance(999 * time.Millisecond)
	assert.False(t, c.Disposed())
	m.Advance(time.Millisecond)
	_, err := await(t, m, done)
	require.NoError(t, err)
	assert.True(t, c.Disposed())
}

func TestDisposedClipboardRejectsCalls(t *testing.T) {
	c, _, _, reg := mockClipboard(t)
	text := transfer.NewText(reg)
	c.Dispose()

	require.ErrorIs(t, c.SetContents(platform.Clipboard, selection.Entry{Codec: text, Value: "x"}), ErrDisposed)
	_, err := c.GetContents(text, platform.Clipboard)
	require.ErrorIs(t, err, ErrDisposed)
	_, err = c.GetContentsAsync(text, platform.Clipboard).Result()
	require.ErrorIs(t, err, ErrDisposed)
	require.ErrorIs(t, c.Clear(platform.Clipboard), ErrDisposed)
	_, err = c.AvailableTypes(platform.Clipboard)
	require.ErrorIs(t, err, ErrDisposed)
}

func TestContentSurvivesDispose(t *testing.T) {
	fx := newFixture(t, memboard.ModeDirect)
	text := fx.codecs.Text
	require.NoError(t, fx.a.SetContents(platform.Clipboard, selection.Entry{Codec: text, Value: "kept"}))

	_, err := await(t, fx.m, fx.a.Dispose())
	require.NoError(t, err)

	v, err := fx.b.GetContents(text, platform.Clipboard)
	require.NoError(t, err)
	assert.Equal(t, "kept", v)
}
