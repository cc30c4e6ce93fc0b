package local

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPlatform(t *testing.T) (*Platform, string, string) {
	t.Helper()
	root := t.TempDir()
	inbox := filepath.Join(root, "inbox")
	outbox := filepath.Join(root, "outbox")
	p := New(Config{InboxDir: inbox, OutboxDir: outbox, PollInterval: 10 * time.Millisecond},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, p.Start(context.Background()))
	t.Cleanup(func() { p.Stop() })
	return p, inbox, outbox
}

func TestPlatform_PicksUpClips(t *testing.T) {
	p, inbox, _ := newTestPlatform(t)

	require.NoError(t, os.WriteFile(filepath.Join(inbox, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "hello.oga"), []byte("OggS"), 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	msg, err := p.NextMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, Conversation, msg.Conversation)
	assert.Equal(t, "ogg", msg.Clip.Format)
	assert.Equal(t, filepath.Join(inbox, "hello.oga.processed"), msg.Clip.URL)
	assert.NoFileExists(t, filepath.Join(inbox, "hello.oga"))

	dst := filepath.Join(t.TempDir(), msg.Clip.FileName())
	require.NoError(t, p.Download(ctx, msg, dst))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "OggS", string(data))

	short, cancelShort := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancelShort()
	_, err = p.NextMessage(short)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestPlatform_WritesReplies(t *testing.T) {
	p, _, outbox := newTestPlatform(t)
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "clip.wav")
	require.NoError(t, os.WriteFile(src, []byte("RIFF"), 0o644))
	msg := MessageFromFile(src)
	assert.Equal(t, "wav", msg.Clip.Format)
	assert.Equal(t, int64(4), msg.Clip.Size)

	require.NoError(t, p.ReplyText(ctx, msg, "⚠️ Error: boom"))
	text, err := os.ReadFile(filepath.Join(outbox, msg.ID+"_reply.txt"))
	require.NoError(t, err)
	assert.Equal(t, "⚠️ Error: boom\n", string(text))

	reply := filepath.Join(t.TempDir(), "reply.ogg")
	require.NoError(t, os.WriteFile(reply, []byte("OggS reply"), 0o644))
	require.NoError(t, p.ReplyVoice(ctx, msg, reply))
	voice, err := os.ReadFile(p.ReplyPath(msg, ".ogg"))
	require.NoError(t, err)
	assert.Equal(t, "OggS reply", string(voice))
}

type scriptedRecorder struct {
	mu      sync.Mutex
	started bool
	stopped bool
	clips   [][]byte
}

func (r *scriptedRecorder) Start(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = true
	return nil
}

func (r *scriptedRecorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	return nil
}

func (r *scriptedRecorder) Record(ctx context.Context) ([]byte, error) {
	r.mu.Lock()
	if len(r.clips) > 0 {
		clip := r.clips[0]
		r.clips = r.clips[1:]
		r.mu.Unlock()
		return clip, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestPlatform_RecorderFeedsInbox(t *testing.T) {
	root := t.TempDir()
	rec := &scriptedRecorder{clips: [][]byte{[]byte("RIFF one")}}
	p := New(Config{
		InboxDir:     filepath.Join(root, "inbox"),
		OutboxDir:    filepath.Join(root, "outbox"),
		PollInterval: 10 * time.Millisecond,
	}, slog.New(slog.NewTextHandler(io.Discard, nil))).WithRecorder(rec)

	require.NoError(t, p.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	msg, err := p.NextMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "wav", msg.Clip.Format)

	require.NoError(t, p.Stop())
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.True(t, rec.started)
	assert.True(t, rec.stopped)
}
