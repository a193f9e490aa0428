package source

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mikey/phish-triage/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newParser(includeBody bool, maxBody int) *Parser {
	return NewParser(utils.NewTextProcessor(zap.NewNop()), maxBody, includeBody, zap.NewNop())
}

func TestDirSource_HeadersOnly(t *testing.T) {
	src := NewDirSource("testdata", newParser(false, 0), zap.NewNop())

	msgs, err := src.Messages(context.Background())
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	first := msgs[0]
	assert.Equal(t, "01-urgent", first.ID)
	assert.Equal(t, "Urgent: verify immediately", first.Snippet)
	assert.Equal(t, "IT Desk <it@example.com>", first.Headers["From"])
	assert.Equal(t, "<abc123@mail.example.com>", first.Headers["Message-ID"])
	assert.Contains(t, first.Headers["Authentication-Results"], "spf=fail")
	assert.Empty(t, first.Body)

	second := msgs[1]
	assert.Equal(t, "02-brand", second.ID)
	assert.Equal(t, "Action required: Microsoft account", second.Headers["Subject"])
	assert.Equal(t, []string{"invoice.iso"}, second.Attachments)
	assert.Empty(t, second.Body)
}

func TestParseFile_FullBody(t *testing.T) {
	p := newParser(true, 0)

	msg, err := p.ParseFile(filepath.Join("testdata", "01-urgent.eml"))
	require.NoError(t, err)
	assert.Contains(t, msg.Body, "https://bit.ly/reset-now")

	msg, err = p.ParseFile(filepath.Join("testdata", "02-brand.eml"))
	require.NoError(t, err)
	assert.Contains(t, msg.Body, "Sign in to keep your account.")
	assert.Contains(t, msg.Body, "https://login.microsoftonline.com/common/oauth2/authorize?client_id=1")
	assert.Contains(t, msg.Body, "Thanks, Team")
	assert.NotContains(t, msg.Body, "<p>")
	assert.NotContains(t, msg.Body, "color:red")
	assert.NotContains(t, msg.Body, "ignored")
}

func TestParse_BodyCap(t *testing.T) {
	raw := "Subject: long\r\nContent-Type: text/plain\r\n\r\n" + strings.Repeat("a", 500)

	msg, err := newParser(true, 100).Parse("long", strings.NewReader(raw))
	require.NoError(t, err)
	assert.Len(t, msg.Body, 100)
	assert.Equal(t, "long", msg.Snippet)
}

func TestParse_NoSubject(t *testing.T) {
	msg, err := newParser(false, 0).Parse("bare", strings.NewReader("From: a@example.com\r\n\r\nhi\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "", msg.Snippet)
	assert.Equal(t, "a@example.com", msg.Headers["From"])
}

func TestFileSource_SkipsMissing(t *testing.T) {
	src := NewFileSource([]string{
		filepath.Join("testdata", "02-brand.eml"),
		filepath.Join("testdata", "absent.eml"),
	}, newParser(false, 0), zap.NewNop())

	msgs, err := src.Messages(context.Background())
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "02-brand", msgs[0].ID)
}

func TestDirSource_Errors(t *testing.T) {
	_, err := NewDirSource(filepath.Join("testdata", "nope"), newParser(false, 0), zap.NewNop()).
		Messages(context.Background())
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewDirSource("testdata", newParser(false, 0), zap.NewNop()).Messages(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHTMLToText(t *testing.T) {
	got := htmlToText([]byte("<div>Hello <b>there</b>\n\n<script>var x;</script>friend</div>"))
	assert.Equal(t, "Hello there friend", got)
}

func TestReaderSource(t *testing.T) {
	src := NewReaderSource("stdin", strings.NewReader("Subject: hi\r\n\r\nbody\r\n"), newParser(true, 0))

	msgs, err := src.Messages(context.Background())
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "stdin", msgs[0].ID)
	assert.Equal(t, "hi", msgs[0].Snippet)
	assert.Contains(t, msgs[0].Body, "body")
}
