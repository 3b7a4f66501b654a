package mailer

import (
	"mime"
	"strings"
	"testing"

	"intelliblog/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessage_EncodesNonASCIISubject(t *testing.T) {
	subject := "⚠️ Your comment has been removed"
	msg, err := buildMessage("noreply@example.com", "user@example.com", subject, "text", "<p>html</p>")
	require.NoError(t, err)

	lines := strings.Split(string(msg), "\r\n")
	var subjectLine string
	for _, line := range lines {
		if strings.HasPrefix(line, "Subject: ") {
			subjectLine = strings.TrimPrefix(line, "Subject: ")
			break
		}
	}
	require.NotEmpty(t, subjectLine)

	// Header must be ASCII on the wire and decode back to the original.
	assert.True(t, strings.HasPrefix(subjectLine, "=?utf-8?q?"))
	decoded, err := new(mime.WordDecoder).DecodeHeader(subjectLine)
	require.NoError(t, err)
	assert.Equal(t, subject, decoded)
}

func TestBuildMessage_PlainSubjectStaysReadable(t *testing.T) {
	msg, err := buildMessage("noreply@example.com", "user@example.com", "Welcome aboard", "text", "")
	require.NoError(t, err)
	assert.Contains(t, string(msg), "Subject: Welcome aboard\r\n")
}

func TestBuildMessage_MultipartAlternative(t *testing.T) {
	msg, err := buildMessage("noreply@example.com", "user@example.com", "Hi", "plain body", "<p>html body</p>")
	require.NoError(t, err)
	out := string(msg)

	assert.Contains(t, out, "Content-Type: multipart/alternative")
	assert.Contains(t, out, "Content-Type: text/plain; charset=utf-8")
	assert.Contains(t, out, "Content-Type: text/html; charset=utf-8")
	assert.Contains(t, out, "plain body")
	assert.Contains(t, out, "--"+mimeBoundary+"--")
}

func TestBuildMessage_SkipsEmptyParts(t *testing.T) {
	msg, err := buildMessage("noreply@example.com", "user@example.com", "Hi", "plain only", "")
	require.NoError(t, err)
	assert.NotContains(t, string(msg), "text/html")
}

func TestNew_FallsBackToLogMailer(t *testing.T) {
	m := New(&config.Config{})
	_, ok := m.(*LogMailer)
	assert.True(t, ok)

	m = New(&config.Config{SMTPHost: "smtp.example.com", SMTPPort: "587"})
	_, ok = m.(*SMTPMailer)
	assert.True(t, ok)
}
