package mail

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yolymatics/tutoring-service/internal/testutil"
)

func TestConfirmationMessage(t *testing.T) {
	msg, err := ConfirmationMessage("Ada <script>", "ada@example.com", "https://app.example.com/confirm?token=abc&x=1")
	require.NoError(t, err)

	assert.Equal(t, "ada@example.com", msg.To.Address)
	assert.Equal(t, "Confirm your email", msg.Subject)
	assert.Contains(t, msg.TextContent, "https://app.example.com/confirm?token=abc&x=1")
	assert.Contains(t, msg.HTMLContent, "token=abc&amp;x=1")
	assert.NotContains(t, msg.HTMLContent, "<script>")
}

func TestSendGridMailer_Prepare(t *testing.T) {
	m := NewSendGridMailer("key", "Tutoring", "noreply@example.com", testutil.Logger())
	msg, err := ConfirmationMessage("Ada", "ada@example.com", "https://x/confirm")
	require.NoError(t, err)

	v3 := m.prepare(msg)
	require.Len(t, v3.Personalizations, 1)
	assert.Equal(t, "[Tutoring] Confirm your email", v3.Personalizations[0].Subject)
	require.Len(t, v3.Personalizations[0].To, 1)
	assert.Equal(t, "ada@example.com", v3.Personalizations[0].To[0].Address)
	assert.Equal(t, "noreply@example.com", v3.From.Address)
	assert.Len(t, v3.Content, 2)
}

func TestLogMailer(t *testing.T) {
	assert.NoError(t, NewLogMailer(testutil.Logger()).Send(context.Background(), Message{Subject: "hi"}))
}
