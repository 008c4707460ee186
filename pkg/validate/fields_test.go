package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidUserId(t *testing.T) {

	for _, good := range []string{"u1", "darth.vader@empire.com", "7f1c2d9e-0000-4000-8000-000000000000"} {
		assert.NoError(t, IsValidUserId(good), good)
	}

	for _, bad := range []string{"", "   ", "has space", "new\nline", strings.Repeat("a", UserIdMax+1)} {
		assert.Error(t, IsValidUserId(bad), bad)
	}
}

func TestIsValidState(t *testing.T) {

	assert.NoError(t, IsValidState("3f9a1c3e-8b1d-4a3e-9c55-2a6b0c7d9e11"))
	assert.Error(t, IsValidState("t1"), "too short")
	assert.Error(t, IsValidState("3f9a1c3e 8b1d 4a3e 9c55"), "spaces")
}

func TestIsValidCode(t *testing.T) {

	assert.NoError(t, IsValidCode("4/0AeaYSHB-example_code"))
	assert.Error(t, IsValidCode(""))
	assert.Error(t, IsValidCode("c1 c2"))
	assert.Error(t, IsValidCode(strings.Repeat("c", CodeMax+1)))
}

func TestIsValidResource(t *testing.T) {

	assert.NoError(t, IsValidResource("myactivity.search"))
	assert.NoError(t, IsValidResource("myactivity.youtube"))
	assert.Error(t, IsValidResource("myactivity"))
	assert.Error(t, IsValidResource("../etc/passwd"))
	assert.Error(t, IsValidResource("chrome.history"), "only activity resources can be archived")
}

func TestIsValidUuid(t *testing.T) {

	assert.True(t, IsValidUuid("3f9a1c3e-8b1d-4a3e-9c55-2a6b0c7d9e11"))
	assert.False(t, IsValidUuid("3f9a1c3e8b1d4a3e9c552a6b0c7d9e11"))
}

func TestLengthChecks(t *testing.T) {

	assert.True(t, TooShort("  a ", 2), "whitespace is trimmed")
	assert.True(t, TooLong([]byte("abc"), 2))
	assert.False(t, TooShort(42, 2), "unsupported types never fail the check")
}

func TestSanitizeHeaders(t *testing.T) {

	assert.Equal(t, "/auth", SanitizePath("/auth\r\n"))
	assert.Equal(t, "/a b", SanitizePath("/a%20b"))
	assert.Equal(t, "10.0.0.1", SanitizeIp("10.0.0.1:443"))
	assert.Equal(t, "invalid", SanitizeIp("not-an-ip"))
	assert.Equal(t, "curl/8.0", SanitizeUserAgent("curl/8.0\x00"))
	assert.Equal(t, "GET", SanitizeMethod("GET"))
}
